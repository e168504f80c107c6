package runs

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hbomb79/Curator/internal/inventory"
	"github.com/hbomb79/Curator/internal/reconcile"
	"github.com/hbomb79/Curator/pkg/logger"
	"github.com/labstack/echo/v4"
)

type (
	// CreateRunRequest is the body accepted when triggering a new run.
	CreateRunRequest struct {
		LibraryID string `json:"library_id" validate:"required"`
		Kind      string `json:"kind" validate:"required,oneof=movie music"`
		BatchSize int    `json:"batch_size" validate:"min=0,max=10000"`
	}

	CreateRunResponse struct {
		ID uuid.UUID `json:"id"`
	}

	RunService interface {
		StartRun(reconcile.RunRequest) (uuid.UUID, error)
		ListRuns() []reconcile.RunEntry
		GetRun(uuid.UUID) (reconcile.RunEntry, bool)
	}

	// Controller exposes the reconciliation runs performed by this
	// process, and allows new runs to be triggered.
	Controller struct {
		validate *validator.Validate
		service  RunService
	}
)

var controllerLogger = logger.Get("RunsController")

func New(validate *validator.Validate, service RunService) *Controller {
	return &Controller{validate: validate, service: service}
}

func (controller *Controller) SetRoutes(eg *echo.Group) {
	eg.POST("/", controller.create)
	eg.GET("/", controller.list)
	eg.GET("/:id/", controller.get)
}

// create starts a run in the background, responding with the
// ID of the run so it's progress can be followed.
func (controller *Controller) create(ec echo.Context) error {
	var request CreateRunRequest
	if err := ec.Bind(&request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("JSON body illegal: %v", err))
	}
	if err := controller.validate.Struct(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Request invalid: %v", err))
	}

	id, err := controller.service.StartRun(reconcile.RunRequest{
		LibraryID: request.LibraryID,
		Kind:      inventory.Kind(request.Kind),
		BatchSize: request.BatchSize,
	})
	if errors.Is(err, reconcile.ErrRunInProgress) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	} else if err != nil {
		controllerLogger.Emit(logger.ERROR, "Failed to start run of library %s: %v\n", request.LibraryID, err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ec.JSON(http.StatusAccepted, CreateRunResponse{ID: id})
}

func (controller *Controller) list(ec echo.Context) error {
	return ec.JSON(http.StatusOK, controller.service.ListRuns())
}

func (controller *Controller) get(ec echo.Context) error {
	id, err := uuid.Parse(ec.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Run ID is not a valid UUID")
	}

	entry, ok := controller.service.GetRun(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound)
	}

	return ec.JSON(http.StatusOK, entry)
}
