package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/Curator/internal/api/runs"
	"github.com/hbomb79/Curator/internal/api/stats"
	"github.com/hbomb79/Curator/internal/event"
	"github.com/hbomb79/Curator/internal/http/websocket"
	"github.com/hbomb79/Curator/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var log = logger.Get("API")

type (
	RestConfig struct {
		HostAddr string `yaml:"host_address" env:"API_HOST_ADDR" env-default:"0.0.0.0:8080" validate:"hostname_port"`
	}

	controller interface {
		SetRoutes(*echo.Group)
	}

	// The RestGateway is a thin-wrapper around the Echo HTTP router. It's sole
	// responsibility is to create the routes Curator exposes, and to push run
	// activity to connected web socket clients.
	RestGateway struct {
		*activityBroadcaster
		config          *RestConfig
		ec              *echo.Echo
		socket          *websocket.SocketHub
		runsController  controller
		statsController controller
	}
)

// NewRestGateway constructs the Echo router and populates it with all the
// routes defined by the various controllers. Run activity dispatched on the
// provided event bus is relayed to clients of the activity socket.
func NewRestGateway(config *RestConfig, runService runs.RunService, store stats.Store, events event.EventHandler) *RestGateway {
	ec := echo.New()
	ec.OnAddRouteHandler = func(host string, route echo.Route, handler echo.HandlerFunc, middleware []echo.MiddlewareFunc) {
		log.Emit(logger.DEBUG, "Registered new route %s %s\n", route.Method, route.Path)
	}
	ec.HidePort = true
	ec.HideBanner = true

	validate := validator.New()
	socket := websocket.New()
	socket.WithConnectionCallback(func() map[string]any {
		return map[string]any{"runs": runService.ListRuns()}
	})
	gateway := &RestGateway{
		activityBroadcaster: newActivityBroadcaster(socket, events),
		config:              config,
		ec:                  ec,
		socket:              socket,
		runsController:      runs.New(validate, runService),
		statsController:     stats.New(store),
	}

	ec.Use(middleware.Logger())
	ec.Use(middleware.Recover())
	ec.Pre(middleware.AddTrailingSlash())

	ec.GET("/api/curator/v1/activity/ws/", func(ec echo.Context) error {
		gateway.socket.UpgradeToSocket(ec.Response(), ec.Request())
		return nil
	})

	runGroup := ec.Group("/api/curator/v1/runs")
	gateway.runsController.SetRoutes(runGroup)

	catalogGroup := ec.Group("/api/curator/v1/catalog")
	gateway.statsController.SetRoutes(catalogGroup)

	return gateway
}

// Handler returns the router so it can be served by something other than Run.
func (gateway *RestGateway) Handler() http.Handler { return gateway.ec }

func (gateway *RestGateway) Run(parentCtx context.Context) error {
	ctx, ctxCancel := context.WithCancelCause(parentCtx)
	wg := &sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Emit(logger.SUCCESS, "REST gateway listening on %s\n", gateway.config.HostAddr)
		if err := gateway.ec.Start(gateway.config.HostAddr); err != nil && err != http.ErrServerClosed {
			ctxCancel(err)
		}
	}()

	// Start thread to listen for context cancellation
	go func(ec *echo.Echo) {
		<-ctx.Done()
		ec.Close()
	}(gateway.ec)

	wg.Add(1)
	go func() {
		defer wg.Done()
		gateway.socket.Start(ctx)
	}()

	wg.Wait()

	// Return cancellation cause if any, otherwise nil as parent context
	// cancellation is not an error case we should report.
	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}
