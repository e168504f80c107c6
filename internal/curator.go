package internal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hbomb79/Curator/internal/api"
	"github.com/hbomb79/Curator/internal/catalog"
	"github.com/hbomb79/Curator/internal/database"
	"github.com/hbomb79/Curator/internal/event"
	"github.com/hbomb79/Curator/internal/failure"
	"github.com/hbomb79/Curator/internal/http/jellyfin"
	"github.com/hbomb79/Curator/internal/http/plex"
	"github.com/hbomb79/Curator/internal/http/tmdb"
	"github.com/hbomb79/Curator/internal/inventory"
	"github.com/hbomb79/Curator/internal/reconcile"
	"github.com/hbomb79/Curator/pkg/logger"
)

var log = logger.Get("Core")

type (
	RunnableService interface {
		Run(context.Context) error
	}

	Orchestrator interface {
		RunWithID(context.Context, uuid.UUID, reconcile.RunRequest) (*reconcile.Report, error)
	}
)

// Curator is the top-level object for the process, and is responsible for
// connecting the catalog, constructing the clients and orchestrator, and
// exposing reconciliation runs to the CLI, REST gateway and scheduler.
type curatorImpl struct {
	config   CuratorConfig
	eventBus event.EventCoordinator
	db       database.Manager
	writer   *catalog.Writer
	sink     *failure.FileSink
	history  *reconcile.History
	locks    libraryLocks

	orchestrator Orchestrator

	// background runs started via StartRun are bound to this context
	runCtx context.Context
	runs   sync.WaitGroup
}

func New(config CuratorConfig) *curatorImpl {
	log.Emit(logger.DEBUG, "Bootstrapping Curator using %s inventory at %s\n", config.Inventory.Kind, config.Inventory.URL)
	return &curatorImpl{
		config:   config,
		eventBus: event.New(),
		db:       database.New(),
		history:  reconcile.NewHistory(config.HistorySize),
		locks:    libraryLocks{dir: config.LockDir},
		runCtx:   context.Background(),
	}
}

// Events exposes the event bus so callers can observe run progress.
func (curator *curatorImpl) Events() event.EventHandler { return curator.eventBus }

// Connect opens (and migrates) the catalog database and constructs
// everything a run requires.
func (curator *curatorImpl) Connect(ctx context.Context) error {
	log.Emit(logger.NEW, "Connecting to catalog database...\n")
	if err := curator.db.Connect(ctx, curator.config.Database); err != nil {
		return fmt.Errorf("%w: %w", reconcile.ErrSetup, err)
	}

	inventoryClient, err := newInventoryClient(curator.config.Inventory)
	if err != nil {
		return fmt.Errorf("%w: %w", reconcile.ErrSetup, err)
	}

	sink, err := failure.NewFileSink(curator.config.Failure.LogPath)
	if err != nil {
		return fmt.Errorf("%w: %w", reconcile.ErrSetup, err)
	}

	curator.sink = sink
	curator.writer = catalog.NewWriter(curator.db, curator.config.Database.Retry)
	curator.orchestrator = reconcile.New(
		inventoryClient,
		tmdb.NewClient(curator.config.Tmdb, nil),
		curator.writer,
		sink,
		curator.config.Failure.Policy(),
		curator.eventBus,
		curator.config.Reconcile,
	)

	log.Emit(logger.SUCCESS, "Curator ready (failures recorded to %s)\n", sink.Path())
	return nil
}

// Migrate connects to the catalog database, which applies any pending
// migrations, and then disconnects.
func (curator *curatorImpl) Migrate(ctx context.Context) error {
	if err := curator.db.Connect(ctx, curator.config.Database); err != nil {
		return err
	}

	return curator.db.Close()
}

// Reconcile performs a run of the requested library, blocking until the run
// completes. The library is locked for the duration of the run.
func (curator *curatorImpl) Reconcile(ctx context.Context, request reconcile.RunRequest) (*reconcile.Report, error) {
	lock, err := curator.locks.acquire(request.LibraryID)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	return curator.execute(ctx, uuid.New(), request)
}

// StartRun starts a run of the requested library in the background,
// returning the ID of the run. The run can be followed using GetRun.
func (curator *curatorImpl) StartRun(request reconcile.RunRequest) (uuid.UUID, error) {
	lock, err := curator.locks.acquire(request.LibraryID)
	if err != nil {
		return uuid.Nil, err
	}

	// Registered before returning so the ID is immediately visible to GetRun.
	id := uuid.New()
	curator.history.Start(id, request)

	curator.runs.Add(1)
	go func() {
		defer curator.runs.Done()
		defer lock.Unlock()

		if _, err := curator.finish(curator.runCtx, id, request); err != nil {
			log.Warnf("Background run %s of library %s failed: %v\n", id, request.LibraryID, err)
		}
	}()

	return id, nil
}

func (curator *curatorImpl) execute(ctx context.Context, id uuid.UUID, request reconcile.RunRequest) (*reconcile.Report, error) {
	curator.history.Start(id, request)
	return curator.finish(ctx, id, request)
}

// finish runs a reconciliation which has already been registered in the history.
func (curator *curatorImpl) finish(ctx context.Context, id uuid.UUID, request reconcile.RunRequest) (*reconcile.Report, error) {
	report, err := curator.orchestrator.RunWithID(ctx, id, request)
	curator.history.Finish(id, report, err)

	return report, err
}

func (curator *curatorImpl) ListRuns() []reconcile.RunEntry { return curator.history.List() }

func (curator *curatorImpl) GetRun(id uuid.UUID) (reconcile.RunEntry, bool) {
	return curator.history.Get(id)
}

// Serve runs the REST gateway (and the scheduler, if configured) until the
// provided context is cancelled, or a service crashes. In-flight background
// runs are allowed to observe the cancellation before Serve returns.
func (curator *curatorImpl) Serve(parent context.Context) error {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)
	curator.runCtx = ctx

	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel(err)
	}

	wg := &sync.WaitGroup{}
	curator.spawnAsyncService(ctx, wg, api.NewRestGateway(&curator.config.RestConfig, curator, curator.writer, curator.eventBus), "rest-gateway", crashHandler)
	if curator.config.Schedule.Cron != "" {
		curator.spawnAsyncService(ctx, wg, newScheduler(curator.config.Schedule, curator), "scheduler", crashHandler)
	}
	log.Emit(logger.SUCCESS, "Curator services spawned!\n")

	wg.Wait()
	curator.runs.Wait()

	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}

func (curator *curatorImpl) Close() error {
	var errs []error
	if curator.sink != nil {
		errs = append(errs, curator.sink.Close())
	}
	errs = append(errs, curator.db.Close())

	return errors.Join(errs...)
}

// spawnAsyncService will run the provided service as it's own
// go-routine, ensuring that the service waitgroup is updated correctly
func (curator *curatorImpl) spawnAsyncService(ctx context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(label string, crash func(string, error)) {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		if err := service.Run(ctx); err != nil {
			crash(label, err)
		}
	}(serviceLabel, crashHandler)
}

func newInventoryClient(config inventory.Config) (inventory.Client, error) {
	switch config.Kind {
	case "plex":
		return plex.New(config, nil), nil
	case "jellyfin":
		return jellyfin.New(config, nil), nil
	default:
		return nil, fmt.Errorf("unknown inventory kind %q", config.Kind)
	}
}
