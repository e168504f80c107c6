// Package reconcile walks a remote library inventory, assembling catalog records
// for each item and flushing them to the catalog in bounded batches.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Curator/internal/catalog"
	"github.com/hbomb79/Curator/internal/event"
	"github.com/hbomb79/Curator/internal/failure"
	"github.com/hbomb79/Curator/internal/http/tmdb"
	"github.com/hbomb79/Curator/internal/inventory"
	"github.com/hbomb79/Curator/internal/resolve"
	"github.com/hbomb79/Curator/pkg/logger"
	"github.com/sourcegraph/conc/pool"
)

var log = logger.Get("Reconcile")

type (
	// Enricher fetches canonical movie metadata from TMDB.
	Enricher interface {
		GetMovie(ctx context.Context, tmdbID string) (*tmdb.Movie, error)
		GetCredits(ctx context.Context, tmdbID string) (*tmdb.Credits, error)
		PosterURL(path string) string
		BackdropURL(path string) string
		ProfileURL(path string) string
		LogoURL(path string) string
	}

	// CatalogWriter is the catalog as seen by the orchestrator: the entity
	// store used by the resolver plus the batch writes.
	CatalogWriter interface {
		resolve.EntityStore
		WriteMovies(ctx context.Context, records []*catalog.MovieRecord) (catalog.WriteResult, error)
		WriteTracks(ctx context.Context, records []*catalog.TrackRecord) (catalog.WriteResult, error)
	}

	RunRequest struct {
		LibraryID string         `json:"library_id" validate:"required"`
		Kind      inventory.Kind `json:"kind" validate:"required,oneof=movie music"`
		BatchSize int            `json:"batch_size" validate:"min=0"`
	}

	Orchestrator struct {
		inventory inventory.Client
		enricher  Enricher
		writer    CatalogWriter
		sink      failure.Sink
		policy    failure.Policy
		events    event.EventDispatcher
		config    Config
	}

	// itemOutcome is the result of reconciling a single item. Exactly one of
	// movie/track is set for an item which should be written.
	itemOutcome struct {
		item    inventory.Item
		movie   *catalog.MovieRecord
		track   *catalog.TrackRecord
		skipped bool
		err     error
	}

	run struct {
		id       uuid.UUID
		request  RunRequest
		resolver *resolve.Resolver
		report   *Report
	}
)

func New(
	inventoryClient inventory.Client,
	enricher Enricher,
	writer CatalogWriter,
	sink failure.Sink,
	policy failure.Policy,
	events event.EventDispatcher,
	config Config,
) *Orchestrator {
	return &Orchestrator{
		inventory: inventoryClient,
		enricher:  enricher,
		writer:    writer,
		sink:      sink,
		policy:    policy,
		events:    events,
		config:    config,
	}
}

// Run performs a full reconciliation pass over the library. Items are pulled
// lazily from the inventory in batches; each batch is reconciled concurrently and
// then flushed to the catalog before the next batch is pulled, so a failure part
// way through a run leaves every earlier batch durably persisted.
//
// The returned report is always non-nil. A non-nil error indicates the run did
// not complete successfully; use errors.Is with the Err* sentinels to classify it.
func (orchestrator *Orchestrator) Run(ctx context.Context, request RunRequest) (*Report, error) {
	return orchestrator.RunWithID(ctx, uuid.New(), request)
}

// RunWithID behaves like Run, using the provided identifier for the run.
func (orchestrator *Orchestrator) RunWithID(ctx context.Context, runID uuid.UUID, request RunRequest) (*Report, error) {
	if request.BatchSize <= 0 {
		request.BatchSize = orchestrator.config.BatchSize
	}

	r := &run{
		id:       runID,
		request:  request,
		resolver: resolve.NewResolver(orchestrator.writer),
		report: &Report{
			RunID:     runID,
			LibraryID: request.LibraryID,
			Kind:      request.Kind,
			StartedAt: time.Now(),
		},
	}

	payload := event.RunPayload{RunID: r.id, LibraryID: request.LibraryID, Kind: string(request.Kind)}
	orchestrator.events.Dispatch(event.RUN_START, payload)
	log.Emit(logger.NEW, "Starting %s reconciliation of library %s (run %s, batch size %d)\n", request.Kind, request.LibraryID, r.id, request.BatchSize)

	err := orchestrator.execute(ctx, r)

	r.report.EntitiesCreated = r.resolver.Created()
	r.report.Duration = time.Since(r.report.StartedAt)
	if err != nil {
		r.report.Error = err.Error()
		log.Errorf("Run %s stopped after %d batches: %v\n", r.id, r.report.Batches, err)
	} else {
		log.Emit(logger.SUCCESS, "Run %s complete: %d processed, %d created, %d skipped, %d failed\n", r.id, r.report.Processed, r.report.Created, r.report.Skipped, r.report.Failed)
	}

	orchestrator.events.Dispatch(event.RUN_COMPLETE, payload)
	return r.report, err
}

func (orchestrator *Orchestrator) execute(ctx context.Context, r *run) error {
	if r.request.LibraryID == "" {
		return fmt.Errorf("%w: library identifier is required", ErrSetup)
	}
	if !r.request.Kind.Valid() {
		return fmt.Errorf("%w: unknown library kind %q", ErrSetup, r.request.Kind)
	}
	if r.request.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrSetup, r.request.BatchSize)
	}

	if err := r.resolver.Preload(ctx, r.request.Kind); err != nil {
		return fmt.Errorf("%w: %w", ErrSetup, err)
	}

	next, stop := iter.Pull2(orchestrator.inventory.ListItems(ctx, r.request.LibraryID, r.request.Kind))
	defer stop()

	for {
		batch, exhausted, listErr := pullBatch(next, r.request.BatchSize)
		if len(batch) > 0 {
			if err := orchestrator.processBatch(ctx, r, batch); err != nil {
				return err
			}

			if orchestrator.policy.Exceeded(r.report.Processed, r.report.Failed) {
				r.report.Aborted = true
				return fmt.Errorf("%w: %d of %d items failed (%.1f%%)", ErrFailureRateExceeded, r.report.Failed, r.report.Processed, r.report.FailureRate()*100)
			}
		}

		if listErr != nil {
			if isCancellation(listErr) {
				return listErr
			}
			return fmt.Errorf("%w: %w", ErrListing, listErr)
		}
		if exhausted {
			return nil
		}
	}
}

// processBatch reconciles every item of the batch concurrently, waits for all of
// them to settle, and then flushes the assembled records in a single write.
func (orchestrator *Orchestrator) processBatch(ctx context.Context, r *run, batch []inventory.Item) error {
	batchNumber := r.report.Batches + 1
	abortOnFailure := orchestrator.policy.Mode == failure.ModeAbort
	log.Debugf("Reconciling batch %d (%d items) of run %s\n", batchNumber, len(batch), r.id)

	outcomes := make([]itemOutcome, len(batch))
	p := pool.New().WithContext(ctx)
	if orchestrator.config.MaxInFlight > 0 {
		p = p.WithMaxGoroutines(orchestrator.config.MaxInFlight)
	}
	if abortOnFailure {
		p = p.WithCancelOnError().WithFirstError()
	}

	for i, item := range batch {
		p.Go(func(ctx context.Context) error {
			outcomes[i] = orchestrator.reconcileItem(ctx, r, item)
			if abortOnFailure {
				return outcomes[i].err
			}
			return nil
		})
	}
	firstErr := p.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	failed := 0
	for _, outcome := range outcomes {
		if outcome.err != nil && !isCancellation(outcome.err) {
			failed++
		}
	}

	if orchestrator.policy.ShouldAbort(failed) {
		// The failing batch is not flushed. Items cancelled by the first
		// failure are not failures of their own.
		for _, outcome := range outcomes {
			if outcome.err != nil && !isCancellation(outcome.err) {
				orchestrator.recordFailure(r, outcome)
			}
		}
		r.report.Processed += len(batch)
		r.report.Failed += failed
		r.report.Aborted = true
		return fmt.Errorf("%w: %w", ErrAborted, firstErr)
	}

	var (
		movies []*catalog.MovieRecord
		tracks []*catalog.TrackRecord
		stats  = event.BatchPayload{RunID: r.id, Batch: batchNumber, Processed: len(batch)}
	)
	for _, outcome := range outcomes {
		switch {
		case outcome.err != nil:
			stats.Failed++
			orchestrator.recordFailure(r, outcome)
		case outcome.skipped:
			stats.Skipped++
		case outcome.movie != nil:
			movies = append(movies, outcome.movie)
		case outcome.track != nil:
			tracks = append(tracks, outcome.track)
		}
	}

	result, err := orchestrator.flush(ctx, movies, tracks)
	if err != nil {
		return fmt.Errorf("%w: batch %d: %w", ErrPersistence, batchNumber, err)
	}
	stats.Created = result.Created
	stats.Skipped += result.Skipped

	r.report.Batches = batchNumber
	r.report.Processed += stats.Processed
	r.report.Created += stats.Created
	r.report.Skipped += stats.Skipped
	r.report.Failed += stats.Failed

	log.Infof("Batch %d of run %s flushed: %d created, %d skipped, %d failed (%d processed so far)\n",
		batchNumber, r.id, stats.Created, stats.Skipped, stats.Failed, r.report.Processed)
	orchestrator.events.Dispatch(event.BATCH_COMPLETE, stats)
	return nil
}

func (orchestrator *Orchestrator) flush(ctx context.Context, movies []*catalog.MovieRecord, tracks []*catalog.TrackRecord) (catalog.WriteResult, error) {
	var total catalog.WriteResult
	if len(movies) > 0 {
		result, err := orchestrator.writer.WriteMovies(ctx, movies)
		if err != nil {
			return total, err
		}
		total = total.Add(result)
	}

	if len(tracks) > 0 {
		result, err := orchestrator.writer.WriteTracks(ctx, tracks)
		if err != nil {
			return total, err
		}
		total = total.Add(result)
	}

	return total, nil
}

func (orchestrator *Orchestrator) reconcileItem(ctx context.Context, r *run, item inventory.Item) itemOutcome {
	outcome := itemOutcome{item: item}
	switch r.request.Kind {
	case inventory.KindMovie:
		outcome.movie, outcome.err = orchestrator.reconcileMovie(ctx, r.resolver, item)
		outcome.skipped = outcome.err == nil && outcome.movie == nil
	case inventory.KindMusic:
		outcome.track, outcome.err = orchestrator.reconcileTrack(ctx, r.resolver, item)
		outcome.skipped = outcome.err == nil && outcome.track == nil
	}

	return outcome
}

func (orchestrator *Orchestrator) recordFailure(r *run, outcome itemOutcome) {
	stage := stageOf(outcome.err)
	if err := orchestrator.sink.Record(outcome.err, failure.Context{
		RunID:     r.id.String(),
		LibraryID: r.request.LibraryID,
		ItemID:    outcome.item.ID,
		Title:     outcome.item.Title,
		Stage:     stage,
	}); err != nil {
		log.Errorf("Failed to record failure of item %s: %v\n", outcome.item.ID, err)
	}

	orchestrator.events.Dispatch(event.ITEM_FAILED, event.ItemFailedPayload{RunID: r.id, ItemID: outcome.item.ID, Stage: stage, Err: outcome.err})
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// pullBatch pulls up to size items from the sequence. exhausted is true once the
// sequence has ended; a listing error also ends the sequence.
func pullBatch(next func() (inventory.Item, error, bool), size int) ([]inventory.Item, bool, error) {
	batch := make([]inventory.Item, 0, size)
	for len(batch) < size {
		item, err, ok := next()
		if !ok {
			return batch, true, nil
		}
		if err != nil {
			return batch, true, err
		}

		batch = append(batch, item)
	}

	return batch, false, nil
}
