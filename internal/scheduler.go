package internal

import (
	"context"
	"errors"

	"github.com/hbomb79/Curator/internal/inventory"
	"github.com/hbomb79/Curator/internal/reconcile"
	"github.com/robfig/cron/v3"
)

type reconciler interface {
	Reconcile(context.Context, reconcile.RunRequest) (*reconcile.Report, error)
}

// scheduler reconciles the configured libraries, one after another,
// each time the cron schedule fires.
type scheduler struct {
	config     ScheduleConfig
	reconciler reconciler
}

func newScheduler(config ScheduleConfig, reconciler reconciler) *scheduler {
	return &scheduler{config: config, reconciler: reconciler}
}

func (s *scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.config.Cron, func() { s.reconcileAll(ctx) }); err != nil {
		return err
	}

	log.Infof("Scheduled reconciliation of %d libraries (%s)\n", len(s.config.Libraries), s.config.Cron)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	return nil
}

func (s *scheduler) reconcileAll(ctx context.Context) {
	for _, library := range s.config.Libraries {
		if ctx.Err() != nil {
			return
		}

		request := reconcile.RunRequest{LibraryID: library.ID, Kind: inventory.Kind(library.Kind)}
		_, err := s.reconciler.Reconcile(ctx, request)
		switch {
		case errors.Is(err, reconcile.ErrRunInProgress):
			log.Infof("Skipping scheduled run of library %s: %v\n", library.ID, err)
		case err != nil:
			log.Warnf("Scheduled run of library %s failed: %v\n", library.ID, err)
		}
	}
}
