package reconcile

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/matchbase/marketplace/internal/projection"
	"github.com/matchbase/marketplace/pkg/logger"
)

// repairBatch bounds the oplog entries replayed per run.
const repairBatch = 500

// Scheduler runs the reconcile pass and the projection repair on a cron spec.
type Scheduler struct {
	cron       *cron.Cron
	spec       string
	reconciler *Reconciler
	writer     *projection.Writer
}

func NewScheduler(spec string, r *Reconciler, w *projection.Writer) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithLogger(cron.DefaultLogger)),
		spec:       spec,
		reconciler: r,
		writer:     w,
	}
}

// Start registers the job and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.Run(ctx) }); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Start()
	logger.Infof("[scheduler] cron started, spec: %s", s.spec)
	return nil
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.Infof("[scheduler] cron stopped")
}

// Run performs one repair and reconcile cycle.
func (s *Scheduler) Run(ctx context.Context) {
	if s.writer != nil {
		res, err := s.writer.Repair(ctx, repairBatch)
		if err != nil {
			logger.Errorw("projection repair failed", "err", err)
		} else if res.Repaired+res.Failed > 0 {
			logger.Infow("projection repair complete", "repaired", res.Repaired, "failed", res.Failed)
		}
	}
	if _, err := s.reconciler.ReconcileAll(ctx); err != nil {
		logger.Errorw("reconcile pass failed", "err", err)
	}
}
