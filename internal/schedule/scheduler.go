// Package schedule runs periodic full catalog syncs on cron schedules.
package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Emmmmmmo/rivvy-create-llmstxt-sub000/internal/catalog"
)

// Runner executes a full sync for one site.
type Runner interface {
	FullSync(ctx context.Context, site string, urls []string) (catalog.Summary, error)
}

// Scheduler owns the cron loop. Sites are registered before Start; the
// runner serializes overlapping runs per site itself.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	logger  *zap.Logger
	timeout time.Duration
}

// New builds a Scheduler. timeout bounds each scheduled run; zero means
// one hour.
func New(runner Runner, timeout time.Duration, logger *zap.Logger) *Scheduler {
	if timeout <= 0 {
		timeout = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:    cron.New(),
		runner:  runner,
		logger:  logger,
		timeout: timeout,
	}
}

// AddSite registers a site's full sync on a cron spec. Specs follow the
// standard five-field format plus the @every shorthand.
func (s *Scheduler) AddSite(site, spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		summary, err := s.runner.FullSync(ctx, site, nil)
		if err != nil {
			s.logger.Error("scheduled sync failed",
				zap.String("site", site),
				zap.Error(err),
			)
			return
		}
		s.logger.Info("scheduled sync finished",
			zap.String("site", site),
			zap.String("run_id", summary.RunID),
			zap.Int("processed", summary.Processed),
			zap.Int("failed", summary.Failed),
		)
	})
	if err != nil {
		return err
	}
	s.logger.Info("site scheduled", zap.String("site", site), zap.String("spec", spec))
	return nil
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
