package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler runs an Auditor on a cron schedule. Overlapping runs are skipped.
type Scheduler struct {
	cron    *cron.Cron
	auditor *Auditor
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler parses spec, a standard five-field expression or a
// descriptor such as "@every 10m", and prepares the job.
func NewScheduler(auditor *Auditor, spec string, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cl := cronLogger{logger: logger.With("component", "audit")}

	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, auditor: auditor, logger: cl.logger, ctx: ctx, cancel: cancel}

	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid audit schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) runOnce() {
	// Errors are already logged and counted by Run.
	_, _ = s.auditor.Run(s.ctx)
}

// Start begins running the job in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("ledger audit scheduled", "next", s.cron.Entries()[0].Next)
}

// Stop cancels a running audit and waits for it to return or for ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
