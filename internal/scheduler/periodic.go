package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger adapts zap to the cron package's logger.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Periodic runs named jobs on cron schedules. A run is skipped while the previous run of the
// same job is still going.
type Periodic struct {
	cron   *cron.Cron
	ctx    context.Context
	logger *zap.Logger
}

func NewPeriodic(logger *zap.Logger) *Periodic {
	cl := cronLogger{sugar: logger.Sugar()}
	return &Periodic{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		ctx:    context.Background(),
		logger: logger,
	}
}

// Add registers job under spec, e.g. "@every 5m" or "*/10 * * * *".
func (p *Periodic) Add(name, spec string, job func(ctx context.Context)) error {
	_, err := p.cron.AddFunc(spec, func() {
		p.logger.Debug("Running periodic job", zap.String("job", name))
		job(p.ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s job: %w", name, err)
	}
	p.logger.Info("Periodic job registered", zap.String("job", name), zap.String("schedule", spec))
	return nil
}

// Start begins running jobs. ctx is handed to every run.
func (p *Periodic) Start(ctx context.Context) {
	p.ctx = ctx
	p.cron.Start()
}

// Stop stops scheduling and waits for running jobs to finish.
func (p *Periodic) Stop() {
	<-p.cron.Stop().Done()
}
