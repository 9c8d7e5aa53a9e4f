package automation

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper is anything that can run one sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (Stats, error)
}

// Runner triggers sweeps on a cron spec ("@every 1m", "*/30 * * * * *", ...). A tick that fires
// while the previous sweep is still running is skipped.
type Runner struct {
	sweeper Sweeper
	spec    string
	timeout time.Duration
	log     *zap.Logger

	mu     sync.Mutex
	c      *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRunner(sweeper Sweeper, spec string, timeout time.Duration, log *zap.Logger) *Runner {
	if spec == "" {
		spec = "@every 1m"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{sweeper: sweeper, spec: spec, timeout: timeout, log: log}
}

func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	r.ctx, r.cancel = context.WithCancel(ctx)
	if _, err := c.AddFunc(r.spec, r.tick); err != nil {
		r.cancel()
		return err
	}
	r.c = c
	c.Start()
	r.log.Info("sweep runner started", zap.String("spec", r.spec))
	return nil
}

// Stop cancels any running sweep and waits for it to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	c, cancel := r.c, r.cancel
	r.c = nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	r.log.Info("sweep runner stopped")
}

func (r *Runner) tick() {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	start := time.Now()
	st, err := r.sweeper.Sweep(ctx)
	if err != nil {
		r.log.Error("sweep failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}
	r.log.Debug("sweep tick",
		zap.Int("processed", st.Processed),
		zap.Duration("elapsed", time.Since(start)),
	)
}
