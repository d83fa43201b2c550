package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"

	"github.com/desertthunder/ytsched/internal/shared"
)

// DefaultCronSpec fires once a day at 09:00 UTC.
const DefaultCronSpec = "0 9 * * *"

// DailyTrigger runs a [BatchRunner] on a cron schedule evaluated in UTC.
type DailyTrigger struct {
	cron    *cron.Cron
	runner  BatchRunner
	spec    string
	entry   cron.EntryID
	timeout time.Duration
	logger  *log.Logger

	mu      sync.Mutex
	running bool
}

// NewDailyTrigger parses spec and registers the job. Start begins firing.
func NewDailyTrigger(spec string, runner BatchRunner, logger *log.Logger) (*DailyTrigger, error) {
	if spec == "" {
		spec = DefaultCronSpec
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	t := &DailyTrigger{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		runner:  runner,
		spec:    spec,
		timeout: 6 * time.Hour,
		logger:  shared.WithLogger(logger, "component", "cron"),
	}

	id, err := t.cron.AddFunc(spec, func() { t.Fire(context.Background()) })
	if err != nil {
		return nil, fmt.Errorf("%w: cron spec %q: %v", shared.ErrInvalidConfig, spec, err)
	}
	t.entry = id
	return t, nil
}

// Start begins the schedule in its own goroutine.
func (t *DailyTrigger) Start() {
	t.cron.Start()
	t.logger.Info("daily trigger started", "spec", t.spec, "next", t.Next())
}

// Stop halts the schedule and returns a context that is done once a running dispatch finishes.
func (t *DailyTrigger) Stop() context.Context {
	return t.cron.Stop()
}

// Next returns the next scheduled firing, or the zero time before Start.
func (t *DailyTrigger) Next() time.Time {
	return t.cron.Entry(t.entry).Next
}

// Fire runs one dispatch pass now. Overlapping fires are skipped.
func (t *DailyTrigger) Fire(ctx context.Context) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		t.logger.Warn("previous dispatch still running, skipping")
		return
	}
	t.running = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	report, err := t.runner.Run(ctx, nil)
	if err != nil {
		t.logger.Error("scheduled dispatch failed", "error", err)
		return
	}
	t.logger.Info("scheduled dispatch complete", "message", report.Message())
}
