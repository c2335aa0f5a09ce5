package trigger

import (
	"context"
	"errors"
	"time"

	"github.com/hikawa-dev/stagecal/backend/internal/reconcile"
	"github.com/hikawa-dev/stagecal/backend/internal/schedule"
	"go.uber.org/zap"
)

var (
	errMissingEngine   = errors.New("engine is required")
	errMissingSettings = errors.New("settings store is required")
)

const defaultCheckInterval = 5 * time.Minute

// Engine runs one reconciliation scan.
type Engine interface {
	Run(ctx context.Context, rangeDays int) (reconcile.Result, error)
}

// SettingsStore reads the persisted trigger gates and records runs.
type SettingsStore interface {
	Get(ctx context.Context) (schedule.ScanSettings, error)
	RecordRun(ctx context.Context, at time.Time) error
}

// TickerConfig wires the timed trigger.
type TickerConfig struct {
	Engine   Engine
	Settings SettingsStore
	Logger   *zap.Logger
	Clock    func() time.Time
	// CheckInterval is how often the persisted gates are consulted. The
	// minimum re-run interval itself lives in the settings row.
	CheckInterval time.Duration
}

// Ticker periodically consults the persisted scan settings and invokes the
// engine when the enabled flag is set and the minimum re-run interval has
// elapsed since the recorded last run.
type Ticker struct {
	engine        Engine
	settings      SettingsStore
	logger        *zap.Logger
	clock         func() time.Time
	checkInterval time.Duration
}

// NewTicker validates the configuration and returns a Ticker.
func NewTicker(cfg TickerConfig) (*Ticker, error) {
	if cfg.Engine == nil {
		return nil, errMissingEngine
	}
	if cfg.Settings == nil {
		return nil, errMissingSettings
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	checkInterval := cfg.CheckInterval
	if checkInterval <= 0 {
		checkInterval = defaultCheckInterval
	}
	return &Ticker{
		engine:        cfg.Engine,
		settings:      cfg.Settings,
		logger:        logger,
		clock:         clock,
		checkInterval: checkInterval,
	}, nil
}

// Run loops until the context is cancelled, firing a gated scan per tick.
func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick(ctx)
		}
	}
}

// Tick performs one gate check and, when due, one scan. Failures are logged
// and absorbed; the next tick retries.
func (t *Ticker) Tick(ctx context.Context) {
	settings, err := t.settings.Get(ctx)
	if err != nil {
		t.logger.Warn("scan settings load failed", zap.Error(err))
		return
	}
	if !settings.Enabled {
		return
	}

	now := t.clock()
	if settings.LastRunSeconds > 0 {
		nextDue := time.Unix(settings.LastRunSeconds, 0).Add(time.Duration(settings.IntervalHours) * time.Hour)
		if now.Before(nextDue) {
			return
		}
	}

	result, err := t.engine.Run(ctx, settings.RangeDays)
	if err != nil {
		t.logger.Error("timed reconciliation run failed", zap.Error(err))
		return
	}
	if err := t.settings.RecordRun(ctx, now); err != nil {
		t.logger.Warn("last-run stamp failed", zap.Error(err))
	}
	t.logger.Info("timed reconciliation run finished",
		zap.Int("checked", result.Checked),
		zap.Int("proposals_created", result.ProposalsCreated))
}
