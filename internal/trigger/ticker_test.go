package trigger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hikawa-dev/stagecal/backend/internal/reconcile"
	"github.com/hikawa-dev/stagecal/backend/internal/schedule"
)

type fakeEngine struct {
	result reconcile.Result
	err    error
	runs   int
	ranges []int
}

func (e *fakeEngine) Run(ctx context.Context, rangeDays int) (reconcile.Result, error) {
	e.runs++
	e.ranges = append(e.ranges, rangeDays)
	if e.err != nil {
		return reconcile.Result{}, e.err
	}
	return e.result, nil
}

type fakeSettings struct {
	settings schedule.ScanSettings
	getErr   error
	recorded []time.Time
}

func (s *fakeSettings) Get(ctx context.Context) (schedule.ScanSettings, error) {
	if s.getErr != nil {
		return schedule.ScanSettings{}, s.getErr
	}
	return s.settings, nil
}

func (s *fakeSettings) RecordRun(ctx context.Context, at time.Time) error {
	s.recorded = append(s.recorded, at)
	s.settings.LastRunSeconds = at.Unix()
	return nil
}

func newTestTicker(t *testing.T, engine *fakeEngine, settings *fakeSettings, now time.Time) *Ticker {
	t.Helper()
	ticker, err := NewTicker(TickerConfig{
		Engine:   engine,
		Settings: settings,
		Clock:    func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("failed to build ticker: %v", err)
	}
	return ticker
}

func TestTickSkipsWhenDisabled(t *testing.T) {
	engine := &fakeEngine{}
	settings := &fakeSettings{settings: schedule.ScanSettings{Enabled: false, IntervalHours: 6, RangeDays: 3}}
	ticker := newTestTicker(t, engine, settings, time.Unix(1770000000, 0))

	ticker.Tick(context.Background())

	if engine.runs != 0 {
		t.Fatalf("expected no run while disabled, got %d", engine.runs)
	}
}

func TestTickSkipsBeforeIntervalElapses(t *testing.T) {
	lastRun := time.Unix(1770000000, 0)
	engine := &fakeEngine{}
	settings := &fakeSettings{settings: schedule.ScanSettings{
		Enabled:        true,
		IntervalHours:  6,
		RangeDays:      3,
		LastRunSeconds: lastRun.Unix(),
	}}
	ticker := newTestTicker(t, engine, settings, lastRun.Add(5*time.Hour))

	ticker.Tick(context.Background())

	if engine.runs != 0 {
		t.Fatalf("expected no run before the interval elapses, got %d", engine.runs)
	}
	if len(settings.recorded) != 0 {
		t.Fatalf("expected no last-run stamp, got %d", len(settings.recorded))
	}
}

func TestTickRunsWhenDueAndStampsLastRun(t *testing.T) {
	lastRun := time.Unix(1770000000, 0)
	now := lastRun.Add(7 * time.Hour)
	engine := &fakeEngine{result: reconcile.Result{Checked: 4, ProposalsCreated: 2}}
	settings := &fakeSettings{settings: schedule.ScanSettings{
		Enabled:        true,
		IntervalHours:  6,
		RangeDays:      3,
		LastRunSeconds: lastRun.Unix(),
	}}
	ticker := newTestTicker(t, engine, settings, now)

	ticker.Tick(context.Background())

	if engine.runs != 1 {
		t.Fatalf("expected exactly one run, got %d", engine.runs)
	}
	if engine.ranges[0] != 3 {
		t.Fatalf("expected the persisted range to be used, got %d", engine.ranges[0])
	}
	if len(settings.recorded) != 1 || !settings.recorded[0].Equal(now) {
		t.Fatalf("expected last-run stamp at %v, got %v", now, settings.recorded)
	}
}

func TestTickRunsImmediatelyWithoutPriorRun(t *testing.T) {
	engine := &fakeEngine{}
	settings := &fakeSettings{settings: schedule.ScanSettings{Enabled: true, IntervalHours: 6, RangeDays: 3}}
	ticker := newTestTicker(t, engine, settings, time.Unix(1770000000, 0))

	ticker.Tick(context.Background())

	if engine.runs != 1 {
		t.Fatalf("expected a run when no prior run is recorded, got %d", engine.runs)
	}
}

func TestTickAbsorbsEngineFailure(t *testing.T) {
	engine := &fakeEngine{err: errors.New("scan blew up")}
	settings := &fakeSettings{settings: schedule.ScanSettings{Enabled: true, IntervalHours: 6, RangeDays: 3}}
	ticker := newTestTicker(t, engine, settings, time.Unix(1770000000, 0))

	ticker.Tick(context.Background())

	if engine.runs != 1 {
		t.Fatalf("expected the engine to be invoked, got %d runs", engine.runs)
	}
	if len(settings.recorded) != 0 {
		t.Fatalf("failed run must not stamp last-run, got %d stamps", len(settings.recorded))
	}
}

func TestNewTickerRejectsMissingCollaborators(t *testing.T) {
	if _, err := NewTicker(TickerConfig{Settings: &fakeSettings{}}); err == nil {
		t.Fatalf("expected error without engine")
	}
	if _, err := NewTicker(TickerConfig{Engine: &fakeEngine{}}); err == nil {
		t.Fatalf("expected error without settings store")
	}
}
