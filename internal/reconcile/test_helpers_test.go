package reconcile

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hikawa-dev/stagecal/backend/internal/schedule"
	"github.com/hikawa-dev/stagecal/backend/internal/videosource"
)

type fakeCreators struct {
	creators []schedule.Creator
	err      error
}

func (f *fakeCreators) ListActive(ctx context.Context) ([]schedule.Creator, error) {
	return f.creators, f.err
}

type fakeEntries struct {
	entries []schedule.Entry
	err     error
}

func (f *fakeEntries) ListRange(ctx context.Context, from, to string) ([]schedule.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	var inRange []schedule.Entry
	for _, entry := range f.entries {
		if entry.Date >= from && entry.Date <= to {
			inRange = append(inRange, entry)
		}
	}
	return inRange, nil
}

type fakeStaging struct {
	mu        sync.Mutex
	proposals []schedule.Proposal
	chunks    [][]schedule.Proposal
	insertErr error
}

func (f *fakeStaging) ListAll(ctx context.Context) ([]schedule.Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]schedule.Proposal(nil), f.proposals...), nil
}

func (f *fakeStaging) InsertMany(ctx context.Context, proposals []schedule.Proposal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.chunks = append(f.chunks, append([]schedule.Proposal(nil), proposals...))
	f.proposals = append(f.proposals, proposals...)
	return nil
}

type fakeActivity struct {
	mu      sync.Mutex
	records []schedule.ActivityRecord
	chunks  [][]schedule.ActivityRecord
}

func (f *fakeActivity) Append(ctx context.Context, record schedule.ActivityRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return nil
}

func (f *fakeActivity) AppendMany(ctx context.Context, records []schedule.ActivityRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, append([]schedule.ActivityRecord(nil), records...))
	f.records = append(f.records, records...)
	return nil
}

func (f *fakeActivity) countKind(kind schedule.ActivityKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, record := range f.records {
		if record.Kind == kind {
			count++
		}
	}
	return count
}

type fakeSource struct {
	mu       sync.Mutex
	listings map[string][]videosource.Video
	failing  map[string]bool
	calls    int
}

func (f *fakeSource) ListRecent(ctx context.Context, channelID string, page, size int) ([]videosource.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failing[channelID] {
		return nil, fmt.Errorf("channel %s unreachable", channelID)
	}
	return f.listings[channelID], nil
}

type sequenceIDProvider struct {
	mu   sync.Mutex
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	return fmt.Sprintf("id-%04d", p.next), nil
}

type failingIDProvider struct{}

func (failingIDProvider) NewID() (string, error) {
	return "", fmt.Errorf("id source exhausted")
}

// scanNow is the fixed wall clock used across engine tests: 2026-02-14 12:00
// in the +9 zone.
var (
	testLocation = time.FixedZone("UTC+9", 9*60*60)
	scanNow      = time.Date(2026, 2, 14, 12, 0, 0, 0, testLocation)
)

// publishedFor builds a publish timestamp whose inferred start lands at the
// given local date and clock for a stream of the given duration.
func publishedFor(t *testing.T, date, clock string, durationSeconds int64) int64 {
	t.Helper()
	start, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, testLocation)
	if err != nil {
		t.Fatalf("bad test timestamp %s %s: %v", date, clock, err)
	}
	return start.Add(time.Duration(durationSeconds) * time.Second).UnixMilli()
}

type engineFixture struct {
	creators *fakeCreators
	entries  *fakeEntries
	staging  *fakeStaging
	activity *fakeActivity
	source   *fakeSource
	engine   *Engine
}

func newEngineFixture(t *testing.T, mutate func(cfg *EngineConfig)) *engineFixture {
	t.Helper()
	fixture := &engineFixture{
		creators: &fakeCreators{},
		entries:  &fakeEntries{},
		staging:  &fakeStaging{},
		activity: &fakeActivity{},
		source:   &fakeSource{listings: map[string][]videosource.Video{}, failing: map[string]bool{}},
	}
	cfg := EngineConfig{
		Creators:   fixture.creators,
		Entries:    fixture.entries,
		Staging:    fixture.staging,
		Activity:   fixture.activity,
		Videos:     fixture.source,
		Clock:      func() time.Time { return scanNow },
		IDProvider: &sequenceIDProvider{},
		Location:   testLocation,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	engine, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("unexpected engine construction error: %v", err)
	}
	fixture.engine = engine
	return fixture
}
