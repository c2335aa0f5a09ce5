package schedule

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:storage_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Creator{}, &Entry{}, &Proposal{}, &ActivityRecord{}, &ScanSettings{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestCreatorStoreListActiveExcludesArchived(t *testing.T) {
	db := openTestDatabase(t)
	store := NewCreatorStore(db)
	ctx := context.Background()

	seed := []Creator{
		{CreatorID: "c1", Name: "Aoi", ChannelID: "ch-1"},
		{CreatorID: "c2", Name: "Beni", ChannelID: "ch-2", Archived: true},
		{CreatorID: "c3", Name: "Chika", ChannelID: ""},
	}
	if err := db.Create(&seed).Error; err != nil {
		t.Fatalf("failed to seed creators: %v", err)
	}

	creators, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(creators) != 2 {
		t.Fatalf("expected 2 active creators, got %d", len(creators))
	}
	for _, creator := range creators {
		if creator.CreatorID == "c2" {
			t.Fatalf("archived creator leaked into active listing")
		}
	}
}

func TestEntryStoreRangeAndLookup(t *testing.T) {
	db := openTestDatabase(t)
	store := NewEntryStore(db)
	ctx := context.Background()

	seed := []Entry{
		{EntryID: "e1", CreatorID: "c1", Date: "2026-02-10", StartTime: "21:00", Status: StatusLive},
		{EntryID: "e2", CreatorID: "c1", Date: "2026-02-13", StartTime: "22:00", Status: StatusLive},
		{EntryID: "e3", CreatorID: "c2", Date: "2026-02-13", Status: StatusUndecided},
		{EntryID: "e4", CreatorID: "c1", Date: "2026-02-20", StartTime: "19:00", Status: StatusOff},
	}
	if err := db.Create(&seed).Error; err != nil {
		t.Fatalf("failed to seed entries: %v", err)
	}

	entries, err := store.ListRange(ctx, "2026-02-11", "2026-02-14")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries in range, got %d", len(entries))
	}

	dayEntries, err := store.ListForCreatorDate(ctx, "c1", "2026-02-13")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dayEntries) != 1 || dayEntries[0].EntryID != "e2" {
		t.Fatalf("unexpected creator/date listing: %#v", dayEntries)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	entry, err := store.Get(ctx, "e2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry.Title = "collab stream"
	entry.Status = StatusLive
	if err := store.Update(ctx, &entry); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	reloaded, err := store.Get(ctx, "e2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reloaded.Title != "collab stream" {
		t.Fatalf("expected title to persist, got %q", reloaded.Title)
	}
}

func TestStagingStoreInsertGetDelete(t *testing.T) {
	db := openTestDatabase(t)
	store := NewStagingStore(db)
	ctx := context.Background()

	proposals := []Proposal{
		{ProposalID: "p1", CreatorID: "c1", Date: "2026-02-13", StartTime: "22:00", Status: StatusLive, Kind: ProposalKindCreate, Fingerprint: "video:v1", CreatedAtSeconds: 100},
		{ProposalID: "p2", CreatorID: "c2", Date: "2026-02-13", StartTime: "20:00", Status: StatusLive, Kind: ProposalKindCreate, Fingerprint: "video:v2", CreatedAtSeconds: 50},
	}
	if err := store.InsertMany(ctx, proposals); err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}
	if err := store.InsertMany(ctx, nil); err != nil {
		t.Fatalf("empty insert should be a no-op, got %v", err)
	}

	all, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 staged proposals, got %d", len(all))
	}
	if all[0].ProposalID != "p2" {
		t.Fatalf("expected oldest proposal first, got %s", all[0].ProposalID)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Delete(ctx, "p1"); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if err := store.Delete(ctx, "p1"); err != nil {
		t.Fatalf("deleting an absent proposal should not fail, got %v", err)
	}
	if _, err := store.Get(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted proposal to be gone, got %v", err)
	}
}

func TestSettingsStoreUpdatePreservesLastRun(t *testing.T) {
	db := openTestDatabase(t)
	store := NewSettingsStore(db)
	ctx := context.Background()

	if err := db.Create(&ScanSettings{SettingsID: 1, Enabled: true, IntervalHours: 6, RangeDays: 3}).Error; err != nil {
		t.Fatalf("failed to seed settings: %v", err)
	}

	runAt := time.Unix(1770000000, 0)
	if err := store.RecordRun(ctx, runAt); err != nil {
		t.Fatalf("unexpected record-run error: %v", err)
	}

	if err := store.Update(ctx, ScanSettings{Enabled: false, IntervalHours: 12, RangeDays: 7}); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}

	settings, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Enabled || settings.IntervalHours != 12 || settings.RangeDays != 7 {
		t.Fatalf("unexpected settings after update: %#v", settings)
	}
	if settings.LastRunSeconds != 1770000000 {
		t.Fatalf("expected last-run timestamp to survive update, got %d", settings.LastRunSeconds)
	}
}

func TestActivityStoreAppends(t *testing.T) {
	db := openTestDatabase(t)
	store := NewActivityStore(db)
	ctx := context.Background()

	if err := store.Append(ctx, ActivityRecord{Kind: ActivityCollected, Actor: ActorSystem, CreatedAtSeconds: 1}); err != nil {
		t.Fatalf("unexpected append error: %v", err)
	}
	records := []ActivityRecord{
		{Kind: ActivityApproved, Actor: "alice", CreatedAtSeconds: 2},
		{Kind: ActivityRejected, Actor: "alice", CreatedAtSeconds: 3},
	}
	if err := store.AppendMany(ctx, records); err != nil {
		t.Fatalf("unexpected append-many error: %v", err)
	}

	var count int64
	if err := db.Model(&ActivityRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("unexpected count error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 audit rows, got %d", count)
	}
}
