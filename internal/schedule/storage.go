package schedule

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// CreatorStore reads the tracked creator directory.
type CreatorStore struct {
	db *gorm.DB
}

// NewCreatorStore wraps the database handle for creator lookups.
func NewCreatorStore(db *gorm.DB) *CreatorStore {
	return &CreatorStore{db: db}
}

// ListActive returns creators that are still tracked, excluding archived ones.
func (s *CreatorStore) ListActive(ctx context.Context) ([]Creator, error) {
	var creators []Creator
	if err := s.db.WithContext(ctx).
		Where("archived = ?", false).
		Order("creator_id ASC").
		Find(&creators).Error; err != nil {
		return nil, err
	}
	return creators, nil
}

// EntryStore persists confirmed calendar entries.
type EntryStore struct {
	db *gorm.DB
}

// NewEntryStore wraps the database handle for confirmed entries.
func NewEntryStore(db *gorm.DB) *EntryStore {
	return &EntryStore{db: db}
}

// ListRange returns entries whose date falls inside [from, to] inclusive.
func (s *EntryStore) ListRange(ctx context.Context, from, to string) ([]Entry, error) {
	var entries []Entry
	if err := s.db.WithContext(ctx).
		Where("entry_date >= ? AND entry_date <= ?", from, to).
		Order("entry_date ASC, start_time ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListForCreatorDate returns entries for one creator on one calendar day.
func (s *EntryStore) ListForCreatorDate(ctx context.Context, creatorID, date string) ([]Entry, error) {
	var entries []Entry
	if err := s.db.WithContext(ctx).
		Where("creator_id = ? AND entry_date = ?", creatorID, date).
		Order("start_time ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Get returns one entry by identifier, or ErrNotFound.
func (s *EntryStore) Get(ctx context.Context, entryID string) (Entry, error) {
	var entry Entry
	err := s.db.WithContext(ctx).
		Where("entry_id = ?", entryID).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Insert persists a new confirmed entry.
func (s *EntryStore) Insert(ctx context.Context, entry *Entry) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

// Update writes the entry back in full by primary key.
func (s *EntryStore) Update(ctx context.Context, entry *Entry) error {
	return s.db.WithContext(ctx).Save(entry).Error
}

// StagingStore persists proposals awaiting approval.
type StagingStore struct {
	db *gorm.DB
}

// NewStagingStore wraps the database handle for staged proposals.
func NewStagingStore(db *gorm.DB) *StagingStore {
	return &StagingStore{db: db}
}

// ListAll returns the full live staging set, oldest first.
func (s *StagingStore) ListAll(ctx context.Context) ([]Proposal, error) {
	var proposals []Proposal
	if err := s.db.WithContext(ctx).
		Order("created_at_s ASC, proposal_id ASC").
		Find(&proposals).Error; err != nil {
		return nil, err
	}
	return proposals, nil
}

// Get returns one proposal by identifier, or ErrNotFound.
func (s *StagingStore) Get(ctx context.Context, proposalID string) (Proposal, error) {
	var proposal Proposal
	err := s.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		Take(&proposal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Proposal{}, ErrNotFound
	}
	if err != nil {
		return Proposal{}, err
	}
	return proposal, nil
}

// InsertMany persists one caller-sized chunk of proposals in a single
// multi-row insert. Chunking across calls is the caller's concern; there is
// no transaction spanning chunks.
func (s *StagingStore) InsertMany(ctx context.Context, proposals []Proposal) error {
	if len(proposals) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&proposals).Error
}

// Delete removes one proposal by identifier. Deleting an absent proposal is
// not an error.
func (s *StagingStore) Delete(ctx context.Context, proposalID string) error {
	return s.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		Delete(&Proposal{}).Error
}

// ActivityStore appends immutable audit trail rows. Write-only from this
// service's perspective.
type ActivityStore struct {
	db *gorm.DB
}

// NewActivityStore wraps the database handle for the audit trail.
func NewActivityStore(db *gorm.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

// Append persists a single audit record.
func (s *ActivityStore) Append(ctx context.Context, record ActivityRecord) error {
	return s.db.WithContext(ctx).Create(&record).Error
}

// AppendMany persists one caller-sized chunk of audit records.
func (s *ActivityStore) AppendMany(ctx context.Context, records []ActivityRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&records).Error
}

// SettingsStore persists the scan trigger settings row.
type SettingsStore struct {
	db *gorm.DB
}

// NewSettingsStore wraps the database handle for scan settings.
func NewSettingsStore(db *gorm.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

const settingsRowID = 1

// Get returns the persisted scan settings.
func (s *SettingsStore) Get(ctx context.Context) (ScanSettings, error) {
	var settings ScanSettings
	err := s.db.WithContext(ctx).
		Where("settings_id = ?", settingsRowID).
		Take(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ScanSettings{}, ErrNotFound
	}
	if err != nil {
		return ScanSettings{}, err
	}
	return settings, nil
}

// Update replaces the settings row, preserving the last-run timestamp.
func (s *SettingsStore) Update(ctx context.Context, settings ScanSettings) error {
	settings.SettingsID = settingsRowID
	return s.db.WithContext(ctx).
		Model(&ScanSettings{}).
		Where("settings_id = ?", settingsRowID).
		Updates(map[string]interface{}{
			"enabled":        settings.Enabled,
			"interval_hours": settings.IntervalHours,
			"range_days":     settings.RangeDays,
		}).Error
}

// RecordRun stamps the last-run timestamp after a completed scan.
func (s *SettingsStore) RecordRun(ctx context.Context, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&ScanSettings{}).
		Where("settings_id = ?", settingsRowID).
		Update("last_run_s", at.UTC().Unix()).Error
}
