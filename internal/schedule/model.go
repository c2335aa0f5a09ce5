package schedule

import (
	"errors"
	"fmt"
	"strings"
)

// EntryStatus enumerates confirmed calendar entry states.
type EntryStatus string

const (
	// StatusLive marks a confirmed broadcast day.
	StatusLive EntryStatus = "live"
	// StatusOff marks a confirmed day without a broadcast.
	StatusOff EntryStatus = "off"
	// StatusSurprise marks an unannounced broadcast recorded after the fact.
	StatusSurprise EntryStatus = "surprise"
	// StatusUndecided marks a day whose plan is not settled yet.
	StatusUndecided EntryStatus = "undecided"
)

// ProposalKind enumerates the actions a staged proposal intends.
type ProposalKind string

const (
	// ProposalKindCreate inserts a new confirmed entry on approval.
	ProposalKindCreate ProposalKind = "create"
	// ProposalKindUpdate mutates an existing confirmed entry on approval.
	ProposalKindUpdate ProposalKind = "update"
)

// ActivityKind enumerates audit trail transition types.
type ActivityKind string

const (
	ActivityCollected  ActivityKind = "collected"
	ActivityApproved   ActivityKind = "approved"
	ActivityRejected   ActivityKind = "rejected"
	ActivityCreated    ActivityKind = "created"
	ActivityUpdated    ActivityKind = "updated"
	ActivityAutoFailed ActivityKind = "auto_failed"
)

// ActorSystem attributes audit records written by the engine itself.
const ActorSystem = "system"

const maxIdentifierLength = 190

var (
	// ErrInvalidID indicates an empty or oversized identifier.
	ErrInvalidID = errors.New("schedule: invalid identifier")
)

// ValidateID trims raw input and rejects empty or oversized identifiers.
func ValidateID(rawInput string) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidID, maxIdentifierLength)
	}
	return trimmed, nil
}

// Creator is a tracked member whose channel is scanned. Read-only to this
// service; membership is managed elsewhere.
type Creator struct {
	CreatorID string `gorm:"column:creator_id;primaryKey;size:190;not null"`
	Name      string `gorm:"column:name;size:190;not null"`
	ChannelID string `gorm:"column:channel_id;size:190;not null;default:''"`
	Archived  bool   `gorm:"column:archived;not null;default:false"`
}

// TableName provides the explicit table binding for GORM.
func (Creator) TableName() string {
	return "creators"
}

// Entry is a confirmed, user-visible calendar record. Date is a calendar day
// in the target time zone (YYYY-MM-DD); StartTime is HH:MM or empty when the
// time is not decided.
type Entry struct {
	EntryID          string      `gorm:"column:entry_id;primaryKey;size:190;not null"`
	CreatorID        string      `gorm:"column:creator_id;size:190;not null;index:idx_entries_creator_date,priority:1"`
	Date             string      `gorm:"column:entry_date;size:10;not null;index:idx_entries_creator_date,priority:2"`
	StartTime        string      `gorm:"column:start_time;size:5;not null;default:''"`
	Title            string      `gorm:"column:title;size:500;not null;default:''"`
	Status           EntryStatus `gorm:"column:status;size:20;not null"`
	CreatedAtSeconds int64       `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64       `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "schedule_entries"
}

// Proposal is an auto-detected candidate change awaiting human approval.
// Proposals are inserted by the reconciliation engine and deleted on approve
// or reject; they are never updated in place.
type Proposal struct {
	ProposalID       string       `gorm:"column:proposal_id;primaryKey;size:190;not null"`
	CreatorID        string       `gorm:"column:creator_id;size:190;not null;index:idx_proposals_creator"`
	CreatorName      string       `gorm:"column:creator_name;size:190;not null"`
	Date             string       `gorm:"column:entry_date;size:10;not null"`
	StartTime        string       `gorm:"column:start_time;size:5;not null;default:''"`
	Title            string       `gorm:"column:title;size:500;not null;default:''"`
	Status           EntryStatus  `gorm:"column:status;size:20;not null"`
	Kind             ProposalKind `gorm:"column:kind;size:20;not null"`
	TargetEntryID    string       `gorm:"column:target_entry_id;size:190;not null;default:''"`
	PrevStatus       *EntryStatus `gorm:"column:prev_status;size:20"`
	PrevTitle        *string      `gorm:"column:prev_title;size:500"`
	Fingerprint      string       `gorm:"column:fingerprint;size:190;not null;index:idx_proposals_fingerprint"`
	CreatedAtSeconds int64        `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Proposal) TableName() string {
	return "staging_proposals"
}

// ActivityRecord captures one immutable audit trail row. Records are append
// only and never read back by this service.
type ActivityRecord struct {
	RecordID         int64        `gorm:"column:record_id;primaryKey;autoIncrement"`
	Kind             ActivityKind `gorm:"column:kind;size:20;not null;index:idx_activity_kind_time,priority:1"`
	Actor            string       `gorm:"column:actor;size:190;not null"`
	CreatorID        string       `gorm:"column:creator_id;size:190;not null;default:''"`
	Date             string       `gorm:"column:entry_date;size:10;not null;default:''"`
	Title            string       `gorm:"column:title;size:500;not null;default:''"`
	Status           string       `gorm:"column:status;size:20;not null;default:''"`
	Detail           string       `gorm:"column:detail;size:500;not null;default:''"`
	CreatedAtSeconds int64        `gorm:"column:created_at_s;not null;index:idx_activity_kind_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (ActivityRecord) TableName() string {
	return "activity_records"
}

// ScanSettings gates the timed reconciliation trigger. A single row with
// SettingsID 1 is seeded at startup.
type ScanSettings struct {
	SettingsID     int64 `gorm:"column:settings_id;primaryKey"`
	Enabled        bool  `gorm:"column:enabled;not null;default:false"`
	IntervalHours  int   `gorm:"column:interval_hours;not null;default:6"`
	RangeDays      int   `gorm:"column:range_days;not null;default:3"`
	LastRunSeconds int64 `gorm:"column:last_run_s;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (ScanSettings) TableName() string {
	return "scan_settings"
}
