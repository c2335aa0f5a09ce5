package approval

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hikawa-dev/stagecal/backend/internal/schedule"
	"go.uber.org/zap"
)

var (
	errMissingEntries    = errors.New("entry store is required")
	errMissingStaging    = errors.New("staging store is required")
	errMissingActivity   = errors.New("activity log is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

const (
	opProcessorNew = "approval.processor.new"
	opApprove      = "approval.approve"
	opReject       = "approval.reject"
)

const defaultBulkConcurrency = 10

// EntryStore reads and mutates confirmed calendar entries.
type EntryStore interface {
	Get(ctx context.Context, entryID string) (schedule.Entry, error)
	ListForCreatorDate(ctx context.Context, creatorID, date string) ([]schedule.Entry, error)
	Insert(ctx context.Context, entry *schedule.Entry) error
	Update(ctx context.Context, entry *schedule.Entry) error
}

// StagingStore reads and deletes staged proposals.
type StagingStore interface {
	Get(ctx context.Context, proposalID string) (schedule.Proposal, error)
	ListAll(ctx context.Context) ([]schedule.Proposal, error)
	Delete(ctx context.Context, proposalID string) error
}

// ActivityLog appends audit trail rows.
type ActivityLog interface {
	Append(ctx context.Context, record schedule.ActivityRecord) error
}

// ProcessorConfig wires the approval processor's collaborators.
type ProcessorConfig struct {
	Entries    EntryStore
	Staging    StagingStore
	Activity   ActivityLog
	Clock      func() time.Time
	IDProvider schedule.IDProvider
	Logger     *zap.Logger
	// BulkConcurrency bounds parallel processing of rejects and update-kind
	// approvals inside a bulk call. Create-kind approvals always run one at
	// a time regardless of this setting.
	BulkConcurrency int
}

// Processor applies or discards staged proposals. Every approval re-reads
// current state and re-applies the tolerance rule before touching the
// confirmed calendar.
type Processor struct {
	entries         EntryStore
	staging         StagingStore
	activity        ActivityLog
	clock           func() time.Time
	idProvider      schedule.IDProvider
	logger          *zap.Logger
	bulkConcurrency int

	// createMu serializes create-kind approvals. Two concurrent approvals for
	// the same creator/date could each pass the conflict check against a
	// stale snapshot and both insert.
	createMu sync.Mutex
}

// NewProcessor validates the configuration and returns a Processor.
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if cfg.Entries == nil {
		return nil, schedule.NewServiceError(opProcessorNew, "missing_entries", errMissingEntries)
	}
	if cfg.Staging == nil {
		return nil, schedule.NewServiceError(opProcessorNew, "missing_staging", errMissingStaging)
	}
	if cfg.Activity == nil {
		return nil, schedule.NewServiceError(opProcessorNew, "missing_activity", errMissingActivity)
	}
	if cfg.IDProvider == nil {
		return nil, schedule.NewServiceError(opProcessorNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	bulkConcurrency := cfg.BulkConcurrency
	if bulkConcurrency <= 0 {
		bulkConcurrency = defaultBulkConcurrency
	}

	return &Processor{
		entries:         cfg.Entries,
		staging:         cfg.Staging,
		activity:        cfg.Activity,
		clock:           clock,
		idProvider:      cfg.IDProvider,
		logger:          logger,
		bulkConcurrency: bulkConcurrency,
	}, nil
}

// Approve commits one staged proposal. A create proposal is re-validated
// against the confirmed calendar at approval time; an update proposal is
// re-checked for its target's existence. On conflict or a vanished target the
// proposal stays staged for a later retry.
func (p *Processor) Approve(ctx context.Context, actor, proposalID string) error {
	id, err := schedule.ValidateID(proposalID)
	if err != nil {
		return err
	}

	proposal, err := p.staging.Get(ctx, id)
	if err != nil {
		return err
	}

	switch proposal.Kind {
	case schedule.ProposalKindCreate:
		p.createMu.Lock()
		defer p.createMu.Unlock()
		return p.approveCreate(ctx, actor, proposal)
	case schedule.ProposalKindUpdate:
		return p.approveUpdate(ctx, actor, proposal)
	default:
		return schedule.NewServiceError(opApprove, "unknown_kind", errors.New(string(proposal.Kind)))
	}
}

func (p *Processor) approveCreate(ctx context.Context, actor string, proposal schedule.Proposal) error {
	existing, err := p.entries.ListForCreatorDate(ctx, proposal.CreatorID, proposal.Date)
	if err != nil {
		p.logError(opApprove, "entries_load_failed", err, proposal.ProposalID)
		return schedule.NewServiceError(opApprove, "entries_load_failed", err)
	}
	if match := schedule.FindMatch(existing, proposal.StartTime); match != nil {
		return &schedule.ConflictError{
			ConflictingEntryID: match.EntryID,
			ConflictingTime:    match.StartTime,
		}
	}

	entryID, err := p.idProvider.NewID()
	if err != nil {
		p.logError(opApprove, "id_generation_failed", err, proposal.ProposalID)
		return schedule.NewServiceError(opApprove, "id_generation_failed", err)
	}

	now := p.clock().UTC().Unix()
	entry := schedule.Entry{
		EntryID:          entryID,
		CreatorID:        proposal.CreatorID,
		Date:             proposal.Date,
		StartTime:        proposal.StartTime,
		Title:            proposal.Title,
		Status:           proposal.Status,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	if err := p.entries.Insert(ctx, &entry); err != nil {
		p.logError(opApprove, "entry_insert_failed", err, proposal.ProposalID)
		return schedule.NewServiceError(opApprove, "entry_insert_failed", err)
	}

	return p.finishApproval(ctx, actor, proposal, now, schedule.ActivityCreated, entry.EntryID)
}

func (p *Processor) approveUpdate(ctx context.Context, actor string, proposal schedule.Proposal) error {
	target, err := p.entries.Get(ctx, proposal.TargetEntryID)
	if errors.Is(err, schedule.ErrNotFound) {
		// Target was deleted since staging; leave the proposal for the
		// operator instead of silently discarding it.
		return schedule.ErrNotFound
	}
	if err != nil {
		p.logError(opApprove, "entry_load_failed", err, proposal.ProposalID)
		return schedule.NewServiceError(opApprove, "entry_load_failed", err)
	}

	now := p.clock().UTC().Unix()
	target.StartTime = proposal.StartTime
	target.Title = proposal.Title
	target.Status = proposal.Status
	target.UpdatedAtSeconds = now
	if err := p.entries.Update(ctx, &target); err != nil {
		p.logError(opApprove, "entry_update_failed", err, proposal.ProposalID)
		return schedule.NewServiceError(opApprove, "entry_update_failed", err)
	}

	return p.finishApproval(ctx, actor, proposal, now, schedule.ActivityUpdated, target.EntryID)
}

// finishApproval writes the approval transition plus the entry-level
// created/updated transition, then removes the proposal from staging.
func (p *Processor) finishApproval(ctx context.Context, actor string, proposal schedule.Proposal, now int64, commitKind schedule.ActivityKind, entryID string) error {
	records := []schedule.ActivityRecord{
		{
			Kind:             schedule.ActivityApproved,
			Actor:            actor,
			CreatorID:        proposal.CreatorID,
			Date:             proposal.Date,
			Title:            proposal.Title,
			Status:           string(proposal.Status),
			Detail:           proposal.Fingerprint,
			CreatedAtSeconds: now,
		},
		{
			Kind:             commitKind,
			Actor:            actor,
			CreatorID:        proposal.CreatorID,
			Date:             proposal.Date,
			Title:            proposal.Title,
			Status:           string(proposal.Status),
			Detail:           entryID,
			CreatedAtSeconds: now,
		},
	}
	for _, record := range records {
		if err := p.activity.Append(ctx, record); err != nil {
			p.logError(opApprove, "activity_append_failed", err, proposal.ProposalID)
			return schedule.NewServiceError(opApprove, "activity_append_failed", err)
		}
	}
	if err := p.staging.Delete(ctx, proposal.ProposalID); err != nil {
		p.logError(opApprove, "staging_delete_failed", err, proposal.ProposalID)
		return schedule.NewServiceError(opApprove, "staging_delete_failed", err)
	}
	return nil
}

// Reject discards one staged proposal. Rejection never fails on business
// rules: the audit row captures the pre-staging snapshot and the proposal is
// deleted unconditionally.
func (p *Processor) Reject(ctx context.Context, actor, proposalID string) error {
	id, err := schedule.ValidateID(proposalID)
	if err != nil {
		return err
	}

	proposal, err := p.staging.Get(ctx, id)
	if err != nil {
		return err
	}

	title := proposal.Title
	if proposal.PrevTitle != nil {
		title = *proposal.PrevTitle
	}
	status := string(proposal.Status)
	if proposal.PrevStatus != nil {
		status = string(*proposal.PrevStatus)
	}
	record := schedule.ActivityRecord{
		Kind:             schedule.ActivityRejected,
		Actor:            actor,
		CreatorID:        proposal.CreatorID,
		Date:             proposal.Date,
		Title:            title,
		Status:           status,
		Detail:           proposal.Fingerprint,
		CreatedAtSeconds: p.clock().UTC().Unix(),
	}
	if err := p.activity.Append(ctx, record); err != nil {
		p.logError(opReject, "activity_append_failed", err, proposal.ProposalID)
		return schedule.NewServiceError(opReject, "activity_append_failed", err)
	}
	if err := p.staging.Delete(ctx, proposal.ProposalID); err != nil {
		p.logError(opReject, "staging_delete_failed", err, proposal.ProposalID)
		return schedule.NewServiceError(opReject, "staging_delete_failed", err)
	}
	return nil
}

func (p *Processor) logError(operation, reason string, err error, proposalID string) {
	p.logger.Error("approval processor error",
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.String("proposal_id", proposalID),
		zap.Error(err))
}
