package approval

import (
	"context"
	"errors"

	"github.com/hikawa-dev/stagecal/backend/internal/schedule"
	"golang.org/x/sync/errgroup"
)

// Reason codes reported per item in bulk results.
const (
	ReasonConflict = "conflict"
	ReasonNotFound = "not_found"
	ReasonError    = "error"
)

// ItemResult is the outcome of one proposal inside a bulk call.
type ItemResult struct {
	ProposalID string `json:"proposal_id"`
	OK         bool   `json:"ok"`
	Reason     string `json:"reason,omitempty"`
	Message    string `json:"message,omitempty"`
}

// BatchResult aggregates itemized outcomes of a bulk call. A partial failure
// never rolls back prior successes.
type BatchResult struct {
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Items     []ItemResult `json:"items"`
}

func (r *BatchResult) tally() {
	for _, item := range r.Items {
		if item.OK {
			r.Succeeded++
		} else {
			r.Failed++
		}
	}
}

func classify(err error) (string, string) {
	var conflict *schedule.ConflictError
	switch {
	case errors.As(err, &conflict):
		return ReasonConflict, conflict.Error()
	case errors.Is(err, schedule.ErrNotFound):
		return ReasonNotFound, err.Error()
	case errors.Is(err, schedule.ErrInvalidID):
		return ReasonError, err.Error()
	default:
		return ReasonError, err.Error()
	}
}

func itemFor(proposalID string, err error) ItemResult {
	if err == nil {
		return ItemResult{ProposalID: proposalID, OK: true}
	}
	reason, message := classify(err)
	return ItemResult{ProposalID: proposalID, OK: false, Reason: reason, Message: message}
}

// ApproveMany approves a set of proposals, reporting every item's outcome
// independently. Create-kind proposals are processed strictly one at a time
// so two staged creates for the same creator/date cannot both pass the
// conflict check; update-kind proposals target distinct entries and run with
// bounded concurrency.
func (p *Processor) ApproveMany(ctx context.Context, actor string, proposalIDs []string) BatchResult {
	result := BatchResult{Items: make([]ItemResult, len(proposalIDs))}

	type indexedID struct {
		index int
		id    string
	}
	var creates []indexedID
	var updates []indexedID

	for i, rawID := range proposalIDs {
		id, err := schedule.ValidateID(rawID)
		if err != nil {
			result.Items[i] = itemFor(rawID, err)
			continue
		}
		proposal, err := p.staging.Get(ctx, id)
		if err != nil {
			result.Items[i] = itemFor(id, err)
			continue
		}
		if proposal.Kind == schedule.ProposalKindCreate {
			creates = append(creates, indexedID{index: i, id: id})
		} else {
			updates = append(updates, indexedID{index: i, id: id})
		}
	}

	for _, item := range creates {
		result.Items[item.index] = itemFor(item.id, p.Approve(ctx, actor, item.id))
	}

	var group errgroup.Group
	group.SetLimit(p.bulkConcurrency)
	for _, item := range updates {
		group.Go(func() error {
			result.Items[item.index] = itemFor(item.id, p.Approve(ctx, actor, item.id))
			return nil
		})
	}
	group.Wait() //nolint:errcheck // item errors are reported per item

	result.tally()
	return result
}

// RejectMany rejects a set of proposals with bounded concurrency. Rejection
// has no read-then-write race, so every item may run in parallel.
func (p *Processor) RejectMany(ctx context.Context, actor string, proposalIDs []string) BatchResult {
	result := BatchResult{Items: make([]ItemResult, len(proposalIDs))}

	var group errgroup.Group
	group.SetLimit(p.bulkConcurrency)
	for i, rawID := range proposalIDs {
		group.Go(func() error {
			result.Items[i] = itemFor(rawID, p.Reject(ctx, actor, rawID))
			return nil
		})
	}
	group.Wait() //nolint:errcheck // item errors are reported per item

	result.tally()
	return result
}

// ApproveAll approves every currently staged proposal.
func (p *Processor) ApproveAll(ctx context.Context, actor string) (BatchResult, error) {
	ids, err := p.stagedIDs(ctx)
	if err != nil {
		return BatchResult{}, err
	}
	return p.ApproveMany(ctx, actor, ids), nil
}

// RejectAll rejects every currently staged proposal.
func (p *Processor) RejectAll(ctx context.Context, actor string) (BatchResult, error) {
	ids, err := p.stagedIDs(ctx)
	if err != nil {
		return BatchResult{}, err
	}
	return p.RejectMany(ctx, actor, ids), nil
}

func (p *Processor) stagedIDs(ctx context.Context) ([]string, error) {
	proposals, err := p.staging.ListAll(ctx)
	if err != nil {
		p.logError(opApprove, "staging_load_failed", err, "")
		return nil, schedule.NewServiceError(opApprove, "staging_load_failed", err)
	}
	ids := make([]string, 0, len(proposals))
	for _, proposal := range proposals {
		ids = append(ids, proposal.ProposalID)
	}
	return ids, nil
}
