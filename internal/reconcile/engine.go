package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hikawa-dev/stagecal/backend/internal/schedule"
	"github.com/hikawa-dev/stagecal/backend/internal/videosource"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	errMissingCreators   = errors.New("creator directory is required")
	errMissingEntries    = errors.New("entry reader is required")
	errMissingStaging    = errors.New("staging store is required")
	errMissingActivity   = errors.New("activity log is required")
	errMissingVideos     = errors.New("video source is required")
	errMissingIDProvider = errors.New("id provider is required")
	errInvalidRange      = errors.New("range days must be positive")
	noOpLogger           = zap.NewNop()
)

const (
	opEngineNew = "reconcile.engine.new"
	opRun       = "reconcile.run"
)

const (
	defaultFetchConcurrency = 10
	defaultPageSize         = 15
	defaultChunkSize        = 50
)

// CreatorDirectory lists the creators still being tracked.
type CreatorDirectory interface {
	ListActive(ctx context.Context) ([]schedule.Creator, error)
}

// EntryReader loads confirmed entries inside a date range.
type EntryReader interface {
	ListRange(ctx context.Context, from, to string) ([]schedule.Entry, error)
}

// StagingStore reads the live staging set and persists new proposals.
type StagingStore interface {
	ListAll(ctx context.Context) ([]schedule.Proposal, error)
	InsertMany(ctx context.Context, proposals []schedule.Proposal) error
}

// ActivityLog appends audit trail rows.
type ActivityLog interface {
	Append(ctx context.Context, record schedule.ActivityRecord) error
	AppendMany(ctx context.Context, records []schedule.ActivityRecord) error
}

// VideoSource lists a channel's recently published videos.
type VideoSource interface {
	ListRecent(ctx context.Context, channelID string, page, size int) ([]videosource.Video, error)
}

// EngineConfig wires the reconciliation engine's collaborators.
type EngineConfig struct {
	Creators   CreatorDirectory
	Entries    EntryReader
	Staging    StagingStore
	Activity   ActivityLog
	Videos     VideoSource
	Clock      func() time.Time
	IDProvider schedule.IDProvider
	Logger     *zap.Logger
	// Location is the target time zone dates are computed in. Defaults to UTC.
	Location *time.Location
	// FetchConcurrency bounds concurrent per-creator listing calls.
	FetchConcurrency int
	// PageSize caps how many recent videos are inspected per creator.
	PageSize int
	// ChunkSize bounds rows per store write. There is no transaction across
	// chunks; a failed run is re-derived by fingerprint on the next scan.
	ChunkSize int
}

// Engine scans recent videos per creator, diffs them against the confirmed
// calendar and stages create/update proposals for human approval.
type Engine struct {
	creators    CreatorDirectory
	entries     EntryReader
	staging     StagingStore
	activity    ActivityLog
	videos      VideoSource
	clock       func() time.Time
	idProvider  schedule.IDProvider
	logger      *zap.Logger
	location    *time.Location
	concurrency int
	pageSize    int
	chunkSize   int
}

// NewEngine validates the configuration and returns an Engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Creators == nil {
		return nil, schedule.NewServiceError(opEngineNew, "missing_creators", errMissingCreators)
	}
	if cfg.Entries == nil {
		return nil, schedule.NewServiceError(opEngineNew, "missing_entries", errMissingEntries)
	}
	if cfg.Staging == nil {
		return nil, schedule.NewServiceError(opEngineNew, "missing_staging", errMissingStaging)
	}
	if cfg.Activity == nil {
		return nil, schedule.NewServiceError(opEngineNew, "missing_activity", errMissingActivity)
	}
	if cfg.Videos == nil {
		return nil, schedule.NewServiceError(opEngineNew, "missing_videos", errMissingVideos)
	}
	if cfg.IDProvider == nil {
		return nil, schedule.NewServiceError(opEngineNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}
	concurrency := cfg.FetchConcurrency
	if concurrency <= 0 {
		concurrency = defaultFetchConcurrency
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	return &Engine{
		creators:    cfg.Creators,
		entries:     cfg.Entries,
		staging:     cfg.Staging,
		activity:    cfg.Activity,
		videos:      cfg.Videos,
		clock:       clock,
		idProvider:  cfg.IDProvider,
		logger:      logger,
		location:    location,
		concurrency: concurrency,
		pageSize:    pageSize,
		chunkSize:   chunkSize,
	}, nil
}

// Decision values reported per occurrence in the scan result.
const (
	DecisionCreate    = "create"
	DecisionUpdate    = "update"
	DecisionUnchanged = "unchanged"
)

// Detail describes one occurrence the scan decided on.
type Detail struct {
	CreatorID     string `json:"creator_id"`
	CreatorName   string `json:"creator_name"`
	VideoID       string `json:"video_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	Title         string `json:"title"`
	Decision      string `json:"decision"`
	TargetEntryID string `json:"target_entry_id,omitempty"`
}

// Result summarizes one reconciliation run.
type Result struct {
	Checked          int      `json:"checked"`
	ProposalsCreated int      `json:"proposals_created"`
	Details          []Detail `json:"details"`
}

// Run scans every active creator's recent videos against confirmed entries in
// the lookback window and stages proposals for anything new or mismatched.
// Per-creator fetch failures are absorbed as empty listings; store failures
// abort the run after recording an auto_failed audit row.
func (e *Engine) Run(ctx context.Context, rangeDays int) (Result, error) {
	if rangeDays <= 0 {
		return Result{}, schedule.NewServiceError(opRun, "invalid_range", errInvalidRange)
	}

	creators, err := e.creators.ListActive(ctx)
	if err != nil {
		return Result{}, e.failRun(ctx, "creators_load_failed", err)
	}

	now := e.clock().In(e.location)
	from := now.AddDate(0, 0, -rangeDays).Format(schedule.DateLayout)
	to := now.Format(schedule.DateLayout)

	entries, err := e.entries.ListRange(ctx, from, to)
	if err != nil {
		return Result{}, e.failRun(ctx, "entries_load_failed", err)
	}
	entriesByCreatorDate := make(map[string][]schedule.Entry)
	for _, entry := range entries {
		key := entry.CreatorID + "|" + entry.Date
		entriesByCreatorDate[key] = append(entriesByCreatorDate[key], entry)
	}

	staged, err := e.staging.ListAll(ctx)
	if err != nil {
		return Result{}, e.failRun(ctx, "staging_load_failed", err)
	}
	stagedFingerprints := make(map[string]bool, len(staged))
	stagedOccurrences := make(map[string]bool, len(staged))
	for _, proposal := range staged {
		stagedFingerprints[proposal.Fingerprint] = true
		stagedOccurrences[schedule.OccurrenceKey(proposal.CreatorID, proposal.Date, proposal.StartTime)] = true
	}

	listings := e.fetchListings(ctx, creators)

	result := Result{Details: []Detail{}}
	var proposals []schedule.Proposal
	var collected []schedule.ActivityRecord
	createdAt := e.clock().UTC().Unix()

	for i, creator := range creators {
		for _, video := range listings[i] {
			result.Checked++

			date, clock := schedule.InferBroadcastStart(video.PublishedAtMs, video.DurationSeconds, e.location)
			if date < from || date > to {
				continue
			}

			fingerprint := schedule.Fingerprint(video.ExternalID)
			occurrence := schedule.OccurrenceKey(creator.CreatorID, date, clock)
			if stagedFingerprints[fingerprint] || stagedOccurrences[occurrence] {
				continue
			}

			dayEntries := entriesByCreatorDate[creator.CreatorID+"|"+date]
			match := schedule.FindMatch(dayEntries, clock)

			detail := Detail{
				CreatorID:   creator.CreatorID,
				CreatorName: creator.Name,
				VideoID:     video.ExternalID,
				Date:        date,
				StartTime:   clock,
				Title:       video.Title,
			}

			var proposal schedule.Proposal
			switch {
			case match == nil:
				detail.Decision = DecisionCreate
				proposal = schedule.Proposal{
					Kind: schedule.ProposalKindCreate,
				}
			case match.Status != schedule.StatusLive || strings.TrimSpace(match.Title) == "":
				detail.Decision = DecisionUpdate
				detail.TargetEntryID = match.EntryID
				prevStatus := match.Status
				prevTitle := match.Title
				proposal = schedule.Proposal{
					Kind:          schedule.ProposalKindUpdate,
					TargetEntryID: match.EntryID,
					PrevStatus:    &prevStatus,
					PrevTitle:     &prevTitle,
				}
			default:
				detail.Decision = DecisionUnchanged
				result.Details = append(result.Details, detail)
				continue
			}

			proposalID, err := e.idProvider.NewID()
			if err != nil {
				return Result{}, e.failRun(ctx, "id_generation_failed", err)
			}
			proposal.ProposalID = proposalID
			proposal.CreatorID = creator.CreatorID
			proposal.CreatorName = creator.Name
			proposal.Date = date
			proposal.StartTime = clock
			proposal.Title = video.Title
			proposal.Status = schedule.StatusLive
			proposal.Fingerprint = fingerprint
			proposal.CreatedAtSeconds = createdAt

			stagedFingerprints[fingerprint] = true
			stagedOccurrences[occurrence] = true

			proposals = append(proposals, proposal)
			collected = append(collected, schedule.ActivityRecord{
				Kind:             schedule.ActivityCollected,
				Actor:            schedule.ActorSystem,
				CreatorID:        creator.CreatorID,
				Date:             date,
				Title:            video.Title,
				Status:           string(schedule.StatusLive),
				Detail:           fingerprint,
				CreatedAtSeconds: createdAt,
			})
			result.Details = append(result.Details, detail)
			result.ProposalsCreated++
		}
	}

	for _, chunk := range chunkProposals(proposals, e.chunkSize) {
		if err := e.staging.InsertMany(ctx, chunk); err != nil {
			return Result{}, e.failRun(ctx, "staging_insert_failed", err)
		}
	}
	for _, chunk := range chunkRecords(collected, e.chunkSize) {
		if err := e.activity.AppendMany(ctx, chunk); err != nil {
			return Result{}, e.failRun(ctx, "activity_append_failed", err)
		}
	}

	e.logger.Info("reconciliation run finished",
		zap.Int("checked", result.Checked),
		zap.Int("proposals_created", result.ProposalsCreated),
		zap.Int("range_days", rangeDays))
	return result, nil
}

// fetchListings pulls each creator's recent videos with bounded fan-out.
// A failed or channel-less creator yields an empty listing, never an error.
func (e *Engine) fetchListings(ctx context.Context, creators []schedule.Creator) [][]videosource.Video {
	listings := make([][]videosource.Video, len(creators))

	var group errgroup.Group
	group.SetLimit(e.concurrency)
	for i, creator := range creators {
		if strings.TrimSpace(creator.ChannelID) == "" {
			continue
		}
		group.Go(func() error {
			videos, err := e.videos.ListRecent(ctx, creator.ChannelID, 0, e.pageSize)
			if err != nil {
				e.logger.Warn("creator video fetch failed",
					zap.String("creator_id", creator.CreatorID),
					zap.String("channel_id", creator.ChannelID),
					zap.Error(err))
				return nil
			}
			listings[i] = videos
			return nil
		})
	}
	group.Wait() //nolint:errcheck // workers never return errors

	return listings
}

// failRun records an auto_failed audit row before surfacing the error.
func (e *Engine) failRun(ctx context.Context, reason string, cause error) error {
	record := schedule.ActivityRecord{
		Kind:             schedule.ActivityAutoFailed,
		Actor:            schedule.ActorSystem,
		Detail:           fmt.Sprintf("%s: %v", reason, cause),
		CreatedAtSeconds: e.clock().UTC().Unix(),
	}
	if err := e.activity.Append(ctx, record); err != nil {
		e.logger.Error("auto_failed audit append failed", zap.Error(err))
	}
	e.logger.Error("reconciliation run failed",
		zap.String("operation", opRun),
		zap.String("reason", reason),
		zap.Error(cause))
	return schedule.NewServiceError(opRun, reason, cause)
}

func chunkProposals(proposals []schedule.Proposal, size int) [][]schedule.Proposal {
	var chunks [][]schedule.Proposal
	for start := 0; start < len(proposals); start += size {
		end := start + size
		if end > len(proposals) {
			end = len(proposals)
		}
		chunks = append(chunks, proposals[start:end])
	}
	return chunks
}

func chunkRecords(records []schedule.ActivityRecord, size int) [][]schedule.ActivityRecord {
	var chunks [][]schedule.ActivityRecord
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}
