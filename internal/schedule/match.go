package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ToleranceMinutes is the window within which two start times are considered
// the same broadcast occurrence.
const ToleranceMinutes = 30

const (
	// DateLayout formats calendar days in the target time zone.
	DateLayout = "2006-01-02"
	// ClockLayout formats wall-clock start times.
	ClockLayout = "15:04"
)

// ErrInvalidClock indicates a start time that is not HH:MM.
var ErrInvalidClock = errors.New("schedule: invalid clock value")

// ClockMinutes parses an HH:MM clock string into minutes since midnight.
func ClockMinutes(clock string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(clock), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, clock)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, clock)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, clock)
	}
	return hours*60 + minutes, nil
}

// WithinTolerance reports whether two HH:MM clock values fall within the
// ±30-minute window. Unparseable values never match.
func WithinTolerance(left, right string) bool {
	leftMinutes, err := ClockMinutes(left)
	if err != nil {
		return false
	}
	rightMinutes, err := ClockMinutes(right)
	if err != nil {
		return false
	}
	delta := leftMinutes - rightMinutes
	if delta < 0 {
		delta = -delta
	}
	return delta <= ToleranceMinutes
}

// FindMatch returns the first entry on the same creator/date that represents
// the given occurrence: either its start time is within tolerance, or it has
// no start time yet. Entries are assumed pre-filtered to one creator+date.
func FindMatch(entries []Entry, startTime string) *Entry {
	for i := range entries {
		if entries[i].StartTime == "" {
			return &entries[i]
		}
		if WithinTolerance(entries[i].StartTime, startTime) {
			return &entries[i]
		}
	}
	return nil
}

// OccurrenceKey builds the staging dedup key over creator, date and time.
func OccurrenceKey(creatorID, date, startTime string) string {
	return creatorID + "|" + date + "|" + startTime
}

// Fingerprint derives the idempotency key from a source video identifier.
func Fingerprint(externalVideoID string) string {
	return "video:" + externalVideoID
}

// InferBroadcastStart computes the actual stream start from its publish
// timestamp and duration, rendered as a calendar day and wall-clock time in
// the target location. VOD publish time marks the stream's end, so the start
// is publish minus duration.
func InferBroadcastStart(publishedAtMs, durationSeconds int64, location *time.Location) (date string, clock string) {
	start := time.UnixMilli(publishedAtMs - durationSeconds*1000).In(location)
	return start.Format(DateLayout), start.Format(ClockLayout)
}
