package scanner

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"discord-harvester/models"
)

// BoundKind tells how a range bound was expressed.
type BoundKind int

const (
	BoundNone BoundKind = iota
	BoundID
	BoundTime
)

// Bound is one side of a harvest range: a message id or a timestamp.
type Bound struct {
	Kind BoundKind
	ID   int64
	Time time.Time
}

// timeLayouts are tried in order for non numeric bounds. Layouts without a
// zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseBound reads a raw bound. All-digit strings are message ids, anything
// else must be an ISO-8601 timestamp. An empty string is no bound.
func ParseBound(field, raw string) (Bound, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Bound{}, nil
	}
	if isDigits(raw) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Bound{}, &models.ParseError{Field: field, Value: raw, Err: err}
		}
		return Bound{Kind: BoundID, ID: id}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return Bound{Kind: BoundTime, Time: t.UTC()}, nil
		}
	}
	return Bound{}, &models.ParseError{Field: field, Value: raw, Err: errors.New("expected a message id or an ISO-8601 timestamp")}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// Range is the parsed after/before window of a job.
type Range struct {
	After  Bound
	Before Bound
}

// ParseRange parses both bounds. before only accepts a timestamp.
func ParseRange(after, before string) (Range, error) {
	a, err := ParseBound("after", after)
	if err != nil {
		return Range{}, err
	}
	b, err := ParseBound("before", before)
	if err != nil {
		return Range{}, err
	}
	if b.Kind == BoundID {
		return Range{}, &models.ParseError{Field: "before", Value: before, Err: fmt.Errorf("must be a timestamp, not a message id")}
	}
	return Range{After: a, Before: b}, nil
}

// StartCursor picks where fetching starts: a numeric after bound wins, then
// the last stored message id of the channel, else nil for the full history.
func (r Range) StartCursor(lastStored *int64) *int64 {
	if r.After.Kind == BoundID {
		id := r.After.ID
		return &id
	}
	return lastStored
}

// TimeFiltered reports whether Keep can reject anything.
func (r Range) TimeFiltered() bool {
	return r.After.Kind == BoundTime || r.Before.Kind == BoundTime
}

// Keep reports whether a message created at createdAt falls in the window.
// Both ends are inclusive.
func (r Range) Keep(createdAt time.Time) bool {
	if r.After.Kind == BoundTime && createdAt.Before(r.After.Time) {
		return false
	}
	if r.Before.Kind == BoundTime && createdAt.After(r.Before.Time) {
		return false
	}
	return true
}

// Past reports whether createdAt lies after the before bound. History is read
// oldest first, so nothing later in the channel can match either.
func (r Range) Past(createdAt time.Time) bool {
	return r.Before.Kind == BoundTime && createdAt.After(r.Before.Time)
}
