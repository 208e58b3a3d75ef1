package model

import "time"

// Layouts used for the calendar date and wall-clock time fields on a
// shift.  Dates and times are stored as plain strings in the database
// ("2025-11-15", "09:00") and parsed on demand; both endpoints of a
// shift fall on the same calendar day.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ShiftStatus enumerates the lifecycle states of a shift.  The set is
// closed: a shift is created as draft, validated by an admin, then
// published by a manager.  Cancellation removes the row entirely, so
// there is no terminal status value for it.
type ShiftStatus string

const (
	ShiftDraft     ShiftStatus = "draft"
	ShiftValidated ShiftStatus = "validated"
	ShiftPublished ShiftStatus = "published"
)

// shiftTransitions encodes the only forward moves a shift may make.
// Anything not listed here is an invalid transition.
var shiftTransitions = map[ShiftStatus]ShiftStatus{
	ShiftDraft:     ShiftValidated,
	ShiftValidated: ShiftPublished,
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s ShiftStatus) CanTransitionTo(next ShiftStatus) bool {
	return shiftTransitions[s] == next
}

// Valid reports whether s is one of the known shift statuses.
func (s ShiftStatus) Valid() bool {
	switch s {
	case ShiftDraft, ShiftValidated, ShiftPublished:
		return true
	}
	return false
}

// Shift represents a bounded time window at a location that needs a
// number of volunteers.  Spots is the remaining unapproved capacity;
// it is decremented when a commitment is approved and restored when an
// approved commitment is cancelled, never at signup.
//
// Fields:
//
//	ID        – primary key identifier.
//	Title     – short description shown to volunteers.
//	Date      – calendar date in DateLayout.
//	StartTime – wall-clock start in TimeLayout.
//	EndTime   – wall-clock end in TimeLayout (must be after StartTime).
//	Spots     – remaining capacity, never negative.
//	Location  – optional free-form location string.
//	Status    – lifecycle state (draft, validated, published).
//	CreatedBy – username of the manager who created the shift.
type Shift struct {
	ID        uint64      `json:"id"`
	Title     string      `json:"title"`
	Date      string      `json:"date"`
	StartTime string      `json:"start_time"`
	EndTime   string      `json:"end_time"`
	Spots     int         `json:"spots"`
	Location  string      `json:"location,omitempty"`
	Status    ShiftStatus `json:"status"`
	CreatedBy string      `json:"created_by"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Interval returns the absolute start and end instants of the shift in
// UTC.  It fails when the date or time fields are malformed.
func (s *Shift) Interval() (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(DateLayout+" "+TimeLayout, s.Date+" "+s.StartTime, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.ParseInLocation(DateLayout+" "+TimeLayout, s.Date+" "+s.EndTime, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

// Overlaps reports whether two shifts share a date and intersect as
// half-open [start, end) intervals.  Shifts on different days never
// overlap; back-to-back shifts (one ending exactly when the other
// starts) do not overlap either.  Malformed time fields are treated as
// non-overlapping, since validation at creation prevents them.
func (s *Shift) Overlaps(other *Shift) bool {
	if s.Date != other.Date {
		return false
	}
	aStart, aEnd, err := s.Interval()
	if err != nil {
		return false
	}
	bStart, bEnd, err := other.Interval()
	if err != nil {
		return false
	}
	return bStart.Before(aEnd) && aStart.Before(bEnd)
}
