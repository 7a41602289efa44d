package models

import (
	"sort"
	"time"
)

// TimeOfDayLayout is the wall-clock format used for declared time windows
const TimeOfDayLayout = "15:04"

// CheckIn is one reservation event covering one or more benches
type CheckIn struct {
	ID           string     `json:"id"`
	Benches      []Bench    `json:"benches"`
	TimeIn       string     `json:"timeIn"`
	TimeOut      string     `json:"timeOut"`
	Timestamp    time.Time  `json:"timestamp"`
	CheckedOut   bool       `json:"checkedOut"`
	CheckOutTime *time.Time `json:"checkOutTime,omitempty"`
}

// IsActive returns true until the check-in has been checked out
func (c *CheckIn) IsActive() bool {
	return !c.CheckedOut
}

// Clone returns a deep copy of the check-in
func (c *CheckIn) Clone() *CheckIn {
	cp := *c
	cp.Benches = make([]Bench, len(c.Benches))
	copy(cp.Benches, c.Benches)
	if c.CheckOutTime != nil {
		t := *c.CheckOutTime
		cp.CheckOutTime = &t
	}
	return &cp
}

// CheckInUpdate is a partial update of a check-in record
type CheckInUpdate struct {
	CheckedOut   *bool
	CheckOutTime *time.Time
}

// Apply copies the set fields of the update onto the check-in
func (u CheckInUpdate) Apply(c *CheckIn) {
	if u.CheckedOut != nil {
		c.CheckedOut = *u.CheckedOut
	}
	if u.CheckOutTime != nil {
		t := *u.CheckOutTime
		c.CheckOutTime = &t
	}
}

// CheckInFilter selects check-ins from the ledger
type CheckInFilter struct {
	// ActiveOnly restricts the result to records that are not checked out
	ActiveOnly bool
}

// Matches reports whether the check-in passes the filter
func (f CheckInFilter) Matches(c *CheckIn) bool {
	return !f.ActiveOnly || c.IsActive()
}

// SortNewestFirst orders check-ins by creation time, newest first, ties broken by id
func SortNewestFirst(checkIns []*CheckIn) {
	sort.SliceStable(checkIns, func(i, j int) bool {
		if checkIns[i].Timestamp.Equal(checkIns[j].Timestamp) {
			return checkIns[i].ID < checkIns[j].ID
		}
		return checkIns[i].Timestamp.After(checkIns[j].Timestamp)
	})
}
