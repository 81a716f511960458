// Package timeline derives the display timeline of an issue from its status
// history. Everything here is a pure function of the input history.
package timeline

import (
	"math"
	"sort"
	"time"

	"github.com/fixithostel/fixit/internal/database"
)

// CanonicalStatuses is the fixed progression shown on every timeline
var CanonicalStatuses = []database.IssueStatus{
	database.IssueStatusReported,
	database.IssueStatusAssigned,
	database.IssueStatusInProgress,
	database.IssueStatusResolved,
	database.IssueStatusClosed,
}

// Step is one canonical status on the timeline
type Step struct {
	Status     database.IssueStatus `json:"status"`
	Completed  bool                 `json:"completed"`
	Timestamp  *time.Time           `json:"timestamp,omitempty"`
	AssignedTo string               `json:"assigned_to,omitempty"`
	Remarks    string               `json:"remarks,omitempty"`
}

// Summary aggregates the history. DurationHours is nil with fewer than two entries.
type Summary struct {
	TotalUpdates  int                  `json:"total_updates"`
	CurrentStatus database.IssueStatus `json:"current_status"`
	DurationHours *int                 `json:"duration_hours,omitempty"`
}

// Timeline is the display-ready progression of an issue
type Timeline struct {
	Steps   []Step   `json:"steps"`
	Summary *Summary `json:"summary,omitempty"`
}

// Sorted returns a copy of history ordered by timestamp ascending. Entries
// with equal timestamps keep their input order.
func Sorted(history []database.StatusHistoryEntry) []database.StatusHistoryEntry {
	sorted := make([]database.StatusHistoryEntry, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// Build produces the timeline for history. A canonical step is completed when
// its status appears anywhere in the history; it is not a progression check,
// so a later step can be completed while an earlier one is pending. Statuses
// outside the canonical list only show up as the current status.
func Build(history []database.StatusHistoryEntry) Timeline {
	sorted := Sorted(history)

	// Last write wins, so each step carries its most recent matching entry.
	latest := make(map[database.IssueStatus]database.StatusHistoryEntry, len(CanonicalStatuses))
	for _, entry := range sorted {
		latest[entry.Status] = entry
	}

	steps := make([]Step, 0, len(CanonicalStatuses))
	for _, status := range CanonicalStatuses {
		step := Step{Status: status}
		if entry, ok := latest[status]; ok {
			ts := entry.Timestamp
			step.Completed = true
			step.Timestamp = &ts
			step.AssignedTo = entry.AssignedTo
			step.Remarks = entry.Remarks
		}
		steps = append(steps, step)
	}

	tl := Timeline{Steps: steps}
	if len(sorted) == 0 {
		return tl
	}

	first, last := sorted[0], sorted[len(sorted)-1]
	tl.Summary = &Summary{
		TotalUpdates:  len(sorted),
		CurrentStatus: last.Status,
	}
	if len(sorted) >= 2 {
		hours := ElapsedHours(first.Timestamp, last.Timestamp)
		tl.Summary.DurationHours = &hours
	}
	return tl
}

// CurrentStatus returns the status of the chronologically last entry, or ""
// for an empty history.
func CurrentStatus(history []database.StatusHistoryEntry) database.IssueStatus {
	if len(history) == 0 {
		return ""
	}
	sorted := Sorted(history)
	return sorted[len(sorted)-1].Status
}

// ElapsedHours returns the whole hours between from and to, rounded up
func ElapsedHours(from, to time.Time) int {
	return int(math.Ceil(to.Sub(from).Hours()))
}

// FirstReached returns the timestamp of the earliest entry with status, if any
func FirstReached(history []database.StatusHistoryEntry, status database.IssueStatus) (time.Time, bool) {
	for _, entry := range Sorted(history) {
		if entry.Status == status {
			return entry.Timestamp, true
		}
	}
	return time.Time{}, false
}
