// Package notify delivers issue status changes to the people who reported them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fixithostel/fixit/internal/database"
	"github.com/fixithostel/fixit/internal/utils"
)

// Event types carried by a Notification
const (
	EventIssueStatusChanged = "issue_status_changed"
	EventIssueMerged        = "issue_merged"
	EventIssueUnmerged      = "issue_unmerged"
)

// Notification describes one change worth telling reporters about
type Notification struct {
	Type           string               `json:"type"`
	IssueID        string               `json:"issue_id"`
	MergeID        string               `json:"merge_id,omitempty"`
	Status         database.IssueStatus `json:"status,omitempty"`
	PreviousStatus database.IssueStatus `json:"previous_status,omitempty"`
	Recipients     []string             `json:"recipients"`
	Message        string               `json:"message"`
	ActorID        string               `json:"actor_id,omitempty"`
	Timestamp      time.Time            `json:"timestamp"`
}

// Dispatcher delivers notifications. Implementations must be safe for
// concurrent use.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// DispatcherFunc adapts a function to the Dispatcher interface
type DispatcherFunc func(ctx context.Context, n Notification) error

// Dispatch calls f(ctx, n)
func (f DispatcherFunc) Dispatch(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Multi fans a notification out to several dispatchers. Every dispatcher is
// called even when an earlier one fails; the errors are joined.
type Multi struct {
	dispatchers []Dispatcher
}

// NewMulti creates a dispatcher that forwards to every non-nil dispatcher
func NewMulti(dispatchers ...Dispatcher) *Multi {
	m := &Multi{}
	for _, d := range dispatchers {
		if d != nil {
			m.dispatchers = append(m.dispatchers, d)
		}
	}
	return m
}

// Add appends a dispatcher
func (m *Multi) Add(d Dispatcher) {
	if d != nil {
		m.dispatchers = append(m.dispatchers, d)
	}
}

// Dispatch forwards n to every dispatcher
func (m *Multi) Dispatch(ctx context.Context, n Notification) error {
	var errs []error
	for _, d := range m.dispatchers {
		if err := d.Dispatch(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes notifications to the standard logger. Used when no external
// channel is configured.
type Log struct{}

// Dispatch logs n
func (Log) Dispatch(ctx context.Context, n Notification) error {
	log.Printf("Notification %s for issue %s to %d recipient(s): %s", n.Type, n.IssueID, len(n.Recipients), n.Message)
	return nil
}

// Recorder keeps every notification in memory
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

// Dispatch records n
func (r *Recorder) Dispatch(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

// Sent returns a copy of every recorded notification
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}

// StatusMessage renders the default text for a status change
func StatusMessage(issue *database.Issue, previous database.IssueStatus) string {
	title := utils.TruncateText(issue.Description, 60)
	if previous == "" {
		return fmt.Sprintf("Issue \"%s\" is now %s", title, issue.Status)
	}
	return fmt.Sprintf("Issue \"%s\" moved from %s to %s", title, previous, issue.Status)
}
