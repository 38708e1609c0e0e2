package engine

import (
	"brainapi/internal/models"
	"sync"
	"time"
)

// StatusUpdate carries the flags to change; nil fields are left as they are.
type StatusUpdate struct {
	Fetched *bool
	Ready   *bool
	InUse   *bool
}

// Flag returns a pointer to b, for building a StatusUpdate.
func Flag(b bool) *bool { return &b }

// StatusTracker owns the lifecycle flags. It is locked independently of the
// DatasetStore.
type StatusTracker struct {
	mu     sync.Mutex
	status models.Status
	now    func() time.Time
}

// NewStatusTracker starts with every flag false, stamped with now().
// A nil now uses time.Now.
func NewStatusTracker(now func() time.Time) *StatusTracker {
	if now == nil {
		now = time.Now
	}
	return &StatusTracker{
		status: models.Status{LastUpdated: now()},
		now:    now,
	}
}

// Update merges the supplied flags and stamps LastUpdated.
// The stamp never moves backwards, even if the clock does.
func (t *StatusTracker) Update(u StatusUpdate) models.Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	if u.Fetched != nil {
		t.status.Fetched = *u.Fetched
	}
	if u.Ready != nil {
		t.status.Ready = *u.Ready
	}
	if u.InUse != nil {
		t.status.InUse = *u.InUse
	}

	ts := t.now()
	if ts.Before(t.status.LastUpdated) {
		ts = t.status.LastUpdated
	}
	t.status.LastUpdated = ts
	return t.status
}

// Read returns a copy of the current status.
func (t *StatusTracker) Read() models.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}
