package client

import (
	"sync"

	"github.com/studentos/chat_backend/models"
)

// Entry is one message in a room's ordered view. A pending entry is an
// optimistic render awaiting server confirmation, identified by its
// correlation token.
type Entry struct {
	Message models.Message
	TempID  string
	Pending bool
}

// Timeline is the ordered per-room message list with the reconciliation
// rules of the send path: pending entries are replaced in place on
// confirmation, foreign messages are appended with dedup by server ID, and
// failed sends are removed.
type Timeline struct {
	mu      sync.Mutex
	entries []Entry
}

func NewTimeline() *Timeline {
	return &Timeline{}
}

// Load replaces the timeline with fetched history.
func (t *Timeline) Load(messages []models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = make([]Entry, 0, len(messages))
	for _, m := range messages {
		t.entries = append(t.entries, Entry{Message: m})
	}
}

// AppendPending adds an optimistic entry at the end of the list.
func (t *Timeline) AppendPending(m models.Message, tempID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, Entry{Message: m, TempID: tempID, Pending: true})
}

// Confirm reconciles a server-confirmed message. If its correlation token
// matches a pending entry, that entry is replaced in place, preserving list
// position. Otherwise the message is appended unless an entry with the same
// server ID is already present.
func (t *Timeline) Confirm(m models.Message) {
	tempID := string(m.TempID)
	m.TempID = nil

	t.mu.Lock()
	defer t.mu.Unlock()

	if tempID != "" {
		for i := range t.entries {
			if t.entries[i].Pending && t.entries[i].TempID == tempID {
				t.entries[i] = Entry{Message: m}
				return
			}
		}
	}
	for i := range t.entries {
		if !t.entries[i].Pending && t.entries[i].Message.ID == m.ID {
			return
		}
	}
	t.entries = append(t.entries, Entry{Message: m})
}

// Fail removes the pending entry with the given correlation token. It
// reports whether an entry was removed.
func (t *Timeline) Fail(tempID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.entries {
		if t.entries[i].Pending && t.entries[i].TempID == tempID {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Entries returns a snapshot of the ordered list.
func (t *Timeline) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
