package paperlock

import (
	"fmt"
	"time"
)

// Status is the canonical lifecycle state of a document.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusUploaded   Status = "uploaded"
	StatusEncrypted  Status = "encrypted"
	StatusRegistered Status = "registered"
	StatusUnlockable Status = "unlockable"
	StatusReleased   Status = "released"
	StatusArchived   Status = "archived"
)

// statusOrder lists every status in lifecycle order.
var statusOrder = []Status{
	StatusDraft,
	StatusUploaded,
	StatusEncrypted,
	StatusRegistered,
	StatusUnlockable,
	StatusReleased,
	StatusArchived,
}

// transitions is the single authoritative lifecycle table.
// registered -> unlockable is never stored; it is observed at read time.
var transitions = map[Status][]Status{
	StatusDraft:      {StatusUploaded},
	StatusUploaded:   {StatusEncrypted},
	StatusEncrypted:  {StatusRegistered},
	StatusRegistered: {StatusUnlockable},
	StatusUnlockable: {StatusReleased},
	StatusReleased:   {StatusArchived},
}

// ParseStatus converts a stored string to a Status.
func ParseStatus(s string) (Status, error) {
	for _, st := range statusOrder {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status: %q", s)
}

// CanTransition reports whether the table allows s -> to.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Rank returns the position of s in the lifecycle, or -1 if s is unknown.
func (s Status) Rank() int {
	for i, st := range statusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Observe returns the status a reader sees at now. A registered document whose
// unlock time has passed (or that has no unlock time) is observed as unlockable.
func Observe(stored Status, unlockTime *time.Time, now time.Time) Status {
	if stored != StatusRegistered {
		return stored
	}
	if unlockTime == nil || !unlockTime.After(now) {
		return StatusUnlockable
	}
	return StatusRegistered
}

// WorkflowLabel projects a canonical status onto the coarser vocabulary used by
// upload and review screens. It is a view only and is never stored.
func WorkflowLabel(s Status) string {
	switch s {
	case StatusRegistered, StatusUnlockable:
		return "on_chain"
	case StatusReleased:
		return "decrypted"
	default:
		return string(s)
	}
}
