package session

import "time"

// ActivityCapacity is the number of manual triggers kept in the activity log.
const ActivityCapacity = 5

// ActivityEntry is one successful manual trigger.
type ActivityEntry struct {
	EffectID string
	At       time.Time
}

// ActivityLog keeps the most recent manual triggers, newest first. It is
// in-memory only and not safe for concurrent use; Panel guards it.
type ActivityLog struct {
	entries  []ActivityEntry
	capacity int
}

// NewActivityLog returns an empty log holding at most capacity entries.
func NewActivityLog(capacity int) *ActivityLog {
	if capacity <= 0 {
		capacity = ActivityCapacity
	}
	return &ActivityLog{capacity: capacity}
}

// Record inserts id at the front, then drops whatever exceeds the capacity.
func (l *ActivityLog) Record(id string, at time.Time) {
	l.entries = append([]ActivityEntry{{EffectID: id, At: at}}, l.entries...)
	if len(l.entries) > l.capacity {
		l.entries = l.entries[:l.capacity]
	}
}

// Entries returns a copy of the log, newest first.
func (l *ActivityLog) Entries() []ActivityEntry {
	out := make([]ActivityEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// IDs returns the effect ids in the log, newest first.
func (l *ActivityLog) IDs() []string {
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.EffectID
	}
	return out
}

// Len returns the number of entries.
func (l *ActivityLog) Len() int { return len(l.entries) }
