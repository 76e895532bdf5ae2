package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultActor is recorded on entries created by the engine itself.
const DefaultActor = "system"

// Entry is a single immutable audit record. The checksum is a pure
// function of the other four fields; equal inputs always produce an
// equal checksum, which is what makes the trail tamper-evident.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
	Actor     string         `json:"actor"`
	Checksum  string         `json:"checksum"`
}

// NewEntry builds an entry for the given action at the current time.
func NewEntry(action string, details map[string]any) Entry {
	return NewEntryAt(time.Now(), action, details, DefaultActor)
}

// NewEntryAt builds an entry with an explicit timestamp and actor.
func NewEntryAt(ts time.Time, action string, details map[string]any, actor string) Entry {
	e := Entry{
		Timestamp: ts.Format(time.RFC3339Nano),
		Action:    action,
		Details:   details,
		Actor:     actor,
	}
	e.Checksum = checksum(e.Timestamp, e.Action, e.Details, e.Actor)
	return e
}

// checksum returns a truncated hex SHA-256 digest over the entry fields.
// Details are serialized as JSON; Go marshals map keys in sorted order,
// so the serialization is deterministic.
func checksum(timestamp, action string, details map[string]any, actor string) string {
	payload, err := json.Marshal(details)
	if err != nil {
		// Details that cannot be serialized still need a stable digest.
		payload = []byte(fmt.Sprintf("%v", details))
	}
	content := timestamp + action + string(payload) + actor
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

// Log is an instance-scoped, append-only list of audit entries.
// One reconciliation run owns one Log; concurrent runs must each use
// their own instance.
type Log struct {
	entries []Entry
}

// NewLog creates an empty audit log.
func NewLog() *Log {
	return &Log{}
}

// Record appends an entry for the given action.
func (l *Log) Record(action string, details map[string]any) Entry {
	entry := NewEntry(action, details)
	l.entries = append(l.entries, entry)
	return entry
}

// Entries returns a copy of the recorded entries in append order.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of recorded entries.
func (l *Log) Len() int {
	return len(l.entries)
}
