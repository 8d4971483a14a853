package model

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// SchemaVersion is the only on-disk store version this code understands.
const SchemaVersion = 1

// Filter represents how tasks should be shown.
type Filter string

const (
	FilterAll     Filter = "all"
	FilterPending Filter = "pending"
	FilterDone    Filter = "done"
)

// Priority is the task priority as stored on disk.
type Priority string

const (
	PriorityUnset Priority = ""
	PriorityLow   Priority = "low"
	PriorityMed   Priority = "med"
	PriorityHigh  Priority = "high"
)

// Valid reports whether p is one of the enumerated priorities or unset.
func (p Priority) Valid() bool {
	switch p {
	case PriorityUnset, PriorityLow, PriorityMed, PriorityHigh:
		return true
	default:
		return false
	}
}

// Rank orders priorities high first; unset sorts last.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMed:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

const (
	// TimestampLayout is used for created_at and done_at written by this module.
	TimestampLayout = "2006-01-02T15:04:05-07:00"
	// DateLayout is the due date format.
	DateLayout = "2006-01-02"
)

// Task is an individual todo item.
//
// Extra holds fields found on disk that this version does not know about.
// They are written back unchanged after the known fields.
type Task struct {
	ID        int
	Text      string
	Done      bool
	CreatedAt string
	DoneAt    string
	Priority  Priority
	Due       string
	Tags      []string
	Extra     map[string]json.RawMessage
}

// Store is the full persisted container.
type Store struct {
	Version int    `json:"version"`
	NextID  int    `json:"next_id"`
	Tasks   []Task `json:"tasks"`
}

// NewStore returns an initialized empty store.
func NewStore() Store {
	return Store{
		Version: SchemaVersion,
		NextID:  1,
		Tasks:   []Task{},
	}
}

// MaxID returns the largest task id, or 0 for an empty store.
func (s *Store) MaxID() int {
	max := 0
	for _, t := range s.Tasks {
		if t.ID > max {
			max = t.ID
		}
	}
	return max
}

// Index returns the position of the task with id, or -1.
func (s *Store) Index(id int) int {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the store.
func (s Store) Clone() Store {
	out := s
	out.Tasks = make([]Task, len(s.Tasks))
	for i, t := range s.Tasks {
		out.Tasks[i] = t.Clone()
	}
	return out
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	out := t
	if t.Tags != nil {
		out.Tags = make([]string, len(t.Tags))
		copy(out.Tags, t.Tags)
	}
	if t.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(t.Extra))
		for k, v := range t.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// HasTag reports whether the task carries tag (case-sensitive).
func (t Task) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}

// NormalizeTags trims, de-duplicates and sorts tags. It never returns nil.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Timestamp formats t for created_at/done_at.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts RFC 3339 timestamps with or without fractional seconds.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// ValidDate reports whether s is a calendar date in YYYY-MM-DD form.
func ValidDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
