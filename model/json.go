package model

import (
	"bytes"
	"encoding/json"
	"sort"
)

// taskFields fixes the on-disk key order of the known task fields.
type taskFields struct {
	ID        int      `json:"id"`
	Text      string   `json:"text"`
	Done      bool     `json:"done"`
	CreatedAt string   `json:"created_at"`
	DoneAt    string   `json:"done_at"`
	Priority  Priority `json:"priority"`
	Due       string   `json:"due"`
	Tags      []string `json:"tags"`
}

var knownTaskFields = map[string]struct{}{
	"id":         {},
	"text":       {},
	"done":       {},
	"created_at": {},
	"done_at":    {},
	"priority":   {},
	"due":        {},
	"tags":       {},
}

// MarshalJSON writes the known fields in a fixed order followed by any
// preserved extra fields sorted by key.
func (t Task) MarshalJSON() ([]byte, error) {
	f := taskFields{
		ID:        t.ID,
		Text:      t.Text,
		Done:      t.Done,
		CreatedAt: t.CreatedAt,
		DoneAt:    t.DoneAt,
		Priority:  t.Priority,
		Due:       t.Due,
		Tags:      t.Tags,
	}
	if f.Tags == nil {
		f.Tags = []string{}
	}
	data, err := json.Marshal(f)
	if err != nil || len(t.Extra) == 0 {
		return data, err
	}

	keys := make([]string, 0, len(t.Extra))
	for k := range t.Extra {
		if _, known := knownTaskFields[k]; known {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(data[:len(data)-1])
	for _, k := range keys {
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(t.Extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the known fields and keeps everything else in Extra.
func (t *Task) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var f taskFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	var extra map[string]json.RawMessage
	for k, v := range all {
		if _, known := knownTaskFields[k]; known {
			continue
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, v); err != nil {
			return err
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = json.RawMessage(compact.Bytes())
	}

	*t = Task{
		ID:        f.ID,
		Text:      f.Text,
		Done:      f.Done,
		CreatedAt: f.CreatedAt,
		DoneAt:    f.DoneAt,
		Priority:  f.Priority,
		Due:       f.Due,
		Tags:      f.Tags,
		Extra:     extra,
	}
	return nil
}
