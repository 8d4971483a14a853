package store

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"todo-cli/model"
)

//go:embed schema.json
var tasksSchemaJSON string

const tasksSchemaURL = "https://todo-cli.dev/schema/tasks.json"

var (
	schemaOnce  sync.Once
	tasksSchema *jsonschema.Schema
	schemaErr   error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(tasksSchemaURL, strings.NewReader(tasksSchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add tasks schema: %w", err)
			return
		}
		tasksSchema, schemaErr = compiler.Compile(tasksSchemaURL)
	})
	return tasksSchema, schemaErr
}

// DecodeOptions tweaks Decode for the different files sharing the format.
type DecodeOptions struct {
	// AllowDuplicateIDs accepts repeated task ids (the archive keeps
	// every version of a task it was handed).
	AllowDuplicateIDs bool
	// Now stamps done_at on done tasks that lack one and have no created_at.
	Now func() time.Time
}

// Decoded is a validated store plus the repairs applied while reading it.
// A non-empty Fixes means the bytes on disk differ from Store and should be
// rewritten.
type Decoded struct {
	Store model.Store
	Fixes []string
}

type rawStore struct {
	Version json.RawMessage `json:"version"`
	NextID  json.RawMessage `json:"next_id"`
	Tasks   json.RawMessage `json:"tasks"`
}

type intKind int

const (
	intMissing intKind = iota
	intNumber
	intNumericString
	intInvalid
)

// Decode parses a store file. Unfixable content yields a *CorruptError, a
// newer schema a *VersionError. Safe, deterministic repairs are applied in
// memory and listed in Decoded.Fixes.
func Decode(data []byte, opts DecodeOptions) (Decoded, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Decoded{}, corrupt("file is empty")
	}

	var out Decoded
	var raw rawStore
	switch trimmed[0] {
	case '[':
		raw.Tasks = json.RawMessage(trimmed)
		out.Fixes = append(out.Fixes, "migrated legacy task array to versioned store")
	case '{':
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return Decoded{}, corrupt(fmt.Sprintf("invalid JSON: %v", err))
		}
		version, kind := parseInt(raw.Version)
		if (kind == intNumber || kind == intNumericString) && version > model.SchemaVersion {
			return Decoded{}, &VersionError{Version: version}
		}
		if kind != intNumber || version != model.SchemaVersion {
			out.Fixes = append(out.Fixes, fmt.Sprintf("version %s coerced to %d", describeRaw(raw.Version), model.SchemaVersion))
		}
	default:
		if !json.Valid(trimmed) {
			return Decoded{}, corrupt("invalid JSON")
		}
		return Decoded{}, corrupt("top-level value must be an object")
	}

	tasks, err := decodeTasks(raw.Tasks)
	if err != nil {
		return Decoded{}, err
	}
	if isAbsent(raw.Tasks) && trimmed[0] == '{' {
		out.Fixes = append(out.Fixes, "missing task list initialized empty")
	}

	if reasons := checkTasks(tasks, opts.AllowDuplicateIDs); len(reasons) > 0 {
		return Decoded{}, corrupt(reasons...)
	}
	out.Fixes = append(out.Fixes, healTasks(tasks, opts.Now)...)

	st := model.Store{Version: model.SchemaVersion, Tasks: tasks}
	maxID := st.MaxID()
	nextID, kind := parseInt(raw.NextID)
	if kind == intNumber && nextID > maxID && nextID >= 1 {
		st.NextID = nextID
	} else {
		st.NextID = maxID + 1
		out.Fixes = append(out.Fixes, fmt.Sprintf("next_id %s recomputed as %d", describeRaw(raw.NextID), st.NextID))
	}

	out.Store = st
	return out, nil
}

func decodeTasks(raw json.RawMessage) ([]model.Task, error) {
	if isAbsent(raw) {
		return []model.Task{}, nil
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, corrupt(fmt.Sprintf("invalid tasks: %v", err))
	}
	schema, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		ve, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return nil, corrupt(err.Error())
		}
		var reasons []string
		collectSchemaErrors(&reasons, ve)
		return nil, corrupt(reasons...)
	}

	var tasks []model.Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, corrupt(fmt.Sprintf("invalid tasks: %v", err))
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

// checkTasks reports violations that cannot be repaired safely.
func checkTasks(tasks []model.Task, allowDuplicates bool) []string {
	var reasons []string
	seen := make(map[int]int, len(tasks))
	for i, t := range tasks {
		if t.ID < 1 {
			reasons = append(reasons, fmt.Sprintf("tasks[%d].id: %d is not positive", i, t.ID))
		}
		if prev, dup := seen[t.ID]; dup {
			if !allowDuplicates {
				reasons = append(reasons, fmt.Sprintf("tasks[%d].id: %d duplicates tasks[%d]", i, t.ID, prev))
			}
		} else {
			seen[t.ID] = i
		}
		if !t.Priority.Valid() {
			reasons = append(reasons, fmt.Sprintf("tasks[%d].priority: unknown value %q", i, t.Priority))
		}
		if t.Due != "" && !model.ValidDate(t.Due) {
			reasons = append(reasons, fmt.Sprintf("tasks[%d].due: %q is not a YYYY-MM-DD date", i, t.Due))
		}
	}
	return reasons
}

func healTasks(tasks []model.Task, now func() time.Time) []string {
	var fixes []string
	for i := range tasks {
		t := &tasks[i]
		switch {
		case t.Done && t.DoneAt == "":
			t.DoneAt = t.CreatedAt
			if t.DoneAt == "" {
				t.DoneAt = model.Timestamp(now())
			}
			fixes = append(fixes, fmt.Sprintf("task %d: done without done_at, set to %s", t.ID, t.DoneAt))
		case !t.Done && t.DoneAt != "":
			t.DoneAt = ""
			fixes = append(fixes, fmt.Sprintf("task %d: pending task had done_at, cleared", t.ID))
		}

		normalized := model.NormalizeTags(t.Tags)
		if t.Tags != nil && !equalStrings(t.Tags, normalized) {
			fixes = append(fixes, fmt.Sprintf("task %d: tags normalized", t.ID))
		}
		t.Tags = normalized
	}
	return fixes
}

// Validate returns every invariant st breaks. An empty result means st can
// be written.
func Validate(st model.Store, allowDuplicates bool) []string {
	var reasons []string
	if st.Version != model.SchemaVersion {
		reasons = append(reasons, fmt.Sprintf("version %d is not %d", st.Version, model.SchemaVersion))
	}
	reasons = append(reasons, checkTasks(st.Tasks, allowDuplicates)...)
	if max := st.MaxID(); st.NextID <= max || st.NextID < 1 {
		reasons = append(reasons, fmt.Sprintf("next_id %d must exceed max id %d", st.NextID, max))
	}
	for i, t := range st.Tasks {
		if t.Done != (t.DoneAt != "") {
			reasons = append(reasons, fmt.Sprintf("tasks[%d]: done=%t with done_at %q", i, t.Done, t.DoneAt))
		}
	}
	return reasons
}

// Encode serializes st deterministically: two-space indent, tags sorted,
// trailing newline.
func Encode(st model.Store) ([]byte, error) {
	out := st.Clone()
	out.Version = model.SchemaVersion
	for i := range out.Tasks {
		out.Tasks[i].Tags = model.NormalizeTags(out.Tasks[i].Tags)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func parseInt(raw json.RawMessage) (int, intKind) {
	if isAbsent(raw) {
		return 0, intMissing
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
			return 0, intInvalid
		}
		return int(f), intNumber
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, intNumericString
		}
	}
	return 0, intInvalid
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func describeRaw(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "(missing)"
	}
	return string(raw)
}

func collectSchemaErrors(reasons *[]string, err *jsonschema.ValidationError) {
	if err == nil {
		return
	}
	if len(err.Causes) == 0 {
		*reasons = append(*reasons, fmt.Sprintf("%s: %s", jsonPointerToPath("tasks", err.InstanceLocation), err.Message))
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(reasons, cause)
	}
}

// jsonPointerToPath turns "/2/priority" into "tasks[2].priority".
func jsonPointerToPath(root, ptr string) string {
	ptr = strings.TrimPrefix(ptr, "#")
	ptr = strings.TrimPrefix(ptr, "/")
	path := root
	if ptr == "" {
		return path
	}
	for _, part := range strings.Split(ptr, "/") {
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		if part == "" {
			continue
		}
		if idx, err := strconv.Atoi(part); err == nil {
			path += fmt.Sprintf("[%d]", idx)
			continue
		}
		path += "." + part
	}
	return path
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
