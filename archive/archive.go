// Package archive keeps tasks removed from the database in a sibling file
// with the same format, so deletions can be undone.
package archive

import (
	"bytes"
	"context"
	"encoding/json"

	"todo-cli/model"
	"todo-cli/paths"
	"todo-cli/store"
)

// Archive appends removed tasks to todos.archive.json next to the database.
type Archive struct {
	st *store.Store
}

// New returns the archive belonging to dbPath. The archive has its own lock,
// tolerates repeated ids and keeps no backups.
func New(dbPath string, opts store.Options) *Archive {
	opts.AllowDuplicateIDs = true
	opts.NoBackups = true
	return &Archive{st: store.New(paths.ArchivePath(dbPath), opts)}
}

// Path returns the archive file path.
func (a *Archive) Path() string {
	return a.st.Path()
}

// Append adds tasks to the archive and returns how many were new. A task
// identical to one already archived is skipped, so retrying a failed delete
// does not duplicate entries. A corrupt archive is reported and left as is.
func (a *Archive) Append(ctx context.Context, tasks []model.Task) (int, error) {
	if len(tasks) == 0 {
		return 0, nil
	}

	added := 0
	_, err := a.st.Mutate(ctx, func(st *model.Store) error {
		existing := make([][]byte, 0, len(st.Tasks))
		for _, t := range st.Tasks {
			data, err := json.Marshal(t)
			if err != nil {
				return err
			}
			existing = append(existing, data)
		}

		for _, t := range tasks {
			t = t.Clone()
			t.Tags = model.NormalizeTags(t.Tags)
			data, err := json.Marshal(t)
			if err != nil {
				return err
			}
			if containsBytes(existing, data) {
				continue
			}
			existing = append(existing, data)
			st.Tasks = append(st.Tasks, t)
			added++
		}

		if max := st.MaxID(); st.NextID <= max {
			st.NextID = max + 1
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// Load returns the archived tasks without locking or creating the file.
func (a *Archive) Load() (model.Store, error) {
	return a.st.Read()
}

func containsBytes(list [][]byte, b []byte) bool {
	for _, item := range list {
		if bytes.Equal(item, b) {
			return true
		}
	}
	return false
}
