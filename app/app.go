// Package app is the contract both front-ends use: one Service per resolved
// database, wrapping the store, its archive and the doctor.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"todo-cli/archive"
	"todo-cli/doctor"
	"todo-cli/model"
	"todo-cli/paths"
	"todo-cli/store"
)

var (
	ErrTaskNotFound    = errors.New("task not found")
	ErrInvalidTask     = errors.New("task text must not be empty")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidDue      = errors.New("invalid due date")
	ErrInvalidTag      = errors.New("tag must not be empty")
	ErrInvalidSort     = errors.New("invalid sort order")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrNoTaskIDs       = errors.New("no task ids given")
)

// Service holds the storage collaborators for one database.
type Service struct {
	resolution paths.Resolution
	store      *store.Store
	archive    *archive.Archive
	doctor     *doctor.Doctor
	logger     *log.Logger
	now        func() time.Time
}

// NewService creates a service for the resolved database path.
func NewService(res paths.Resolution, opts store.Options) *Service {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		resolution: res,
		store:      store.New(res.Path, opts),
		archive:    archive.New(res.Path, opts),
		doctor:     doctor.New(res.Path, opts),
		logger:     opts.Logger,
		now:        opts.Now,
	}
}

// ResolvePath returns the database path and the layer it came from.
func (s *Service) ResolvePath() paths.Resolution {
	return s.resolution
}

// Path returns the database path.
func (s *Service) Path() string {
	return s.resolution.Path
}

// ArchivePath returns the archive file path.
func (s *Service) ArchivePath() string {
	return s.archive.Path()
}

// Load returns the current store, creating or healing the file as needed.
func (s *Service) Load(ctx context.Context) (model.Store, error) {
	return s.store.Load(ctx)
}

// Mutate applies fn to a freshly read store under the lock and saves it.
func (s *Service) Mutate(ctx context.Context, fn func(*model.Store) error) (model.Store, error) {
	return s.store.Mutate(ctx, fn)
}

// Check reports on the database without changing it.
func (s *Service) Check() doctor.Report {
	return s.doctor.Check()
}

// Repair heals the database and, with allowRestore, restores a backup.
func (s *Service) Repair(ctx context.Context, allowRestore bool) (doctor.Report, error) {
	return s.doctor.Repair(ctx, allowRestore)
}

// RemoveResult is the outcome of a delete. ArchiveErr is set when the
// removed tasks could not be archived; the delete itself still happened.
type RemoveResult struct {
	Store      model.Store
	Removed    []model.Task
	ArchiveErr error
}

// ArchiveAndRemove deletes the tasks with ids after appending them to the
// archive. Any unknown id aborts the whole operation.
func (s *Service) ArchiveAndRemove(ctx context.Context, ids []int) (RemoveResult, error) {
	if len(ids) == 0 {
		return RemoveResult{}, ErrNoTaskIDs
	}
	wanted := make(map[int]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	return s.removeWhere(ctx, func(st *model.Store) error {
		var missing []string
		for _, id := range ids {
			if st.Index(id) < 0 {
				missing = append(missing, fmt.Sprintf("#%d", id))
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, strings.Join(missing, ", "))
		}
		return nil
	}, func(t model.Task) bool {
		return wanted[t.ID]
	})
}

// ClearDone archives and removes every done task.
func (s *Service) ClearDone(ctx context.Context) (RemoveResult, error) {
	return s.removeWhere(ctx, nil, func(t model.Task) bool {
		return t.Done
	})
}

func (s *Service) removeWhere(ctx context.Context, check func(*model.Store) error, match func(model.Task) bool) (RemoveResult, error) {
	var res RemoveResult
	st, err := s.store.Mutate(ctx, func(st *model.Store) error {
		if check != nil {
			if err := check(st); err != nil {
				return err
			}
		}

		kept := make([]model.Task, 0, len(st.Tasks))
		var removed []model.Task
		for _, t := range st.Tasks {
			if match(t) {
				removed = append(removed, t)
				continue
			}
			kept = append(kept, t)
		}

		if _, err := s.archive.Append(ctx, removed); err != nil {
			s.logger.Warn("archive append failed, removing anyway", "archive", s.archive.Path(), "tasks", len(removed), "err", err)
			res.ArchiveErr = err
		}
		st.Tasks = kept
		res.Removed = removed
		return nil
	})
	if err != nil {
		return RemoveResult{}, err
	}
	res.Store = st
	return res, nil
}

// Archived returns the archive contents.
func (s *Service) Archived() (model.Store, error) {
	return s.archive.Load()
}

// RestoreArchived copies the most recently archived task with id back into
// the database under a fresh id. The archive is left unchanged.
func (s *Service) RestoreArchived(ctx context.Context, id int) (model.Task, error) {
	arch, err := s.archive.Load()
	if err != nil {
		return model.Task{}, err
	}
	found := -1
	for i, t := range arch.Tasks {
		if t.ID == id {
			found = i
		}
	}
	if found < 0 {
		return model.Task{}, fmt.Errorf("%w: #%d is not archived", ErrTaskNotFound, id)
	}

	var out model.Task
	_, err = s.store.Mutate(ctx, func(st *model.Store) error {
		t := arch.Tasks[found].Clone()
		t.ID = st.NextID
		st.NextID++
		st.Tasks = append(st.Tasks, t)
		out = t
		return nil
	})
	return out, err
}
