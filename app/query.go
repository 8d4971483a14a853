package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"todo-cli/model"
)

// SortOrder names a task ordering for List.
type SortOrder string

const (
	SortCreated  SortOrder = "created"
	SortDue      SortOrder = "due"
	SortPriority SortOrder = "priority"
)

// noDue sorts tasks without a due date after every dated one.
const noDue = "9999-12-31"

// ParseSort accepts created, due or priority; empty means created.
func ParseSort(s string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortCreated:
		return SortCreated, nil
	case SortDue:
		return SortDue, nil
	case SortPriority:
		return SortPriority, nil
	default:
		return "", fmt.Errorf("%w: %q (use created, due or priority)", ErrInvalidSort, s)
	}
}

// ParseFilter accepts all, pending or done; empty means all.
func ParseFilter(s string) (model.Filter, error) {
	switch model.Filter(strings.ToLower(strings.TrimSpace(s))) {
	case "", model.FilterAll:
		return model.FilterAll, nil
	case model.FilterPending:
		return model.FilterPending, nil
	case model.FilterDone:
		return model.FilterDone, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFilter, s)
	}
}

// Query selects and orders tasks.
type Query struct {
	Status model.Filter
	Tag    string
	// Search matches task text case-insensitively.
	Search string
	Sort   SortOrder
}

// List loads the database and applies q.
func (s *Service) List(ctx context.Context, q Query) ([]model.Task, error) {
	st, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Apply(st.Tasks, q), nil
}

// Apply filters and sorts a copy of tasks.
func Apply(tasks []model.Task, q Query) []model.Task {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	tag := strings.TrimSpace(q.Tag)

	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if !matchesFilter(q.Status, t.Done) {
			continue
		}
		if tag != "" && !t.HasTag(tag) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(t.Text), search) {
			continue
		}
		out = append(out, t.Clone())
	}
	sortTasks(out, q.Sort)
	return out
}

func matchesFilter(filter model.Filter, done bool) bool {
	switch filter {
	case model.FilterPending:
		return !done
	case model.FilterDone:
		return done
	default:
		return true
	}
}

func sortTasks(tasks []model.Task, order SortOrder) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		switch order {
		case SortDue:
			if dueKey(a) != dueKey(b) {
				return dueKey(a) < dueKey(b)
			}
			if a.Priority.Rank() != b.Priority.Rank() {
				return a.Priority.Rank() < b.Priority.Rank()
			}
		case SortPriority:
			if a.Priority.Rank() != b.Priority.Rank() {
				return a.Priority.Rank() < b.Priority.Rank()
			}
			if dueKey(a) != dueKey(b) {
				return dueKey(a) < dueKey(b)
			}
		default:
			if a.CreatedAt != b.CreatedAt {
				return a.CreatedAt < b.CreatedAt
			}
		}
		return a.ID < b.ID
	})
}

func dueKey(t model.Task) string {
	if t.Due == "" {
		return noDue
	}
	return t.Due
}
