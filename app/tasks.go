package app

import (
	"context"
	"fmt"
	"strings"

	"todo-cli/model"
)

// NewTask holds the fields accepted when adding a task. Due must already be
// a YYYY-MM-DD date or empty; see ParseDue.
type NewTask struct {
	Text     string
	Priority model.Priority
	Due      string
	Tags     []string
}

func (s *Service) AddTask(ctx context.Context, in NewTask) (model.Task, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return model.Task{}, ErrInvalidTask
	}
	if !in.Priority.Valid() {
		return model.Task{}, fmt.Errorf("%w: %q", ErrInvalidPriority, in.Priority)
	}
	if in.Due != "" && !model.ValidDate(in.Due) {
		return model.Task{}, fmt.Errorf("%w: %q", ErrInvalidDue, in.Due)
	}

	var out model.Task
	_, err := s.store.Mutate(ctx, func(st *model.Store) error {
		t := model.Task{
			ID:        st.NextID,
			Text:      text,
			CreatedAt: model.Timestamp(s.now()),
			Priority:  in.Priority,
			Due:       in.Due,
			Tags:      model.NormalizeTags(in.Tags),
		}
		st.NextID++
		st.Tasks = append(st.Tasks, t)
		out = t
		return nil
	})
	return out, err
}

// SetDone marks the tasks done (stamping done_at) or pending (clearing it).
// Any unknown id leaves every task unchanged.
func (s *Service) SetDone(ctx context.Context, ids []int, done bool) ([]model.Task, error) {
	if len(ids) == 0 {
		return nil, ErrNoTaskIDs
	}
	var out []model.Task
	_, err := s.store.Mutate(ctx, func(st *model.Store) error {
		idx := make([]int, 0, len(ids))
		for _, id := range ids {
			i := st.Index(id)
			if i < 0 {
				return fmt.Errorf("%w: #%d", ErrTaskNotFound, id)
			}
			idx = append(idx, i)
		}
		stamp := model.Timestamp(s.now())
		for _, i := range idx {
			t := &st.Tasks[i]
			t.Done = done
			t.DoneAt = ""
			if done {
				t.DoneAt = stamp
			}
			out = append(out, t.Clone())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) EditText(ctx context.Context, id int, text string) (model.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Task{}, ErrInvalidTask
	}
	return s.updateTask(ctx, id, func(t *model.Task) error {
		t.Text = text
		return nil
	})
}

func (s *Service) SetPriority(ctx context.Context, id int, p model.Priority) (model.Task, error) {
	if !p.Valid() {
		return model.Task{}, fmt.Errorf("%w: %q", ErrInvalidPriority, p)
	}
	return s.updateTask(ctx, id, func(t *model.Task) error {
		t.Priority = p
		return nil
	})
}

// SetDue sets the due date; an empty due clears it.
func (s *Service) SetDue(ctx context.Context, id int, due string) (model.Task, error) {
	if due != "" && !model.ValidDate(due) {
		return model.Task{}, fmt.Errorf("%w: %q", ErrInvalidDue, due)
	}
	return s.updateTask(ctx, id, func(t *model.Task) error {
		t.Due = due
		return nil
	})
}

func (s *Service) AddTag(ctx context.Context, id int, tag string) (model.Task, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return model.Task{}, ErrInvalidTag
	}
	return s.updateTask(ctx, id, func(t *model.Task) error {
		t.Tags = model.NormalizeTags(append(t.Tags, tag))
		return nil
	})
}

// RemoveTag drops tag from the task; a missing tag is not an error.
func (s *Service) RemoveTag(ctx context.Context, id int, tag string) (model.Task, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return model.Task{}, ErrInvalidTag
	}
	return s.updateTask(ctx, id, func(t *model.Task) error {
		kept := make([]string, 0, len(t.Tags))
		for _, existing := range t.Tags {
			if existing != tag {
				kept = append(kept, existing)
			}
		}
		t.Tags = model.NormalizeTags(kept)
		return nil
	})
}

func (s *Service) updateTask(ctx context.Context, id int, fn func(*model.Task) error) (model.Task, error) {
	var out model.Task
	_, err := s.store.Mutate(ctx, func(st *model.Store) error {
		i := st.Index(id)
		if i < 0 {
			return fmt.Errorf("%w: #%d", ErrTaskNotFound, id)
		}
		if err := fn(&st.Tasks[i]); err != nil {
			return err
		}
		out = st.Tasks[i].Clone()
		return nil
	})
	return out, err
}
