package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"todo-cli/model"
	"todo-cli/paths"
	"todo-cli/store"
)

var fixedNow = time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	path := filepath.Join(t.TempDir(), "todos.json")
	return NewService(paths.Resolution{Path: path, Source: paths.SourceOverride}, store.Options{
		LockTimeout: 5 * time.Second,
		Now:         func() time.Time { return fixedNow },
	})
}

func mustAdd(t *testing.T, svc *Service, text string) model.Task {
	t.Helper()
	tk, err := svc.AddTask(context.Background(), NewTask{Text: text})
	if err != nil {
		t.Fatalf("add task failed: %v", err)
	}
	return tk
}

func TestAddTaskValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tk, err := svc.AddTask(ctx, NewTask{Text: "  Fix retries  ", Priority: model.PriorityHigh, Due: "2026-03-01", Tags: []string{"infra", "backend", "infra"}})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if tk.ID != 1 || tk.Text != "Fix retries" || tk.CreatedAt != model.Timestamp(fixedNow) {
		t.Fatalf("unexpected task: %+v", tk)
	}
	if len(tk.Tags) != 2 || tk.Tags[0] != "backend" {
		t.Fatalf("expected normalized tags, got %v", tk.Tags)
	}

	if _, err := svc.AddTask(ctx, NewTask{Text: "   "}); !errors.Is(err, ErrInvalidTask) {
		t.Fatalf("expected ErrInvalidTask, got %v", err)
	}
	if _, err := svc.AddTask(ctx, NewTask{Text: "x", Priority: "urgent"}); !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("expected ErrInvalidPriority, got %v", err)
	}
	if _, err := svc.AddTask(ctx, NewTask{Text: "x", Due: "2026-02-30"}); !errors.Is(err, ErrInvalidDue) {
		t.Fatalf("expected ErrInvalidDue, got %v", err)
	}
}

func TestSetDoneStampsAndClears(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	a := mustAdd(t, svc, "A")
	b := mustAdd(t, svc, "B")

	done, err := svc.SetDone(ctx, []int{a.ID, b.ID}, true)
	if err != nil {
		t.Fatalf("set done failed: %v", err)
	}
	for _, tk := range done {
		if !tk.Done || tk.DoneAt == "" {
			t.Fatalf("expected done with done_at, got %+v", tk)
		}
	}

	undone, err := svc.SetDone(ctx, []int{a.ID}, false)
	if err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	if undone[0].Done || undone[0].DoneAt != "" {
		t.Fatalf("expected pending without done_at, got %+v", undone[0])
	}
}

func TestSetDoneUnknownIDChangesNothing(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	a := mustAdd(t, svc, "A")

	if _, err := svc.SetDone(ctx, []int{a.ID, 99}, true); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	st, err := svc.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if st.Tasks[0].Done {
		t.Fatalf("task changed despite unknown id")
	}
}

func TestUpdateOperations(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	tk := mustAdd(t, svc, "Pay bills")

	if _, err := svc.EditText(ctx, tk.ID, "Pay all bills"); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if _, err := svc.SetPriority(ctx, tk.ID, model.PriorityMed); err != nil {
		t.Fatalf("set priority failed: %v", err)
	}
	if _, err := svc.SetDue(ctx, tk.ID, "2026-04-01"); err != nil {
		t.Fatalf("set due failed: %v", err)
	}
	if _, err := svc.AddTag(ctx, tk.ID, "home"); err != nil {
		t.Fatalf("add tag failed: %v", err)
	}
	if _, err := svc.AddTag(ctx, tk.ID, "admin"); err != nil {
		t.Fatalf("add tag failed: %v", err)
	}
	got, err := svc.RemoveTag(ctx, tk.ID, "home")
	if err != nil {
		t.Fatalf("remove tag failed: %v", err)
	}

	if got.Text != "Pay all bills" || got.Priority != model.PriorityMed || got.Due != "2026-04-01" {
		t.Fatalf("unexpected task after updates: %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "admin" {
		t.Fatalf("unexpected tags: %v", got.Tags)
	}

	cleared, err := svc.SetDue(ctx, tk.ID, "")
	if err != nil || cleared.Due != "" {
		t.Fatalf("clearing due failed: %v %+v", err, cleared)
	}

	if _, err := svc.EditText(ctx, 42, "x"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if _, err := svc.SetPriority(ctx, tk.ID, "p1"); !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("expected ErrInvalidPriority, got %v", err)
	}
	if _, err := svc.AddTag(ctx, tk.ID, " "); !errors.Is(err, ErrInvalidTag) {
		t.Fatalf("expected ErrInvalidTag, got %v", err)
	}
}

func TestArchiveAndRemoveArchivesFirst(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	a := mustAdd(t, svc, "A")
	b := mustAdd(t, svc, "B")

	res, err := svc.ArchiveAndRemove(ctx, []int{a.ID})
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if res.ArchiveErr != nil {
		t.Fatalf("unexpected archive error: %v", res.ArchiveErr)
	}
	if len(res.Store.Tasks) != 1 || res.Store.Tasks[0].ID != b.ID {
		t.Fatalf("unexpected live tasks: %+v", res.Store.Tasks)
	}

	arch, err := svc.Archived()
	if err != nil {
		t.Fatalf("load archive failed: %v", err)
	}
	if len(arch.Tasks) != 1 || arch.Tasks[0].Text != "A" {
		t.Fatalf("unexpected archive: %+v", arch.Tasks)
	}

	c := mustAdd(t, svc, "C")
	if c.ID != 3 {
		t.Fatalf("removed id must not be reused, got %d", c.ID)
	}
}

func TestArchiveAndRemoveUnknownIDChangesNothing(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	a := mustAdd(t, svc, "A")

	if _, err := svc.ArchiveAndRemove(ctx, []int{a.ID, 7}); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	st, err := svc.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(st.Tasks) != 1 {
		t.Fatalf("task removed despite unknown id")
	}
	if _, err := os.Stat(svc.ArchivePath()); !os.IsNotExist(err) {
		t.Fatalf("archive must not be written when the delete is rejected")
	}
}

func TestArchiveFailureStillDeletes(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	a := mustAdd(t, svc, "A")
	if err := os.WriteFile(svc.ArchivePath(), []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write archive failed: %v", err)
	}

	res, err := svc.ArchiveAndRemove(ctx, []int{a.ID})
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !errors.Is(res.ArchiveErr, store.ErrCorrupt) {
		t.Fatalf("expected archive error to be reported, got %v", res.ArchiveErr)
	}
	if len(res.Store.Tasks) != 0 || len(res.Removed) != 1 {
		t.Fatalf("delete did not complete: %+v", res)
	}
	data, _ := os.ReadFile(svc.ArchivePath())
	if string(data) != "{broken" {
		t.Fatalf("corrupt archive was overwritten")
	}
}

func TestClearDoneArchivesDoneTasks(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	a := mustAdd(t, svc, "A")
	mustAdd(t, svc, "B")
	if _, err := svc.SetDone(ctx, []int{a.ID}, true); err != nil {
		t.Fatalf("set done failed: %v", err)
	}

	res, err := svc.ClearDone(ctx)
	if err != nil {
		t.Fatalf("clear done failed: %v", err)
	}
	if len(res.Removed) != 1 || res.Removed[0].ID != a.ID {
		t.Fatalf("unexpected removed tasks: %+v", res.Removed)
	}
	arch, _ := svc.Archived()
	if len(arch.Tasks) != 1 || !arch.Tasks[0].Done {
		t.Fatalf("done task not archived: %+v", arch.Tasks)
	}
}

func TestRestoreArchivedUsesFreshID(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	a := mustAdd(t, svc, "A")
	if _, err := svc.ArchiveAndRemove(ctx, []int{a.ID}); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	restored, err := svc.RestoreArchived(ctx, a.ID)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if restored.ID != 2 || restored.Text != "A" {
		t.Fatalf("unexpected restored task: %+v", restored)
	}
	arch, _ := svc.Archived()
	if len(arch.Tasks) != 1 {
		t.Fatalf("archive must be unchanged, got %+v", arch.Tasks)
	}
	if _, err := svc.RestoreArchived(ctx, 99); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestCheckAndRepairThroughService(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	mustAdd(t, svc, "A")
	mustAdd(t, svc, "B")
	if err := os.WriteFile(svc.Path(), []byte(`{"version":1,"next_id":`), 0o644); err != nil {
		t.Fatalf("corrupt write failed: %v", err)
	}

	if _, err := svc.Load(ctx); !errors.Is(err, store.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if r := svc.Check(); r.Valid {
		t.Fatalf("check should report invalid file")
	}
	r, err := svc.Repair(ctx, true)
	if err != nil {
		t.Fatalf("repair failed: %v", err)
	}
	if r.RestoredFrom == "" {
		t.Fatalf("expected restore from backup")
	}
	st, err := svc.Load(ctx)
	if err != nil {
		t.Fatalf("load after repair failed: %v", err)
	}
	if len(st.Tasks) != 1 {
		t.Fatalf("expected the pre-corruption backup with one task, got %d", len(st.Tasks))
	}
}
