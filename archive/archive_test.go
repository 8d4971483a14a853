package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-cli/model"
	"todo-cli/paths"
	"todo-cli/store"
)

func task(id int, text string) model.Task {
	return model.Task{
		ID:        id,
		Text:      text,
		CreatedAt: "2026-02-19T12:00:00+00:00",
		Tags:      []string{"home"},
	}
}

func newArchive(t *testing.T) (*Archive, string) {
	t.Helper()
	db := filepath.Join(t.TempDir(), "todos.json")
	return New(db, store.Options{LockTimeout: 5 * time.Second}), db
}

func TestAppendCreatesSiblingFile(t *testing.T) {
	a, db := newArchive(t)
	require.Equal(t, paths.ArchivePath(db), a.Path())

	added, err := a.Append(context.Background(), []model.Task{task(3, "buy milk"), task(7, "call bob")})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	st, err := a.Load()
	require.NoError(t, err)
	require.Len(t, st.Tasks, 2)
	assert.Equal(t, 8, st.NextID)
	assert.Equal(t, "call bob", st.Tasks[1].Text)

	_, err = os.Stat(db)
	assert.True(t, os.IsNotExist(err), "archiving must not touch the live database")
}

func TestAppendSkipsIdenticalTasks(t *testing.T) {
	a, _ := newArchive(t)
	ctx := context.Background()

	_, err := a.Append(ctx, []model.Task{task(3, "buy milk")})
	require.NoError(t, err)
	added, err := a.Append(ctx, []model.Task{task(3, "buy milk")})
	require.NoError(t, err)
	assert.Zero(t, added)

	st, err := a.Load()
	require.NoError(t, err)
	assert.Len(t, st.Tasks, 1)
}

func TestAppendKeepsRepeatedIDsWithDifferentContent(t *testing.T) {
	a, _ := newArchive(t)
	ctx := context.Background()

	_, err := a.Append(ctx, []model.Task{task(3, "buy milk")})
	require.NoError(t, err)
	_, err = a.Append(ctx, []model.Task{task(3, "buy oat milk")})
	require.NoError(t, err)

	st, err := a.Load()
	require.NoError(t, err)
	assert.Len(t, st.Tasks, 2)
	assert.Equal(t, 4, st.NextID)
}

func TestAppendNeverRewritesCorruptArchive(t *testing.T) {
	a, _ := newArchive(t)
	content := `{"version":1,"tasks":[{"id":1,`
	require.NoError(t, os.WriteFile(a.Path(), []byte(content), 0o644))

	_, err := a.Append(context.Background(), []model.Task{task(1, "x")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrCorrupt))

	data, err := os.ReadFile(a.Path())
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestLoadMissingArchiveIsEmpty(t *testing.T) {
	a, _ := newArchive(t)
	st, err := a.Load()
	require.NoError(t, err)
	assert.Empty(t, st.Tasks)

	_, err = os.Stat(a.Path())
	assert.True(t, os.IsNotExist(err))
}
