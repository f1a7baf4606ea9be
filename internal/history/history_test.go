package history

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(DefaultPath(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func entryAt(id string, finished time.Time) *Entry {
	return &Entry{
		ID:            id,
		Command:       "loop",
		Backend:       "codex",
		Status:        "done",
		Iterations:    2,
		DurationMs:    1500,
		PromptDigest:  Digest("fix the bug"),
		PromptPreview: "fix the bug",
		StartedAt:     finished.Add(-1500 * time.Millisecond),
		FinishedAt:    finished,
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	finished := time.Date(2026, 3, 1, 12, 0, 0, 123000000, time.UTC)
	entry := entryAt("20260301-120000-ab12", finished)
	entry.Summary = "bug fixed"
	entry.ArtifactsDir = "/tmp/runs/20260301-120000-ab12"

	require.NoError(t, store.Save(entry))

	got, err := store.Get("20260301-120000-ab12")
	require.NoError(t, err)
	require.Equal(t, entry.Backend, got.Backend)
	require.Equal(t, "bug fixed", got.Summary)
	require.Equal(t, entry.ArtifactsDir, got.ArtifactsDir)
	require.True(t, finished.Equal(got.FinishedAt))
	require.Equal(t, int64(1500), got.DurationMs)

	entry.Status = "max-iterations"
	require.NoError(t, store.Save(entry))
	got, err = store.Get(entry.ID)
	require.NoError(t, err)
	require.Equal(t, "max-iterations", got.Status)
}

func TestStore_NotFound(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	_, err := store.Get("nope")
	require.ErrorIs(t, err, ErrNotFound)

	require.Error(t, store.Save(&Entry{}))
}

func TestStore_PreviewTruncation(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	entry := entryAt("long", time.Now())
	entry.PromptPreview = strings.Repeat("ü", 300)
	require.NoError(t, store.Save(entry))

	got, err := store.Get("long")
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("ü", PreviewLength)+"...", got.PromptPreview)
}

func TestStore_List(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		e := entryAt(fmt.Sprintf("run-%02d", i), base.Add(time.Duration(i)*time.Second+time.Duration(i)*time.Millisecond))
		if i%5 == 0 {
			e.Status = "error"
			e.PromptDigest = Digest("other prompt")
		}
		require.NoError(t, store.Save(e))
	}

	res, err := store.List(ListOptions{})
	require.NoError(t, err)
	require.Equal(t, 25, res.Total)
	require.Equal(t, 2, res.TotalPages)
	require.Len(t, res.Entries, DefaultLimit)
	require.Equal(t, "run-24", res.Entries[0].ID, "newest first")

	res, err = store.List(ListOptions{Page: 2, Limit: 20})
	require.NoError(t, err)
	require.Len(t, res.Entries, 5)
	require.Equal(t, "run-04", res.Entries[0].ID)

	res, err = store.List(ListOptions{Page: 9})
	require.NoError(t, err)
	require.Empty(t, res.Entries)
	require.NotNil(t, res.Entries)

	res, err = store.List(ListOptions{Status: "error"})
	require.NoError(t, err)
	require.Equal(t, 5, res.Total)

	res, err = store.List(ListOptions{PromptDigest: Digest("fix the bug"), Limit: 1000})
	require.NoError(t, err)
	require.Equal(t, 20, res.Total)
	require.Equal(t, MaxLimit, res.Limit)
}

func TestStore_ReopenKeepsRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(entryAt("kept", time.Now())))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()
	_, err = store.Get("kept")
	require.NoError(t, err)
	require.Equal(t, path, store.Path())
}

func TestDigest(t *testing.T) {
	t.Parallel()

	require.Len(t, Digest("a"), 16)
	require.Equal(t, Digest("same prompt"), Digest("same prompt"))
	require.NotEqual(t, Digest("a"), Digest("b"))
}
