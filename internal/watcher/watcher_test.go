package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, root string) *Watcher {
	t.Helper()

	w, err := New(Options{
		DebounceWindow: 100 * time.Millisecond,
		Matches: func(relPath string) bool {
			return strings.HasSuffix(relPath, ".md")
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})

	go func() { _ = w.Start(ctx, root) }()
	// Give the watcher time to register directories
	time.Sleep(100 * time.Millisecond)
	return w
}

func waitForBatch(t *testing.T, w *Watcher) []FileEvent {
	t.Helper()
	select {
	case batch := <-w.Events():
		return batch
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watcher events")
		return nil
	}
}

func TestWatcher_DetectsNewFile(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "note.md"), []byte("hello"), 0o644))

	batch := waitForBatch(t, w)
	require.NotEmpty(t, batch)
	assert.Equal(t, "note.md", batch[0].Path)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestWatcher_CoalescesRapidWrites(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "busy.md")
	require.NoError(t, os.WriteFile(path, []byte("v0"), 0o644))

	w := startWatcher(t, root)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("version"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	batch := waitForBatch(t, w)
	count := 0
	for _, e := range batch {
		if e.Path == "busy.md" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestWatcher_IgnoresNonCorpusFiles(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "note.md.swp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "draft.md~"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "real.md"), []byte("x"), 0o644))

	batch := waitForBatch(t, w)
	require.Len(t, batch, 1)
	assert.Equal(t, "real.md", batch[0].Path)
}

func TestWatcher_DetectsDelete(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "victim.md")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	w := startWatcher(t, root)
	require.NoError(t, os.Remove(path))

	batch := waitForBatch(t, w)
	require.NotEmpty(t, batch)
	assert.Equal(t, "victim.md", batch[0].Path)
	assert.Equal(t, OpDelete, batch[0].Operation)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(Options{})
	require.NoError(t, err)
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}
