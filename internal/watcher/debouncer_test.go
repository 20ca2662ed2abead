package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(path string, op Operation) FileEvent {
	return FileEvent{Path: path, Operation: op, Timestamp: time.Now()}
}

func collectBatch(t *testing.T, d *Debouncer, timeout time.Duration) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(timeout):
		t.Fatal("timed out waiting for debounced batch")
		return nil
	}
}

func TestDebouncer_BurstBecomesOneEvent(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	// Rapid saves of the same file
	for i := 0; i < 10; i++ {
		d.Add(event("notes.md", OpModify))
	}

	batch := collectBatch(t, d, time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, "notes.md", batch[0].Path)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestDebouncer_DistinctPathsStaySeparate(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(event("a.md", OpModify))
	d.Add(event("b.md", OpModify))

	batch := collectBatch(t, d, time.Second)
	assert.Len(t, batch, 2)
}

func TestDebouncer_BusyPathDoesNotStarveQuietPath(t *testing.T) {
	d := NewDebouncer(200 * time.Millisecond)
	defer d.Stop()

	d.Add(event("quiet.md", OpModify))

	// Keep hammering another file past quiet.md's window. Its
	// deadline must hold even while busy.md keeps resetting its own.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 8; i++ {
			d.Add(event("busy.md", OpModify))
			time.Sleep(100 * time.Millisecond)
		}
	}()

	batch := collectBatch(t, d, 600*time.Millisecond)
	require.Len(t, batch, 1)
	assert.Equal(t, "quiet.md", batch[0].Path)

	<-done
	batch = collectBatch(t, d, time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, "busy.md", batch[0].Path)
}

func TestDebouncer_CreateThenDeleteCancels(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(event("ephemeral.md", OpCreate))
	d.Add(event("ephemeral.md", OpDelete))
	// Another path keeps the flush alive
	d.Add(event("other.md", OpModify))

	batch := collectBatch(t, d, time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, "other.md", batch[0].Path)
}

func TestDebouncer_DeleteThenCreateIsModify(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(event("replaced.md", OpDelete))
	d.Add(event("replaced.md", OpCreate))

	batch := collectBatch(t, d, time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, OpModify, batch[0].Operation)
}

func TestDebouncer_CreateThenModifyStaysCreate(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(event("new.md", OpCreate))
	d.Add(event("new.md", OpModify))

	batch := collectBatch(t, d, time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, OpCreate, batch[0].Operation)
}

func TestDebouncer_ModifyThenDeleteIsDelete(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(event("doomed.md", OpModify))
	d.Add(event("doomed.md", OpDelete))

	batch := collectBatch(t, d, time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, OpDelete, batch[0].Operation)
}

func TestDebouncer_StopIsIdempotent(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	d.Stop()
	d.Stop()

	// Adds after stop are dropped silently
	d.Add(event("late.md", OpModify))

	_, ok := <-d.Output()
	assert.False(t, ok)
}
