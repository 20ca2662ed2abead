// Package watcher detects note changes and feeds debounced events to
// the indexer.
package watcher

import "time"

// Operation is a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file appeared.
	OpCreate Operation = iota
	// OpModify indicates an existing file changed.
	OpModify
	// OpDelete indicates a file is gone.
	OpDelete
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one detected change.
type FileEvent struct {
	// Path is relative to the watched root.
	Path      string
	Operation Operation
	Timestamp time.Time
}

// Options configures the watcher.
type Options struct {
	// DebounceWindow is how long to wait for a path to settle before
	// dispatching. Default 2s.
	DebounceWindow time.Duration

	// EventBufferSize is the batch channel buffer. Default 1000.
	EventBufferSize int

	// Matches filters paths. Nil accepts everything that is not
	// hidden or an editor temp file.
	Matches func(relPath string) bool
}

// WithDefaults fills zero values.
func (o Options) WithDefaults() Options {
	if o.DebounceWindow == 0 {
		o.DebounceWindow = 2 * time.Second
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = 1000
	}
	return o
}
