package chunk

import (
	"context"
	"time"
)

// Chunk window defaults. Token counts are whitespace word counts; the
// word heuristic is the contract, not an approximation of a model
// tokenizer.
const (
	DefaultWindowWords  = 400
	DefaultOverlapWords = 80
)

// FileType categorizes a memory file by its role in the corpus.
type FileType string

const (
	// FileTypeCore is an identity file (soul.md, user.md, memory.md).
	FileTypeCore FileType = "core"
	// FileTypeJournal is a dated daily log (daily/YYYY-MM-DD.md).
	FileTypeJournal FileType = "journal"
	// FileTypeTopic is a per-topic note (topics/*.md).
	FileTypeTopic FileType = "topic"
	// FileTypeReference is any other markdown file.
	FileTypeReference FileType = "reference"
)

// Chunk is a retrievable unit of note content.
type Chunk struct {
	ID         string   // uuid
	FilePath   string   // relative to the memory root
	FileType   FileType // core, journal, topic, reference
	Content    string
	Ordinal    int    // position within the file, 0-based
	TokenCount int    // word count of Content
	Heading    string // nearest preceding markdown heading path, "" at top
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FileInput is input for the Chunker interface.
type FileInput struct {
	Path    string // relative path
	Content []byte
}

// Chunker splits note files into overlapping chunks.
type Chunker interface {
	// Chunk splits a file deterministically: identical content and
	// parameters always produce identical chunk boundaries.
	Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error)
}
