package chunk

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	senterrors "github.com/moyger/sentinel/internal/errors"
)

// WindowChunker splits text into fixed-size word windows with overlap.
// Chunk boundaries depend only on the content and the window parameters,
// so reindexing unchanged content yields identical chunk sets.
type WindowChunker struct {
	windowWords  int
	overlapWords int
}

// NewWindowChunker creates a chunker with the given window and overlap,
// both measured in whitespace-separated words. Overlap must be smaller
// than the window.
func NewWindowChunker(windowWords, overlapWords int) (*WindowChunker, error) {
	if windowWords <= 0 {
		return nil, senterrors.InputError("chunk window must be positive", nil)
	}
	if overlapWords < 0 || overlapWords >= windowWords {
		return nil, senterrors.InputError("chunk overlap must be in [0, window)", nil)
	}
	return &WindowChunker{windowWords: windowWords, overlapWords: overlapWords}, nil
}

// NewDefaultChunker creates a chunker with the default 400/80 window.
func NewDefaultChunker() *WindowChunker {
	c, _ := NewWindowChunker(DefaultWindowWords, DefaultOverlapWords)
	return c
}

// Chunk splits the file into overlapping windows. An empty or
// whitespace-only file yields no chunks.
func (c *WindowChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	if file == nil {
		return nil, senterrors.InputError("file input is required", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := string(file.Content)
	words, headings := splitWords(text)
	if len(words) == 0 {
		return []*Chunk{}, nil
	}

	fileType := DetectFileType(file.Path)
	now := time.Now().UTC()

	var chunks []*Chunk
	start := 0
	for start < len(words) {
		end := start + c.windowWords
		if end > len(words) {
			end = len(words)
		}

		chunks = append(chunks, &Chunk{
			ID:         uuid.NewString(),
			FilePath:   file.Path,
			FileType:   fileType,
			Content:    strings.Join(words[start:end], " "),
			Ordinal:    len(chunks),
			TokenCount: end - start,
			Heading:    headings[start],
			CreatedAt:  now,
			UpdatedAt:  now,
		})

		if end >= len(words) {
			break
		}
		start += c.windowWords - c.overlapWords
	}

	return chunks, nil
}

// splitWords splits text into words and records, for each word, the
// markdown heading path in effect where the word appears.
func splitWords(text string) (words []string, headings []string) {
	// Heading stack by level; path parts joined with " > ".
	var stack []string
	var levels []int

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if level, title, ok := parseHeading(trimmed); ok {
			for len(levels) > 0 && levels[len(levels)-1] >= level {
				stack = stack[:len(stack)-1]
				levels = levels[:len(levels)-1]
			}
			stack = append(stack, title)
			levels = append(levels, level)
		}
		path := strings.Join(stack, " > ")
		for _, w := range strings.Fields(line) {
			words = append(words, w)
			headings = append(headings, path)
		}
	}
	return words, headings
}

// parseHeading parses a markdown ATX heading line.
func parseHeading(line string) (level int, title string, ok bool) {
	if !strings.HasPrefix(line, "#") {
		return 0, "", false
	}
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level > 6 || level == len(line) || line[level] != ' ' {
		return 0, "", false
	}
	title = strings.TrimSpace(line[level:])
	if title == "" {
		return 0, "", false
	}
	return level, title, true
}

// DetectFileType classifies a memory file by its relative path.
func DetectFileType(path string) FileType {
	norm := strings.ToLower(strings.ReplaceAll(path, "\\", "/"))
	base := norm
	if i := strings.LastIndex(norm, "/"); i >= 0 {
		base = norm[i+1:]
	}

	switch base {
	case "soul.md", "user.md", "memory.md":
		return FileTypeCore
	}
	if strings.HasPrefix(norm, "daily/") || strings.Contains(norm, "/daily/") {
		return FileTypeJournal
	}
	if strings.HasPrefix(norm, "topics/") || strings.Contains(norm, "/topics/") {
		return FileTypeTopic
	}
	return FileTypeReference
}
