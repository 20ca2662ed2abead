package distill

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/renameio"

	senterrors "github.com/moyger/sentinel/internal/errors"
)

// Applier writes accepted proposals into memory files. Every modified
// file gets a timestamped backup first, and the new content lands via
// atomic rename.
type Applier struct {
	memoryDir string
	logger    *slog.Logger
	// now is swappable for tests.
	now func() time.Time
}

// NewApplier creates an applier rooted at the memory directory.
func NewApplier(memoryDir string, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{memoryDir: memoryDir, logger: logger, now: time.Now}
}

// Apply writes proposals to their target files. A proposal against a
// missing file is skipped with a warning rather than failing the
// batch.
func (a *Applier) Apply(proposals []Proposal) error {
	for _, p := range proposals {
		if err := a.applyOne(p); err != nil {
			if senterrors.GetCode(err) == senterrors.ErrCodeFileNotFound {
				a.logger.Warn("proposal target missing, skipping",
					slog.String("file", p.FilePath))
				continue
			}
			return err
		}
		a.logger.Info("applied proposal",
			slog.String("file", p.FilePath),
			slog.String("section", p.Section))
	}
	return nil
}

func (a *Applier) applyOne(p Proposal) error {
	path := filepath.Join(a.memoryDir, filepath.Base(p.FilePath))

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return senterrors.New(senterrors.ErrCodeFileNotFound, p.FilePath, err)
		}
		return fmt.Errorf("read %s: %w", p.FilePath, err)
	}

	if err := a.backup(path, content); err != nil {
		return err
	}

	updated := patchSection(string(content), p)
	if err := renameio.WriteFile(path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p.FilePath, err)
	}
	return nil
}

// backup copies the file aside before modification.
func (a *Applier) backup(path string, content []byte) error {
	stamp := a.now().Format("20060102150405")
	backupPath := path + ".backup." + stamp
	if err := renameio.WriteFile(backupPath, content, 0o644); err != nil {
		return fmt.Errorf("backup %s: %w", path, err)
	}
	return nil
}

// patchSection inserts proposal content under its "## Section"
// heading, creating the section at the end of the file when absent.
func patchSection(content string, p Proposal) string {
	sectionRe := regexp.MustCompile(`(?m)^##\s+` + regexp.QuoteMeta(p.Section) + `\s*$`)
	loc := sectionRe.FindStringIndex(content)
	if loc == nil {
		if !strings.HasSuffix(content, "\n") && content != "" {
			content += "\n"
		}
		return content + "\n## " + p.Section + "\n\n" + p.Content + "\n"
	}

	nextRe := regexp.MustCompile(`(?m)^##\s+`)
	rest := content[loc[1]:]
	insertPos := len(content)
	if next := nextRe.FindStringIndex(rest); next != nil {
		insertPos = loc[1] + next[0]
	}

	switch p.Action {
	case ActionUpdate:
		return content[:loc[1]] + "\n\n" + p.Content + "\n\n" + content[insertPos:]
	default:
		head := strings.TrimRight(content[:insertPos], "\n")
		return head + "\n" + p.Content + "\n\n" + content[insertPos:]
	}
}

// CreateTopics writes skeleton files for new topic slugs under
// topics/. Existing topics are left alone.
func (a *Applier) CreateTopics(slugs []string) ([]string, error) {
	topicsDir := filepath.Join(a.memoryDir, "topics")
	if err := os.MkdirAll(topicsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create topics dir: %w", err)
	}

	var created []string
	for _, slug := range slugs {
		path := filepath.Join(topicsDir, slug+".md")
		if _, err := os.Stat(path); err == nil {
			continue
		}

		title := titleFromSlug(slug)
		body := fmt.Sprintf(`# %s

## Overview

## Key Information

## Related

## History
- %s: Topic created
`, title, a.now().Format("2006-01-02"))

		if err := renameio.WriteFile(path, []byte(body), 0o644); err != nil {
			return created, fmt.Errorf("create topic %s: %w", slug, err)
		}
		created = append(created, slug)
		a.logger.Info("created topic", slog.String("slug", slug))
	}
	return created, nil
}

// titleFromSlug turns "release-notes" into "Release Notes".
func titleFromSlug(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
