package distill

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApplier(t *testing.T) (*Applier, string) {
	t.Helper()
	dir := t.TempDir()
	return NewApplier(dir, nil), dir
}

func writeMemoryFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func readMemoryFile(t *testing.T, dir, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(b)
}

func TestApply_AppendsUnderExistingSection(t *testing.T) {
	a, dir := newTestApplier(t)
	writeMemoryFile(t, dir, "user.md", `# User

## Preferences
- tabs over spaces

## Contact
- somewhere
`)

	err := a.Apply([]Proposal{{
		FilePath: "user.md",
		Section:  "Preferences",
		Action:   ActionAppend,
		Content:  "- dark mode",
	}})
	require.NoError(t, err)

	content := readMemoryFile(t, dir, "user.md")
	prefIdx := strings.Index(content, "- dark mode")
	contactIdx := strings.Index(content, "## Contact")
	require.Positive(t, prefIdx)
	assert.Less(t, prefIdx, contactIdx, "new bullet belongs before the next section")
	assert.Contains(t, content, "- tabs over spaces")
}

func TestApply_CreatesMissingSection(t *testing.T) {
	a, dir := newTestApplier(t)
	writeMemoryFile(t, dir, "memory.md", "# Memory\n")

	err := a.Apply([]Proposal{{
		FilePath: "memory.md",
		Section:  "Lessons",
		Action:   ActionAppend,
		Content:  "- fts5 needs sanitizing",
	}})
	require.NoError(t, err)

	content := readMemoryFile(t, dir, "memory.md")
	assert.Contains(t, content, "## Lessons")
	assert.Contains(t, content, "- fts5 needs sanitizing")
}

func TestApply_UpdateReplacesSectionBody(t *testing.T) {
	a, dir := newTestApplier(t)
	writeMemoryFile(t, dir, "soul.md", `# Soul

## Values & Principles
- old value

## Other
- keep me
`)

	err := a.Apply([]Proposal{{
		FilePath: "soul.md",
		Section:  "Values & Principles",
		Action:   ActionUpdate,
		Content:  "- new value",
	}})
	require.NoError(t, err)

	content := readMemoryFile(t, dir, "soul.md")
	assert.NotContains(t, content, "- old value")
	assert.Contains(t, content, "- new value")
	assert.Contains(t, content, "- keep me")
}

func TestApply_WritesBackupFirst(t *testing.T) {
	a, dir := newTestApplier(t)
	writeMemoryFile(t, dir, "user.md", "# User\n\n## Preferences\n")

	err := a.Apply([]Proposal{{
		FilePath: "user.md",
		Section:  "Preferences",
		Action:   ActionAppend,
		Content:  "- dark mode",
	}})
	require.NoError(t, err)

	entries, err := filepath.Glob(filepath.Join(dir, "user.md.backup.*"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	backup, err := os.ReadFile(entries[0])
	require.NoError(t, err)
	assert.NotContains(t, string(backup), "- dark mode")
}

func TestApply_SkipsMissingFile(t *testing.T) {
	a, _ := newTestApplier(t)

	err := a.Apply([]Proposal{{
		FilePath: "nonexistent.md",
		Section:  "Preferences",
		Action:   ActionAppend,
		Content:  "- ignored",
	}})
	assert.NoError(t, err)
}

func TestCreateTopics(t *testing.T) {
	a, dir := newTestApplier(t)

	created, err := a.CreateTopics([]string{"release-notes", "sentinel-search"})
	require.NoError(t, err)
	assert.Equal(t, []string{"release-notes", "sentinel-search"}, created)

	content := readMemoryFile(t, dir, filepath.Join("topics", "release-notes.md"))
	assert.Contains(t, content, "# Release Notes")
	assert.Contains(t, content, "## Overview")
	assert.Contains(t, content, "Topic created")

	// Existing topics are not recreated
	created, err = a.CreateTopics([]string{"release-notes"})
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestTitleFromSlug(t *testing.T) {
	assert.Equal(t, "Release Notes", titleFromSlug("release-notes"))
	assert.Equal(t, "Go", titleFromSlug("go"))
}
