package distill

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Routing caps keep a noisy log from flooding a memory file.
const (
	maxPreferences  = 3
	maxDecisions    = 2
	maxLearnings    = 3
	maxAchievements = 3
)

// KnownFacts returns the current content of a memory file so the
// engine can drop proposals that are already recorded. A missing file
// returns "", nil.
type KnownFacts func(filePath string) (string, error)

// FileKnownFacts reads memory files from memoryDir. The file path is
// reduced to its base name, matching how the applier resolves targets.
func FileKnownFacts(memoryDir string) KnownFacts {
	return func(filePath string) (string, error) {
		data, err := os.ReadFile(filepath.Join(memoryDir, filepath.Base(filePath)))
		if os.IsNotExist(err) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// Engine turns daily logs into reviewable proposals.
type Engine struct {
	known KnownFacts
}

// NewEngine creates a distillation engine. known may be nil, in which
// case no proposals are suppressed as already recorded.
func NewEngine(known KnownFacts) *Engine {
	return &Engine{known: known}
}

// Distill extracts facts and topics from a daily log and routes them
// into proposals, dropping any already present in the target memory
// file. It never touches files; Apply does that separately.
func (e *Engine) Distill(logText string, date time.Time) *Result {
	facts := ExtractFacts(logText)
	return &Result{
		Date:      date,
		Facts:     facts,
		Proposals: e.filterKnown(Route(facts)),
		Topics:    ExtractTopics(logText),
	}
}

// filterKnown drops proposals whose content already appears in the
// target file. Comparison is case-insensitive with whitespace
// collapsed, so "- Dark  mode" matches an existing "- dark mode".
func (e *Engine) filterKnown(proposals []Proposal) []Proposal {
	if e.known == nil {
		return proposals
	}

	cache := map[string]string{}
	kept := proposals[:0]
	for _, p := range proposals {
		existing, ok := cache[p.FilePath]
		if !ok {
			content, err := e.known(p.FilePath)
			if err != nil {
				content = ""
			}
			existing = normalizeFact(content)
			cache[p.FilePath] = existing
		}

		fact := normalizeFact(strings.TrimPrefix(p.Content, "- "))
		if fact != "" && strings.Contains(existing, fact) {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

func normalizeFact(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Route maps facts to their home files: preferences to user.md,
// decisions to soul.md, learnings and achievements to memory.md.
func Route(facts []Fact) []Proposal {
	var byType = map[FactType][]Fact{}
	for _, f := range facts {
		byType[f.Type] = append(byType[f.Type], f)
	}

	var proposals []Proposal
	appendBullet := func(path, section string, f Fact, confidence float64) {
		proposals = append(proposals, Proposal{
			FilePath:   path,
			Section:    section,
			Action:     ActionAppend,
			Content:    "- " + f.Content,
			Confidence: confidence,
		})
	}

	for _, f := range capFacts(byType[FactPreference], maxPreferences) {
		appendBullet("user.md", "Preferences", f, 0.7)
	}
	for _, f := range capFacts(byType[FactDecision], maxDecisions) {
		appendBullet("soul.md", "Values & Principles", f, 0.6)
	}
	for _, f := range capFacts(byType[FactLearning], maxLearnings) {
		appendBullet("memory.md", "Lessons", f, 0.8)
	}

	wins := append(byType[FactAchievement], byType[FactCompletion]...)
	for _, f := range capFacts(wins, maxAchievements) {
		appendBullet("memory.md", "Projects", f, 0.75)
	}

	return proposals
}

func capFacts(facts []Fact, n int) []Fact {
	if len(facts) > n {
		return facts[:n]
	}
	return facts
}
