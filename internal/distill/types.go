// Package distill extracts durable facts from daily logs and proposes
// updates to the core memory files.
package distill

import "time"

// FactType classifies an extracted fact.
type FactType string

const (
	FactPreference  FactType = "preference"
	FactDecision    FactType = "decision"
	FactLearning    FactType = "learning"
	FactAchievement FactType = "achievement"
	FactCompletion  FactType = "completion"
)

// Fact is one durable statement pulled out of a log.
type Fact struct {
	Type    FactType
	Content string
}

// Action says how a proposal changes its target section.
type Action string

const (
	// ActionAppend adds content to the end of the section.
	ActionAppend Action = "append"
	// ActionUpdate replaces the section body.
	ActionUpdate Action = "update"
)

// Proposal is one suggested memory file update. Proposals are always
// reviewable before they touch a file.
type Proposal struct {
	// FilePath is relative to the memory root.
	FilePath string
	// Section is the "## Heading" the content belongs under.
	Section string
	Action  Action
	Content string
	// Confidence reflects how reliable the extraction pattern is.
	Confidence float64
}

// Result is the outcome of distilling one daily log.
type Result struct {
	Date      time.Time
	Facts     []Fact
	Proposals []Proposal
	// Topics are slugs for topic files worth creating.
	Topics  []string
	Applied bool
}
