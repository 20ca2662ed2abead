package distill

import (
	"regexp"
	"sort"
	"strings"
)

// Extraction patterns. Rule-based on purpose: the distiller must be
// deterministic and reviewable, not a model call.
var (
	preferencePattern  = regexp.MustCompile(`(?m)(?:I|i)\s+(?:prefer|like|enjoy|want)\s+(.+?)(?:\.|$)`)
	decisionPattern    = regexp.MustCompile(`(?m)(?:Decided|decided|Decision|decision):\s*(.+?)(?:\.|$)`)
	learningPattern    = regexp.MustCompile(`(?m)(?:Learned|learned|Lesson|lesson):\s*(.+?)(?:\.|$)`)
	achievementPattern = regexp.MustCompile(`(?m)(?:Built|Created|Implemented|Completed)\s+(.+?)(?:\.|$)`)
	completionPattern  = regexp.MustCompile(`(?m)#+\s*(.+?(?:Complete|Done|Finished|✅))\s*$`)

	headerPattern   = regexp.MustCompile(`(?m)^#+\s+(.+)$`)
	slugStripRegex  = regexp.MustCompile(`[^\w\s-]`)
	slugSpaceRegex  = regexp.MustCompile(`[-\s]+`)
)

// ExtractFacts pulls durable facts out of log text. Duplicate
// statements of the same type collapse to one fact.
func ExtractFacts(logText string) []Fact {
	var facts []Fact
	seen := make(map[string]bool)

	add := func(t FactType, content string) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		key := string(t) + "\x00" + strings.ToLower(content)
		if seen[key] {
			return
		}
		seen[key] = true
		facts = append(facts, Fact{Type: t, Content: content})
	}

	for _, m := range preferencePattern.FindAllStringSubmatch(logText, -1) {
		add(FactPreference, m[1])
	}
	for _, m := range decisionPattern.FindAllStringSubmatch(logText, -1) {
		add(FactDecision, m[1])
	}
	for _, m := range learningPattern.FindAllStringSubmatch(logText, -1) {
		add(FactLearning, m[1])
	}
	for _, m := range achievementPattern.FindAllStringSubmatch(logText, -1) {
		add(FactAchievement, m[1])
	}
	for _, m := range completionPattern.FindAllStringSubmatch(logText, -1) {
		add(FactCompletion, m[1])
	}

	return facts
}

// ExtractTopics derives topic slugs from the log's headings, at most
// five, sorted for determinism.
func ExtractTopics(logText string) []string {
	seen := make(map[string]bool)
	var topics []string

	for _, m := range headerPattern.FindAllStringSubmatch(logText, -1) {
		slug := Slugify(m[1])
		if len(slug) <= 3 || seen[slug] {
			continue
		}
		seen[slug] = true
		topics = append(topics, slug)
	}

	sort.Strings(topics)
	if len(topics) > 5 {
		topics = topics[:5]
	}
	return topics
}

// Slugify turns a heading into a topic file slug.
func Slugify(heading string) string {
	s := strings.ToLower(strings.TrimSpace(heading))
	s = slugStripRegex.ReplaceAllString(s, "")
	s = slugSpaceRegex.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
