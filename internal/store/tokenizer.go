package store

import (
	"regexp"
	"strings"
)

var termRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// queryStopWords are dropped from lexical queries. They match almost
// every chunk and would drown out the informative terms.
var queryStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"of": true, "to": true, "in": true, "on": true, "for": true,
	"is": true, "was": true, "it": true, "that": true, "this": true,
	"do": true, "did": true, "what": true, "when": true, "how": true,
}

// SanitizeQuery reduces raw user input to plain lowercase terms safe to
// hand to FTS5 MATCH. Operators, quotes, and punctuation are stripped
// rather than interpreted.
func SanitizeQuery(query string) []string {
	var terms []string
	for _, t := range termRegex.FindAllString(strings.ToLower(query), -1) {
		if len(t) < 2 || queryStopWords[t] {
			continue
		}
		terms = append(terms, t)
	}
	return terms
}
