//go:build ignore

// Generates a synthetic markdown memory corpus for benchmarking the
// indexer and search.
// Usage: go run scripts/generate-test-corpus.go -days 365 -topics 50 -output testdata/corpus
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	numDays   = flag.Int("days", 365, "Number of daily logs to generate")
	numTopics = flag.Int("topics", 50, "Number of topic files to generate")
	outputDir = flag.String("output", "testdata/corpus", "Output directory")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var topics = []string{
	"golang", "sqlite", "espresso", "kubernetes", "terraform",
	"postgres", "redis", "vim", "climbing", "woodworking",
	"photography", "cycling", "sourdough", "typescript", "rust",
}

var sentences = []string{
	"Spent the morning debugging a flaky integration test.",
	"The trick is to keep the overlap small relative to the window.",
	"Decided: stick with the boring solution until it actually hurts.",
	"Learned that WAL checkpoints stall under sustained write load.",
	"I prefer short iterations over big-bang rewrites.",
	"Built a small prototype to validate the batching approach.",
	"Benchmarks show the hot path is the allocation, not the hash.",
	"Need to revisit the retry policy once the provider stabilizes.",
	"The grind setting drifted again after the hopper refill.",
	"Completed the migration with zero downtime.",
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := generate(rng); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %d daily logs and %d topics in %s\n", *numDays, *numTopics, *outputDir)
}

func generate(rng *rand.Rand) error {
	for _, sub := range []string{"daily", "topics"} {
		if err := os.MkdirAll(filepath.Join(*outputDir, sub), 0o755); err != nil {
			return err
		}
	}

	for _, core := range []string{"soul.md", "user.md", "memory.md"} {
		body := fmt.Sprintf("# %s\n\n%s\n", strings.TrimSuffix(core, ".md"), paragraph(rng, 3))
		if err := os.WriteFile(filepath.Join(*outputDir, core), []byte(body), 0o644); err != nil {
			return err
		}
	}

	day := time.Now().AddDate(0, 0, -*numDays)
	for i := 0; i < *numDays; i++ {
		day = day.AddDate(0, 0, 1)
		name := day.Format("2006-01-02") + ".md"
		body := fmt.Sprintf("# %s\n\n## Log\n\n%s\n\n## Notes\n\n%s\n",
			day.Format("2006-01-02"), paragraph(rng, 4), paragraph(rng, 6))
		if err := os.WriteFile(filepath.Join(*outputDir, "daily", name), []byte(body), 0o644); err != nil {
			return err
		}
	}

	for i := 0; i < *numTopics; i++ {
		topic := topics[rng.Intn(len(topics))]
		name := fmt.Sprintf("%s-%03d.md", topic, i)
		body := fmt.Sprintf("# %s\n\n## Overview\n\n%s\n\n## Key Information\n\n%s\n",
			strings.ToUpper(topic[:1])+topic[1:], paragraph(rng, 5), paragraph(rng, 20))
		if err := os.WriteFile(filepath.Join(*outputDir, "topics", name), []byte(body), 0o644); err != nil {
			return err
		}
	}

	return nil
}

func paragraph(rng *rand.Rand, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = sentences[rng.Intn(len(sentences))]
	}
	return strings.Join(parts, " ")
}
