package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/moyger/sentinel/internal/chunk"
	senterrors "github.com/moyger/sentinel/internal/errors"
	"github.com/moyger/sentinel/internal/search"
)

type searchOptions struct {
	mode   string
	topK   int
	types  []string
	format string
}

func newSearchCmd(opts *rootOptions) *cobra.Command {
	sopts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the memory index",
		Long: `Search indexed notes. Hybrid mode fuses BM25 and semantic ranking;
lexical and vector modes use a single phase.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := strings.Join(args, " ")

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			fileTypes, err := parseFileTypes(sopts.types)
			if err != nil {
				return err
			}

			resp, err := a.engine.Search(ctx, query, search.Options{
				Mode:      search.Mode(sopts.mode),
				TopK:      sopts.topK,
				FileTypes: fileTypes,
			})
			if err != nil {
				return err
			}

			if sopts.format == "json" {
				return printSearchJSON(resp)
			}

			if resp.Degraded {
				a.out.Warningf("semantic ranking unavailable, showing %s results", resp.Mode)
			}
			if len(resp.Results) == 0 {
				a.out.Dim("no results")
				return nil
			}
			for i, r := range resp.Results {
				a.out.SearchHit(i+1, r.Chunk.FilePath, r.Score, r.Chunk.Heading, r.Chunk.Content)
			}
			a.out.Dim(fmt.Sprintf("%d results (%s, %s)", len(resp.Results), resp.Mode, resp.Took.Round(time.Millisecond)))
			return nil
		},
	}

	cmd.Flags().StringVar(&sopts.mode, "mode", string(search.ModeHybrid),
		"search mode: hybrid, lexical, vector, or recency")
	cmd.Flags().IntVarP(&sopts.topK, "top-k", "n", search.DefaultTopK,
		"maximum results to return")
	cmd.Flags().StringSliceVarP(&sopts.types, "type", "t", nil,
		"restrict to file types: core, journal, topic, reference")
	cmd.Flags().StringVarP(&sopts.format, "format", "f", "text",
		"output format: text or json")

	return cmd
}

// searchHitJSON is the machine-readable result row.
type searchHitJSON struct {
	Path         string   `json:"path"`
	Heading      string   `json:"heading,omitempty"`
	Content      string   `json:"content"`
	Score        float64  `json:"score"`
	LexicalScore float64  `json:"lexical_score"`
	VectorScore  float64  `json:"vector_score"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
	UpdatedAt    string   `json:"updated_at"`
}

type searchResponseJSON struct {
	Results  []searchHitJSON `json:"results"`
	Mode     string          `json:"mode"`
	Degraded bool            `json:"degraded"`
	TookMS   int64           `json:"took_ms"`
}

func printSearchJSON(resp *search.Response) error {
	out := searchResponseJSON{
		Results:  make([]searchHitJSON, 0, len(resp.Results)),
		Mode:     string(resp.Mode),
		Degraded: resp.Degraded,
		TookMS:   resp.Took.Milliseconds(),
	}
	for _, r := range resp.Results {
		out.Results = append(out.Results, searchHitJSON{
			Path:         r.Chunk.FilePath,
			Heading:      r.Chunk.Heading,
			Content:      r.Chunk.Content,
			Score:        r.Score,
			LexicalScore: r.LexicalScore,
			VectorScore:  r.VectorScore,
			MatchedTerms: r.MatchedTerms,
			UpdatedAt:    r.Chunk.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func parseFileTypes(names []string) ([]chunk.FileType, error) {
	if len(names) == 0 {
		return nil, nil
	}
	types := make([]chunk.FileType, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "core":
			types = append(types, chunk.FileTypeCore)
		case "journal":
			types = append(types, chunk.FileTypeJournal)
		case "topic":
			types = append(types, chunk.FileTypeTopic)
		case "reference":
			types = append(types, chunk.FileTypeReference)
		default:
			return nil, senterrors.InputError(
				fmt.Sprintf("unknown file type %q (want core, journal, topic, or reference)", name), nil)
		}
	}
	return types, nil
}
