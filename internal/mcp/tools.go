package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/moyger/sentinel/internal/chunk"
	"github.com/moyger/sentinel/internal/search"
)

// SearchInput is the input schema for memory_search.
type SearchInput struct {
	Query    string `json:"query" jsonschema:"the search query"`
	Mode     string `json:"mode,omitempty" jsonschema:"hybrid, lexical, or vector; default hybrid"`
	TopK     int    `json:"top_k,omitempty" jsonschema:"maximum results, default 10, capped at 100"`
	FileType string `json:"file_type,omitempty" jsonschema:"restrict to core, journal, topic, or reference files"`
}

// SearchResultOutput is one ranked chunk.
type SearchResultOutput struct {
	FilePath     string   `json:"file_path" jsonschema:"path relative to the memory root"`
	FileType     string   `json:"file_type" jsonschema:"core, journal, topic, or reference"`
	Heading      string   `json:"heading,omitempty" jsonschema:"nearest markdown heading above the chunk"`
	Content      string   `json:"content" jsonschema:"chunk text"`
	Score        float64  `json:"score" jsonschema:"fused relevance score between 0 and 1"`
	MatchedTerms []string `json:"matched_terms,omitempty" jsonschema:"query terms matched by the keyword phase"`
	UpdatedAt    string   `json:"updated_at" jsonschema:"chunk update time, RFC 3339"`
}

// SearchOutput is the memory_search response.
type SearchOutput struct {
	Results  []SearchResultOutput `json:"results" jsonschema:"ranked results"`
	Mode     string               `json:"mode" jsonschema:"the retrieval mode actually used"`
	Degraded bool                 `json:"degraded" jsonschema:"true when semantic ranking was unavailable"`
}

func (s *Server) memorySearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	opts := search.Options{
		Mode: search.Mode(input.Mode),
		TopK: input.TopK,
	}
	if input.FileType != "" {
		opts.FileTypes = []chunk.FileType{chunk.FileType(input.FileType)}
	}

	resp, err := s.engine.Search(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, MapError(err)
	}

	out := SearchOutput{
		Results:  make([]SearchResultOutput, 0, len(resp.Results)),
		Mode:     string(resp.Mode),
		Degraded: resp.Degraded,
	}
	for _, r := range resp.Results {
		out.Results = append(out.Results, toResultOutput(r))
	}
	return nil, out, nil
}

func toResultOutput(r *search.Result) SearchResultOutput {
	return SearchResultOutput{
		FilePath:     r.Chunk.FilePath,
		FileType:     string(r.Chunk.FileType),
		Heading:      r.Chunk.Heading,
		Content:      r.Chunk.Content,
		Score:        r.Score,
		MatchedTerms: r.MatchedTerms,
		UpdatedAt:    r.Chunk.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// RecentInput is the input schema for recent_context.
type RecentInput struct {
	Days  int `json:"days,omitempty" jsonschema:"look-back window in days, default 7"`
	Limit int `json:"limit,omitempty" jsonschema:"maximum chunks, default 10"`
}

// RecentOutput is the recent_context response.
type RecentOutput struct {
	Chunks []SearchResultOutput `json:"chunks" jsonschema:"recent chunks, newest first"`
}

func (s *Server) recentContextHandler(ctx context.Context, _ *mcp.CallToolRequest, input RecentInput) (
	*mcp.CallToolResult,
	RecentOutput,
	error,
) {
	chunks, err := s.engine.Recent(ctx, input.Days, input.Limit)
	if err != nil {
		return nil, RecentOutput{}, MapError(err)
	}

	out := RecentOutput{Chunks: make([]SearchResultOutput, 0, len(chunks))}
	for _, c := range chunks {
		out.Chunks = append(out.Chunks, SearchResultOutput{
			FilePath:  c.FilePath,
			FileType:  string(c.FileType),
			Heading:   c.Heading,
			Content:   c.Content,
			UpdatedAt: c.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return nil, out, nil
}

// DistillInput is the input schema for distill_log.
type DistillInput struct {
	LogText string `json:"log_text" jsonschema:"the daily log content to distill"`
	Date    string `json:"date,omitempty" jsonschema:"log date as YYYY-MM-DD, default today"`
	Apply   bool   `json:"apply,omitempty" jsonschema:"write accepted proposals to memory files"`
}

// ProposalOutput is one suggested memory update.
type ProposalOutput struct {
	FilePath   string  `json:"file_path" jsonschema:"target memory file"`
	Section    string  `json:"section" jsonschema:"target section heading"`
	Action     string  `json:"action" jsonschema:"append or update"`
	Content    string  `json:"content" jsonschema:"proposed content"`
	Confidence float64 `json:"confidence" jsonschema:"pattern reliability between 0 and 1"`
}

// DistillOutput is the distill_log response.
type DistillOutput struct {
	Date      string           `json:"date" jsonschema:"the log date processed"`
	FactCount int              `json:"fact_count" jsonschema:"number of facts extracted"`
	Proposals []ProposalOutput `json:"proposals" jsonschema:"proposed memory updates"`
	Topics    []string         `json:"topics" jsonschema:"topic slugs worth creating"`
	Applied   bool             `json:"applied" jsonschema:"true when proposals were written to disk"`
}

func (s *Server) distillLogHandler(ctx context.Context, _ *mcp.CallToolRequest, input DistillInput) (
	*mcp.CallToolResult,
	DistillOutput,
	error,
) {
	if input.LogText == "" {
		return nil, DistillOutput{}, NewInvalidParamsError("log_text parameter is required")
	}
	if s.distiller == nil {
		return nil, DistillOutput{}, NewInternalError("distiller is not configured")
	}

	date, err := parseDate(input.Date)
	if err != nil {
		return nil, DistillOutput{}, NewInvalidParamsError("date must be YYYY-MM-DD")
	}

	res := s.distiller.Distill(input.LogText, date)

	out := DistillOutput{
		Date:      date.Format("2006-01-02"),
		FactCount: len(res.Facts),
		Topics:    res.Topics,
	}
	for _, p := range res.Proposals {
		out.Proposals = append(out.Proposals, ProposalOutput{
			FilePath:   p.FilePath,
			Section:    p.Section,
			Action:     string(p.Action),
			Content:    p.Content,
			Confidence: p.Confidence,
		})
	}

	if input.Apply && s.applier != nil {
		if err := s.applier.Apply(res.Proposals); err != nil {
			return nil, DistillOutput{}, MapError(err)
		}
		if _, err := s.applier.CreateTopics(res.Topics); err != nil {
			return nil, DistillOutput{}, MapError(err)
		}
		out.Applied = true
	}
	return nil, out, nil
}

// StatusInput is the input schema for index_status.
type StatusInput struct {
	Path string `json:"path" jsonschema:"file path relative to the memory root"`
}

// StatusOutput is the index_status response.
type StatusOutput struct {
	Path        string `json:"path" jsonschema:"the file queried"`
	Indexed     bool   `json:"indexed" jsonschema:"true when the file is in the index"`
	ContentHash string `json:"content_hash,omitempty" jsonschema:"sha256 of the indexed content"`
	LastIndexed string `json:"last_indexed,omitempty" jsonschema:"last index time, RFC 3339"`
	ChunkCount  int    `json:"chunk_count" jsonschema:"number of chunks stored for the file"`
}

func (s *Server) indexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, input StatusInput) (
	*mcp.CallToolResult,
	StatusOutput,
	error,
) {
	if input.Path == "" {
		return nil, StatusOutput{}, NewInvalidParamsError("path parameter is required")
	}

	st, err := s.coord.Status(ctx, input.Path)
	if err != nil {
		return nil, StatusOutput{}, MapError(err)
	}
	return nil, StatusOutput{
		Path:        st.Path,
		Indexed:     st.Indexed,
		ContentHash: st.ContentHash,
		LastIndexed: st.LastIndexed,
		ChunkCount:  st.ChunkCount,
	}, nil
}

// IndexFileInput is the input schema for index_file.
type IndexFileInput struct {
	Path string `json:"path" jsonschema:"file path relative to the memory root"`
}

// IndexFileOutput is the index_file response.
type IndexFileOutput struct {
	Path       string `json:"path" jsonschema:"the file indexed"`
	ChunkCount int    `json:"chunk_count" jsonschema:"chunks now stored for the file"`
}

func (s *Server) indexFileHandler(ctx context.Context, _ *mcp.CallToolRequest, input IndexFileInput) (
	*mcp.CallToolResult,
	IndexFileOutput,
	error,
) {
	if input.Path == "" {
		return nil, IndexFileOutput{}, NewInvalidParamsError("path parameter is required")
	}

	n, err := s.coord.IndexFile(ctx, input.Path)
	if err != nil {
		return nil, IndexFileOutput{}, MapError(err)
	}
	return nil, IndexFileOutput{Path: input.Path, ChunkCount: n}, nil
}

// RemoveFileInput is the input schema for remove_file.
type RemoveFileInput struct {
	Path string `json:"path" jsonschema:"file path relative to the memory root"`
}

// RemoveFileOutput is the remove_file response.
type RemoveFileOutput struct {
	Path    string `json:"path" jsonschema:"the file removed"`
	Removed bool   `json:"removed" jsonschema:"true when the removal completed"`
}

func (s *Server) removeFileHandler(ctx context.Context, _ *mcp.CallToolRequest, input RemoveFileInput) (
	*mcp.CallToolResult,
	RemoveFileOutput,
	error,
) {
	if input.Path == "" {
		return nil, RemoveFileOutput{}, NewInvalidParamsError("path parameter is required")
	}

	if err := s.coord.RemoveFile(ctx, input.Path); err != nil {
		return nil, RemoveFileOutput{}, MapError(err)
	}
	return nil, RemoveFileOutput{Path: input.Path, Removed: true}, nil
}
