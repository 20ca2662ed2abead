// Package preflight validates the environment before Sentinel touches
// the index: directories, disk space, the embedding provider, and the
// integrity of what is already indexed.
package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/moyger/sentinel/internal/embed"
	"github.com/moyger/sentinel/internal/store"
)

// CheckStatus represents the result of one check.
type CheckStatus int

const (
	// StatusPass indicates the check passed.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical problem.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// CheckResult holds the outcome of a single check.
type CheckResult struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
	// Required marks checks Sentinel cannot run without.
	Required bool `json:"required"`
}

// IsCritical reports whether a required check failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker runs environment checks against a memory and data directory.
type Checker struct {
	memoryDir string
	dataDir   string

	// Embedder and Store are optional; their checks are skipped
	// when nil.
	Embedder embed.Embedder
	Store    *store.SQLiteStore
}

// New creates a Checker for the given directories.
func New(memoryDir, dataDir string) *Checker {
	return &Checker{memoryDir: memoryDir, dataDir: dataDir}
}

// RunAll runs every applicable check.
func (c *Checker) RunAll(ctx context.Context) []CheckResult {
	results := []CheckResult{
		c.CheckMemoryDir(),
		c.CheckDataDirWritable(),
		c.CheckDiskSpace(),
	}
	if c.Embedder != nil {
		results = append(results, c.CheckEmbedder(ctx))
	}
	if c.Store != nil {
		results = append(results, c.CheckIndexIntegrity(ctx))
	}
	return results
}

// HasCriticalFailures reports whether any required check failed.
func HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// CheckMemoryDir verifies the memory corpus root exists and is a
// readable directory.
func (c *Checker) CheckMemoryDir() CheckResult {
	result := CheckResult{Name: "memory_dir", Required: true}

	info, err := os.Stat(c.memoryDir)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s: %v", c.memoryDir, err)
		return result
	}
	if !info.IsDir() {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s is not a directory", c.memoryDir)
		return result
	}
	if _, err := os.ReadDir(c.memoryDir); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot read %s: %v", c.memoryDir, err)
		return result
	}

	result.Status = StatusPass
	result.Message = c.memoryDir
	return result
}

// CheckDataDirWritable verifies the index data directory can be
// created and written.
func (c *Checker) CheckDataDirWritable() CheckResult {
	result := CheckResult{Name: "data_dir", Required: true}

	if err := os.MkdirAll(c.dataDir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", c.dataDir, err)
		return result
	}

	probe := filepath.Join(c.dataDir, ".sentinel-preflight")
	f, err := os.Create(probe)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot write to %s: %v", c.dataDir, err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(probe)

	result.Status = StatusPass
	result.Message = c.dataDir + " writable"
	return result
}

// CheckEmbedder probes the embedding provider. Failure is a warning
// since search degrades to lexical-only rather than breaking.
func (c *Checker) CheckEmbedder(ctx context.Context) CheckResult {
	result := CheckResult{Name: "embedder", Required: false}

	if !c.Embedder.Available(ctx) {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s unavailable, vector search degraded", c.Embedder.ModelName())
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s (%d dims)", c.Embedder.ModelName(), c.Embedder.Dimensions())
	return result
}

// CheckIndexIntegrity verifies chunk counts are consistent for every
// indexed file.
func (c *Checker) CheckIndexIntegrity(ctx context.Context) CheckResult {
	result := CheckResult{Name: "index_integrity", Required: false}

	files, err := c.Store.ListFiles(ctx)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("list indexed files: %v", err)
		return result
	}

	corrupt := 0
	for _, f := range files {
		if err := c.Store.CheckIntegrity(ctx, f.Path); err != nil {
			corrupt++
		}
	}
	if corrupt > 0 {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%d of %d files inconsistent, reindex to repair", corrupt, len(files))
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d files consistent", len(files))
	return result
}
