package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	senterrors "github.com/moyger/sentinel/internal/errors"
)

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_SentinelCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"file not found", senterrors.New(senterrors.ErrCodeFileNotFound, "x.md", nil), ErrCodeFileNotFound},
		{"too large", senterrors.New(senterrors.ErrCodeFileTooLarge, "x.md", nil), ErrCodeFileTooLarge},
		{"corrupt index", senterrors.CorruptionError("x.md", nil), ErrCodeIndexCorrupt},
		{"embedding down", senterrors.EmbeddingUnavailable("ollama", nil), ErrCodeEmbeddingFailed},
		{"bad input", senterrors.InputError("bad", nil), ErrCodeInvalidParams},
		{"internal", senterrors.InternalError("boom", nil), ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapError(tt.err).Code)
		})
	}
}

func TestMapError_ContextErrors(t *testing.T) {
	assert.Equal(t, ErrCodeTimeout, MapError(context.DeadlineExceeded).Code)
	assert.Equal(t, ErrCodeTimeout, MapError(context.Canceled).Code)
}

func TestMapError_PlainError(t *testing.T) {
	e := MapError(errors.New("something broke"))
	assert.Equal(t, ErrCodeInternalError, e.Code)
	assert.Contains(t, e.Error(), "something broke")
}
