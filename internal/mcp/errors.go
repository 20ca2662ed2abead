package mcp

import (
	"context"
	"errors"
	"fmt"

	senterrors "github.com/moyger/sentinel/internal/errors"
)

// Custom MCP error codes for Sentinel.
const (
	// ErrCodeIndexCorrupt indicates the index failed an integrity check.
	ErrCodeIndexCorrupt = -32001

	// ErrCodeEmbeddingFailed indicates embedding generation failed.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// ErrCodeFileNotFound indicates a file no longer exists on disk.
	ErrCodeFileNotFound = -32004

	// ErrCodeFileTooLarge indicates a file is too large to process.
	ErrCodeFileTooLarge = -32005

	// Standard JSON-RPC error codes.
	ErrCodeInvalidParams = -32602
	ErrCodeInternalError = -32603
)

// MCPError is an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an invalid-params error.
func NewInvalidParamsError(message string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: message}
}

// NewInternalError creates an internal error.
func NewInternalError(message string) *MCPError {
	return &MCPError{Code: ErrCodeInternalError, Message: message}
}

// MapError converts internal errors to MCP protocol errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var sentErr *senterrors.SentinelError
	if errors.As(err, &sentErr) {
		return mapSentinelError(sentErr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
	}
}

func mapSentinelError(err *senterrors.SentinelError) *MCPError {
	switch err.Code {
	case senterrors.ErrCodeFileNotFound:
		return &MCPError{
			Code:    ErrCodeFileNotFound,
			Message: fmt.Sprintf("File not found: %s", err.Message),
		}
	case senterrors.ErrCodeFileTooLarge:
		return &MCPError{
			Code:    ErrCodeFileTooLarge,
			Message: "File is too large to index.",
		}
	case senterrors.ErrCodeIndexCorrupt:
		return &MCPError{
			Code:    ErrCodeIndexCorrupt,
			Message: "Index integrity check failed. Reindex the file.",
		}
	case senterrors.ErrCodeEmbeddingUnavailable:
		return &MCPError{
			Code:    ErrCodeEmbeddingFailed,
			Message: "Embedding backend unavailable. Keyword search still works.",
		}
	case senterrors.ErrCodeInvalidInput, senterrors.ErrCodeInvalidQuery, senterrors.ErrCodeInvalidPath:
		return &MCPError{Code: ErrCodeInvalidParams, Message: err.Message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: err.Message}
	}
}
