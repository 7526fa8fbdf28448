// Package mcp exposes the engine to MCP clients over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"

	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeDocumentNotFound indicates the document does not exist.
	ErrCodeDocumentNotFound = -32001

	// ErrCodeDependencyUnavailable indicates the LLM or graph store is down.
	ErrCodeDependencyUnavailable = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// ErrCodeIndexInconsistent indicates the derived indexes diverged.
	ErrCodeIndexInconsistent = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// MapError converts internal errors to MCP errors. SupaError suggestions are
// folded into the message so the client can relay them.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var se *sqerrors.SupaError
	if errors.As(err, &se) {
		return mapSupaError(se)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

func mapSupaError(se *sqerrors.SupaError) *MCPError {
	message := se.Message
	if se.Suggestion != "" {
		message = fmt.Sprintf("%s %s", se.Message, se.Suggestion)
	}

	switch se.Category {
	case sqerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case sqerrors.CategoryDependency:
		switch se.Code {
		case sqerrors.ErrCodeLLMTimeout, sqerrors.ErrCodeGraphTimeout:
			return &MCPError{Code: ErrCodeTimeout, Message: message}
		default:
			return &MCPError{Code: ErrCodeDependencyUnavailable, Message: message}
		}
	case sqerrors.CategoryStorage:
		switch se.Code {
		case sqerrors.ErrCodeFileNotFound:
			return &MCPError{Code: ErrCodeDocumentNotFound, Message: message}
		case sqerrors.ErrCodeIndexInconsistent:
			return &MCPError{Code: ErrCodeIndexInconsistent, Message: message}
		default:
			return &MCPError{Code: ErrCodeInternalError, Message: message}
		}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
