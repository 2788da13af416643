package mcp

import (
	"errors"
	"fmt"

	"github.com/PR202111/GIT-PROJECT-reviewer/internal/tools"
	"github.com/PR202111/GIT-PROJECT-reviewer/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeNotIndexed         = -32001 // No completed index build
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeSearchFailed       = -32003 // The similarity query failed
)

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
	err     error
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func (e *MCPError) Unwrap() error {
	return e.err
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

// toMCPError maps a capability error onto an MCP error code
func toMCPError(err error) error {
	code := ErrorCodeInternalError
	switch {
	case tools.IsUserError(err):
		code = ErrorCodeInvalidParams
	case errors.Is(err, types.ErrNoIndex):
		code = ErrorCodeNotIndexed
	case errors.Is(err, types.ErrIndexingInProgress):
		code = ErrorCodeIndexingInProgress
	case errors.Is(err, types.ErrSearchFailed):
		code = ErrorCodeSearchFailed
	}
	return &MCPError{
		Code:    code,
		Message: err.Error(),
		Data:    map[string]interface{}{"error": err.Error()},
		err:     err,
	}
}
