package mcp

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/pkaski/cubby/internal/config"
	"github.com/pkaski/cubby/internal/errors"
	"github.com/pkaski/cubby/internal/session"
	"github.com/pkaski/cubby/internal/userstore"
)

// Handlers holds the one session engine behind the tool surface. The MCP
// library may run tool calls concurrently; the engine is single-session
// state, so calls are serialized.
type Handlers struct {
	mu     sync.Mutex
	engine *session.Engine
}

// NewHandlers creates a new Handlers instance with a fresh session.
func NewHandlers(users *userstore.Store, cfg *config.Config) *Handlers {
	return &Handlers{engine: session.New(users, cfg.DataDir)}
}

// run dispatches one command through the engine under the lock.
func (h *Handlers) run(name string, args ...string) (*mcp.CallToolResult, error) {
	h.mu.Lock()
	out, err := h.engine.Run(name, args)
	h.mu.Unlock()

	if err != nil {
		return errorResult(err), nil
	}
	return successResult(out)
}

// Request types for each tool

// RegisterRequest represents the arguments for register.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest represents the arguments for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ChangeFolderRequest represents the arguments for change_folder.
type ChangeFolderRequest struct {
	FolderName string `json:"folder_name"`
}

// ReadFileRequest represents the arguments for read_file.
type ReadFileRequest struct {
	FileName string `json:"file_name,omitempty"`
}

// WriteFileRequest represents the arguments for write_file.
type WriteFileRequest struct {
	FileName string  `json:"file_name"`
	Input    *string `json:"input,omitempty"`
}

// CreateFolderRequest represents the arguments for create_folder.
type CreateFolderRequest struct {
	FolderName string `json:"folder_name"`
}

// Handler implementations

// HandleRegister handles the cubby_register tool call.
func (h *Handlers) HandleRegister(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, cErr := decode[RegisterRequest](req)
	if cErr != nil {
		return errorResult(cErr), nil
	}
	return h.run("register", input.Username, input.Password)
}

// HandleLogin handles the cubby_login tool call.
func (h *Handlers) HandleLogin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, cErr := decode[LoginRequest](req)
	if cErr != nil {
		return errorResult(cErr), nil
	}
	return h.run("login", input.Username, input.Password)
}

// HandleList handles the cubby_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.run("list")
}

// HandleChangeFolder handles the cubby_change_folder tool call.
func (h *Handlers) HandleChangeFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, cErr := decode[ChangeFolderRequest](req)
	if cErr != nil {
		return errorResult(cErr), nil
	}
	return h.run("change_folder", input.FolderName)
}

// HandleReadFile handles the cubby_read_file tool call. Each call returns
// the next chunk; an omitted file_name closes the open file.
func (h *Handlers) HandleReadFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, cErr := decode[ReadFileRequest](req)
	if cErr != nil {
		return errorResult(cErr), nil
	}
	if input.FileName == "" {
		return h.run("read_file")
	}
	return h.run("read_file", input.FileName)
}

// HandleWriteFile handles the cubby_write_file tool call. Unlike the line
// protocol, input may contain whitespace.
func (h *Handlers) HandleWriteFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, cErr := decode[WriteFileRequest](req)
	if cErr != nil {
		return errorResult(cErr), nil
	}
	if input.Input == nil {
		return h.run("write_file", input.FileName)
	}
	return h.run("write_file", input.FileName, *input.Input)
}

// HandleCreateFolder handles the cubby_create_folder tool call.
func (h *Handlers) HandleCreateFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, cErr := decode[CreateFolderRequest](req)
	if cErr != nil {
		return errorResult(cErr), nil
	}
	return h.run("create_folder", input.FolderName)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: internal error details are not exposed to prevent leaking paths.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if cErr, ok := err.(*errors.CubbyError); ok && cErr.Code != errors.ErrInternal {
		payload = map[string]any{
			"error": map[string]any{
				"code":    cErr.Code,
				"message": cErr.Message,
			},
		}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult wraps the command's response text.
func successResult(output string) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(map[string]string{"output": output})
}
