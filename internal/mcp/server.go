// Package mcp exposes the session commands as MCP tools over stdio. One
// MCP process owns one session, so login state and the read cursor behave
// exactly as they do on a socket connection.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pkaski/cubby/internal/config"
	"github.com/pkaski/cubby/internal/userstore"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"cubby_register": {
		def:     registerToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRegister },
	},
	"cubby_login": {
		def:     loginToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLogin },
	},
	"cubby_list": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"cubby_change_folder": {
		def:     changeFolderToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleChangeFolder },
	},
	"cubby_read_file": {
		def:     readFileToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReadFile },
	},
	"cubby_write_file": {
		def:     writeFileToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleWriteFile },
	},
	"cubby_create_folder": {
		def:     createFolderToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCreateFolder },
	},
}

// Tool definitions

var registerToolDef = mcp.NewTool("cubby_register",
	mcp.WithDescription("Register a new user account. Registering does not log the session in."),
	mcp.WithString("username", mcp.Required(), mcp.Description("Account name, case-sensitive")),
	mcp.WithString("password", mcp.Required(), mcp.Description("Account password")),
)

var loginToolDef = mcp.NewTool("cubby_login",
	mcp.WithDescription("Log the session in as an existing user. Replaces any current login."),
	mcp.WithString("username", mcp.Required(), mcp.Description("Account name")),
	mcp.WithString("password", mcp.Required(), mcp.Description("Account password")),
)

var listToolDef = mcp.NewTool("cubby_list",
	mcp.WithDescription("List the contents of the current directory."),
)

var changeFolderToolDef = mcp.NewTool("cubby_change_folder",
	mcp.WithDescription("Change the current directory. Use '..' to go up one level."),
	mcp.WithString("folder_name", mcp.Required(), mcp.Description("Child folder name, or '..'")),
)

var readFileToolDef = mcp.NewTool("cubby_read_file",
	mcp.WithDescription("Read the next 100 characters of a file. Omit file_name to close the open file."),
	mcp.WithString("file_name", mcp.Description("File in the current directory")),
)

var writeFileToolDef = mcp.NewTool("cubby_write_file",
	mcp.WithDescription("Write to a file in the current directory. Appends on a new line when the file exists and input is given, creates or truncates otherwise."),
	mcp.WithString("file_name", mcp.Required(), mcp.Description("Target file name")),
	mcp.WithString("input", mcp.Description("Content to write")),
)

var createFolderToolDef = mcp.NewTool("cubby_create_folder",
	mcp.WithDescription("Create a new folder in the current directory."),
	mcp.WithString("folder_name", mcp.Required(), mcp.Description("New folder name")),
)

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// NewServer creates a new MCP server with the Cubby tools registered.
func NewServer(users *userstore.Store, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"cubby",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(users, cfg)
	for _, entry := range toolRegistry {
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(users *userstore.Store, cfg *config.Config, version string) error {
	s := NewServer(users, cfg, version)
	return server.ServeStdio(s)
}
