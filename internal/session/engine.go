// Package session implements the per-connection command engine: one
// mutable session state plus the static command table, with a single
// Execute entry point that turns a raw request line into response text.
package session

import (
	"fmt"
	"strings"

	"github.com/pkaski/cubby/internal/errors"
	"github.com/pkaski/cubby/internal/sandbox"
	"github.com/pkaski/cubby/internal/userstore"
)

// Fixed dispatch responses. These are structural, deliberately outside the
// "Error: " convention.
const (
	unknownCommandText = "Command not found, try again. Type 'help' to see possible commands"
	badArityText       = "The number of arguments is incorrect, please try again"
)

// errorPrefix fronts every handler failure on the wire.
const errorPrefix = "Error: "

// Engine owns one session's state: the authenticated user, the active
// sandbox, and the command table. It is used by exactly one connection
// goroutine at a time.
type Engine struct {
	users   *userstore.Store
	dataDir string

	user *userstore.User
	box  *sandbox.Sandbox

	commands []*Command
	byName   map[string]*Command

	closeRequested bool
}

// New creates an engine in the anonymous state. dataDir is where per-user
// sandbox roots live.
func New(users *userstore.Store, dataDir string) *Engine {
	e := &Engine{
		users:    users,
		dataDir:  dataDir,
		commands: commandTable(),
	}
	e.byName = make(map[string]*Command, len(e.commands))
	for _, c := range e.commands {
		e.byName[c.Name] = c
	}
	return e
}

// Username returns the authenticated username, or "" while anonymous.
func (e *Engine) Username() string {
	if e.user == nil {
		return ""
	}
	return e.user.Username
}

// Execute runs one raw request line and returns the response text plus a
// flag telling the transport to close the connection. Every path returns
// text; handler failures are rendered, never propagated. Dispatch
// failures keep their bare structural texts, outside the "Error: "
// convention.
func (e *Engine) Execute(line string) (response string, closed bool) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return unknownCommandText, false
	}

	out, err := e.Run(tokens[0], tokens[1:])
	if err != nil {
		if errors.Is(err, errors.ErrBadRequest) {
			return err.(*errors.CubbyError).Message, false
		}
		return errorPrefix + errorMessage(err), false
	}
	return out, e.closeRequested
}

// Run dispatches one command by name with pre-split arguments and returns
// the handler's raw result. Unlike Execute it surfaces errors to the
// caller; non-line-based frontends use it to keep arguments containing
// whitespace intact.
func (e *Engine) Run(name string, args []string) (string, error) {
	cmd, ok := e.byName[strings.ToLower(name)]
	if !ok {
		return "", errors.NewBadRequest(unknownCommandText)
	}
	if len(args) < cmd.requiredArgs() {
		return "", errors.NewBadRequest(badArityText)
	}
	return cmd.Run(e, args)
}

// IsErrorResponse reports whether a response text represents a failed
// command, including the structural dispatch texts.
func IsErrorResponse(text string) bool {
	return strings.HasPrefix(text, errorPrefix) ||
		text == unknownCommandText ||
		text == badArityText
}

// errorMessage extracts the client-facing message from a handler error.
func errorMessage(err error) string {
	if cErr, ok := err.(*errors.CubbyError); ok {
		return cErr.Message
	}
	return err.Error()
}

// requireLogin guards commands that need an authenticated session.
func (e *Engine) requireLogin() error {
	if e.user == nil {
		return errors.NewNotLoggedIn()
	}
	return nil
}

// Handlers

func (e *Engine) register(args []string) (string, error) {
	if _, err := e.users.Register(args[0], args[1]); err != nil {
		return "", err
	}
	return "Successfully registered", nil
}

// login replaces the session identity and builds a fresh sandbox, dropping
// any prior sandbox state including an open read cursor.
func (e *Engine) login(args []string) (string, error) {
	u, err := e.users.Authenticate(args[0], args[1])
	if err != nil {
		return "", err
	}

	box, err := sandbox.New(e.dataDir, u.Username)
	if err != nil {
		return "", errors.NewInternal(err)
	}

	e.user = u
	e.box = box
	return "Successfully logged in", nil
}

func (e *Engine) list(args []string) (string, error) {
	if err := e.requireLogin(); err != nil {
		return "", err
	}
	entries, err := e.box.List()
	if err != nil {
		return "", err
	}
	return renderListing(entries), nil
}

func (e *Engine) changeFolder(args []string) (string, error) {
	if err := e.requireLogin(); err != nil {
		return "", err
	}
	wd, err := e.box.ChangeFolder(args[0])
	if err != nil {
		return "", err
	}
	return "Current directory changed to " + wd, nil
}

func (e *Engine) readFile(args []string) (string, error) {
	if err := e.requireLogin(); err != nil {
		return "", err
	}
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	return e.box.ReadFile(name)
}

func (e *Engine) writeFile(args []string) (string, error) {
	if err := e.requireLogin(); err != nil {
		return "", err
	}

	name := args[0]
	content := ""
	hasContent := len(args) > 1
	if hasContent {
		content = args[1]
	}

	if err := e.box.WriteFile(name, content, hasContent); err != nil {
		return "", err
	}
	return "Successfully wrote to file " + name, nil
}

func (e *Engine) createFolder(args []string) (string, error) {
	if err := e.requireLogin(); err != nil {
		return "", err
	}
	if err := e.box.CreateFolder(args[0]); err != nil {
		return "", err
	}
	return "Successfully created folder " + args[0], nil
}

func (e *Engine) help(args []string) (string, error) {
	var b strings.Builder
	b.WriteString("Available commands\n")
	b.WriteString(strings.Repeat("=", 80))
	b.WriteString("\n")

	for _, c := range e.commands {
		placeholders := make([]string, len(c.Args))
		for i, a := range c.Args {
			placeholders[i] = "<" + a.Name + ">"
		}
		fmt.Fprintf(&b, "%-15s%-24s%-50s\n", c.Name, strings.Join(placeholders, " "), c.Help)

		for _, a := range c.Args {
			opt := ""
			if a.Optional {
				opt = "[optional]"
			}
			fmt.Fprintf(&b, "%-15s%-12s%-12s%-50s\n", "", "-"+a.Name, opt, a.Description)
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}

func (e *Engine) exit(args []string) (string, error) {
	e.closeRequested = true
	return "Goodbye!", nil
}

// renderListing formats directory entries in the protocol's fixed-width
// table: files get size and timestamp columns, directories a trailing
// separator. Entry order is whatever the sandbox enumeration yielded.
func renderListing(entries []sandbox.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-30s%-30s%-30s", "Name", "Size", "Created")
	b.WriteString("\n")
	b.WriteString(strings.Repeat("-", 90))
	b.WriteString("\n")

	for _, e := range entries {
		if e.IsDir {
			b.WriteString(e.Name + "/\n")
			continue
		}
		fmt.Fprintf(&b, "%-30s%-30s%-30s\n",
			e.Name,
			fmt.Sprintf("%dB", e.Size),
			e.Modified.Format("2006-01-02 15:04:05"))
	}

	return b.String()
}
