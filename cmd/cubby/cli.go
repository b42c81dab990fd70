package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pkaski/cubby/internal/audit"
	"github.com/pkaski/cubby/internal/client"
	"github.com/pkaski/cubby/internal/config"
	"github.com/pkaski/cubby/internal/errors"
	"github.com/pkaski/cubby/internal/logging"
	"github.com/pkaski/cubby/internal/mcp"
	"github.com/pkaski/cubby/internal/server"
	"github.com/pkaski/cubby/internal/userstore"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp() *cli.App {
	app := &cli.App{
		Name:    "cubby",
		Usage:   "Per-user sandboxed file server over a text protocol",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base-dir", Usage: "Base directory (default: ~/.cubby)"},
		},
		Commands: []*cli.Command{
			serveCmd(),
			connectCmd(),
			mcpCmd(),
			logCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd creates the serve command.
func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the TCP server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Aliases: []string{"a"}, Usage: "Listen address (overrides config)"},
			&cli.IntFlag{Name: "max-sessions", Usage: "Concurrent session cap, 0 for unlimited (overrides config)"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level: debug|info|warn|error (overrides config)"},
			&cli.StringFlag{Name: "log-format", Usage: "Log format: text|json (overrides config)"},
			&cli.BoolFlag{Name: "no-audit", Usage: "Disable the command audit log"},
		},
		Action: func(c *cli.Context) error {
			baseDir, err := resolveBaseDir(c)
			if err != nil {
				return outputError(err)
			}

			cfg, err := config.Load(baseDir)
			if err != nil {
				return outputError(fmt.Errorf("failed to load config: %w", err))
			}
			cfg = config.Merge(cfg, &config.Config{
				ListenAddr:   c.String("addr"),
				MaxSessions:  c.Int("max-sessions"),
				LogLevel:     c.String("log-level"),
				LogFormat:    c.String("log-format"),
				DisableAudit: c.Bool("no-audit"),
			})

			logger := logging.New(cfg.LogLevel, cfg.LogFormat)

			users, err := userstore.Open(cfg.UsersFile)
			if err != nil {
				return outputError(fmt.Errorf("failed to open user store: %w", err))
			}

			var recorder audit.Recorder = audit.NopRecorder{}
			if !cfg.DisableAudit {
				log, err := audit.Init(baseDir)
				if err != nil {
					return outputError(fmt.Errorf("failed to initialize audit log: %w", err))
				}
				defer log.Close()
				recorder = log
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(cfg, users, recorder, logger)
			if err := srv.Start(ctx); err != nil && err != context.Canceled {
				return outputError(err)
			}
			return nil
		},
	}
}

// connectCmd creates the connect command.
func connectCmd() *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Connect to a running server as an interactive client",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Aliases: []string{"a"}, Usage: "Server address (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			baseDir, err := resolveBaseDir(c)
			if err != nil {
				return outputError(err)
			}

			cfg, err := config.Load(baseDir)
			if err != nil {
				return outputError(fmt.Errorf("failed to load config: %w", err))
			}

			addr := cfg.ListenAddr
			if a := c.String("addr"); a != "" {
				addr = a
			}

			if err := client.Run(addr, os.Stdin, os.Stdout); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdio (one session per process)",
		Action: func(c *cli.Context) error {
			baseDir, err := resolveBaseDir(c)
			if err != nil {
				return outputError(err)
			}

			cfg, err := config.Load(baseDir)
			if err != nil {
				return outputError(fmt.Errorf("failed to load config: %w", err))
			}

			users, err := userstore.Open(cfg.UsersFile)
			if err != nil {
				return outputError(fmt.Errorf("failed to open user store: %w", err))
			}

			if err := mcp.Run(users, cfg, Version); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// logCmd creates the log command.
func logCmd() *cli.Command {
	return &cli.Command{
		Name:  "log",
		Usage: "Show recent audit log entries",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum entries to show"},
		},
		Action: func(c *cli.Context) error {
			baseDir, err := resolveBaseDir(c)
			if err != nil {
				return outputError(err)
			}

			log, err := audit.Init(baseDir)
			if err != nil {
				return outputError(fmt.Errorf("failed to open audit log: %w", err))
			}
			defer log.Close()

			entries, err := log.Recent(c.Int("limit"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(entries)
		},
	}
}

// Helper functions

// resolveBaseDir returns the --base-dir flag value, defaulting to ~/.cubby.
func resolveBaseDir(c *cli.Context) (string, error) {
	if dir := c.String("base-dir"); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".cubby"), nil
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if cErr, ok := err.(*errors.CubbyError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", cErr.Code, cErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
