// Package cli implements the flowsync command-line interface.
//
// The main commands are:
//   - serve: run the WebSocket bridge that hosts editor sessions
//   - layout: compute node positions for a graph file
//   - check: validate a candidate edge or preview a deletion
//   - render: export a graph file as DOT, SVG, PNG or PDF
//   - history: list or browse journaled envelopes
//   - cache, config: manage the layout cache and the configuration file
//
// All commands support --verbose (-v) for debug-level logging and --config
// to select a configuration file. The logger is attached to the command
// context and retrieved with loggerFromContext.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/flowco/flowsync/pkg/buildinfo"
	"github.com/flowco/flowsync/pkg/cache"
	"github.com/flowco/flowsync/pkg/config"
	"github.com/flowco/flowsync/pkg/errors"
	"github.com/flowco/flowsync/pkg/flow"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	verbose    bool
	cfg        *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           config.AppName,
		Short:         "flowsync keeps a node-graph editor in sync with its host",
		Long:          `flowsync reconciles host graph snapshots with local edits, lays graphs out and serves editor sessions over WebSocket.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbose {
				c.SetLogLevel(LogDebug)
			}
			console = cmd.OutOrStdout()
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/flowsync/config.toml)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(c.serveCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.checkCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.historyCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig loads the configuration once per process. The log level from the
// file applies unless --verbose was given.
func (c *CLI) loadConfig() (config.Config, error) {
	if c.cfg != nil {
		return *c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if !c.verbose {
		c.SetLogLevel(cfg.LogLevel())
	}
	c.cfg = &cfg
	return cfg, nil
}

// openCache opens the configured cache, or a null cache when noCache is set.
func (c *CLI) openCache(ctx context.Context, cfg config.Config, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	cc, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", cfg.Cache.Backend, err)
	}
	return cc, nil
}

// readGraphFile decodes a snapshot-shaped JSON graph file. Only nodes and
// edges are required; host arguments such as layoutOptions are optional.
func readGraphFile(path string) (flow.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return flow.Snapshot{}, err
	}
	defer f.Close()
	return decodeGraph(f)
}

func decodeGraph(r io.Reader) (flow.Snapshot, error) {
	var snap flow.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return flow.Snapshot{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode graph")
	}
	return snap, nil
}

// writeGraphFile writes snap as indented JSON.
func writeGraphFile(snap flow.Snapshot, path string) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{formatSVG}
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(parts[i]))
	}
	return parts
}
