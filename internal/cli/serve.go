package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowco/flowsync/pkg/bridge"
	"github.com/flowco/flowsync/pkg/config"
	"github.com/flowco/flowsync/pkg/journal"
	"github.com/flowco/flowsync/pkg/session"
)

// shutdownTimeout bounds graceful shutdown of open connections.
const shutdownTimeout = 5 * time.Second

// serveFlags override the [server] config section.
type serveFlags struct {
	addr           string
	pingInterval   time.Duration
	persist        bool
	allowedOrigins []string
}

func (f serveFlags) apply(cmd *cobra.Command, s config.ServerConfig) config.ServerConfig {
	if cmd.Flags().Changed("addr") {
		s.Addr = f.addr
	}
	if cmd.Flags().Changed("ping-interval") {
		s.PingInterval = config.Duration{Duration: f.pingInterval}
	}
	if cmd.Flags().Changed("persist") {
		s.PersistSnapshots = f.persist
	}
	if cmd.Flags().Changed("allowed-origin") {
		s.AllowedOrigins = f.allowedOrigins
	}
	return s
}

// serveCommand creates the serve command that runs the WebSocket bridge.
func (c *CLI) serveCommand() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve editor sessions over WebSocket",
		Long: `Serve editor sessions over WebSocket.

A host connects to /ws/{session} (or /ws/new for a fresh session) and
exchanges JSON frames: snapshots in, envelopes out. The cache and journal
backends come from the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			cfg.Server = flags.apply(cmd, cfg.Server)
			return c.runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&flags.addr, "addr", config.DefaultAddr, "listen address")
	cmd.Flags().DurationVar(&flags.pingInterval, "ping-interval", config.DefaultPingInterval, "WebSocket keepalive period (0 disables)")
	cmd.Flags().BoolVar(&flags.persist, "persist", false, "store each session's last envelope so hosts can resume")
	cmd.Flags().StringSliceVar(&flags.allowedOrigins, "allowed-origin", nil, "allowed Origin headers (default: any)")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, cfg config.Config) error {
	logger := loggerFromContext(ctx)

	cc, err := c.openCache(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer cc.Close()

	jr, err := journal.Open(ctx, cfg.Journal)
	if err != nil {
		return fmt.Errorf("open %s journal: %w", cfg.Journal.Backend, err)
	}
	defer jr.Close()

	reg := session.NewRegistry(session.Options{
		Logger:           logger,
		Cache:            cc,
		Keyer:            cfg.Cache.Keyer(),
		PersistSnapshots: cfg.Server.PersistSnapshots,
		Journal:          jr,
		MenuMargin:       cfg.Server.MenuMargin,
		Layout:           &cfg.Layout,
	})
	defer reg.Close()

	settings := bridge.DefaultSettings()
	settings.PingInterval = cfg.Server.PingInterval.Duration
	settings.AllowedOrigins = cfg.Server.AllowedOrigins

	srv := &http.Server{
		Handler:           bridge.NewServer(reg, logger, settings),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}

	printSuccess("Serving on %s", ln.Addr())
	printKeyValue("cache", cfg.Cache.Backend)
	printKeyValue("journal", journalLabel(cfg.Journal))
	printKeyValue("websocket", fmt.Sprintf("ws://%s/ws/%s", ln.Addr(), session.NewID))

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "sessions", reg.Len())
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", "err", err)
	}
	return nil
}

func journalLabel(o journal.Options) string {
	switch o.Backend {
	case "", journal.BackendNone:
		return "disabled"
	case journal.BackendFile:
		return o.Backend + " (" + o.Path + ")"
	default:
		return o.Backend
	}
}
