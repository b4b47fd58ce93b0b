package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/untillpro/goutils/logger"

	"github.com/mesh-intelligence/crudforms/internal/demo"
	"github.com/mesh-intelligence/crudforms/internal/server"
	"github.com/mesh-intelligence/crudforms/pkg/crud"
)

type serveFlags struct {
	addr     string
	watch    bool
	debounce time.Duration
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	sf := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo application over HTTP",
		Long: "Serve the demo application. Every browser interaction reruns the\n" +
			"application; connected browsers rerun after each submission.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags, sf)
		},
	}
	cmd.Flags().StringVar(&sf.addr, "addr", "", "listen address (default: addr from config.yaml, :8080)")
	cmd.Flags().BoolVar(&sf.watch, "watch", false, "rerun browsers when the SQLite file changes")
	cmd.Flags().DurationVar(&sf.debounce, "debounce", 500*time.Millisecond, "quiet period before a file change is reported")
	return cmd
}

func runServe(cmd *cobra.Command, flags *rootFlags, sf *serveFlags) error {
	s, err := loadSettings(flags)
	if err != nil {
		return err
	}
	addr := s.Addr
	if sf.addr != "" {
		addr = sf.addr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := crud.NewHandle()
	if err := h.Initialize(ctx, s.Store); err != nil {
		return sysError("connecting to %s: %w", s.Store.Backend, err)
	}
	defer h.Close()
	if err := demo.Setup(ctx, h); err != nil {
		return sysError("creating tables: %w", err)
	}

	srv := server.New(demo.App(h), server.WithTitle("crudforms demo"))
	defer srv.Close()

	if sf.watch {
		b, err := h.Backend()
		if err != nil {
			return sysError("%w", err)
		}
		if path := b.Path(); path != "" {
			if err := srv.StartWatching(path, sf.debounce); err != nil {
				return sysError("watching %s: %w", path, err)
			}
		} else {
			logger.Warning("--watch needs a SQLite data directory; not watching")
		}
	}

	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Serving on %s\n", addr)
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		return sysError("serving: %w", err)
	}
	if ctx.Err() != nil && cmd.Context().Err() == nil {
		logger.Info("interrupted, shutting down")
	}
	return nil
}
