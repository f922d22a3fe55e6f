package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	serverrun "github.com/rzbill/tailview/internal/cmd/server"
	cfgpkg "github.com/rzbill/tailview/internal/config"
	"github.com/rzbill/tailview/internal/runtime"
	"github.com/rzbill/tailview/internal/tui"
	logpkg "github.com/rzbill/tailview/pkg/log"
)

func newViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view [url]",
		Short: "Ingest a stream and browse it in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Stream.URL = args[0]
			}
			logger, err := newLogger(cfg, true)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			rt, err := runtime.Open(ctx, runtime.Options{Config: cfg, Logger: logger})
			if err != nil {
				return err
			}
			defer rt.Close()
			sess := rt.NewSession()
			if err := sess.Start(ctx); err != nil {
				return err
			}
			defer sess.Stop()
			return tui.Run(ctx, sess)
		},
	}
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve [url]",
		Short:   "Ingest a stream and expose the viewer over HTTP",
		Aliases: []string{"server"},
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Stream.URL = args[0]
			}
			if cmd.Flags().Changed("container-height") {
				cfg.Viewport.ContainerHeightPx, _ = cmd.Flags().GetFloat64("container-height")
			}
			httpAddr, _ := cmd.Flags().GetString("http")
			logger, err := newLogger(cfg, false)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{Config: cfg, HTTPAddr: httpAddr, Logger: logger}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().String("http", ":8080", "HTTP listen address")
	cmd.Flags().Float64("container-height", 0, "Initial container height in px for clients that never POST /v1/resize")
	return cmd
}

func newCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of stored log lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, func(ctx context.Context, rt *runtime.Runtime) error {
				n, err := rt.Store().Count(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print stored lines with ids in [low, high]",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			low, _ := cmd.Flags().GetUint64("low")
			high, _ := cmd.Flags().GetUint64("high")
			return withRuntime(cmd, func(ctx context.Context, rt *runtime.Runtime) error {
				entries, err := rt.Store().GetRange(ctx, low, high)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, e := range entries {
					fmt.Fprintf(out, "%d\t%s\n", e.ID, e.Text)
				}
				return nil
			})
		},
	}
	cmd.Flags().Uint64("low", 1, "First id (inclusive)")
	cmd.Flags().Uint64("high", 100, "Last id (inclusive)")
	return cmd
}

// compacter is implemented by stores that can reclaim space after Clear.
type compacter interface {
	Compact() error
}

func newClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored line and restart ids at 1",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			compact, _ := cmd.Flags().GetBool("compact")
			return withRuntime(cmd, func(ctx context.Context, rt *runtime.Runtime) error {
				if err := rt.Store().Clear(ctx); err != nil {
					return err
				}
				if c, ok := rt.Store().(compacter); ok && compact {
					if err := c.Compact(); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), "cleared")
				return nil
			})
		},
	}
	cmd.Flags().Bool("compact", false, "Compact the store after clearing (pebble only)")
	return cmd
}

// withRuntime opens the configured store for a one-shot maintenance command.
func withRuntime(cmd *cobra.Command, fn func(context.Context, *runtime.Runtime) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Store.Backend == cfgpkg.BackendMemory {
		return fmt.Errorf("%s needs a persistent backend", cmd.Name())
	}
	logger, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := runtime.Open(ctx, runtime.Options{Config: cfg, Logger: logger.With(logpkg.Component("cli"))})
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}
