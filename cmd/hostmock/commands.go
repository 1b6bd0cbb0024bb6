package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hostmock/hostmock/internal/config"
	"github.com/hostmock/hostmock/internal/history"
	"github.com/hostmock/hostmock/internal/history/factory"
	"github.com/hostmock/hostmock/internal/logger"
	"github.com/hostmock/hostmock/internal/manager"
	"github.com/hostmock/hostmock/internal/metrics"
	"github.com/hostmock/hostmock/internal/mock"
	"github.com/hostmock/hostmock/internal/port"
	"github.com/hostmock/hostmock/internal/server"
	"github.com/hostmock/hostmock/internal/spawn"
	"github.com/hostmock/hostmock/pkg/client"
)

// apiFlags are shared by every client command.
type apiFlags struct {
	URL     string
	Timeout time.Duration
}

func (f *apiFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.URL, "api", client.DefaultConfig().BaseURL, "base URL of the hostmock daemon API")
	cmd.Flags().DurationVar(&f.Timeout, "api-timeout", client.DefaultConfig().Timeout, "API request timeout")
}

func (f *apiFlags) client() *client.Client {
	return client.New(client.Config{BaseURL: f.URL, Timeout: f.Timeout})
}

func buildRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "hostmock",
		Short:         "hostmock supervises ephemeral mock API servers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		serveCmd(),
		startCmd(),
		stopCmd(),
		statusCmd(),
		listCmd(),
		cleanupCmd(),
	)
	return root
}

func serveCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the supervisor daemon with the HTTP control API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fc, err := config.Load(configPath)
			if err != nil {
				return err
			}
			lg := logger.New(fc.LogLevel, fc.LogColor)

			if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
				return fmt.Errorf("register metrics: %w", err)
			}

			var sinks []history.Sink
			if fc.HistoryDSN != "" {
				sink, err := factory.NewSinkFromDSN(fc.HistoryDSN)
				if err != nil {
					return fmt.Errorf("history sink: %w", err)
				}
				sinks = append(sinks, sink)
			}

			alloc := port.NewAllocator(fc.Ports.Start, fc.Ports.End, fc.Ports.MaxRetries)
			sp := spawn.NewSpawner(fc.MockTool(), fc.Capture, lg)
			sp.Timeout = fc.Timeouts.Startup
			mgr := manager.New(alloc, sp,
				manager.WithStopGrace(fc.Timeouts.StopGrace),
				manager.WithMaxPortRetries(fc.Ports.MaxRetries),
				manager.WithLogger(lg),
				manager.WithHistorySinks(sinks...),
			)

			srv, err := server.NewServer(fc.Listen, fc.BasePath, mgr)
			if err != nil {
				return err
			}
			lg.Info("hostmock daemon listening", "addr", fc.Listen, "base_path", fc.BasePath)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig
			lg.Info("shutting down, stopping all mock servers")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			mgr.Cleanup(ctx)
			return srv.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to TOML config file")
	return cmd
}

func startCmd() *cobra.Command {
	var (
		api      apiFlags
		specPath string
		host     string
		pinned   int
	)
	cmd := &cobra.Command{
		Use:   "start <id>",
		Short: "Start a mock server for a validated API specification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := api.client().StartServer(cmd.Context(), args[0], mock.StartConfig{
				SpecPath: specPath,
				Host:     host,
				Port:     pinned,
			})
			if err != nil {
				return err
			}
			return printJSON(rec)
		},
	}
	api.register(cmd)
	cmd.Flags().StringVar(&specPath, "spec", "", "path to the validated API specification (required)")
	cmd.Flags().StringVar(&host, "host", "", "host to bind the mock server to (default loopback)")
	cmd.Flags().IntVar(&pinned, "port", 0, "pin a specific port (default: allocate)")
	_ = cmd.MarkFlagRequired("spec")
	return cmd
}

func stopCmd() *cobra.Command {
	var api apiFlags
	cmd := &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop a running mock server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return api.client().StopServer(cmd.Context(), args[0])
		},
	}
	api.register(cmd)
	return cmd
}

func statusCmd() *cobra.Command {
	var api apiFlags
	cmd := &cobra.Command{
		Use:   "status [id]",
		Short: "Show one or all mock server records",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				rec, err := api.client().GetServerInfo(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(rec)
			}
			all, err := api.client().GetAllServers(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(all)
		},
	}
	api.register(cmd)
	return cmd
}

func listCmd() *cobra.Command {
	var api apiFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every mock server record tracked by the daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, err := api.client().GetAllServers(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(all)
		},
	}
	api.register(cmd)
	return cmd
}

func cleanupCmd() *cobra.Command {
	var api apiFlags
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Stop all mock servers tracked by the daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return api.client().Cleanup(cmd.Context())
		},
	}
	api.register(cmd)
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
