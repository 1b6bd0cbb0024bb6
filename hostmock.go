// Package hostmock supervises ephemeral mock API server processes. It is a
// thin, stable facade over the internal supervisor for embedding in other
// programs; the hostmock CLI is built on the same surface.
package hostmock

import (
	"context"
	"log/slog"
	"time"

	"github.com/hostmock/hostmock/internal/history"
	"github.com/hostmock/hostmock/internal/logger"
	"github.com/hostmock/hostmock/internal/manager"
	"github.com/hostmock/hostmock/internal/mock"
	"github.com/hostmock/hostmock/internal/port"
	"github.com/hostmock/hostmock/internal/spawn"
)

// Re-export core types for external consumers. These are aliases so
// conversions are zero-cost.

type Record = mock.Record

type StartConfig = mock.StartConfig

type State = mock.State

const (
	StateStarting = mock.StateStarting
	StateRunning  = mock.StateRunning
	StateStopped  = mock.StateStopped
	StateError    = mock.StateError
)

type HistorySink = history.Sink

// Options configures an embedded supervisor. The zero value uses the
// standard tool contract, port range, and timeouts.
type Options struct {
	ToolCommand string        // default "prism"
	ReadyMarker string        // default "Prism is listening"
	CaptureDir  string        // rotating child output capture, empty disables
	StopGrace   time.Duration // default 2s
	Logger      *slog.Logger
	Sinks       []HistorySink
}

// Supervisor is the embeddable mock server supervisor.
type Supervisor struct{ inner *manager.Manager }

// New constructs an isolated Supervisor; no process-wide state is shared
// between instances.
func New(opts Options) *Supervisor {
	tool := spawn.DefaultTool()
	if opts.ToolCommand != "" {
		tool.Command = opts.ToolCommand
	}
	if opts.ReadyMarker != "" {
		tool.ReadyMarker = opts.ReadyMarker
	}
	sp := spawn.NewSpawner(tool, logger.Config{Dir: opts.CaptureDir}, opts.Logger)
	mopts := []manager.Option{
		manager.WithHistorySinks(opts.Sinks...),
	}
	if opts.StopGrace > 0 {
		mopts = append(mopts, manager.WithStopGrace(opts.StopGrace))
	}
	if opts.Logger != nil {
		mopts = append(mopts, manager.WithLogger(opts.Logger))
	}
	return &Supervisor{inner: manager.New(port.Default(), sp, mopts...)}
}

func (s *Supervisor) StartServer(ctx context.Context, id string, cfg StartConfig) (Record, error) {
	return s.inner.StartServer(ctx, id, cfg)
}

func (s *Supervisor) StopServer(ctx context.Context, id string) error {
	return s.inner.StopServer(ctx, id)
}

func (s *Supervisor) GetServerInfo(id string) (Record, bool) { return s.inner.GetServerInfo(id) }

func (s *Supervisor) GetAllServers() map[string]Record { return s.inner.GetAllServers() }

func (s *Supervisor) Cleanup(ctx context.Context) { s.inner.Cleanup(ctx) }

// Manager exposes the underlying manager for mounting the HTTP control API.
func (s *Supervisor) Manager() *manager.Manager { return s.inner }
