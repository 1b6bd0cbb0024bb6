// Package manager supervises mock server processes: it allocates ports,
// spawns the external tool, attaches crash monitoring, and tracks every
// server in an in-memory registry keyed by spec identifier.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hostmock/hostmock/internal/history"
	"github.com/hostmock/hostmock/internal/metrics"
	"github.com/hostmock/hostmock/internal/mock"
	"github.com/hostmock/hostmock/internal/port"
	"github.com/hostmock/hostmock/internal/spawn"
)

const (
	// DefaultStopGrace is how long StopServer waits for a graceful exit
	// before escalating to a forced kill.
	DefaultStopGrace = 2 * time.Second

	// immediateCrashWindow classifies exits shortly after startup.
	immediateCrashWindow = 5 * time.Second

	// killReapWait bounds the wait for the reap after a forced kill.
	killReapWait = 2 * time.Second
)

// PortFinder locates a free TCP port at or above startPort.
type PortFinder interface {
	Find(startPort int) (int, error)
}

// ProcessSpawner launches mock server processes and performs startup
// detection. Implemented by *spawn.Spawner; faked in tests.
type ProcessSpawner interface {
	CheckInstalled(ctx context.Context) error
	Spawn(ctx context.Context, id, specPath, host string, p int) (spawn.Handle, error)
}

// Manager is the public surface of the supervisor. Construct instances with
// New; there is deliberately no package-level singleton so tests can create
// isolated supervisors.
type Manager struct {
	mu      sync.RWMutex
	records map[string]*mock.Record
	handles map[string]spawn.Handle

	alloc          PortFinder
	spawner        ProcessSpawner
	stopGrace      time.Duration
	maxPortRetries int
	logger         *slog.Logger
	sinks          []history.Sink
}

// Option customizes a Manager.
type Option func(*Manager)

func WithStopGrace(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.stopGrace = d
		}
	}
}

func WithMaxPortRetries(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxPortRetries = n
		}
	}
}

func WithLogger(lg *slog.Logger) Option {
	return func(m *Manager) {
		if lg != nil {
			m.logger = lg
		}
	}
}

// WithHistorySinks configures lifecycle event sinks. Sends are best-effort.
func WithHistorySinks(sinks ...history.Sink) Option {
	return func(m *Manager) {
		m.sinks = append([]history.Sink(nil), sinks...)
	}
}

func New(alloc PortFinder, sp ProcessSpawner, opts ...Option) *Manager {
	m := &Manager{
		records:        make(map[string]*mock.Record),
		handles:        make(map[string]spawn.Handle),
		alloc:          alloc,
		spawner:        sp,
		stopGrace:      DefaultStopGrace,
		maxPortRetries: port.MaxRetries,
		logger:         slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// StartServer brings up a mock server for id. Calling it while the record is
// already running returns that record unchanged without spawning. A call on
// a non-running id begins a fresh attempt, overwriting the previous terminal
// record.
func (m *Manager) StartServer(ctx context.Context, id string, cfg mock.StartConfig) (mock.Record, error) {
	if err := cfg.Validate(); err != nil {
		return mock.Record{}, err
	}

	m.mu.RLock()
	if rec, ok := m.records[id]; ok && rec.Status == mock.StateRunning {
		cp := *rec
		m.mu.RUnlock()
		return cp, nil
	}
	m.mu.RUnlock()

	// Tool gate: fail fast before any port probe or spawn.
	if err := m.spawner.CheckInstalled(ctx); err != nil {
		return mock.Record{}, err
	}

	startedAt := time.Now()
	m.setRecord(&mock.Record{ID: id, Status: mock.StateStarting, StartedAt: startedAt})

	handle, p, err := m.spawnWithPortRetry(ctx, id, cfg)
	if err != nil {
		m.mu.Lock()
		if rec, ok := m.records[id]; ok && rec.Status == mock.StateStarting {
			rec.Status = mock.StateError
			rec.Error = err.Error()
		}
		cp := m.records[id]
		snapshot := *cp
		m.mu.Unlock()
		metrics.IncStartFailure(id)
		m.emit(history.EventError, snapshot)
		m.logger.Error("mock server failed to start", "id", id, "err", err)
		return mock.Record{}, err
	}

	rec := &mock.Record{
		ID:        id,
		URL:       fmt.Sprintf("http://%s:%d", cfg.Host, p),
		Port:      p,
		PID:       handle.PID(),
		Status:    mock.StateRunning,
		StartedAt: startedAt,
	}
	m.mu.Lock()
	m.records[id] = rec
	m.handles[id] = handle
	snapshot := *rec
	m.mu.Unlock()

	metrics.IncStart(id)
	metrics.ObserveStartupDuration(id, time.Since(startedAt).Seconds())
	m.updateRunningGauge()
	m.emit(history.EventStarted, snapshot)
	m.logger.Info("mock server running", "id", id, "url", snapshot.URL, "pid", snapshot.PID)

	go m.watch(id, snapshot.PID, startedAt, handle)
	return snapshot, nil
}

// spawnWithPortRetry resolves the target port (caller-pinned if free, else
// allocated) and spawns, retrying on the next sequential candidate only when
// the child reports address-in-use. Any other failure aborts immediately.
func (m *Manager) spawnWithPortRetry(ctx context.Context, id string, cfg mock.StartConfig) (spawn.Handle, int, error) {
	searchFrom := cfg.Port
	var lastErr error
	for attempt := 0; attempt < m.maxPortRetries; attempt++ {
		p, err := m.alloc.Find(searchFrom)
		if err != nil {
			return nil, 0, err
		}
		h, err := m.spawner.Spawn(ctx, id, cfg.SpecPath, cfg.Host, p)
		if err == nil {
			return h, p, nil
		}
		var pc *spawn.PortConflictError
		if !errors.As(err, &pc) {
			return nil, 0, err
		}
		lastErr = err
		metrics.IncPortConflictRetry()
		m.logger.Warn("port conflict during spawn, retrying", "id", id, "port", p)
		searchFrom = p + 1
	}
	return nil, 0, fmt.Errorf("gave up after %d port conflicts: %w", m.maxPortRetries, lastErr)
}

// StopServer terminates the server gracefully, escalating to a forced kill
// after the grace period. Unknown ids are a hard error and mutate nothing.
// A record already in a terminal state is left untouched, preserving the
// recorded crash or failure reason.
func (m *Manager) StopServer(ctx context.Context, id string) error {
	m.mu.Lock()
	rec, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return &mock.NotFoundError{ID: id}
	}
	h := m.handles[id]
	if h == nil {
		// Terminal record, or a stop already in flight owns the handle.
		m.mu.Unlock()
		return nil
	}
	pid := rec.PID
	// Claim the exit: the crash monitor backs off once the handle entry is
	// gone, so an explicit stop is never classified as a crash.
	delete(m.handles, id)
	m.mu.Unlock()

	var retErr error
	_ = h.Terminate()
	select {
	case <-h.Done():
	case <-ctx.Done():
		_ = h.ForceKill()
		select {
		case <-h.Done():
		case <-time.After(killReapWait):
		}
		retErr = ctx.Err()
	case <-time.After(m.stopGrace):
		_ = h.ForceKill()
		select {
		case <-h.Done():
		case <-time.After(killReapWait):
		}
	}

	m.mu.Lock()
	if cur, ok := m.records[id]; ok && cur.PID == pid {
		cur.Status = mock.StateStopped
		cur.Error = ""
	}
	snapshot := *m.records[id]
	m.mu.Unlock()

	metrics.IncStop(id)
	m.updateRunningGauge()
	m.emit(history.EventStopped, snapshot)
	m.logger.Info("mock server stopped", "id", id)
	return retErr
}

// GetServerInfo returns a copy of the current record, if any.
func (m *Manager) GetServerInfo(id string) (mock.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return mock.Record{}, false
	}
	return *rec, true
}

// GetAllServers returns a copy of the registry.
func (m *Manager) GetAllServers() map[string]mock.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]mock.Record, len(m.records))
	for id, rec := range m.records {
		out[id] = *rec
	}
	return out
}

// Cleanup stops every tracked server, best-effort. Individual failures are
// logged and swallowed so one stuck process cannot block shutdown. Records
// are kept for later observation.
func (m *Manager) Cleanup(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		if err := m.StopServer(ctx, id); err != nil {
			m.logger.Warn("cleanup: failed to stop mock server", "id", id, "err", err)
		}
	}
}

func (m *Manager) setRecord(rec *mock.Record) {
	m.mu.Lock()
	m.records[rec.ID] = rec
	delete(m.handles, rec.ID)
	m.mu.Unlock()
}

func (m *Manager) updateRunningGauge() {
	m.mu.RLock()
	n := 0
	for _, rec := range m.records {
		if rec.Status == mock.StateRunning {
			n++
		}
	}
	m.mu.RUnlock()
	metrics.SetRunning(n)
}

func (m *Manager) emit(t history.EventType, rec mock.Record) {
	m.mu.RLock()
	sinks := m.sinks
	m.mu.RUnlock()
	if len(sinks) == 0 {
		return
	}
	evt := history.Event{Type: t, OccurredAt: time.Now().UTC(), Record: rec}
	for _, s := range sinks {
		if err := s.Send(context.Background(), evt); err != nil {
			m.logger.Warn("history sink send failed", "err", err)
		}
	}
}
