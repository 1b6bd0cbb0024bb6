package manager

import (
	"fmt"
	"time"

	"github.com/hostmock/hostmock/internal/history"
	"github.com/hostmock/hostmock/internal/metrics"
	"github.com/hostmock/hostmock/internal/mock"
	"github.com/hostmock/hostmock/internal/spawn"
)

// watch is the crash monitor for one running attempt. It blocks until the
// process exits and then classifies the termination into the registry.
//
// Ordering guard: the monitor mutates the record only while the handle entry
// still belongs to this attempt and the record is still running. An explicit
// StopServer claims the handle before signaling, so its exit is never
// classified here, and a record another path marked stopped or error is
// never resurrected.
func (m *Manager) watch(id string, pid int, startedAt time.Time, h spawn.Handle) {
	<-h.Done()
	st := h.ExitStatus()
	uptime := time.Since(startedAt)

	m.mu.Lock()
	if cur, ok := m.handles[id]; !ok || cur != h {
		m.mu.Unlock()
		return
	}
	rec, ok := m.records[id]
	if !ok || rec.PID != pid || rec.Status != mock.StateRunning {
		m.mu.Unlock()
		return
	}

	if st.Err != nil {
		// Infrastructure failure after start, distinct from a plain exit.
		rec.Status = mock.StateError
		rec.Error = st.Err.Error()
		delete(m.handles, id)
		snapshot := *rec
		m.mu.Unlock()
		m.updateRunningGauge()
		m.emit(history.EventError, snapshot)
		m.logger.Error("mock server process error", "id", id, "err", st.Err)
		return
	}

	// Exit. Stopped, never error, so a restart stays possible.
	rec.Status = mock.StateStopped
	rec.Error = classifyExit(st, uptime)
	delete(m.handles, id)
	snapshot := *rec
	m.mu.Unlock()

	metrics.IncCrash(id)
	m.updateRunningGauge()
	m.emit(history.EventCrashed, snapshot)
	m.logger.Warn("mock server exited", "id", id, "pid", pid, "reason", snapshot.Error)
}

// classifyExit orders crash reasons by precedence: signal, exit code,
// immediate crash, late crash, with stream disconnects as a distinct case
// when the wait produced no usable status at all.
func classifyExit(st spawn.ExitStatus, uptime time.Duration) string {
	switch {
	case st.Signaled:
		return "terminated by signal"
	case st.Code > 0 && uptime < immediateCrashWindow:
		return fmt.Sprintf("exited with error code %d immediately after startup", st.Code)
	case st.Code > 0:
		return fmt.Sprintf("exited with error code %d", st.Code)
	case st.Code < 0:
		return "disconnected unexpectedly"
	case uptime < immediateCrashWindow:
		return "crashed immediately after startup"
	default:
		return fmt.Sprintf("crashed unexpectedly after %ds uptime", int(uptime.Seconds()))
	}
}
