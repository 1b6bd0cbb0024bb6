package spawn

import (
	"errors"
	"os/exec"
	"sync"
)

// ExitStatus describes how a child process finished.
// Code is -1 when no exit code is available (signal death or wait failure).
type ExitStatus struct {
	Code     int
	Signaled bool  // terminated by a signal (graceful stop or forced kill)
	Err      error // infrastructure failure from the wait, not an exit result
}

// Handle is the capability surface the manager needs from a running mock
// server process. It hides the OS process API so the lifecycle state machine
// never touches os/exec directly.
type Handle interface {
	PID() int
	// Terminate requests a graceful shutdown of the process group.
	Terminate() error
	// ForceKill unconditionally kills the process group.
	ForceKill() error
	// Done is closed once the process has exited and been reaped.
	Done() <-chan struct{}
	// ExitStatus is valid only after Done is closed.
	ExitStatus() ExitStatus
}

type osHandle struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu     sync.Mutex
	status ExitStatus
}

func newOSHandle(cmd *exec.Cmd) *osHandle {
	return &osHandle{cmd: cmd, done: make(chan struct{})}
}

func (h *osHandle) PID() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

func (h *osHandle) Terminate() error { return terminateGroup(h.PID()) }
func (h *osHandle) ForceKill() error { return killGroup(h.PID()) }

func (h *osHandle) Done() <-chan struct{} { return h.done }

func (h *osHandle) ExitStatus() ExitStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// reap waits for the stream readers to drain, then reaps the child and
// records its exit status before signaling Done.
func (h *osHandle) reap(readers *sync.WaitGroup) {
	readers.Wait()
	err := h.cmd.Wait()
	st := ExitStatus{Code: -1}
	var ee *exec.ExitError
	switch {
	case err == nil:
		st.Code = 0
	case errors.As(err, &ee):
		st.Code = ee.ExitCode()
		st.Signaled = exitedBySignal(ee)
	default:
		st.Err = err
	}
	h.mu.Lock()
	h.status = st
	h.mu.Unlock()
	close(h.done)
}
