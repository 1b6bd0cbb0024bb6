package spawn

import (
	"fmt"
	"time"
)

// ToolNotInstalledError is returned by CheckInstalled when the mock tool
// binary cannot be executed. Its message carries installation guidance.
type ToolNotInstalledError struct {
	Command string
}

func (e *ToolNotInstalledError) Error() string {
	return fmt.Sprintf("mock tool %q is not installed or not on PATH; install it (npm install -g @stoplight/prism-cli) and retry", e.Command)
}

// PortConflictError signals that the spawned process reported the target
// port as already bound. The manager retries these internally with the next
// candidate port; callers only see one if retries are exhausted.
type PortConflictError struct {
	Port int
}

func (e *PortConflictError) Error() string {
	return fmt.Sprintf("port %d is already in use", e.Port)
}

// StartupTimeoutError is returned when neither a ready marker nor an error
// pattern appeared before the startup deadline. The child has been killed.
type StartupTimeoutError struct {
	Timeout time.Duration
}

func (e *StartupTimeoutError) Error() string {
	return fmt.Sprintf("mock server did not become ready within %s", e.Timeout)
}

// SpawnError wraps a process-level launch failure (e.g. executable missing),
// distinct from failures reported by the running child.
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string { return "failed to spawn mock server process: " + e.Err.Error() }
func (e *SpawnError) Unwrap() error { return e.Err }

// SpecError carries the translated, user-displayable explanation of a
// startup failure caused by the specification itself.
type SpecError struct {
	Message string
}

func (e *SpecError) Error() string { return e.Message }
