package mock

import (
	"errors"
	"fmt"
	"time"
)

// State is the lifecycle state of one mock server attempt.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopped  State = "stopped"
	StateError    State = "error"
)

// Record describes one supervised mock server, keyed by the caller-supplied
// spec identifier. The manager owns all mutation; callers only ever see copies.
type Record struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Port      int       `json:"port"`
	PID       int       `json:"pid"` // 0 until spawned
	Status    State     `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Error     string    `json:"error,omitempty"`
}

// StartConfig is the caller input to StartServer.
type StartConfig struct {
	SpecPath string `json:"spec_path"`
	Port     int    `json:"port,omitempty"` // 0 means "allocate"
	Host     string `json:"host,omitempty"` // defaults to 127.0.0.1
}

// DefaultHost is used when StartConfig.Host is empty.
const DefaultHost = "127.0.0.1"

var ErrSpecPathRequired = errors.New("spec_path is required")

// Validate checks required fields and applies the host default.
func (c *StartConfig) Validate() error {
	if c.SpecPath == "" {
		return ErrSpecPathRequired
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	return nil
}

// NotFoundError is returned by operations addressing an id the registry
// has never seen.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no server found for id %q", e.ID)
}
