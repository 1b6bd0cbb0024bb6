package spawn

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
)

// Default external tool contract. The supervisor depends only on the command
// shape and on text markers in the child's output, never on structured IPC.
const (
	DefaultCommand     = "prism"
	DefaultReadyMarker = "Prism is listening"
)

// Tool describes the external mock-serving executable. The zero value is not
// usable; construct with DefaultTool and override fields for tests or
// alternative tool builds.
type Tool struct {
	Command     string
	ReadyMarker string
}

func DefaultTool() Tool {
	return Tool{Command: DefaultCommand, ReadyMarker: DefaultReadyMarker}
}

// CheckInstalled verifies the tool binary runs at all. It is called before
// any port probe or spawn so a missing tool fails fast with guidance.
func (t Tool) CheckInstalled(ctx context.Context) error {
	// #nosec G204 -- command comes from supervisor configuration
	cmd := exec.CommandContext(ctx, t.Command, "--version")
	if err := cmd.Run(); err != nil {
		return &ToolNotInstalledError{Command: t.Command}
	}
	return nil
}

// args builds the fixed, deterministic argument set: operating mode, spec
// path, host, port, then flags selecting dynamic and lenient responses.
func (t Tool) args(specPath, host string, port int) []string {
	return []string{
		"mock", specPath,
		"--host", host,
		"--port", strconv.Itoa(port),
		"--dynamic",
		"--errors=false",
	}
}

// Patterns recognized on the child's streams before the ready marker.
var addrInUseMarkers = []string{
	"EADDRINUSE",
	"address already in use",
}

// usageBanner reports whether a line belongs to the tool's help output, in
// which case a literal "Error:" on it must not be treated as a failure.
func usageBanner(line string) bool {
	return strings.Contains(line, "Usage:") || strings.Contains(line, "--help")
}
