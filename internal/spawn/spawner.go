package spawn

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/hostmock/hostmock/internal/logger"
	"github.com/hostmock/hostmock/internal/translate"
)

// DefaultStartupTimeout bounds the ready-vs-error race for every spawn.
const DefaultStartupTimeout = 10 * time.Second

// Spawner launches mock server processes and performs startup detection by
// scanning their output streams. It is safe for concurrent use.
type Spawner struct {
	Tool    Tool
	Timeout time.Duration // zero means DefaultStartupTimeout
	Log     logger.Config // optional rotating capture of child output

	logger *slog.Logger
}

func NewSpawner(tool Tool, capture logger.Config, lg *slog.Logger) *Spawner {
	if lg == nil {
		lg = slog.Default()
	}
	return &Spawner{Tool: tool, Timeout: DefaultStartupTimeout, Log: capture, logger: lg}
}

// CheckInstalled reports whether the configured tool can run at all.
func (s *Spawner) CheckInstalled(ctx context.Context) error {
	return s.Tool.CheckInstalled(ctx)
}

// oneShot is a tagged one-shot result slot: the first stream event to call
// resolve wins and every later event is ignored. This guards the race where
// both streams emit a marker in quick succession.
type oneShot struct {
	once sync.Once
	ch   chan error
}

func newOneShot() *oneShot { return &oneShot{ch: make(chan error, 1)} }

func (o *oneShot) resolve(err error) { o.once.Do(func() { o.ch <- err }) }

// Spawn launches the tool for the given spec and waits until the child
// either prints the ready marker, prints a recognized failure, exits, or
// exceeds the startup deadline. It returns a live Handle exactly when the
// server became ready; in every other case the child has been killed.
func (s *Spawner) Spawn(ctx context.Context, id, specPath, host string, port int) (Handle, error) {
	// #nosec G204 -- tool command is supervisor configuration, args are built here
	cmd := exec.Command(s.Tool.Command, s.Tool.args(specPath, host, port)...)
	configureSysProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Err: err}
	}

	h := newOSHandle(cmd)
	result := newOneShot()
	tail := &tailBuffer{}
	outW, errW := s.Log.Writers(id)

	var readers sync.WaitGroup
	readers.Add(2)
	go s.scan(stdout, outW, port, result, tail, &readers)
	go s.scan(stderr, errW, port, result, tail, &readers)
	go h.reap(&readers)

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultStartupTimeout
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case err := <-result.ch:
		if err != nil {
			s.abort(h)
			return nil, err
		}
		s.logger.Debug("mock server ready", "id", id, "pid", h.PID(), "port", port)
		return h, nil
	case <-h.Done():
		// Exited before any marker. A classification may have raced in just
		// before the exit; prefer it over the generic explanation.
		select {
		case err := <-result.ch:
			if err != nil {
				return nil, err
			}
			return h, nil
		default:
		}
		return nil, s.exitError(h, tail)
	case <-deadline.C:
		s.abort(h)
		return nil, &StartupTimeoutError{Timeout: timeout}
	case <-ctx.Done():
		s.abort(h)
		return nil, ctx.Err()
	}
}

// scan reads one output stream line by line, tees it to the capture writer,
// and feeds startup detection until the one-shot result is resolved.
func (s *Spawner) scan(r io.Reader, w io.WriteCloser, port int, result *oneShot, tail *tailBuffer, readers *sync.WaitGroup) {
	defer readers.Done()
	if w != nil {
		defer func() { _ = w.Close() }()
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for sc.Scan() {
		line := sc.Text()
		if w != nil {
			_, _ = w.Write(append([]byte(line), '\n'))
		}
		tail.add(line)
		if strings.Contains(line, s.Tool.ReadyMarker) {
			result.resolve(nil)
			continue
		}
		if err := classifyLine(line, port); err != nil {
			result.resolve(err)
		}
	}
}

// abort kills a child whose startup failed and waits briefly for the reap.
func (s *Spawner) abort(h *osHandle) {
	_ = h.ForceKill()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
	}
}

func (s *Spawner) exitError(h *osHandle, tail *tailBuffer) error {
	if out := tail.String(); strings.TrimSpace(out) != "" {
		return &SpecError{Message: translate.Translate(out)}
	}
	st := h.ExitStatus()
	return &SpecError{Message: fmt.Sprintf("mock server exited before becoming ready (exit code %d)", st.Code)}
}

// failureMarkers are substrings that identify a fatal startup line. Address
// conflicts are classified separately so the manager can retry them.
var failureMarkers = []string{
	"does not exist",
	"ResolverError",
	"ReferenceError",
	"Could not resolve reference",
	"ENOENT",
	"no such file or directory",
	"YAMLException",
	"SyntaxError",
}

func classifyLine(line string, port int) error {
	for _, m := range addrInUseMarkers {
		if strings.Contains(line, m) {
			return &PortConflictError{Port: port}
		}
	}
	for _, m := range failureMarkers {
		if strings.Contains(line, m) {
			return &SpecError{Message: translate.Translate(line)}
		}
	}
	if strings.Contains(line, "Error:") && !usageBanner(line) {
		return &SpecError{Message: translate.Translate(line)}
	}
	return nil
}

// tailBuffer keeps the last few output lines for post-mortem translation
// when the child exits without printing a recognized marker.
type tailBuffer struct {
	mu    sync.Mutex
	lines []string
}

const tailMaxLines = 40

func (t *tailBuffer) add(line string) {
	t.mu.Lock()
	t.lines = append(t.lines, line)
	if len(t.lines) > tailMaxLines {
		t.lines = t.lines[len(t.lines)-tailMaxLines:]
	}
	t.mu.Unlock()
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}
