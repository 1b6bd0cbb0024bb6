//go:build !windows

package hostmock

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTool writes an executable shell script that behaves like a mock
// serving tool: it answers --version, prints the ready marker, and idles.
func fakeTool(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fakemock")
	script := `#!/bin/sh
if [ "$1" = "--version" ]; then echo 5.8.1; exit 0; fi
echo "ready to serve on $4:$6"
sleep 30
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestSupervisorEndToEnd(t *testing.T) {
	sup := New(Options{
		ToolCommand: fakeTool(t),
		ReadyMarker: "ready to serve",
		StopGrace:   time.Second,
	})
	defer sup.Cleanup(context.Background())

	rec, err := sup.StartServer(context.Background(), "petstore", StartConfig{SpecPath: "/tmp/petstore.yaml"})
	require.NoError(t, err)
	assert.Equal(t, StateRunning, rec.Status)
	assert.GreaterOrEqual(t, rec.Port, 4010)
	assert.Greater(t, rec.PID, 0)

	got, ok := sup.GetServerInfo("petstore")
	require.True(t, ok)
	assert.Equal(t, rec.PID, got.PID)

	require.NoError(t, sup.StopServer(context.Background(), "petstore"))
	got, ok = sup.GetServerInfo("petstore")
	require.True(t, ok)
	assert.Equal(t, StateStopped, got.Status)
	assert.Empty(t, got.Error)
}

func TestSupervisorsAreIsolated(t *testing.T) {
	a := New(Options{ToolCommand: fakeTool(t), ReadyMarker: "ready to serve"})
	b := New(Options{ToolCommand: fakeTool(t), ReadyMarker: "ready to serve"})
	defer a.Cleanup(context.Background())
	defer b.Cleanup(context.Background())

	_, err := a.StartServer(context.Background(), "petstore", StartConfig{SpecPath: "/tmp/x.yaml"})
	require.NoError(t, err)

	_, ok := b.GetServerInfo("petstore")
	assert.False(t, ok)
}
