package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritersDisabledWithoutDir(t *testing.T) {
	out, errw := Config{}.Writers("petstore")
	assert.Nil(t, out)
	assert.Nil(t, errw)
}

func TestWritersCreateRotatingFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Dir: dir, MaxSizeMB: 1}

	out, errw := cfg.Writers("petstore")
	require.NotNil(t, out)
	require.NotNil(t, errw)
	defer out.Close()
	defer errw.Close()

	_, err := out.Write([]byte("Prism is listening on http://127.0.0.1:4010\n"))
	require.NoError(t, err)
	_, err = errw.Write([]byte("some warning\n"))
	require.NoError(t, err)

	stdout, err := os.ReadFile(filepath.Join(dir, "petstore.stdout.log"))
	require.NoError(t, err)
	assert.Contains(t, string(stdout), "Prism is listening")

	stderr, err := os.ReadFile(filepath.Join(dir, "petstore.stderr.log"))
	require.NoError(t, err)
	assert.Contains(t, string(stderr), "some warning")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestNewReturnsUsableLogger(t *testing.T) {
	for _, color := range []bool{true, false} {
		lg := New("debug", color)
		require.NotNil(t, lg)
		assert.True(t, lg.Enabled(context.Background(), slog.LevelDebug))
	}
}
