// Package config loads the supervisor's TOML configuration.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/hostmock/hostmock/internal/logger"
	"github.com/hostmock/hostmock/internal/port"
	"github.com/hostmock/hostmock/internal/spawn"
)

// FileConfig is the top-level TOML structure.
type FileConfig struct {
	Listen     string        `toml:"listen" mapstructure:"listen"`
	BasePath   string        `toml:"base_path" mapstructure:"base_path"`
	HistoryDSN string        `toml:"history_dsn" mapstructure:"history_dsn"`
	LogLevel   string        `toml:"log_level" mapstructure:"log_level"`
	LogColor   bool          `toml:"log_color" mapstructure:"log_color"`
	Tool       ToolConfig    `toml:"tool" mapstructure:"tool"`
	Ports      PortConfig    `toml:"ports" mapstructure:"ports"`
	Timeouts   TimeoutConfig `toml:"timeouts" mapstructure:"timeouts"`
	Capture    logger.Config `toml:"capture" mapstructure:"capture"`
}

// ToolConfig selects the external mock-serving executable.
type ToolConfig struct {
	Command     string `toml:"command" mapstructure:"command"`
	ReadyMarker string `toml:"ready_marker" mapstructure:"ready_marker"`
}

// PortConfig bounds the allocator. The defaults are stable contracts; change
// them only when the deployment owns a different range.
type PortConfig struct {
	Start      int `toml:"start" mapstructure:"start"`
	End        int `toml:"end" mapstructure:"end"`
	MaxRetries int `toml:"max_retries" mapstructure:"max_retries"`
}

type TimeoutConfig struct {
	Startup   time.Duration `toml:"startup" mapstructure:"startup"`
	StopGrace time.Duration `toml:"stop_grace" mapstructure:"stop_grace"`
}

// Default returns the built-in configuration.
func Default() FileConfig {
	return FileConfig{
		Listen:   ":7433",
		BasePath: "/api",
		LogLevel: "info",
		LogColor: true,
		Tool: ToolConfig{
			Command:     spawn.DefaultCommand,
			ReadyMarker: spawn.DefaultReadyMarker,
		},
		Ports: PortConfig{
			Start:      port.RangeStart,
			End:        port.RangeEnd,
			MaxRetries: port.MaxRetries,
		},
		Timeouts: TimeoutConfig{
			Startup:   spawn.DefaultStartupTimeout,
			StopGrace: 2 * time.Second,
		},
	}
}

// Load reads the TOML file at path, applying defaults for absent keys.
// An empty path returns the defaults.
func Load(path string) (FileConfig, error) {
	fc := Default()
	if path == "" {
		return fc, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return fc, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

// MockTool materializes the spawn.Tool from configuration, falling back to the
// defaults for empty fields.
func (fc FileConfig) MockTool() spawn.Tool {
	t := spawn.DefaultTool()
	if fc.Tool.Command != "" {
		t.Command = fc.Tool.Command
	}
	if fc.Tool.ReadyMarker != "" {
		t.ReadyMarker = fc.Tool.ReadyMarker
	}
	return t
}
