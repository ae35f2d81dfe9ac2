// Package config loads and persists operator settings: the TOML file in the
// data dir, overridden by environment variables. Settings are the only state
// that survives a server restart.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied when the file or a key is absent.
const (
	DefaultPort      = 3000
	DefaultSpeedMs   = 50.0
	DefaultVariation = 0.2
)

// Config is the top-level configuration loaded from config.toml.
type Config struct {
	Server ServerConfig `toml:"server"`
	Typing TypingConfig `toml:"typing"`
	Auth   AuthConfig   `toml:"auth"`
	Client ClientConfig `toml:"client"`
}

// ServerConfig holds the listener settings. Pointer fields distinguish
// "not configured" from an explicit zero so defaults can apply.
type ServerConfig struct {
	// TCP port for the WebSocket listener.
	Port *int `toml:"port,omitempty"`
	// Whether host startup hooks should start the server (kc serve --auto).
	AutoStart *bool `toml:"auto_start,omitempty"`
	// Unix socket path for the local control listener. Nil means no socket.
	Socket *string `toml:"socket,omitempty"`
}

// ListenPort returns the configured port, defaulting to DefaultPort.
func (s ServerConfig) ListenPort() int {
	if s.Port != nil {
		return *s.Port
	}
	return DefaultPort
}

// AutoStartEnabled defaults to true.
func (s ServerConfig) AutoStartEnabled() bool {
	if s.AutoStart != nil {
		return *s.AutoStart
	}
	return true
}

// SocketPath returns the unix socket path, empty when disabled.
func (s ServerConfig) SocketPath() string {
	if s.Socket != nil {
		return *s.Socket
	}
	return ""
}

// TypingConfig holds the default pacing for typing jobs that omit their own.
type TypingConfig struct {
	// Milliseconds per character.
	Speed *float64 `toml:"speed,omitempty"`
	// Jitter fraction, 0..1.
	Variation *float64 `toml:"variation,omitempty"`
}

// SpeedDelay returns the per-character delay, defaulting to 50 ms.
func (t TypingConfig) SpeedDelay() time.Duration {
	ms := DefaultSpeedMs
	if t.Speed != nil {
		ms = *t.Speed
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// JitterFraction returns the variation default, 0.2 when unset.
func (t TypingConfig) JitterFraction() float64 {
	if t.Variation != nil {
		return *t.Variation
	}
	return DefaultVariation
}

// AuthConfig controls the connection gate.
type AuthConfig struct {
	// Whether the gate checks credentials at all. Default true.
	Enabled *bool `toml:"enabled,omitempty"`
	// Operator-supplied secret. Wins over auto-generation.
	Token *string `toml:"token,omitempty"`
	// Generate (and persist) a secret when none is supplied. Default true.
	AutoGenerate *bool `toml:"auto_generate,omitempty"`
}

// IsEnabled defaults to true: a fresh install requires a token.
func (a AuthConfig) IsEnabled() bool {
	if a.Enabled != nil {
		return *a.Enabled
	}
	return true
}

// AutoGenerateEnabled defaults to true.
func (a AuthConfig) AutoGenerateEnabled() bool {
	if a.AutoGenerate != nil {
		return *a.AutoGenerate
	}
	return true
}

// ConfiguredToken returns the operator-supplied secret, empty when unset.
func (a AuthConfig) ConfiguredToken() string {
	if a.Token != nil {
		return *a.Token
	}
	return ""
}

// ClientConfig is the saved pairing target used by the CLI's client commands.
type ClientConfig struct {
	Server *string `toml:"server,omitempty"`
	Token  *string `toml:"token,omitempty"`
}

// ServerURL returns the paired server URL, empty when unset.
func (c ClientConfig) ServerURL() string {
	if c.Server != nil {
		return *c.Server
	}
	return ""
}

// AuthToken returns the paired token, empty when unset.
func (c ClientConfig) AuthToken() string {
	if c.Token != nil {
		return *c.Token
	}
	return ""
}

// DefaultDataDir is ~/.keycast, or a path relative to the working directory
// when the home directory cannot be resolved.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".keycast"
	}
	return filepath.Join(home, ".keycast")
}

// Load reads config.toml from dataDir, applies environment overrides, and
// validates the result. A missing file yields the defaults.
func Load(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, "config.toml")

	cfg := &Config{}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	// Env overrides, applied after the file.
	if port := os.Getenv("KEYCAST_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("parsing KEYCAST_PORT: %w", err)
		}
		cfg.Server.Port = &p
	}
	if socket := os.Getenv("KEYCAST_SOCKET"); socket != "" {
		cfg.Server.Socket = &socket
	}
	if token := os.Getenv("KEYCAST_AUTH_TOKEN"); token != "" {
		cfg.Auth.Token = &token
	}
	if v := os.Getenv("KEYCAST_AUTH_DISABLED"); v == "1" || v == "true" {
		enabled := false
		cfg.Auth.Enabled = &enabled
	}
	if server := os.Getenv("KEYCAST_SERVER"); server != "" {
		cfg.Client.Server = &server
	}
	if token := os.Getenv("KEYCAST_TOKEN"); token != "" {
		cfg.Client.Token = &token
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if port := c.Server.ListenPort(); port < 1 || port > 65535 {
		return fmt.Errorf("server port out of range: %d", port)
	}
	if c.Typing.Speed != nil && *c.Typing.Speed < 0 {
		return fmt.Errorf("typing speed must be non-negative, got: %v", *c.Typing.Speed)
	}
	if v := c.Typing.Variation; v != nil && (*v < 0 || *v > 1) {
		return fmt.Errorf("typing variation must be within [0, 1], got: %v", *v)
	}
	return nil
}

// Save writes the config to config.toml inside dataDir, creating the
// directory if necessary.
func (c *Config) Save(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	path := filepath.Join(dataDir, "config.toml")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config.toml: %w", err)
	}
	return nil
}
