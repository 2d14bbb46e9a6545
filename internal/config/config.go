// Package config provides configuration loading and path management.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
)

// Config holds the client configuration for a notebook server connection.
type Config struct {
	// ServerURL is the base HTTP URL of the notebook server.
	ServerURL string `json:"server,omitempty"`
	// Token is the API token sent with every request.
	Token string `json:"token,omitempty"`
	// Username is stamped into outgoing message headers.
	Username string `json:"username,omitempty"`
	// DefaultKernel replaces the "default" kernelspec name on session start.
	DefaultKernel string `json:"defaultKernel,omitempty"`
	// AppendOnNavigate appends a new cell when navigating past the last one.
	AppendOnNavigate bool `json:"appendOnNavigate,omitempty"`
	// LogLevel is the minimum log level (DEBUG|INFO|WARN|ERROR).
	LogLevel string `json:"logLevel,omitempty"`
	// Reconnect enables the transport reconnect policy. Off by default:
	// a closed connection is reported and left for the user to reopen.
	Reconnect bool `json:"reconnect,omitempty"`
}

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/nbkit/)
// 2. Project config (<dir>/nbkit.json[c], <dir>/.nbkit/nbkit.json[c])
// 3. NBKIT_CONFIG file
// 4. Environment variables
func Load(directory string) (*Config, error) {
	config := &Config{
		ServerURL:     "http://localhost:8888",
		Username:      "nbkit",
		DefaultKernel: "python3",
	}

	loaded := make(map[string]bool)
	loadOnce := func(path string) {
		absPath, err := filepath.Abs(path)
		if err != nil || loaded[absPath] {
			return
		}
		if loadConfigFile(path, config) == nil {
			loaded[absPath] = true
		}
	}

	globalDir := GetPaths().Config
	loadOnce(filepath.Join(globalDir, "nbkit.json"))
	loadOnce(filepath.Join(globalDir, "nbkit.jsonc"))

	if directory != "" {
		loadOnce(filepath.Join(directory, "nbkit.json"))
		loadOnce(filepath.Join(directory, "nbkit.jsonc"))
		loadOnce(filepath.Join(directory, ".nbkit", "nbkit.json"))
		loadOnce(filepath.Join(directory, ".nbkit", "nbkit.jsonc"))
	}

	if configPath := os.Getenv("NBKIT_CONFIG"); configPath != "" {
		loadOnce(configPath)
	}

	applyEnvOverrides(config)

	if _, err := url.Parse(config.ServerURL); err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", config.ServerURL, err)
	}

	return config, nil
}

// WSBase derives the websocket base URL from the configured server URL.
func (c *Config) WSBase() string {
	switch {
	case strings.HasPrefix(c.ServerURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.ServerURL, "https://")
	case strings.HasPrefix(c.ServerURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.ServerURL, "http://")
	default:
		return c.ServerURL
	}
}

// loadConfigFile loads a single JSONC config file with env interpolation.
func loadConfigFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err // File doesn't exist, skip
	}

	data = jsonc.ToJSON(data)
	data = interpolate(data)

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

var envPattern = regexp.MustCompile(`\{env:([^}]+)\}`)

// interpolate processes {env:VAR} placeholders.
func interpolate(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(varName)))
	})
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *Config) {
	if source.ServerURL != "" {
		target.ServerURL = source.ServerURL
	}
	if source.Token != "" {
		target.Token = source.Token
	}
	if source.Username != "" {
		target.Username = source.Username
	}
	if source.DefaultKernel != "" {
		target.DefaultKernel = source.DefaultKernel
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
	if source.AppendOnNavigate {
		target.AppendOnNavigate = true
	}
	if source.Reconnect {
		target.Reconnect = true
	}
}

// applyEnvOverrides applies environment variable overrides (highest priority).
func applyEnvOverrides(config *Config) {
	if server := os.Getenv("NBKIT_SERVER"); server != "" {
		config.ServerURL = server
	}
	if token := os.Getenv("NBKIT_TOKEN"); token != "" {
		config.Token = token
	} else if token := os.Getenv("JUPYTER_TOKEN"); token != "" && config.Token == "" {
		config.Token = token
	}
	if kernel := os.Getenv("NBKIT_KERNEL"); kernel != "" {
		config.DefaultKernel = kernel
	}
	if level := os.Getenv("NBKIT_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
}

// Save saves the configuration to a file.
func Save(config *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
