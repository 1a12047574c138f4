// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the routing debug server.
// It loads the YAML configuration file, applies defaults for absent keys and
// environment overrides, and normalizes the result.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPort is the debug HTTP surface port.
	DefaultPort = 8318
	// DefaultFallbackAgent receives queries no rule matches.
	DefaultFallbackAgent = "GeneralAgent"
	// DefaultMaxTraces bounds the trace buffer.
	DefaultMaxTraces = 100

	defaultDebounceMs        = 300
	defaultEvaluationTimeout = 2000
	defaultReconnectDelay    = "2s"
	defaultHandshakeTimeout  = "5s"
	defaultSessionID         = "local"
	maxMaxTraces             = 100000
)

// Environment variables that override file settings.
const (
	EnvListen  = "AGENTHIVE_LISTEN"
	EnvFeedURL = "AGENTHIVE_FEED_URL"
	EnvSession = "AGENTHIVE_SESSION"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the interface the debug surface binds. Empty binds all interfaces.
	Host string `yaml:"host" json:"host"`
	// Port is the debug surface port.
	Port int `yaml:"port" json:"port"`

	// Debug enables debug-level logging and gin debug mode.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile controls whether application logs are written to rotating files or stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogsMaxTotalSizeMB limits the total size (in MB) of log files under the logs directory.
	// When exceeded, the oldest log files are deleted until within the limit. Set to 0 to disable.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb" json:"logs-max-total-size-mb"`

	Routing    RoutingConfig    `yaml:"routing" json:"routing"`
	TraceStore TraceStoreConfig `yaml:"trace-store" json:"trace-store"`
	LiveFeed   LiveFeedConfig   `yaml:"live-feed" json:"live-feed"`
	Hooks      HooksConfig      `yaml:"hooks" json:"hooks"`
}

// RoutingConfig configures the classifier and the decision pipeline.
type RoutingConfig struct {
	DebounceMs          int    `yaml:"debounce-ms" json:"debounce-ms"`
	EvaluationTimeoutMs int    `yaml:"evaluation-timeout-ms" json:"evaluation-timeout-ms"`
	FallbackAgent       string `yaml:"fallback-agent" json:"fallback-agent"`
	// RulesFile is an optional YAML rule list replacing the built-in rules.
	RulesFile string `yaml:"rules-file" json:"rules-file"`
	// WatchRules reloads RulesFile when it changes on disk.
	WatchRules bool `yaml:"watch-rules" json:"watch-rules"`
}

// TraceStoreConfig holds the initial trace store settings.
type TraceStoreConfig struct {
	MaxTraces         int  `yaml:"max-traces" json:"max-traces"`
	AutoScroll        bool `yaml:"auto-scroll" json:"auto-scroll"`
	EnableLiveUpdates bool `yaml:"enable-live-updates" json:"enable-live-updates"`
}

// LiveFeedConfig configures the inbound trace feed. Without a URL the store observes
// this process's own pipeline through the event bus.
type LiveFeedConfig struct {
	URL              string `yaml:"url" json:"url"`
	SessionID        string `yaml:"session-id" json:"session-id"`
	ReconnectDelay   string `yaml:"reconnect-delay" json:"reconnect-delay"`
	HandshakeTimeout string `yaml:"handshake-timeout" json:"handshake-timeout"`
}

// HooksConfig configures routing alert hooks.
type HooksConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Dir     string `yaml:"dir" json:"dir"`
}

// Default returns the configuration used for absent keys.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

func (cfg *Config) setDefaults() {
	cfg.Host = ""
	cfg.Port = DefaultPort
	cfg.LoggingToFile = false
	cfg.LogsMaxTotalSizeMB = 0
	cfg.Routing.DebounceMs = defaultDebounceMs
	cfg.Routing.EvaluationTimeoutMs = defaultEvaluationTimeout
	cfg.Routing.FallbackAgent = DefaultFallbackAgent
	cfg.TraceStore.MaxTraces = DefaultMaxTraces
	cfg.TraceStore.AutoScroll = true
	cfg.TraceStore.EnableLiveUpdates = false
	cfg.LiveFeed.SessionID = defaultSessionID
	cfg.LiveFeed.ReconnectDelay = defaultReconnectDelay
	cfg.LiveFeed.HandshakeTimeout = defaultHandshakeTimeout
}

// LoadConfig reads and parses the YAML configuration file.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional reads YAML from configFile.
// If optional is true and the file is missing or empty, it returns the defaults.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional && (os.IsNotExist(err) || errors.Is(err, syscall.EISDIR)) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	// Set defaults before unmarshal so that absent keys keep defaults.
	cfg.setDefaults()
	if len(strings.TrimSpace(string(data))) > 0 {
		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err = cfg.Sanitize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Sanitize normalizes every section and rejects values that cannot be corrected.
func (cfg *Config) Sanitize() error {
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.LogsMaxTotalSizeMB < 0 {
		cfg.LogsMaxTotalSizeMB = 0
	}
	cfg.SanitizeRouting()
	cfg.SanitizeTraceStore()
	if err := cfg.SanitizeLiveFeed(); err != nil {
		return err
	}
	cfg.Hooks.Dir = strings.TrimSpace(cfg.Hooks.Dir)
	return nil
}

// SanitizeRouting replaces non-positive timings with the defaults.
func (cfg *Config) SanitizeRouting() {
	r := &cfg.Routing
	if r.DebounceMs <= 0 {
		r.DebounceMs = defaultDebounceMs
	}
	if r.EvaluationTimeoutMs <= 0 {
		r.EvaluationTimeoutMs = defaultEvaluationTimeout
	}
	r.FallbackAgent = strings.TrimSpace(r.FallbackAgent)
	if r.FallbackAgent == "" {
		r.FallbackAgent = DefaultFallbackAgent
	}
	r.RulesFile = strings.TrimSpace(r.RulesFile)
	if r.RulesFile == "" {
		r.WatchRules = false
	}
}

// SanitizeTraceStore clamps max-traces to [1, 100000].
func (cfg *Config) SanitizeTraceStore() {
	if cfg.TraceStore.MaxTraces < 1 {
		cfg.TraceStore.MaxTraces = DefaultMaxTraces
	}
	if cfg.TraceStore.MaxTraces > maxMaxTraces {
		cfg.TraceStore.MaxTraces = maxMaxTraces
	}
}

// SanitizeLiveFeed validates the feed URL and durations.
func (cfg *Config) SanitizeLiveFeed() error {
	f := &cfg.LiveFeed
	f.URL = strings.TrimSpace(f.URL)
	f.SessionID = strings.TrimSpace(f.SessionID)
	if f.SessionID == "" {
		f.SessionID = defaultSessionID
	}
	if f.URL != "" {
		u, err := url.Parse(f.URL)
		if err != nil {
			return fmt.Errorf("invalid live-feed url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("invalid live-feed url %q: scheme must be ws or wss", f.URL)
		}
	}
	if strings.TrimSpace(f.ReconnectDelay) == "" {
		f.ReconnectDelay = defaultReconnectDelay
	}
	if strings.TrimSpace(f.HandshakeTimeout) == "" {
		f.HandshakeTimeout = defaultHandshakeTimeout
	}
	if _, err := parsePositiveDuration("live-feed.reconnect-delay", f.ReconnectDelay); err != nil {
		return err
	}
	if _, err := parsePositiveDuration("live-feed.handshake-timeout", f.HandshakeTimeout); err != nil {
		return err
	}
	return nil
}

func parsePositiveDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

// ApplyEnv overrides file settings from the environment. getenv is usually os.Getenv.
func (cfg *Config) ApplyEnv(getenv func(string) string) error {
	if listen := strings.TrimSpace(getenv(EnvListen)); listen != "" {
		host, portStr, err := net.SplitHostPort(listen)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvListen, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid %s port: %w", EnvListen, err)
		}
		cfg.Host = host
		cfg.Port = port
	}
	if feed := strings.TrimSpace(getenv(EnvFeedURL)); feed != "" {
		cfg.LiveFeed.URL = feed
	}
	if session := strings.TrimSpace(getenv(EnvSession)); session != "" {
		cfg.LiveFeed.SessionID = session
	}
	return cfg.Sanitize()
}

// ListenAddr returns host:port for the debug surface.
func (cfg *Config) ListenAddr() string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// Debounce returns the pipeline debounce interval.
func (cfg *Config) Debounce() time.Duration {
	return time.Duration(cfg.Routing.DebounceMs) * time.Millisecond
}

// EvaluationTimeout returns the pipeline safety ceiling.
func (cfg *Config) EvaluationTimeout() time.Duration {
	return time.Duration(cfg.Routing.EvaluationTimeoutMs) * time.Millisecond
}

// ReconnectDelay returns the parsed live-feed reconnect delay. Sanitize guarantees it parses.
func (cfg *Config) ReconnectDelay() time.Duration {
	d, _ := parsePositiveDuration("live-feed.reconnect-delay", cfg.LiveFeed.ReconnectDelay)
	return d
}

// HandshakeTimeout returns the parsed live-feed handshake timeout.
func (cfg *Config) HandshakeTimeout() time.Duration {
	d, _ := parsePositiveDuration("live-feed.handshake-timeout", cfg.LiveFeed.HandshakeTimeout)
	return d
}
