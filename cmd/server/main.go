// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the entry point for the AgentHive routing debugger.
// The server classifies queries through the debounced decision pipeline, retains the
// resulting traces and exposes them on the debug surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/h3nok/AgentHive-sub001/internal/buildinfo"
	"github.com/h3nok/AgentHive-sub001/internal/config"
	"github.com/h3nok/AgentHive-sub001/internal/logging"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

const defaultConfigFile = "config.yaml"

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "rules":
			os.Exit(handleRulesCommand(os.Args[2:], os.Stdout))
		case "hooks":
			os.Exit(handleHooksCommand(os.Args[2:], os.Stdout))
		case "version":
			fmt.Printf("agenthive %s (commit %s, built %s)\n", Version, Commit, BuildDate)
			return
		}
	}

	var (
		configPath string
		sessionID  string
		listen     string
	)
	flag.StringVar(&configPath, "config", "", "Configure File Path (default: ./config.yaml when present)")
	flag.StringVar(&sessionID, "session", "", "Session whose traces are observed")
	flag.StringVar(&listen, "listen", "", "Debug surface address, host:port")
	flag.Parse()

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		os.Exit(1)
	}

	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	cfg, err := loadConfig(wd, configPath, sessionID, listen)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		os.Exit(1)
	}

	logging.SetDebug(cfg.Debug)
	if err := logging.ConfigureLogOutput(filepath.Join(wd, "logs"), cfg.LoggingToFile, cfg.LogsMaxTotalSizeMB); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		os.Exit(1)
	}
	log.Infof("AgentHive routing debugger %s (commit %s, built %s)", Version, Commit, BuildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Errorf("failed to start: %v", err)
		os.Exit(1)
	}
	if err := a.run(ctx); err != nil {
		log.Errorf("server stopped with error: %v", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// loadConfig resolves the configuration file, then applies the environment and the
// command-line overrides in that order. An explicit -config path must exist.
func loadConfig(wd, configPath, sessionID, listen string) (*config.Config, error) {
	optional := configPath == ""
	if optional {
		configPath = filepath.Join(wd, defaultConfigFile)
	}
	cfg, err := config.LoadConfigOptional(configPath, optional)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}

	overrides := map[string]string{}
	if s := strings.TrimSpace(sessionID); s != "" {
		overrides[config.EnvSession] = s
	}
	if l := strings.TrimSpace(listen); l != "" {
		overrides[config.EnvListen] = l
	}
	if len(overrides) > 0 {
		if err := cfg.ApplyEnv(func(key string) string { return overrides[key] }); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
