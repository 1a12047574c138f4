// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/h3nok/AgentHive-sub001/internal/config"
	"github.com/h3nok/AgentHive-sub001/internal/hooks"
	"github.com/h3nok/AgentHive-sub001/internal/routing"
)

// HooksCommand represents available hooks subcommands
type HooksCommand string

const (
	HooksList HooksCommand = "list"
	HooksTest HooksCommand = "test"
)

// HooksOptions holds the command-line options for hooks commands
type HooksOptions struct {
	Command HooksCommand
	Dir     string
	HookID  string
	Event   string
	Trace   string // JSON trace for test
	Format  string
}

// ParseHooksCommand parses command arguments
func ParseHooksCommand(args []string) (*HooksOptions, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("missing subcommand")
	}

	opts := &HooksOptions{Command: HooksCommand(args[0])}
	flagSet := flag.NewFlagSet("hooks", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	flagSet.StringVar(&opts.Dir, "dir", "", "Hooks directory (default: hooks.dir)")
	flagSet.StringVar(&opts.HookID, "id", "", "Target hook ID")
	flagSet.StringVar(&opts.Event, "event", string(hooks.EventTraceCommitted), "Event type for test")
	flagSet.StringVar(&opts.Trace, "trace", "", "JSON router trace payload for test")
	flagSet.StringVar(&opts.Format, "format", "table", "Output format (table/json)")

	if err := flagSet.Parse(args[1:]); err != nil {
		return nil, err
	}
	return opts, nil
}

func printHooksUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: agenthive hooks <command> [options]")
	fmt.Fprintln(w, "\nCommands:")
	fmt.Fprintln(w, "  list           List enabled hooks")
	fmt.Fprintln(w, "  test           Test hook conditions against a simulated event")
	fmt.Fprintln(w, "\nOptions:")
	fmt.Fprintln(w, "  --dir <path>   Hooks directory")
	fmt.Fprintln(w, "  --id <str>     Hook ID")
	fmt.Fprintln(w, "  --event <str>  Event type (trace_committed, trace_ingested, trace_failed, feed_status_changed)")
	fmt.Fprintln(w, "  --trace <json> Simulated router trace")
	fmt.Fprintln(w, "  --format <str> Output format")
	fmt.Fprintln(w, "\nExamples:")
	fmt.Fprintln(w, "  agenthive hooks list --format json")
	fmt.Fprintln(w, "  agenthive hooks test --event trace_failed --trace '{\"finalAgent\":\"GeneralAgent\",\"success\":false}'")
}

// handleHooksCommand processes hooks subcommands and returns the process exit code.
func handleHooksCommand(args []string, out io.Writer) int {
	opts, err := ParseHooksCommand(args)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		printHooksUsage(out)
		return 1
	}

	wd, _ := os.Getwd()
	cfg, err := config.LoadConfigOptional(filepath.Join(wd, defaultConfigFile), true)
	if err != nil {
		cfg = config.Default()
	}
	return runHooks(cfg, opts, out)
}

func runHooks(cfg *config.Config, opts *HooksOptions, out io.Writer) int {
	switch cmd := opts.Command; cmd {
	case HooksList:
		return doHooksList(cfg, opts, out)
	case HooksTest:
		return doHooksTest(cfg, opts, out)
	default:
		fmt.Fprintf(out, "Unknown command: %s\n", cmd)
		printHooksUsage(out)
		return 1
	}
}

// getHookManager loads hooks for inspection. The bus carries no subscribers and is
// shut down by the returned release func.
func getHookManager(cfg *config.Config, opts *HooksOptions) (*hooks.HookManager, func(), error) {
	dir := opts.Dir
	if dir == "" {
		dir = cfg.Hooks.Dir
	}
	bus := hooks.NewEventBus()
	manager, err := hooks.NewHookManager(dir, bus)
	if err != nil {
		bus.Shutdown()
		return nil, nil, err
	}
	release := func() {
		manager.Close()
		bus.Shutdown()
	}
	if err := manager.LoadHooks(); err != nil {
		release()
		return nil, nil, err
	}
	return manager, release, nil
}

func doHooksList(cfg *config.Config, opts *HooksOptions, out io.Writer) int {
	manager, release, err := getHookManager(cfg, opts)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return 1
	}
	defer release()

	allHooks := manager.GetHooks()
	if opts.Format == "json" {
		return writeJSON(out, allHooks)
	}

	if len(allHooks) == 0 {
		fmt.Fprintln(out, "No hooks configured.")
		fmt.Fprintf(out, "Create hook files in: %s\n", manager.GetHooksDir())
		return 0
	}

	fmt.Fprintln(out, "Configured Hooks")
	fmt.Fprintln(out, "================")
	fmt.Fprintf(out, "Hooks Directory: %s\n", manager.GetHooksDir())
	fmt.Fprintf(out, "Total Hooks: %d\n\n", len(allHooks))

	for i, hook := range allHooks {
		fmt.Fprintf(out, "[%d] %s\n", i+1, hook.Name)
		fmt.Fprintf(out, "    ID: %s\n", hook.ID)
		fmt.Fprintf(out, "    Event: %s\n", hook.Event)
		fmt.Fprintf(out, "    Action: %s\n", hook.Action)
		fmt.Fprintf(out, "    Condition: %s\n", hook.Condition)
		if hook.Description != "" {
			fmt.Fprintf(out, "    Description: %s\n", hook.Description)
		}
		if len(hook.Params) > 0 {
			fmt.Fprintf(out, "    Parameters: %v\n", hook.Params)
		}
		fmt.Fprintf(out, "    File: %s\n\n", hook.FilePath)
	}
	return 0
}

func doHooksTest(cfg *config.Config, opts *HooksOptions, out io.Writer) int {
	manager, release, err := getHookManager(cfg, opts)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return 1
	}
	defer release()

	evType := hooks.HookEvent(opts.Event)
	ctx := &hooks.EventContext{Event: evType, Timestamp: time.Now()}
	if opts.Trace != "" {
		var trace routing.RouterTrace
		if err := json.Unmarshal([]byte(opts.Trace), &trace); err != nil {
			fmt.Fprintf(out, "Error parsing trace JSON: %v\n", err)
			return 1
		}
		ctx.Trace = &trace
		ctx.SessionID = trace.SessionID
	}

	allHooks := manager.GetHooks()
	if opts.HookID != "" {
		var selected []*hooks.Hook
		for _, h := range allHooks {
			if h.ID == opts.HookID {
				selected = append(selected, h)
			}
		}
		if len(selected) == 0 {
			fmt.Fprintf(out, "Error: Hook with ID '%s' not found\n", opts.HookID)
			return 1
		}
		allHooks = selected
	}

	fmt.Fprintln(out, "Testing Hooks Against Event")
	fmt.Fprintln(out, "===========================")
	fmt.Fprintf(out, "Event Type: %s\n", evType)
	fmt.Fprintf(out, "Timestamp: %s\n\n", ctx.Timestamp.Format(time.RFC3339))

	if len(allHooks) == 0 {
		fmt.Fprintln(out, "No hooks configured to test.")
		return 0
	}

	var matched, failed int
	for i, hook := range allHooks {
		fmt.Fprintf(out, "[%d] %s (%s)\n", i+1, hook.Name, hook.ID)
		fmt.Fprintf(out, "    Condition: %s\n", hook.Condition)

		if hook.Event != evType {
			fmt.Fprintf(out, "    Result: ✗ Event type mismatch (expects %s)\n\n", hook.Event)
			continue
		}
		ok, err := manager.EvaluateCondition(hook, ctx)
		switch {
		case err != nil:
			failed++
			fmt.Fprintf(out, "    Result: ✗ Condition evaluation failed: %v\n\n", err)
		case ok:
			matched++
			fmt.Fprintf(out, "    Result: ✓ Would execute action: %s\n\n", hook.Action)
		default:
			fmt.Fprintf(out, "    Result: ✗ Condition not met\n\n")
		}
	}

	fmt.Fprintln(out, "Test Summary:")
	fmt.Fprintln(out, "=============")
	fmt.Fprintf(out, "Total Hooks Tested: %d\n", len(allHooks))
	fmt.Fprintf(out, "Matched Hooks: %d\n", matched)
	fmt.Fprintf(out, "Failed Evaluations: %d\n", failed)
	if failed > 0 {
		return 1
	}
	return 0
}
