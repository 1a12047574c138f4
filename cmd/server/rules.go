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
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"

	"github.com/h3nok/AgentHive-sub001/internal/classifier"
	"github.com/h3nok/AgentHive-sub001/internal/config"
)

// RulesCommand represents available rules subcommands
type RulesCommand string

const (
	RulesList     RulesCommand = "list"
	RulesTest     RulesCommand = "test"
	RulesValidate RulesCommand = "validate"
)

// RulesOptions holds the command-line options for rules commands
type RulesOptions struct {
	Command  RulesCommand
	RuleFile string
	Fallback string
	Query    string
	Format   string
}

// ParseRulesCommand parses command arguments
func ParseRulesCommand(args []string) (*RulesOptions, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("missing subcommand")
	}

	opts := &RulesOptions{Command: RulesCommand(args[0])}
	flagSet := flag.NewFlagSet("rules", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	flagSet.StringVar(&opts.RuleFile, "file", "", "Rule file (default: routing.rules-file, then the built-in rules)")
	flagSet.StringVar(&opts.Fallback, "fallback", "", "Fallback agent override")
	flagSet.StringVar(&opts.Query, "q", "", "Query to classify")
	flagSet.StringVar(&opts.Format, "format", "table", "Output format (table/json)")

	if err := flagSet.Parse(args[1:]); err != nil {
		return nil, err
	}
	if opts.Format != "table" && opts.Format != "json" {
		return nil, fmt.Errorf("unknown format %q", opts.Format)
	}
	return opts, nil
}

func printRulesUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: agenthive rules <command> [options]")
	fmt.Fprintln(w, "\nCommands:")
	fmt.Fprintln(w, "  list           List routing rules in evaluation order")
	fmt.Fprintln(w, "  test           Classify a query and show the deciding rule")
	fmt.Fprintln(w, "  validate       Compile a rule file and report errors")
	fmt.Fprintln(w, "\nOptions:")
	fmt.Fprintln(w, "  --file <path>      Rule file to use instead of the configured rules")
	fmt.Fprintln(w, "  --fallback <name>  Fallback agent override")
	fmt.Fprintln(w, "  --q <text>         Query for test")
	fmt.Fprintln(w, "  --format <str>     Output format: table (default) or json")
	fmt.Fprintln(w, "\nExamples:")
	fmt.Fprintln(w, "  agenthive rules list")
	fmt.Fprintln(w, "  agenthive rules test --q \"sales forecast for Q3\"")
	fmt.Fprintln(w, "  agenthive rules validate --file rules.yaml")
}

// handleRulesCommand processes rules subcommands and returns the process exit code.
func handleRulesCommand(args []string, out io.Writer) int {
	opts, err := ParseRulesCommand(args)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		printRulesUsage(out)
		return 1
	}

	wd, _ := os.Getwd()
	cfg, err := config.LoadConfigOptional(filepath.Join(wd, defaultConfigFile), true)
	if err != nil {
		cfg = config.Default()
	}
	return runRules(cfg, opts, out)
}

func runRules(cfg *config.Config, opts *RulesOptions, out io.Writer) int {
	switch cmd := opts.Command; cmd {
	case RulesList:
		return doRulesList(cfg, opts, out)
	case RulesTest:
		return doRulesTest(cfg, opts, out)
	case RulesValidate:
		return doRulesValidate(cfg, opts, out)
	default:
		fmt.Fprintf(out, "Unknown command: %s\n", cmd)
		printRulesUsage(out)
		return 1
	}
}

// loadClassifier resolves the rule source: --file, then the configured rules file,
// then the built-in rules. It also returns a label describing the source.
func loadClassifier(cfg *config.Config, opts *RulesOptions) (*classifier.Classifier, string, error) {
	fallback := cfg.Routing.FallbackAgent
	if opts.Fallback != "" {
		fallback = opts.Fallback
	}
	path := opts.RuleFile
	if path == "" {
		path = cfg.Routing.RulesFile
	}
	if path == "" {
		c, err := classifier.New(classifier.DefaultRules(), fallback)
		return c, "built-in", err
	}
	c, err := classifier.LoadFile(path, fallback)
	return c, path, err
}

func writeJSON(out io.Writer, v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, string(data))
	return 0
}

func doRulesList(cfg *config.Config, opts *RulesOptions, out io.Writer) int {
	c, source, err := loadClassifier(cfg, opts)
	if err != nil {
		fmt.Fprintf(out, "Error loading rules: %v\n", err)
		return 1
	}

	rules := c.Rules()
	if opts.Format == "json" {
		return writeJSON(out, classifier.RuleFile{Fallback: c.Fallback(), Rules: rules})
	}

	fmt.Fprintf(out, "Rules: %s (%d, fallback %s)\n\n", source, len(rules), c.Fallback())
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tPATTERN\tWHEN\tAGENTS\tINTENT")
	fmt.Fprintln(w, "-\t----\t-------\t----\t------\t------")
	for i, r := range rules {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1, r.Name, dash(r.Pattern), dash(r.When), strings.Join(r.Agents, ","), dash(r.Intent))
	}
	w.Flush()
	return 0
}

func doRulesTest(cfg *config.Config, opts *RulesOptions, out io.Writer) int {
	if strings.TrimSpace(opts.Query) == "" {
		fmt.Fprintln(out, "Error: --q required")
		return 1
	}
	c, _, err := loadClassifier(cfg, opts)
	if err != nil {
		fmt.Fprintf(out, "Error loading rules: %v\n", err)
		return 1
	}

	m := c.Match(opts.Query)
	if opts.Format == "json" {
		return writeJSON(out, struct {
			Query      string `json:"query"`
			Normalized string `json:"normalized"`
			classifier.Match
		}{opts.Query, classifier.Normalize(opts.Query), m})
	}

	fmt.Fprintln(out, "Classification Result")
	fmt.Fprintln(out, "=====================")
	fmt.Fprintf(out, "Query:      %s\n", opts.Query)
	fmt.Fprintf(out, "Normalized: %s\n", classifier.Normalize(opts.Query))
	if m.Fallback {
		fmt.Fprintln(out, "Rule:       (none, fallback)")
	} else {
		fmt.Fprintf(out, "Rule:       %s\n", m.Rule)
	}
	fmt.Fprintf(out, "Intent:     %s\n", m.Intent)
	fmt.Fprintf(out, "Selected:   %s\n", m.Primary())
	if len(m.Agents) > 1 {
		fmt.Fprintf(out, "Candidates: %s\n", strings.Join(m.Agents, ", "))
	}
	return 0
}

func doRulesValidate(cfg *config.Config, opts *RulesOptions, out io.Writer) int {
	c, source, err := loadClassifier(cfg, opts)
	if err != nil {
		fmt.Fprintf(out, "✗ %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "✓ %s: %d rules compiled (fallback %s)\n", source, len(c.Rules()), c.Fallback())
	return 0
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
