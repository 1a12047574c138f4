// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package classifier

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// DefaultFallbackAgent handles any query no rule claims.
const DefaultFallbackAgent = "GeneralAgent"

// ErrInvalidRule is returned when a rule cannot be compiled.
var ErrInvalidRule = errors.New("invalid routing rule")

// Rule maps a query pattern to one or more agents. Agents are kept in order; the first
// one is the selected agent, the rest are secondary handlers for multi-handler dispatch.
type Rule struct {
	Name    string   `yaml:"name" json:"name"`
	Pattern string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	When    string   `yaml:"when,omitempty" json:"when,omitempty"` // expr: "Words > 3 && Query contains 'q3'"
	Agents  []string `yaml:"agents" json:"agents"`
	Intent  string   `yaml:"intent,omitempty" json:"intent,omitempty"`
}

// Env is the environment exposed to `when` conditions.
type Env struct {
	Query  string
	Length int
	Words  int
}

func newEnv(normalized string) Env {
	return Env{
		Query:  normalized,
		Length: len(normalized),
		Words:  len(strings.Fields(normalized)),
	}
}

type compiledRule struct {
	rule    Rule
	pattern *regexp.Regexp
	when    *vm.Program
}

func compileRule(r Rule) (*compiledRule, error) {
	if strings.TrimSpace(r.Name) == "" {
		return nil, fmt.Errorf("%w: rule name cannot be empty", ErrInvalidRule)
	}
	if len(r.Agents) == 0 {
		return nil, fmt.Errorf("%w: rule %q has no agents", ErrInvalidRule, r.Name)
	}
	for _, agent := range r.Agents {
		if strings.TrimSpace(agent) == "" {
			return nil, fmt.Errorf("%w: rule %q has an empty agent", ErrInvalidRule, r.Name)
		}
	}
	if r.Pattern == "" && r.When == "" {
		return nil, fmt.Errorf("%w: rule %q needs a pattern or a when condition", ErrInvalidRule, r.Name)
	}

	cr := &compiledRule{rule: r}
	cr.rule.Agents = append([]string(nil), r.Agents...)

	if r.Pattern != "" {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %q pattern: %v", ErrInvalidRule, r.Name, err)
		}
		cr.pattern = re
	}
	if r.When != "" {
		program, err := expr.Compile(r.When, expr.Env(Env{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("%w: rule %q condition: %v", ErrInvalidRule, r.Name, err)
		}
		cr.when = program
	}
	return cr, nil
}

// matches reports whether every matcher present on the rule accepts the query.
// A condition that fails at run time counts as no match.
func (cr *compiledRule) matches(normalized string, env Env) bool {
	if cr.pattern != nil && !cr.pattern.MatchString(normalized) {
		return false
	}
	if cr.when != nil {
		out, err := expr.Run(cr.when, env)
		if err != nil {
			return false
		}
		ok, _ := out.(bool)
		return ok
	}
	return true
}

// DefaultRules is the built-in rule set, in priority order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:    "sales_forecast",
			Pattern: `\bsales\b.*\bforecast`,
			Agents:  []string{"ChartAgent", "ForecastAgent"},
			Intent:  "sales_forecast",
		},
		{
			Name:    "chart",
			Pattern: `\b(chart|graph|plot|visuali[sz]e|dashboard)`,
			Agents:  []string{"ChartAgent"},
			Intent:  "visualization",
		},
		{
			Name:    "forecast",
			Pattern: `\b(forecast|predict|projection|trend)`,
			Agents:  []string{"ForecastAgent"},
			Intent:  "forecasting",
		},
		{
			Name:    "lease",
			Pattern: `\b(lease|leasing|rent|tenant|landlord)`,
			Agents:  []string{"LeaseAgent"},
			Intent:  "lease_management",
		},
		{
			Name:    "data",
			Pattern: `\b(sql|database|table|dataset|csv)\b`,
			Agents:  []string{"DataAgent"},
			Intent:  "data_query",
		},
		{
			Name:    "support",
			Pattern: `\b(help|support|ticket|issue|bug)\b`,
			Agents:  []string{"SupportAgent"},
			Intent:  "support",
		},
	}
}
