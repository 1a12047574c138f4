// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package classifier maps free-text queries to candidate agents using an ordered rule list.
//
// Rules are evaluated strictly in order and the first matching rule wins; later rules are
// never consulted once a rule has matched, even when they would also match. Queries no rule
// claims go to the fallback agent, so a classification is never empty.
package classifier

import (
	"fmt"
	"strings"
)

// Match is the detailed result of classifying one query.
type Match struct {
	// Agents is the ordered candidate list; Agents[0] is the selected agent.
	Agents []string `json:"agents"`
	// Rule is the name of the matching rule, empty on fallback.
	Rule     string `json:"rule,omitempty"`
	Intent   string `json:"intent"`
	Fallback bool   `json:"fallback"`
}

// Primary returns the selected agent.
func (m Match) Primary() string {
	return m.Agents[0]
}

// Classifier is an immutable, compiled rule list. It is safe for concurrent use.
type Classifier struct {
	rules    []*compiledRule
	fallback string
}

// New compiles rules in the given order. All compilation errors surface here so that
// classification itself can never fail.
func New(rules []Rule, fallback string) (*Classifier, error) {
	fallback = strings.TrimSpace(fallback)
	if fallback == "" {
		fallback = DefaultFallbackAgent
	}

	c := &Classifier{
		rules:    make([]*compiledRule, 0, len(rules)),
		fallback: fallback,
	}
	seen := make(map[string]struct{}, len(rules))
	for i, r := range rules {
		cr, err := compileRule(r)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if _, dup := seen[r.Name]; dup {
			return nil, fmt.Errorf("rule %d: %w: duplicate name %q", i, ErrInvalidRule, r.Name)
		}
		seen[r.Name] = struct{}{}
		c.rules = append(c.rules, cr)
	}
	return c, nil
}

// Default returns a classifier over DefaultRules.
func Default() *Classifier {
	c, err := New(DefaultRules(), DefaultFallbackAgent)
	if err != nil {
		panic(fmt.Sprintf("classifier: default rules do not compile: %v", err))
	}
	return c
}

// Normalize lowercases and trims a query the way rules see it.
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Match classifies query and reports which rule decided it.
func (c *Classifier) Match(query string) Match {
	normalized := Normalize(query)
	env := newEnv(normalized)

	for _, cr := range c.rules {
		if cr.matches(normalized, env) {
			return Match{
				Agents: append([]string(nil), cr.rule.Agents...),
				Rule:   cr.rule.Name,
				Intent: cr.rule.Intent,
			}
		}
	}

	return Match{
		Agents:   []string{c.fallback},
		Intent:   "general",
		Fallback: true,
	}
}

// Classify returns the ordered candidate agents for query. The result is never empty.
func (c *Classifier) Classify(query string) []string {
	return c.Match(query).Agents
}

// Fallback returns the agent used when no rule matches.
func (c *Classifier) Fallback() string {
	return c.fallback
}

// Rules returns a copy of the rules in evaluation order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	for i, cr := range c.rules {
		out[i] = cr.rule
		out[i].Agents = append([]string(nil), cr.rule.Agents...)
	}
	return out
}
