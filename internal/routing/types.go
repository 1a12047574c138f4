// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package routing defines the records produced by the query router: the steps of one
// evaluation, the trace that groups them, the decision derived from a trace, and the
// filter, settings and statistics types the trace store works with.
package routing

import (
	"errors"
	"fmt"
	"time"
)

// Method identifies how a routing step reached its result.
type Method string

const (
	MethodRegex        Method = "regex"
	MethodLLMRouter    Method = "llm_router"
	MethodMLClassifier Method = "ml_classifier"
	MethodFallback     Method = "fallback"
)

// Valid reports whether m is one of the known methods.
func (m Method) Valid() bool {
	switch m {
	case MethodRegex, MethodLLMRouter, MethodMLClassifier, MethodFallback:
		return true
	}
	return false
}

// ErrorTimeout is the error recorded on a trace whose evaluation exceeded the safety ceiling.
const ErrorTimeout = "timeout"

// Step metadata keys.
const (
	MetaCandidates = "candidates"
	MetaRule       = "rule"
)

var (
	ErrEmptySteps        = errors.New("trace has no steps")
	ErrMissingError      = errors.New("failed trace has no error")
	ErrInvalidConfidence = errors.New("confidence out of range [0,1]")
	ErrInvalidMethod     = errors.New("unknown routing method")
	ErrNegativeLatency   = errors.New("latency is negative")
)

// RoutingStep is one stage of an evaluation. Steps are immutable once recorded.
type RoutingStep struct {
	ID         string                 `json:"id"`
	Timestamp  time.Time              `json:"timestamp"`
	StepName   string                 `json:"stepName"`
	Agent      string                 `json:"agent"`
	Confidence float64                `json:"confidence"`
	Intent     string                 `json:"intent"`
	Method     Method                 `json:"method"`
	LatencyMs  float64                `json:"latencyMs"`
	Override   bool                   `json:"override,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Candidates returns the candidate agent list stored in the step metadata.
// Traces decoded from JSON carry the list as []interface{}, so both shapes are accepted.
func (s RoutingStep) Candidates() []string {
	switch v := s.Metadata[MetaCandidates].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// RoutingDecision is the committed outcome for one input.
type RoutingDecision struct {
	SelectedAgent string  `json:"selectedAgent"`
	Confidence    float64 `json:"confidence"`
	Method        Method  `json:"method"`
	Reasoning     string  `json:"reasoning"`
}

// RouterTrace is the full record of one evaluated or ingested query.
type RouterTrace struct {
	ID              string        `json:"id"`
	SessionID       string        `json:"sessionId"`
	Query           string        `json:"query"`
	Timestamp       time.Time     `json:"timestamp"`
	TotalLatencyMs  float64       `json:"totalLatencyMs"`
	FinalAgent      string        `json:"finalAgent"`
	FinalConfidence float64       `json:"finalConfidence"`
	Steps           []RoutingStep `json:"steps"`
	Success         bool          `json:"success"`
	Error           string        `json:"error,omitempty"`
}

// Validate checks the structural invariants every stored trace must satisfy.
func (t *RouterTrace) Validate() error {
	if t == nil {
		return fmt.Errorf("trace cannot be nil")
	}
	if t.ID == "" {
		return fmt.Errorf("trace id cannot be empty")
	}
	if len(t.Steps) == 0 {
		return fmt.Errorf("trace %s: %w", t.ID, ErrEmptySteps)
	}
	if !t.Success && t.Error == "" {
		return fmt.Errorf("trace %s: %w", t.ID, ErrMissingError)
	}
	if t.FinalConfidence < 0 || t.FinalConfidence > 1 {
		return fmt.Errorf("trace %s: %w: %v", t.ID, ErrInvalidConfidence, t.FinalConfidence)
	}
	if t.TotalLatencyMs < 0 {
		return fmt.Errorf("trace %s: %w", t.ID, ErrNegativeLatency)
	}
	for i, step := range t.Steps {
		if !step.Method.Valid() {
			return fmt.Errorf("trace %s step %d: %w: %q", t.ID, i, ErrInvalidMethod, step.Method)
		}
		if step.Confidence < 0 || step.Confidence > 1 {
			return fmt.Errorf("trace %s step %d: %w: %v", t.ID, i, ErrInvalidConfidence, step.Confidence)
		}
		if step.LatencyMs < 0 {
			return fmt.Errorf("trace %s step %d: %w", t.ID, i, ErrNegativeLatency)
		}
	}
	return nil
}

// HasMethod reports whether any step of the trace used method m.
func (t *RouterTrace) HasMethod(m Method) bool {
	for _, step := range t.Steps {
		if step.Method == m {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can hand traces out without sharing step slices.
func (t *RouterTrace) Clone() *RouterTrace {
	if t == nil {
		return nil
	}
	c := *t
	c.Steps = make([]RoutingStep, len(t.Steps))
	for i, step := range t.Steps {
		c.Steps[i] = step
		if step.Metadata != nil {
			c.Steps[i].Metadata = make(map[string]interface{}, len(step.Metadata))
			for k, v := range step.Metadata {
				c.Steps[i].Metadata[k] = v
			}
		}
	}
	return &c
}

// RoutingFilters selects traces for the filtered view. Empty Agent or Method match anything.
type RoutingFilters struct {
	Agent         string  `json:"agent,omitempty"`
	Method        Method  `json:"method,omitempty"`
	MinConfidence float64 `json:"minConfidence"`
	ShowErrors    bool    `json:"showErrors"`
}

// DefaultFilters returns filters that let every trace through.
func DefaultFilters() RoutingFilters {
	return RoutingFilters{ShowErrors: true}
}

// Matches is the filter predicate.
func (f RoutingFilters) Matches(t *RouterTrace) bool {
	if t == nil {
		return false
	}
	if f.Agent != "" && t.FinalAgent != f.Agent {
		return false
	}
	if f.Method != "" && !t.HasMethod(f.Method) {
		return false
	}
	if t.FinalConfidence < f.MinConfidence {
		return false
	}
	return f.ShowErrors || t.Success
}

// RoutingSettings controls the trace store.
type RoutingSettings struct {
	MaxTraces         int  `json:"maxTraces"`
	AutoScroll        bool `json:"autoScroll"`
	EnableLiveUpdates bool `json:"enableLiveUpdates"`
}

// DefaultMaxTraces is the default trace buffer bound.
const DefaultMaxTraces = 100

// DefaultSettings returns the default store settings.
func DefaultSettings() RoutingSettings {
	return RoutingSettings{
		MaxTraces:  DefaultMaxTraces,
		AutoScroll: true,
	}
}

// RoutingStats summarizes the retained traces. Confidence and success rate are percentages.
type RoutingStats struct {
	TotalTraces   int     `json:"totalTraces"`
	AvgLatency    float64 `json:"avgLatency"`
	AvgConfidence float64 `json:"avgConfidence"`
	SuccessRate   float64 `json:"successRate"`
}

// ComputeStats derives statistics over traces. All fields are zero for an empty slice.
func ComputeStats(traces []*RouterTrace) RoutingStats {
	if len(traces) == 0 {
		return RoutingStats{}
	}

	var latency, confidence float64
	succeeded := 0
	for _, t := range traces {
		latency += t.TotalLatencyMs
		confidence += t.FinalConfidence
		if t.Success {
			succeeded++
		}
	}

	n := float64(len(traces))
	return RoutingStats{
		TotalTraces:   len(traces),
		AvgLatency:    latency / n,
		AvgConfidence: confidence / n * 100,
		SuccessRate:   float64(succeeded) / n * 100,
	}
}
