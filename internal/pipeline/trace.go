// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/h3nok/AgentHive-sub001/internal/classifier"
	"github.com/h3nok/AgentHive-sub001/internal/routing"
)

// Step names recorded on pipeline traces.
const (
	StepRegexClassification = "regex_classification"
	StepFallback            = "fallback"
	StepTimeoutFallback     = "timeout_fallback"
)

const fallbackIntent = "general"

func elapsedMs(since time.Time) float64 {
	return float64(time.Since(since).Microseconds()) / 1000
}

// buildTrace wraps a classifier match as a one-step successful trace. A rule match has
// confidence 1.0 and a fallback 0.0.
func (p *Pipeline) buildTrace(query string, m classifier.Match, started time.Time) *routing.RouterTrace {
	now := time.Now()
	latency := elapsedMs(started)

	step := routing.RoutingStep{
		ID:         uuid.NewString(),
		Timestamp:  now,
		StepName:   StepRegexClassification,
		Agent:      m.Primary(),
		Confidence: 1.0,
		Intent:     m.Intent,
		Method:     routing.MethodRegex,
		LatencyMs:  latency,
		Metadata: map[string]interface{}{
			routing.MetaCandidates: append([]string(nil), m.Agents...),
		},
	}
	if m.Fallback {
		step.StepName = StepFallback
		step.Confidence = 0
		step.Method = routing.MethodFallback
	} else {
		step.Metadata[routing.MetaRule] = m.Rule
	}

	return &routing.RouterTrace{
		ID:              uuid.NewString(),
		SessionID:       p.opts.SessionID,
		Query:           query,
		Timestamp:       now,
		TotalLatencyMs:  latency,
		FinalAgent:      step.Agent,
		FinalConfidence: step.Confidence,
		Steps:           []routing.RoutingStep{step},
		Success:         true,
	}
}

// timeoutTrace is the forced fallback recorded when evaluation exceeds the ceiling. It
// routes to the same agent an unmatched query would.
func (p *Pipeline) timeoutTrace(query string, started time.Time) *routing.RouterTrace {
	now := time.Now()
	latency := elapsedMs(started)
	agent := p.matcher.Fallback()
	if agent == "" {
		agent = classifier.DefaultFallbackAgent
	}
	return &routing.RouterTrace{
		ID:              uuid.NewString(),
		SessionID:       p.opts.SessionID,
		Query:           query,
		Timestamp:       now,
		TotalLatencyMs:  latency,
		FinalAgent:      agent,
		FinalConfidence: 0,
		Steps: []routing.RoutingStep{{
			ID:         uuid.NewString(),
			Timestamp:  now,
			StepName:   StepTimeoutFallback,
			Agent:      agent,
			Confidence: 0,
			Intent:     fallbackIntent,
			Method:     routing.MethodFallback,
			LatencyMs:  latency,
			Metadata: map[string]interface{}{
				routing.MetaCandidates: []string{agent},
			},
		}},
		Success: false,
		Error:   routing.ErrorTimeout,
	}
}
