// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import (
	"fmt"
	"strings"
)

// DecisionFromTrace derives the decision recorded by a trace. The first step selects the
// agent unless a later step is marked as an override; the last override wins.
func DecisionFromTrace(t *RouterTrace) *RoutingDecision {
	if t == nil || len(t.Steps) == 0 {
		return nil
	}

	selected := t.Steps[0]
	for _, step := range t.Steps[1:] {
		if step.Override {
			selected = step
		}
	}

	return &RoutingDecision{
		SelectedAgent: selected.Agent,
		Confidence:    selected.Confidence,
		Method:        selected.Method,
		Reasoning:     reasoningFor(t, selected),
	}
}

func reasoningFor(t *RouterTrace, step RoutingStep) string {
	if !t.Success {
		return fmt.Sprintf("Evaluation failed (%s); routed to fallback agent %s", t.Error, step.Agent)
	}
	if step.Method == MethodFallback {
		return fmt.Sprintf("No rule matched; routed to fallback agent %s", step.Agent)
	}

	rule, _ := step.Metadata[MetaRule].(string)
	candidates := step.Candidates()
	var b strings.Builder
	if rule != "" {
		fmt.Fprintf(&b, "Matched rule %q via %s", rule, step.Method)
	} else {
		fmt.Fprintf(&b, "Selected via %s", step.Method)
	}
	fmt.Fprintf(&b, "; selected %s", step.Agent)
	if len(candidates) > 1 {
		fmt.Fprintf(&b, " (candidates: %s)", strings.Join(candidates, ", "))
	}
	return b.String()
}
