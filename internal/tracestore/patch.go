// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tracestore

import (
	"fmt"

	"github.com/h3nok/AgentHive-sub001/internal/routing"
)

// FiltersPatch is a partial filter update. Nil fields are left unchanged; an empty
// Agent or Method clears that filter.
type FiltersPatch struct {
	Agent         *string         `json:"agent,omitempty"`
	Method        *routing.Method `json:"method,omitempty"`
	MinConfidence *float64        `json:"minConfidence,omitempty"`
	ShowErrors    *bool           `json:"showErrors,omitempty"`
}

// Validate rejects unknown methods and confidences outside [0, 1].
func (p FiltersPatch) Validate() error {
	if p.Method != nil && *p.Method != "" && !p.Method.Valid() {
		return fmt.Errorf("%w: %q", routing.ErrInvalidMethod, *p.Method)
	}
	if p.MinConfidence != nil && (*p.MinConfidence < 0 || *p.MinConfidence > 1) {
		return fmt.Errorf("%w: %v", routing.ErrInvalidConfidence, *p.MinConfidence)
	}
	return nil
}

func (p FiltersPatch) apply(f *routing.RoutingFilters) {
	if p.Agent != nil {
		f.Agent = *p.Agent
	}
	if p.Method != nil {
		f.Method = *p.Method
	}
	if p.MinConfidence != nil {
		f.MinConfidence = *p.MinConfidence
	}
	if p.ShowErrors != nil {
		f.ShowErrors = *p.ShowErrors
	}
}

// SettingsPatch is a partial settings update. Nil fields are left unchanged.
type SettingsPatch struct {
	MaxTraces         *int  `json:"maxTraces,omitempty"`
	AutoScroll        *bool `json:"autoScroll,omitempty"`
	EnableLiveUpdates *bool `json:"enableLiveUpdates,omitempty"`
}

// Validate rejects a maxTraces below 1.
func (p SettingsPatch) Validate() error {
	if p.MaxTraces != nil && *p.MaxTraces < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxTraces, *p.MaxTraces)
	}
	return nil
}

func (p SettingsPatch) apply(s *routing.RoutingSettings) {
	if p.MaxTraces != nil {
		s.MaxTraces = *p.MaxTraces
	}
	if p.AutoScroll != nil {
		s.AutoScroll = *p.AutoScroll
	}
	if p.EnableLiveUpdates != nil {
		s.EnableLiveUpdates = *p.EnableLiveUpdates
	}
}
