// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package hooks carries routing events between components and runs user-defined
// automation hooks when those events fire.
package hooks

import (
	"time"

	"github.com/h3nok/AgentHive-sub001/internal/routing"
)

// HookEvent names an event published on the bus.
type HookEvent string

const (
	// EventTraceCommitted fires once per trace committed by a local decision pipeline.
	EventTraceCommitted HookEvent = "trace_committed"
	// EventTraceIngested fires for each trace accepted from a live feed.
	EventTraceIngested HookEvent = "trace_ingested"
	// EventTraceFailed fires for committed or ingested traces with success == false.
	EventTraceFailed HookEvent = "trace_failed"
	// EventFeedStatusChanged fires when the live feed connection changes state.
	EventFeedStatusChanged HookEvent = "feed_status_changed"
)

// AllEvents lists every event hooks can subscribe to.
var AllEvents = []HookEvent{
	EventTraceCommitted,
	EventTraceIngested,
	EventTraceFailed,
	EventFeedStatusChanged,
}

// HookAction defines the action to be performed when a hook is triggered.
type HookAction string

const (
	ActionLogWarning    HookAction = "log_warning"
	ActionNotifyWebhook HookAction = "notify_webhook"
)

// Hook represents a single automation rule.
type Hook struct {
	ID          string         `yaml:"id" json:"id"`
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description" json:"description"`
	Event       HookEvent      `yaml:"event" json:"event"`
	Condition   string         `yaml:"condition" json:"condition"`
	Action      HookAction     `yaml:"action" json:"action"`
	Params      map[string]any `yaml:"params" json:"params"`
	Enabled     bool           `yaml:"enabled" json:"enabled"`

	// FilePath is the source file (not in YAML)
	FilePath string `yaml:"-" json:"-"`
}

// EventContext is the payload delivered to subscribers and hook conditions.
type EventContext struct {
	Event     HookEvent              `json:"event"`
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"session_id,omitempty"`
	Trace     *routing.RouterTrace   `json:"trace,omitempty"`
	FeedState string                 `json:"feed_state,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// NewTraceEvent builds the event context for a trace.
func NewTraceEvent(event HookEvent, trace *routing.RouterTrace) *EventContext {
	return &EventContext{
		Event:     event,
		Timestamp: time.Now(),
		SessionID: trace.SessionID,
		Trace:     trace,
	}
}

// ActionHandler is a function that executes a hook action.
type ActionHandler func(hook *Hook, ctx *EventContext) error
