// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import (
	"fmt"

	"github.com/goccy/go-json"
)

// EncodeTrace serializes a trace in its wire form.
func EncodeTrace(t *RouterTrace) ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to encode trace: %w", err)
	}
	return data, nil
}

// DecodeTrace parses and validates a trace received from outside the process.
func DecodeTrace(data []byte) (*RouterTrace, error) {
	var t RouterTrace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode trace: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}
