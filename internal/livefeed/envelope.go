// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package livefeed

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/h3nok/AgentHive-sub001/internal/routing"
)

// MessageTypeTrace marks an envelope carrying a RouterTrace.
const MessageTypeTrace = "trace"

// EncodeEnvelope wraps a trace as {"type":"trace","sessionId":...,"trace":{...}}.
func EncodeEnvelope(t *routing.RouterTrace) ([]byte, error) {
	raw, err := routing.EncodeTrace(t)
	if err != nil {
		return nil, err
	}
	out, err := sjson.SetBytes([]byte(`{}`), "type", MessageTypeTrace)
	if err != nil {
		return nil, err
	}
	if out, err = sjson.SetBytes(out, "sessionId", t.SessionID); err != nil {
		return nil, err
	}
	if out, err = sjson.SetRawBytes(out, "trace", raw); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeEnvelope extracts a trace from a feed message. ok is false for messages that are
// not traces or belong to a different session; err is set for malformed trace messages.
func DecodeEnvelope(data []byte, sessionID string) (trace *routing.RouterTrace, ok bool, err error) {
	if !gjson.ValidBytes(data) {
		return nil, false, fmt.Errorf("feed message is not valid JSON")
	}
	if gjson.GetBytes(data, "type").String() != MessageTypeTrace {
		return nil, false, nil
	}

	envSession := gjson.GetBytes(data, "sessionId").String()
	if sessionID != "" && envSession != "" && envSession != sessionID {
		return nil, false, nil
	}

	raw := gjson.GetBytes(data, "trace")
	if !raw.IsObject() {
		return nil, false, fmt.Errorf("trace message has no trace object")
	}
	trace, err = routing.DecodeTrace([]byte(raw.Raw))
	if err != nil {
		return nil, false, err
	}
	if trace.SessionID == "" {
		trace.SessionID = envSession
	}
	if sessionID != "" && trace.SessionID != sessionID {
		return nil, false, nil
	}
	return trace, true, nil
}
