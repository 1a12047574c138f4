// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package livefeed

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	defaultReconnectDelay   = 2 * time.Second
	defaultHandshakeTimeout = 5 * time.Second
	maxMessageSize          = 1 << 20
)

// WebSocketSource reads trace envelopes from a websocket endpoint, reconnecting after
// failures until the subscription is closed.
type WebSocketSource struct {
	URL              string
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
}

// NewWebSocketSource returns a source for rawURL. Zero durations use the defaults.
func NewWebSocketSource(rawURL string, reconnectDelay, handshakeTimeout time.Duration) (*WebSocketSource, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid live feed url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid live feed url %q: scheme must be ws or wss", rawURL)
	}
	if reconnectDelay <= 0 {
		reconnectDelay = defaultReconnectDelay
	}
	if handshakeTimeout <= 0 {
		handshakeTimeout = defaultHandshakeTimeout
	}
	return &WebSocketSource{URL: rawURL, ReconnectDelay: reconnectDelay, HandshakeTimeout: handshakeTimeout}, nil
}

type wsSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *wsSubscription) Close() error {
	s.once.Do(s.cancel)
	<-s.done
	return nil
}

// Subscribe implements Source.
func (s *WebSocketSource) Subscribe(ctx context.Context, sessionID string, onTrace TraceHandler, onStatus StatusHandler) (Subscription, error) {
	if onTrace == nil {
		return nil, fmt.Errorf("trace handler cannot be nil")
	}
	if onStatus == nil {
		onStatus = func(Status) {}
	}

	target, err := s.sessionURL(sessionID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &wsSubscription{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		s.run(ctx, target, sessionID, onTrace, onStatus)
	}()
	return sub, nil
}

func (s *WebSocketSource) sessionURL(sessionID string) (string, error) {
	u, err := url.Parse(s.URL)
	if err != nil {
		return "", fmt.Errorf("invalid live feed url: %w", err)
	}
	if sessionID != "" {
		q := u.Query()
		q.Set("session", sessionID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (s *WebSocketSource) run(ctx context.Context, target, sessionID string, onTrace TraceHandler, onStatus StatusHandler) {
	dialer := websocket.Dialer{HandshakeTimeout: s.HandshakeTimeout}

	for {
		onStatus(NewStatus(StateConnecting, ""))
		conn, _, err := dialer.DialContext(ctx, target, nil)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Warnf("Live feed dial failed: %v", err)
			onStatus(NewStatus(StateError, err.Error()))
		} else {
			log.Infof("Live feed connected to %s", target)
			onStatus(NewStatus(StateConnected, ""))
			err = s.readLoop(ctx, conn, sessionID, onTrace)
			if ctx.Err() != nil {
				break
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				onStatus(NewStatus(StateDisconnected, ""))
			} else {
				log.Warnf("Live feed connection lost: %v", err)
				onStatus(NewStatus(StateError, err.Error()))
			}
		}

		select {
		case <-ctx.Done():
		case <-time.After(s.ReconnectDelay):
			continue
		}
		break
	}

	onStatus(NewStatus(StateDisconnected, ""))
}

func (s *WebSocketSource) readLoop(ctx context.Context, conn *websocket.Conn, sessionID string, onTrace TraceHandler) error {
	conn.SetReadLimit(maxMessageSize)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
			conn.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		trace, ok, err := DecodeEnvelope(data, sessionID)
		if err != nil {
			log.Warnf("Dropping malformed live feed message: %v", err)
			continue
		}
		if ok {
			onTrace(trace)
		}
	}
}
