// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package livefeed

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/h3nok/AgentHive-sub001/internal/hooks"
	"github.com/h3nok/AgentHive-sub001/internal/routing"
)

const (
	clientSendBuffer = 64
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = pongWait * 9 / 10
)

// Broadcaster streams committed traces to websocket observers as trace envelopes.
// Observers may scope the stream with a session query parameter.
type Broadcaster struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	sub     *hooks.Subscription
	wg      sync.WaitGroup
}

type client struct {
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
	done      chan struct{}
	once      sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// NewBroadcaster creates a broadcaster with no clients.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Attach forwards every trace_committed event on bus to connected clients.
func (b *Broadcaster) Attach(bus *hooks.EventBus) {
	sub := bus.Subscribe(hooks.EventTraceCommitted, func(evt *hooks.EventContext) {
		if evt.Trace != nil {
			b.Broadcast(evt.Trace)
		}
	})
	b.mu.Lock()
	if b.sub != nil {
		b.sub.Unsubscribe()
	}
	b.sub = sub
	b.mu.Unlock()
}

// ClientCount reports the number of connected observers.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Broadcast queues trace for every client subscribed to its session. Clients whose
// buffer is full miss the message.
func (b *Broadcaster) Broadcast(trace *routing.RouterTrace) {
	data, err := EncodeEnvelope(trace)
	if err != nil {
		log.Warnf("Failed to encode trace %s for broadcast: %v", trace.ID, err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		if c.sessionID != "" && c.sessionID != trace.SessionID {
			continue
		}
		select {
		case c.send <- data:
		default:
			log.Debugf("Live feed client buffer full, dropping trace %s", trace.ID)
		}
	}
}

// Handle is the gin handler that upgrades the request to a trace stream.
func (b *Broadcaster) Handle(c *gin.Context) {
	b.ServeHTTP(c.Writer, c.Request)
}

// ServeHTTP upgrades the request to a trace stream.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		http.Error(w, "live feed closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("Live feed upgrade failed: %v", err)
		return
	}

	c := &client{
		conn:      conn,
		sessionID: r.URL.Query().Get("session"),
		send:      make(chan []byte, clientSendBuffer),
		done:      make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		conn.Close()
		return
	}
	b.clients[c] = struct{}{}
	b.wg.Add(2)
	b.mu.Unlock()

	log.Debugf("Live feed observer connected (session=%q)", c.sessionID)
	go b.writePump(c)
	go b.readPump(c)
}

func (b *Broadcaster) remove(c *client) {
	b.mu.Lock()
	delete(b.clients, c)
	b.mu.Unlock()
	c.stop()
}

func (b *Broadcaster) readPump(c *client) {
	defer b.wg.Done()
	defer b.remove(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Broadcaster) writePump(c *client) {
	defer b.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				b.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				b.remove(c)
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		}
	}
}

// Close disconnects every observer and detaches from the event bus.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	if b.sub != nil {
		b.sub.Unsubscribe()
		b.sub = nil
	}
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	for _, c := range clients {
		c.stop()
	}
	b.wg.Wait()
}
