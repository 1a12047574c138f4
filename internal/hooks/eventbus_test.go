package hooks

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h3nok/AgentHive-sub001/internal/routing"
)

func testTrace(session string, success bool) *routing.RouterTrace {
	t := &routing.RouterTrace{
		ID:              "trace-" + session,
		SessionID:       session,
		Query:           "sales forecast",
		FinalAgent:      "ChartAgent",
		FinalConfidence: 1,
		Steps:           []routing.RoutingStep{{ID: "s", Agent: "ChartAgent", Confidence: 1, Method: routing.MethodRegex}},
		Success:         success,
	}
	if !success {
		t.Error = routing.ErrorTimeout
		t.FinalAgent = "GeneralAgent"
		t.FinalConfidence = 0
	}
	return t
}

func TestEventBus_SubscribeAndPublish(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var got *EventContext
	sub := bus.Subscribe(EventTraceCommitted, func(ctx *EventContext) {
		got = ctx
	})
	require.NotNil(t, sub)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, EventTraceCommitted, sub.Event)
	assert.Equal(t, 1, bus.SubscriberCount(EventTraceCommitted))

	bus.Publish(NewTraceEvent(EventTraceCommitted, testTrace("s1", true)))
	require.NotNil(t, got)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "ChartAgent", got.Trace.FinalAgent)
}

func TestEventBus_Filter(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var count int32
	bus.SubscribeWithFilter(EventTraceCommitted, func(*EventContext) {
		atomic.AddInt32(&count, 1)
	}, func(ctx *EventContext) bool {
		return ctx.SessionID == "wanted"
	})

	bus.Publish(NewTraceEvent(EventTraceCommitted, testTrace("other", true)))
	bus.Publish(NewTraceEvent(EventTraceCommitted, testTrace("wanted", true)))
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var count int32
	a := bus.Subscribe(EventTraceIngested, func(*EventContext) { atomic.AddInt32(&count, 1) })
	bus.Subscribe(EventTraceIngested, func(*EventContext) { atomic.AddInt32(&count, 10) })

	a.Unsubscribe()
	a.Unsubscribe()
	assert.Equal(t, 1, bus.SubscriberCount(EventTraceIngested))

	bus.Publish(NewTraceEvent(EventTraceIngested, testTrace("s", true)))
	assert.Equal(t, int32(10), atomic.LoadInt32(&count))
}

func TestEventBus_PublishAsync(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	received := make(chan string, 1)
	bus.Subscribe(EventFeedStatusChanged, func(ctx *EventContext) {
		received <- ctx.FeedState
	})

	bus.PublishAsync(&EventContext{Event: EventFeedStatusChanged, FeedState: "connected"})

	select {
	case state := <-received:
		assert.Equal(t, "connected", state)
	case <-time.After(time.Second):
		t.Fatal("async event was not delivered")
	}
}

func TestEventBus_RecoversFromPanics(t *testing.T) {
	bus := NewEventBus()
	defer bus.Shutdown()

	var called bool
	bus.Subscribe(EventTraceFailed, func(*EventContext) { panic("boom") })
	bus.Subscribe(EventTraceFailed, func(*EventContext) { called = true })

	assert.NotPanics(t, func() {
		bus.Publish(NewTraceEvent(EventTraceFailed, testTrace("s", false)))
	})
	assert.True(t, called)
}

func TestEventBus_ShutdownDropsAsyncEvents(t *testing.T) {
	bus := NewEventBus()

	var count int32
	bus.Subscribe(EventTraceCommitted, func(*EventContext) { atomic.AddInt32(&count, 1) })
	bus.Shutdown()
	bus.Shutdown()

	bus.PublishAsync(NewTraceEvent(EventTraceCommitted, testTrace("s", true)))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&count))
}
