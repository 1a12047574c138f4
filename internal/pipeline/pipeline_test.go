package pipeline

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/h3nok/AgentHive-sub001/internal/classifier"
	"github.com/h3nok/AgentHive-sub001/internal/hooks"
	"github.com/h3nok/AgentHive-sub001/internal/routing"
	"github.com/h3nok/AgentHive-sub001/internal/tracestore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu     sync.Mutex
	traces []*routing.RouterTrace
}

func (r *recorder) Insert(t *routing.RouterTrace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces = append(r.traces, t)
	return nil
}

func (r *recorder) all() []*routing.RouterTrace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*routing.RouterTrace(nil), r.traces...)
}

func (r *recorder) count() int {
	return len(r.all())
}

// gatedMatcher blocks classification of the gated query until the gate is closed.
type gatedMatcher struct {
	inner   Matcher
	query   string
	gate    chan struct{}
	started chan string
}

func newGatedMatcher(query string) *gatedMatcher {
	return gate(classifier.Default(), query)
}

func gate(inner Matcher, query string) *gatedMatcher {
	return &gatedMatcher{
		inner:   inner,
		query:   query,
		gate:    make(chan struct{}),
		started: make(chan string, 16),
	}
}

func (g *gatedMatcher) Match(query string) classifier.Match {
	if g.query == "" || query == g.query {
		g.started <- query
		<-g.gate
	}
	return g.inner.Match(query)
}

func (g *gatedMatcher) Fallback() string { return g.inner.Fallback() }

func fastOptions() Options {
	return Options{Debounce: 40 * time.Millisecond, Timeout: time.Second, SessionID: "s1"}
}

func waitForTraces(t *testing.T, r *recorder, n int) []*routing.RouterTrace {
	t.Helper()
	require.Eventually(t, func() bool { return r.count() >= n }, 2*time.Second, 5*time.Millisecond)
	return r.all()
}

func TestPipeline_EndToEnd(t *testing.T) {
	rec := &recorder{}
	p := New(classifier.Default(), rec, fastOptions())
	defer p.Close()

	p.Input("I need a chart of sales")
	assert.Equal(t, StateDebouncing, p.State())

	traces := waitForTraces(t, rec, 1)
	tr := traces[0]
	assert.Equal(t, "s1", tr.SessionID)
	assert.Equal(t, "I need a chart of sales", tr.Query)
	assert.Equal(t, "ChartAgent", tr.FinalAgent)
	assert.Equal(t, 1.0, tr.FinalConfidence)
	assert.True(t, tr.Success)
	assert.Empty(t, tr.Error)
	require.Len(t, tr.Steps, 1)
	assert.Equal(t, routing.MethodRegex, tr.Steps[0].Method)
	assert.Equal(t, StepRegexClassification, tr.Steps[0].StepName)
	assert.NoError(t, tr.Validate())

	assert.Eventually(t, func() bool { return p.State() == StateSettled }, time.Second, 5*time.Millisecond)
	d := p.Decision()
	require.NotNil(t, d)
	assert.Equal(t, "ChartAgent", d.SelectedAgent)
	assert.Equal(t, routing.MethodRegex, d.Method)
	assert.Contains(t, d.Reasoning, `"chart"`)
	assert.Equal(t, tr, p.LastTrace())
}

func TestPipeline_CompositeRecordsCandidates(t *testing.T) {
	rec := &recorder{}
	p := New(classifier.Default(), rec, fastOptions())
	defer p.Close()

	p.Input("sales forecast")
	tr := waitForTraces(t, rec, 1)[0]

	assert.Equal(t, "ChartAgent", tr.FinalAgent)
	step := tr.Steps[0]
	assert.Equal(t, []string{"ChartAgent", "ForecastAgent"}, step.Candidates())
	assert.Equal(t, "sales_forecast", step.Metadata[routing.MetaRule])
	assert.Eventually(t, func() bool { return p.Decision() != nil }, time.Second, 5*time.Millisecond)
	assert.Contains(t, p.Decision().Reasoning, "ChartAgent, ForecastAgent")
}

func TestPipeline_Fallback(t *testing.T) {
	rec := &recorder{}
	p := New(classifier.Default(), rec, fastOptions())
	defer p.Close()

	p.Input("good morning")
	tr := waitForTraces(t, rec, 1)[0]
	assert.Equal(t, classifier.DefaultFallbackAgent, tr.FinalAgent)
	assert.Equal(t, 0.0, tr.FinalConfidence)
	assert.True(t, tr.Success)
	assert.Equal(t, routing.MethodFallback, tr.Steps[0].Method)
	assert.Equal(t, StepFallback, tr.Steps[0].StepName)
	_, hasRule := tr.Steps[0].Metadata[routing.MetaRule]
	assert.False(t, hasRule)
}

func TestPipeline_DebounceCoalescing(t *testing.T) {
	rec := &recorder{}
	opts := fastOptions()
	opts.Debounce = 100 * time.Millisecond
	p := New(classifier.Default(), rec, opts)
	defer p.Close()

	for _, s := range []string{"l", "le", "lea", "leas", "lease"} {
		p.Input(s)
	}
	waitForTraces(t, rec, 1)
	time.Sleep(2 * opts.Debounce)

	traces := rec.all()
	require.Len(t, traces, 1)
	assert.Equal(t, "lease", traces[0].Query)
	assert.Equal(t, "LeaseAgent", traces[0].FinalAgent)
	assert.Equal(t, uint64(5), p.Generation())
}

func TestPipeline_CancelledInputIsNeverRecorded(t *testing.T) {
	rec := &recorder{}
	p := New(classifier.Default(), rec, fastOptions())
	defer p.Close()

	p.Input("show me a chart")
	time.Sleep(5 * time.Millisecond)
	p.Input("renew my lease")

	waitForTraces(t, rec, 1)
	time.Sleep(100 * time.Millisecond)
	traces := rec.all()
	require.Len(t, traces, 1)
	assert.Equal(t, "renew my lease", traces[0].Query)
}

func TestPipeline_StaleEvaluationDiscarded(t *testing.T) {
	rec := &recorder{}
	m := newGatedMatcher("show me a chart")
	p := New(m, rec, fastOptions())

	p.Input("show me a chart")
	select {
	case <-m.started:
	case <-time.After(2 * time.Second):
		t.Fatal("evaluation never started")
	}
	assert.Equal(t, StateEvaluating, p.State())

	p.Input("renew my lease")
	waitForTraces(t, rec, 1)

	close(m.gate)
	p.Close()

	traces := rec.all()
	require.Len(t, traces, 1)
	assert.Equal(t, "LeaseAgent", traces[0].FinalAgent)
	assert.Equal(t, "LeaseAgent", p.Decision().SelectedAgent)
}

func TestPipeline_TimeoutForcesFallback(t *testing.T) {
	bus := hooks.NewEventBus()
	defer bus.Shutdown()

	var mu sync.Mutex
	var events []hooks.HookEvent
	record := func(ctx *hooks.EventContext) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ctx.Event)
	}
	bus.Subscribe(hooks.EventTraceCommitted, record)
	bus.Subscribe(hooks.EventTraceFailed, record)

	rec := &recorder{}
	m := newGatedMatcher("")
	opts := fastOptions()
	opts.Timeout = 60 * time.Millisecond
	opts.Bus = bus
	p := New(m, rec, opts)

	p.Input("show me a chart")
	tr := waitForTraces(t, rec, 1)[0]
	assert.False(t, tr.Success)
	assert.Equal(t, routing.ErrorTimeout, tr.Error)
	assert.Equal(t, classifier.DefaultFallbackAgent, tr.FinalAgent)
	assert.Equal(t, 0.0, tr.FinalConfidence)
	require.Len(t, tr.Steps, 1)
	assert.Equal(t, StepTimeoutFallback, tr.Steps[0].StepName)
	assert.Equal(t, routing.MethodFallback, tr.Steps[0].Method)
	assert.NoError(t, tr.Validate())
	assert.Equal(t, StateSettled, p.State())

	close(m.gate)
	p.Close()

	assert.Equal(t, 1, rec.count(), "late result after timeout is discarded")
	d := p.Decision()
	require.NotNil(t, d)
	assert.Contains(t, d.Reasoning, "timeout")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []hooks.HookEvent{hooks.EventTraceCommitted, hooks.EventTraceFailed}, events)
}

func TestPipeline_BlankInputClearsDecision(t *testing.T) {
	rec := &recorder{}
	p := New(classifier.Default(), rec, fastOptions())
	defer p.Close()

	p.Input("open a support ticket")
	waitForTraces(t, rec, 1)
	require.Eventually(t, func() bool { return p.Decision() != nil }, time.Second, 5*time.Millisecond)

	p.Input("   ")
	assert.Nil(t, p.Decision())
	assert.Nil(t, p.LastTrace())
	assert.Equal(t, StateIdle, p.State())
	assert.Equal(t, "", p.Query())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestPipeline_BlankInputCancelsPending(t *testing.T) {
	rec := &recorder{}
	p := New(classifier.Default(), rec, fastOptions())
	defer p.Close()

	p.Input("chart")
	p.Input("")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
	assert.Equal(t, StateIdle, p.State())
}

func TestPipeline_DecisionKeptWhileDebouncing(t *testing.T) {
	rec := &recorder{}
	p := New(classifier.Default(), rec, fastOptions())
	defer p.Close()

	p.Input("chart")
	waitForTraces(t, rec, 1)
	require.Eventually(t, func() bool { return p.Decision() != nil }, time.Second, 5*time.Millisecond)

	p.Input("chart and lease")
	assert.Equal(t, StateDebouncing, p.State())
	require.NotNil(t, p.Decision())
	assert.Equal(t, "ChartAgent", p.Decision().SelectedAgent)
}

func TestPipeline_CloseDropsPendingWork(t *testing.T) {
	rec := &recorder{}
	p := New(classifier.Default(), rec, fastOptions())

	p.Input("chart")
	p.Close()
	p.Close()
	p.Input("lease")

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
	assert.Equal(t, StateIdle, p.State())
}

func TestPipeline_RecordsIntoTraceStore(t *testing.T) {
	settings := routing.DefaultSettings()
	settings.MaxTraces = 2
	store, err := tracestore.New(settings)
	require.NoError(t, err)

	p := New(classifier.Default(), store, fastOptions())
	defer p.Close()

	for _, q := range []string{"chart", "forecast", "lease"} {
		before := store.Len()
		p.Input(q)
		require.Eventually(t, func() bool {
			traces := store.Traces()
			return len(traces) > 0 && traces[len(traces)-1].Query == q
		}, 2*time.Second, 5*time.Millisecond)
		assert.LessOrEqual(t, store.Len(), before+1)
	}

	traces := store.Traces()
	require.Len(t, traces, 2)
	assert.Equal(t, "ForecastAgent", traces[0].FinalAgent)
	assert.Equal(t, "LeaseAgent", traces[1].FinalAgent)
	assert.InDelta(t, 100, store.Stats().AvgConfidence, 1e-9)
}

func TestNew_Defaults(t *testing.T) {
	p := New(classifier.Default(), nil, Options{})
	defer p.Close()
	assert.Equal(t, DefaultDebounce, p.opts.Debounce)
	assert.Equal(t, DefaultTimeout, p.opts.Timeout)
	assert.Equal(t, StateIdle, p.State())
	assert.Nil(t, p.Decision())
}

func TestTimeoutUsesRulesFileFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
fallback: HelpDesk
rules:
  - name: chart
    pattern: '\bchart\b'
    agents: [ChartAgent]
`), 0o644))
	c, err := classifier.LoadFile(path, classifier.DefaultFallbackAgent)
	require.NoError(t, err)

	rec := &recorder{}
	unmatched := New(classifier.NewStatic(c), rec, fastOptions())
	unmatched.Input("good morning")
	noMatch := waitForTraces(t, rec, 1)[0]
	unmatched.Close()
	require.True(t, noMatch.Success)

	m := gate(classifier.NewStatic(c), "show me a chart")
	opts := fastOptions()
	opts.Timeout = 60 * time.Millisecond
	p := New(m, rec, opts)
	p.Input("show me a chart")
	timedOut := waitForTraces(t, rec, 2)[1]
	close(m.gate)
	p.Close()

	assert.Equal(t, "HelpDesk", noMatch.FinalAgent)
	assert.False(t, timedOut.Success)
	assert.Equal(t, routing.ErrorTimeout, timedOut.Error)
	assert.Equal(t, noMatch.FinalAgent, timedOut.FinalAgent)
	assert.Equal(t, []string{"HelpDesk"}, timedOut.Steps[0].Candidates())
	assert.Equal(t, "HelpDesk", p.Decision().SelectedAgent)
}
