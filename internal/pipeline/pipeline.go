// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pipeline turns a stream of input edits into one committed routing decision per
// settled input. Each edit starts a new generation; only the current generation may
// commit, and it commits exactly once.
package pipeline

import (
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/h3nok/AgentHive-sub001/internal/classifier"
	"github.com/h3nok/AgentHive-sub001/internal/hooks"
	"github.com/h3nok/AgentHive-sub001/internal/routing"
)

// State is the pipeline's position in the Idle → Debouncing → Evaluating → Settled cycle.
type State string

const (
	StateIdle       State = "idle"
	StateDebouncing State = "debouncing"
	StateEvaluating State = "evaluating"
	StateSettled    State = "settled"
)

const (
	// DefaultDebounce is the quiet period required before an input is evaluated.
	DefaultDebounce = 300 * time.Millisecond
	// DefaultTimeout bounds the Evaluating state.
	DefaultTimeout = 2000 * time.Millisecond
)

// Matcher classifies a query. *classifier.Classifier, classifier.Static and
// classifier.Watcher all satisfy it.
type Matcher interface {
	Match(query string) classifier.Match
	// Fallback is the agent unmatched queries go to. Timed-out evaluations resolve to it
	// as well, read when the timeout fires so rule reloads are honoured.
	Fallback() string
}

// Recorder receives every committed trace.
type Recorder interface {
	Insert(trace *routing.RouterTrace) error
}

// Options configures a Pipeline. Zero durations use the defaults.
type Options struct {
	Debounce  time.Duration
	Timeout   time.Duration
	SessionID string
	// Bus, when set, receives trace_committed for every commit and trace_failed for
	// timed-out evaluations.
	Bus *hooks.EventBus
}

// Pipeline is the debounced, cancellable decision engine. It is safe for concurrent use.
type Pipeline struct {
	matcher  Matcher
	recorder Recorder
	opts     Options

	mu           sync.Mutex
	gen          uint64
	committedGen uint64
	state        State
	query        string
	decision     *routing.RoutingDecision
	last         *routing.RouterTrace
	debounce     *time.Timer
	ceiling      *time.Timer
	closed       bool

	// wg tracks scheduled timer callbacks and running evaluations.
	wg sync.WaitGroup
}

// New creates an idle pipeline. recorder may be nil when traces need not be retained.
func New(matcher Matcher, recorder Recorder, opts Options) *Pipeline {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Pipeline{
		matcher:  matcher,
		recorder: recorder,
		opts:     opts,
		state:    StateIdle,
	}
}

// Input feeds the current value of the input. Any pending debounce and in-flight
// evaluation of an earlier value is abandoned. Blank input clears the decision.
func (p *Pipeline) Input(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	p.gen++
	gen := p.gen
	p.stopTimersLocked()

	query := strings.TrimSpace(text)
	if query == "" {
		p.state = StateIdle
		p.query = ""
		p.decision = nil
		p.last = nil
		log.Debugf("Pipeline gen %d: blank input, decision cleared", gen)
		return
	}

	p.state = StateDebouncing
	p.query = query
	p.wg.Add(1)
	p.debounce = time.AfterFunc(p.opts.Debounce, func() {
		defer p.wg.Done()
		p.startEvaluation(gen, query)
	})
}

func (p *Pipeline) stopTimersLocked() {
	if p.debounce != nil {
		if p.debounce.Stop() {
			p.wg.Done()
		}
		p.debounce = nil
	}
	if p.ceiling != nil {
		if p.ceiling.Stop() {
			p.wg.Done()
		}
		p.ceiling = nil
	}
}

func (p *Pipeline) startEvaluation(gen uint64, query string) {
	p.mu.Lock()
	if p.closed || gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.debounce = nil
	p.state = StateEvaluating
	started := time.Now()

	p.wg.Add(1)
	p.ceiling = time.AfterFunc(p.opts.Timeout, func() {
		defer p.wg.Done()
		p.commit(gen, p.timeoutTrace(query, started))
	})

	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		m := p.matcher.Match(query)
		p.commit(gen, p.buildTrace(query, m, started))
	}()
}

// commit records trace if gen is still current and has not committed yet.
func (p *Pipeline) commit(gen uint64, trace *routing.RouterTrace) bool {
	p.mu.Lock()
	if p.closed || gen != p.gen || p.committedGen == gen {
		p.mu.Unlock()
		log.Debugf("Pipeline gen %d: discarding stale result for %q", gen, trace.Query)
		return false
	}
	p.committedGen = gen
	if p.ceiling != nil {
		if p.ceiling.Stop() {
			p.wg.Done()
		}
		p.ceiling = nil
	}
	p.state = StateSettled
	p.decision = routing.DecisionFromTrace(trace)
	p.last = trace
	p.mu.Unlock()

	fields := log.Fields{"session": p.opts.SessionID, "trace": trace.ID, "agent": trace.FinalAgent}
	if trace.Success {
		log.WithFields(fields).Debugf("Committed decision for %q", trace.Query)
	} else {
		log.WithFields(fields).Warnf("Evaluation of %q failed: %s", trace.Query, trace.Error)
	}

	if p.recorder != nil {
		if err := p.recorder.Insert(trace); err != nil {
			log.WithFields(fields).Errorf("Failed to record trace: %v", err)
		}
	}
	if p.opts.Bus != nil {
		p.opts.Bus.Publish(hooks.NewTraceEvent(hooks.EventTraceCommitted, trace))
		if !trace.Success {
			p.opts.Bus.Publish(hooks.NewTraceEvent(hooks.EventTraceFailed, trace))
		}
	}
	return true
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Query returns the trimmed input of the current generation.
func (p *Pipeline) Query() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.query
}

// Generation returns the current generation number.
func (p *Pipeline) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

// Decision returns the most recently committed decision. It stays in place while a
// newer input is debounced or evaluated and is nil before the first commit or after
// blank input.
func (p *Pipeline) Decision() *routing.RoutingDecision {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.decision == nil {
		return nil
	}
	d := *p.decision
	return &d
}

// LastTrace returns a copy of the trace behind Decision, or nil.
func (p *Pipeline) LastTrace() *routing.RouterTrace {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last.Clone()
}

// Close cancels pending timers, discards in-flight work and waits for running
// evaluations to return.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.gen++
	p.stopTimersLocked()
	p.state = StateIdle
	p.mu.Unlock()

	p.wg.Wait()
}
