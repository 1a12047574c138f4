// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package classifier

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Provider hands out the classifier currently in effect.
type Provider interface {
	Current() *Classifier
}

// Static is a Provider that never changes.
type Static struct{ c *Classifier }

// NewStatic wraps c as a Provider.
func NewStatic(c *Classifier) *Static { return &Static{c: c} }

// Current implements Provider.
func (s *Static) Current() *Classifier { return s.c }

// Match classifies query with the wrapped classifier.
func (s *Static) Match(query string) Match { return s.c.Match(query) }

// Fallback returns the classifier's fallback agent.
func (s *Static) Fallback() string { return s.c.Fallback() }

// Watcher keeps a classifier in sync with a rules file. A file that fails to load leaves
// the previous rules in place.
type Watcher struct {
	path     string
	fallback string
	current  atomic.Pointer[Classifier]

	reloadDelay time.Duration
	watcher     *fsnotify.Watcher
	stopOnce    sync.Once
	stop        chan struct{}
	done        chan struct{}
}

// NewWatcher loads path and returns a Watcher serving it. Call Start to follow changes.
func NewWatcher(path, fallback string) (*Watcher, error) {
	c, err := LoadFile(path, fallback)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:        path,
		fallback:    fallback,
		reloadDelay: 100 * time.Millisecond,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	w.current.Store(c)
	return w, nil
}

// Current implements Provider.
func (w *Watcher) Current() *Classifier {
	return w.current.Load()
}

// Match classifies query with the rules loaded most recently.
func (w *Watcher) Match(query string) Match {
	return w.Current().Match(query)
}

// Fallback returns the fallback agent of the rules loaded most recently.
func (w *Watcher) Fallback() string {
	return w.Current().Fallback()
}

// Reload re-reads the rules file and swaps the classifier if it compiles.
func (w *Watcher) Reload() error {
	c, err := LoadFile(w.path, w.fallback)
	if err != nil {
		return err
	}
	w.current.Store(c)
	log.Infof("Reloaded %d routing rules from %s", len(c.rules), w.path)
	return nil
}

// Start watches the rules file's directory so that editors replacing the file by rename
// are picked up too.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return err
	}
	w.watcher = fw

	target := filepath.Clean(w.path)
	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				time.Sleep(w.reloadDelay)
				if err := w.Reload(); err != nil {
					log.Errorf("Failed to reload routing rules, keeping previous set: %v", err)
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				log.Errorf("Routing rules watcher error: %v", err)
			case <-w.stop:
				return
			}
		}
	}()
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		if w.watcher != nil {
			w.watcher.Close()
			<-w.done
		}
	})
}
