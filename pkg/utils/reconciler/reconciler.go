/*
Copyright 2025 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package reconciler

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"

	"k8s.io/utils/clock"
)

// EventType represents the type of reconciliation event
type EventType string

const (
	FileEvent  EventType = "file"
	TimerEvent EventType = "timer"

	timerKey = "tick"
)

// Event represents a reconciliation event
type Event struct {
	Type EventType
	Key  string
	Data any
}

// Equal checks if two events are equivalent and can be merged
func (e Event) Equal(other Event) bool {
	return e.Type == other.Type && e.Key == other.Key
}

// Handler defines the interface for reconciliation logic.
// Reconcile is never called concurrently.
type Handler interface {
	Reconcile(ctx context.Context, event Event) error
}

// HandlerFunc is a function adapter for Handler
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Reconcile(ctx context.Context, event Event) error {
	return f(ctx, event)
}

type retryableEvent struct {
	event     Event
	attempts  int
	nextRetry time.Time
}

// Config holds configuration for the reconciler
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// WatchPath is the directory to watch, empty disables file events.
	WatchPath string

	Clock  clock.WithTicker
	Logger logr.Logger
}

// DefaultConfig returns a default reconciler configuration
func DefaultConfig(logger logr.Logger) Config {
	return Config{
		MaxRetries: 5,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
		WatchPath:  "/run/cpu-scheduler",
		Clock:      clock.RealClock{},
		Logger:     logger,
	}
}

// Reconciler delivers file and timer events to a single handler, one at a
// time, retrying failed events with exponential backoff.
type Reconciler struct {
	config  Config
	handler Handler
	logger  logr.Logger
	clock   clock.WithTicker

	events chan Event
	rearm  chan time.Duration

	watcher *fsnotify.Watcher
	retries []retryableEvent
	wg      sync.WaitGroup
}

func NewReconciler(config Config, handler Handler) (*Reconciler, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler must be provided")
	}

	if config.Clock == nil {
		config.Clock = clock.RealClock{}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Reconciler{
		config:  config,
		handler: handler,
		logger:  config.Logger,
		clock:   config.Clock,
		events:  make(chan Event, 100),
		rearm:   make(chan time.Duration, 1),
		watcher: watcher,
	}, nil
}

// Rearm replaces the timer period. A non-positive period stops the timer.
// It never blocks and may be called from the handler; only the latest
// period is kept.
func (r *Reconciler) Rearm(period time.Duration) {
	for {
		select {
		case r.rearm <- period:
			return
		default:
		}

		select {
		case <-r.rearm:
		default:
		}
	}
}

// SendEvent adds an event to the reconciliation queue
func (r *Reconciler) SendEvent(ctx context.Context, event Event) {
	select {
	case r.events <- event:
	case <-ctx.Done():
	}
}

// Run watches for events and dispatches them until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	defer r.watcher.Close()

	if r.config.WatchPath != "" {
		if err := r.watcher.Add(r.config.WatchPath); err != nil {
			return fmt.Errorf("failed to watch path %s: %w", r.config.WatchPath, err)
		}

		r.wg.Add(1)
		go r.watchFiles(ctx)
	}

	defer r.wg.Wait()

	retryTicker := r.clock.NewTicker(time.Second)
	defer retryTicker.Stop()

	var (
		ticker clock.Ticker
		tickC  <-chan time.Time
		period time.Duration
	)

	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	r.logger.V(1).Info("Starting reconciler", "watchPath", r.config.WatchPath)

	for {
		select {
		case event := <-r.events:
			r.dispatch(ctx, event)

		case now := <-tickC:
			r.logger.V(3).Info("Timer event triggered")
			r.dispatch(ctx, Event{Type: TimerEvent, Key: timerKey, Data: now})

		case d := <-r.rearm:
			if d == period && ticker != nil {
				continue
			}

			if ticker != nil {
				ticker.Stop()
				ticker, tickC = nil, nil
			}

			period = d
			if d > 0 {
				ticker = r.clock.NewTicker(d)
				tickC = ticker.C()
			}

			r.logger.V(2).Info("Timer rearmed", "period", d)

		case <-retryTicker.C():
			r.processRetries(ctx)

		case <-ctx.Done():
			r.logger.V(1).Info("Reconciler shutting down", "pendingRetries", len(r.retries))

			return nil
		}
	}
}

// watchFiles monitors file system events
func (r *Reconciler) watchFiles(ctx context.Context) {
	defer r.wg.Done()

	r.logger.V(1).Info("Starting file watcher")

	relevantOps := fsnotify.Create | fsnotify.Write | fsnotify.Remove

	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}

			if event.Op&relevantOps > 0 {
				r.logger.V(3).Info("File system event received", "name", event.Name, "op", event.Op)

				r.SendEvent(ctx, Event{
					Type: FileEvent,
					Key:  event.Name,
					Data: event,
				})
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}

			r.logger.Error(err, "File watcher error")

		case <-ctx.Done():
			r.logger.V(1).Info("File watcher shutting down")

			return
		}
	}
}

// dispatch handles a fresh event, superseding any queued retry for the same key.
func (r *Reconciler) dispatch(ctx context.Context, event Event) {
	for i, existing := range r.retries {
		if existing.event.Equal(event) {
			r.retries = append(r.retries[:i], r.retries[i+1:]...)

			break
		}
	}

	if retry := r.process(ctx, retryableEvent{event: event}); retry != nil {
		r.retries = append(r.retries, *retry)
	}
}

func (r *Reconciler) processRetries(ctx context.Context) {
	now := r.clock.Now()
	queue := r.retries[:0]

	for _, retry := range r.retries {
		if now.Before(retry.nextRetry) {
			queue = append(queue, retry)

			continue
		}

		if next := r.process(ctx, retry); next != nil {
			queue = append(queue, *next)
		}
	}

	r.retries = queue
}

func (r *Reconciler) process(ctx context.Context, retry retryableEvent) *retryableEvent {
	r.logger.V(2).Info("Processing event", "type", retry.event.Type, "key", retry.event.Key, "attempts", retry.attempts)

	err := r.handler.Reconcile(ctx, retry.event)

	switch {
	case err != nil && retry.attempts < r.config.MaxRetries:
		delay := time.Duration(float64(r.config.BaseDelay) * math.Pow(2, float64(retry.attempts)))
		delay = min(delay, r.config.MaxDelay)

		r.logger.Error(err, "Reconciliation failed, scheduling retry",
			"key", retry.event.Key,
			"attempt", retry.attempts+1,
			"maxRetries", r.config.MaxRetries,
			"retryIn", delay)

		return &retryableEvent{
			event:     retry.event,
			attempts:  retry.attempts + 1,
			nextRetry: r.clock.Now().Add(delay),
		}
	case err != nil:
		r.logger.Error(err, "Reconciliation permanently failed", "key", retry.event.Key, "attempts", retry.attempts)
	}

	return nil
}
