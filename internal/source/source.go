// Package source implements the external tracker protocol a rider's raw GPS
// feed arrives through (spec.md §4.6, grounded on trackers.Tracker /
// trackers.start_analyse_tracker in the Cycoholic distillation): a stream of
// raw points delivered in batches, a "new points" observable for
// downstream consumers, and cooperative stop/completion signaling.
package source

import (
	"context"
	"sync"
	"time"

	"github.com/cycoholic/gotrackers/internal/obs"
)

// RawPoint is one point as it arrives from an external tracker, before any
// route matching or analysis (spec.md §3 "raw point"). HasPosition mirrors
// the Python source's `'position' in point` check: a status-only point
// (e.g. a Garmin "Complete" session event) carries no lat/lon.
type RawPoint struct {
	Time        time.Time
	HasPosition bool
	Lat, Lon    float64
	Elev        *float64
	Status      string
}

// Source is the protocol a concrete tracker feed (serial GPS, replay file,
// polling HTTP client) must implement to be analyzed by internal/pipeline.
type Source interface {
	// Points returns every point received so far, in arrival order.
	Points() []RawPoint

	// Subscribe registers for batches of newly-arrived points, mirroring
	// trackers.Tracker.new_points_callbacks. The returned id is used with
	// Unsubscribe.
	Subscribe() (string, <-chan []RawPoint)
	Unsubscribe(id string)

	// SubscribeReset registers for the "reset points" signal (spec.md §6):
	// a tracker may fire this when it detects the upstream activity itself
	// was reset, telling the pipeline to discard PipelineState and
	// re-analyze from here. The returned id is used with UnsubscribeReset.
	SubscribeReset() (string, <-chan struct{})
	UnsubscribeReset(id string)

	// Stop asks the source to stop producing points and release any
	// underlying resources (trackers.Tracker.stop).
	Stop(ctx context.Context) error

	// Run drives the source's own I/O (reading a serial port, pacing a
	// replay log) until ctx is canceled or the source finishes on its own.
	// Callers must run it in its own goroutine alongside whatever consumes
	// Subscribe/SubscribeReset.
	Run(ctx context.Context) error

	// Done is closed once the source has finished producing points on its
	// own (e.g. the tracked activity ended), mirroring
	// trackers.Tracker.finish.
	Done() <-chan struct{}
}

// Base implements the bookkeeping shared by every concrete Source: point
// history, the new-points observable, and a done channel closed exactly
// once. Concrete sources embed Base and call Push as points arrive.
type Base struct {
	mu            sync.Mutex
	points        []RawPoint
	observer      *obs.Observer[[]RawPoint]
	resetObserver *obs.Observer[struct{}]

	doneOnce sync.Once
	done     chan struct{}
}

// NewBase constructs a Base ready to accept points.
func NewBase() *Base {
	return &Base{
		observer:      obs.NewObserver[[]RawPoint](8),
		resetObserver: obs.NewObserver[struct{}](1),
		done:          make(chan struct{}),
	}
}

// Push appends new points to history and publishes them to subscribers.
func (b *Base) Push(points []RawPoint) {
	if len(points) == 0 {
		return
	}
	b.mu.Lock()
	b.points = append(b.points, points...)
	b.mu.Unlock()
	b.observer.Publish(points)
}

// Points returns a copy of every point received so far.
func (b *Base) Points() []RawPoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]RawPoint, len(b.points))
	copy(out, b.points)
	return out
}

// Subscribe registers for future Push batches.
func (b *Base) Subscribe() (string, <-chan []RawPoint) {
	return b.observer.Subscribe()
}

// Unsubscribe removes a prior Subscribe registration.
func (b *Base) Unsubscribe(id string) {
	b.observer.Unsubscribe(id)
}

// PushReset fires the "reset points" signal to every current subscriber.
// Concrete sources call this when they detect the tracked activity itself
// restarted upstream (e.g. a polling tracker noticing a new activity id).
func (b *Base) PushReset() {
	b.resetObserver.Publish(struct{}{})
}

// SubscribeReset registers for future PushReset signals.
func (b *Base) SubscribeReset() (string, <-chan struct{}) {
	return b.resetObserver.Subscribe()
}

// UnsubscribeReset removes a prior SubscribeReset registration.
func (b *Base) UnsubscribeReset(id string) {
	b.resetObserver.Unsubscribe(id)
}

// Done returns the channel closed by MarkDone.
func (b *Base) Done() <-chan struct{} {
	return b.done
}

// MarkDone closes Done exactly once; safe to call repeatedly or
// concurrently.
func (b *Base) MarkDone() {
	b.doneOnce.Do(func() { close(b.done) })
}

// CloseObserver shuts down the new-points and reset observables. Call after
// MarkDone once no more points will ever be pushed.
func (b *Base) CloseObserver() {
	b.observer.Close()
	b.resetObserver.Close()
}
