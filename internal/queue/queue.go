// Package queue implements the Transponder Queue: two
// ordered sequences, pending and done, deduplicated under
// model.TransponderSpec.Same.
package queue

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/stpf99/mini-satip-scan/internal/model"
	"github.com/stpf99/mini-satip-scan/internal/stats"
)

// Queue holds the pending and done transponder sequences for one scan run.
// It is only ever touched from the single cooperative scan loop, so it
// carries a mutex purely to let the NIT decoder's Enqueue callback (invoked
// from inside the same loop) and any metrics-reporting goroutine share it
// safely without becoming a second source of truth.
type Queue struct {
	mu      sync.Mutex
	pending []model.TransponderSpec
	done    []model.TransponderSpec

	// limiter paces consecutive scan starts so the scanner stays a polite
	// guest of the tuner device.
	limiter *rate.Limiter

	stats *stats.Accumulator
}

// Default pacing: one scan start every 2 seconds, matched to the 300 s
// hard session cap so a run of short scans can't hammer the RTSP server.
const defaultScanInterval = 2 * time.Second

// New returns a Queue seeded with the initial transponder spec(s) to scan.
// st may be nil in tests.
func New(st *stats.Accumulator, seed ...model.TransponderSpec) *Queue {
	q := &Queue{
		limiter: rate.NewLimiter(rate.Every(defaultScanInterval), 1),
		stats:   st,
	}
	for _, s := range seed {
		q.Enqueue(s)
	}
	return q
}

// Enqueue appends spec to pending unless it compares equal (per
// model.TransponderSpec.Same) to any element already in pending or done.
func (q *Queue) Enqueue(spec model.TransponderSpec) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, s := range q.pending {
		if s.Same(spec) {
			return
		}
	}
	for _, s := range q.done {
		if s.Same(spec) {
			return
		}
	}
	q.pending = append(q.pending, spec)
	if q.stats != nil {
		q.stats.TransponderQueued()
	}
}

// Len reports the number of specs still pending.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Next blocks until the pacing limiter admits the next scan start (or ctx
// is cancelled), then pops and returns the head of pending. ok is false
// when pending was empty or ctx was cancelled first.
func (q *Queue) Next(ctx context.Context) (spec model.TransponderSpec, ok bool) {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return model.TransponderSpec{}, false
	}
	q.mu.Unlock()

	if err := q.limiter.Wait(ctx); err != nil {
		return model.TransponderSpec{}, false
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return model.TransponderSpec{}, false
	}
	spec = q.pending[0]
	q.pending = q.pending[1:]
	return spec, true
}

// Done moves spec from the caller's hand into the done sequence,
// completing its life cycle: scanned, then retired.
func (q *Queue) Done(spec model.TransponderSpec) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.done = append(q.done, spec)
	if q.stats != nil {
		q.stats.TransponderScanned()
	}
}
