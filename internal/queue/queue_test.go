package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stpf99/mini-satip-scan/internal/model"
)

func spec(freq int) model.TransponderSpec {
	return model.TransponderSpec{Delivery: model.DVBS, FrequencyMHz: freq, Source: 1, Polarization: model.PolH}
}

func TestEnqueue_rejectsDuplicateWithinTolerance(t *testing.T) {
	q := New(nil, spec(11000))
	q.Enqueue(spec(11001)) // within +-1 MHz of the seed, rejected as "Same"
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (duplicate rejected)", q.Len())
	}
}

func TestEnqueue_acceptsDistinctFrequency(t *testing.T) {
	q := New(nil, spec(11000))
	q.Enqueue(spec(12000))
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}
}

func TestEnqueue_rejectsAlreadyDone(t *testing.T) {
	q := New(nil, spec(11000))
	s, ok := q.Next(context.Background())
	if !ok {
		t.Fatal("expected Next to pop the seed")
	}
	q.Done(s)
	q.Enqueue(spec(11000))
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0 (spec already done)", q.Len())
	}
}

func TestNext_emptyQueueReturnsFalse(t *testing.T) {
	q := New(nil)
	if _, ok := q.Next(context.Background()); ok {
		t.Fatal("expected Next on an empty queue to return ok=false")
	}
}

func TestNext_cancelledContext(t *testing.T) {
	q := New(nil, spec(11000))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	time.Sleep(time.Millisecond)
	if _, ok := q.Next(ctx); ok {
		t.Fatal("expected Next to honor context cancellation during pacing wait")
	}
}
