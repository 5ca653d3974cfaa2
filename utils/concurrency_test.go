package utils

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestKeySetNoDuplicates(t *testing.T) {
	s := NewKeySet()

	if !s.Add("now|123 main st") {
		t.Error("first Add should return true")
	}
	if s.Add("now|123 main st") {
		t.Error("second Add of same key should return false")
	}
	if !s.Add("plan|123 main st") {
		t.Error("Add of a distinct key should return true")
	}
	if len(s) != 2 {
		t.Errorf("size: got %d, want 2", len(s))
	}
}

func TestWorkerPoolRunsEveryJob(t *testing.T) {
	var done int64
	pool := NewWorkerPool(4, 0)
	for i := 0; i < 50; i++ {
		pool.Submit(func() { atomic.AddInt64(&done, 1) })
	}
	pool.Wait()

	if done != 50 {
		t.Errorf("completed jobs: got %d, want 50", done)
	}
}

func TestWorkerPoolRateLimit(t *testing.T) {
	rateLimitMs := 100
	pool := NewWorkerPool(1, rateLimitMs)

	var timestamps []time.Time
	mu := make(chan struct{}, 1)
	mu <- struct{}{}

	for i := 0; i < 3; i++ {
		pool.Submit(func() {
			<-mu
			timestamps = append(timestamps, time.Now())
			mu <- struct{}{}
		})
	}
	pool.Wait()

	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		min := time.Duration(rateLimitMs) * time.Millisecond
		if gap < min {
			t.Errorf("gap between job %d and %d: %v < minimum %v", i-1, i, gap, min)
		}
	}
}
