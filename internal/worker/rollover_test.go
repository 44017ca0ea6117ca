package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type mockResetter struct {
	mu    sync.Mutex
	calls int
	n     int64
	err   error
}

func (m *mockResetter) ResetExpiredPeriods(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.n, m.err
}

func TestRollover_TicksUntilCanceled(t *testing.T) {
	store := &mockResetter{n: 3}
	r := NewRollover(store, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	store.mu.Lock()
	calls := store.calls
	store.mu.Unlock()
	if calls == 0 {
		t.Errorf("Expected at least one reset tick")
	}
}

func TestRollover_TickSurvivesStoreError(t *testing.T) {
	store := &mockResetter{err: fmt.Errorf("connection refused")}
	r := NewRollover(store, time.Hour)

	// A failing tick must not panic or stop the loop.
	r.tick(context.Background(), time.Now())
	r.tick(context.Background(), time.Now())

	if store.calls != 2 {
		t.Errorf("Expected 2 calls, got %d", store.calls)
	}
}
