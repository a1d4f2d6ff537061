package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubExpirer struct {
	calls atomic.Int32
	err   error
	tick  chan struct{}
}

func (s *stubExpirer) ExpireDue(ctx context.Context) (int, error) {
	s.calls.Add(1)
	select {
	case s.tick <- struct{}{}:
	default:
	}
	return 1, s.err
}

func TestRunSweeper_TicksUntilCancelled(t *testing.T) {
	stub := &stubExpirer{tick: make(chan struct{}, 1), err: errors.New("db down")}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunSweeper(ctx, stub, 5*time.Millisecond)
		close(done)
	}()

	// Errors do not stop the loop: wait for two sweeps.
	for i := 0; i < 2; i++ {
		select {
		case <-stub.tick:
		case <-time.After(2 * time.Second):
			t.Fatal("sweeper did not run")
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
	require.GreaterOrEqual(t, stub.calls.Load(), int32(2))
}

func TestRunSweeper_DisabledReturnsImmediately(t *testing.T) {
	stub := &stubExpirer{tick: make(chan struct{}, 1)}
	RunSweeper(context.Background(), stub, 0)
	require.Zero(t, stub.calls.Load())
}
