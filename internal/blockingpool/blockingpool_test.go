package blockingpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunExecutesTask(t *testing.T) {
	p := New(2)
	defer p.Close()

	var ran int32
	err := p.Run(context.Background(), func() error {
		atomic.StoreInt32(&ran, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if atomic.LoadInt32(&ran) != 1 {
		t.Error("task did not run")
	}
}

func TestRunPropagatesError(t *testing.T) {
	p := New(1)
	defer p.Close()

	wantErr := errors.New("boom")
	err := p.Run(context.Background(), func() error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}

func TestRunRespectsContextCancellation(t *testing.T) {
	p := New(1)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Run(ctx, func() error {
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestPoolRunsConcurrently(t *testing.T) {
	p := New(4)
	defer p.Close()

	var counter int32
	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			done <- p.Run(context.Background(), func() error {
				atomic.AddInt32(&counter, 1)
				time.Sleep(5 * time.Millisecond)
				return nil
			})
		}()
	}
	for i := 0; i < 4; i++ {
		if err := <-done; err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	if atomic.LoadInt32(&counter) != 4 {
		t.Errorf("counter = %d, want 4", counter)
	}
}
