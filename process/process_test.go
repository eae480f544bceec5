package process

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHandleWaitReturnsResult(t *testing.T) {
	h, finish := New[int]()
	go func() {
		finish(42, nil)
	}()
	got, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("Wait() = %d, want 42", got)
	}
}

func TestHandleStopIsIdempotentAndNonBlocking(t *testing.T) {
	h, finish := New[string]()
	h.Stop()
	h.Stop() // must not panic or block
	select {
	case <-h.Stopped():
	default:
		t.Fatal("Stopped() channel not closed after Stop()")
	}
	finish("done", nil)
}

func TestHandleWaitRespectsContext(t *testing.T) {
	h, _ := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := h.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
}
