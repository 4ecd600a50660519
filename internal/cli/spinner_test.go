package cli

import (
	"context"
	"testing"
	"time"
)

func TestSpinnerStartStop(t *testing.T) {
	s := newSpinner(context.Background(), "Compiling...")
	s.Start()
	time.Sleep(150 * time.Millisecond)
	s.Stop()

	if s.Cancelled() {
		t.Error("plain Stop is not a cancellation")
	}
}

func TestSpinnerDefaultMessage(t *testing.T) {
	s := newSpinner(context.Background(), "")
	if s.message != spinnerDefaultMessage {
		t.Errorf("message = %q, want default", s.message)
	}
}

func TestSpinnerContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newSpinner(ctx, "Compiling...")
	s.Start()

	time.Sleep(100 * time.Millisecond)
	cancel()
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if !s.Cancelled() {
		t.Error("context cancellation should mark the spinner cancelled")
	}
}

func TestSpinnerContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s := newSpinner(ctx, "Compiling...")
	s.Start()

	time.Sleep(150 * time.Millisecond)
	s.Stop()

	if !s.Cancelled() {
		t.Error("context timeout should mark the spinner cancelled")
	}
}

func TestSpinnerStopTwice(t *testing.T) {
	s := newSpinner(context.Background(), "Compiling...")
	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()
	s.Stop()
}
