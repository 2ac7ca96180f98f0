package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFuture_Value(t *testing.T) {
	f := Go(context.Background(), time.Second, func(ctx context.Context) (string, error) {
		return "ok", nil
	})

	v, err := f.Await()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "ok" {
		t.Errorf("expected ok, got %q", v)
	}
}

func TestFuture_Error(t *testing.T) {
	want := errors.New("boom")
	f := Go(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 0, want
	})

	if _, err := f.Await(); !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestFuture_TimeoutIgnoringContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	f := Go(context.Background(), 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-release // ignores ctx
		return 1, nil
	})

	start := time.Now()
	_, err := f.Await()
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Await should return at the deadline")
	}
}

func TestFuture_TimeoutHonouringContext(t *testing.T) {
	f := Go(context.Background(), 10*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	if _, err := f.Await(); !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestFuture_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := Go(ctx, time.Minute, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	cancel()

	if _, err := f.Await(); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFuture_Cancel(t *testing.T) {
	f := Go(context.Background(), 0, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	f.Cancel()

	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not observe cancellation")
	}
}
