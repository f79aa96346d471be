package recording_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"vodwatch/internal/recording"
)

func TestDispatcherForwardsRequests(t *testing.T) {
	h := newHarness(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := recording.NewDispatcher(h.manager)
	go d.Run(ctx)

	info, err := d.Admit(ctx, "alice")
	if err != nil {
		t.Fatalf("Admit via dispatcher: %v", err)
	}
	if info.Channel != "alice" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if _, err := d.Admit(ctx, "alice"); !errors.Is(err, recording.ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
	list, err := d.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("List via dispatcher: %v %+v", err, list)
	}
	if err := d.Stop(ctx, "bob"); !errors.Is(err, recording.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDispatcherClosedAfterRunReturns(t *testing.T) {
	h := newHarness(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	d := recording.NewDispatcher(h.manager)
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	callCtx, callCancel := context.WithTimeout(context.Background(), time.Second)
	defer callCancel()
	if _, err := d.List(callCtx); !errors.Is(err, recording.ErrDispatcherClosed) {
		t.Fatalf("expected ErrDispatcherClosed, got %v", err)
	}
}
