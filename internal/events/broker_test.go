package events

import (
	"context"
	"runtime"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestBroadcastWithoutSubscribers(t *testing.T) {
	b := NewBroker(zap.NewNop())
	b.Broadcast(CaptureFailed{ErrorMessage: "nobody listening"})
}

func TestBroadcastReachesAllSubscribersInOrder(t *testing.T) {
	b := NewBroker(zap.NewNop())

	first, cancelFirst := b.Subscribe(context.Background())
	defer cancelFirst()
	second, cancelSecond := b.Subscribe(context.Background())
	defer cancelSecond()

	sent := []Event{
		NewCountdownStarted(3*time.Second, "ui"),
		PhotoCaptured{PhotoID: 7, Code: "XK42", ImageURL: "/api/photos/XK42/image"},
	}
	for _, event := range sent {
		b.Broadcast(event)
	}

	for _, ch := range []<-chan Event{first, second} {
		for i, want := range sent {
			select {
			case got := <-ch:
				if got.Kind() != want.Kind() {
					t.Fatalf("event %d: expected kind %s, got %s", i, want.Kind(), got.Kind())
				}
			case <-time.After(time.Second):
				t.Fatalf("timed out waiting for event %d", i)
			}
		}
	}
}

func TestCancelStopsDeliveryWithoutAffectingOthers(t *testing.T) {
	b := NewBroker(zap.NewNop())

	gone, cancelGone := b.Subscribe(context.Background())
	stays, cancelStays := b.Subscribe(context.Background())
	defer cancelStays()

	cancelGone()
	cancelGone() // idempotent

	if _, open := <-gone; open {
		t.Fatalf("expected cancelled subscriber channel to be closed")
	}

	b.Broadcast(CaptureFailed{ErrorMessage: "boom"})

	select {
	case got := <-stays:
		if got.Kind() != KindCaptureFailed {
			t.Fatalf("expected capture_failed, got %s", got.Kind())
		}
	case <-time.After(time.Second):
		t.Fatalf("surviving subscriber did not receive event")
	}

	if b.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", b.SubscriberCount())
	}
}

func TestContextCancellationUnsubscribes(t *testing.T) {
	b := NewBroker(zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx)
	cancel()

	deadline := time.After(time.Second)
	for b.SubscriberCount() != 0 {
		select {
		case <-deadline:
			t.Fatalf("subscriber not removed after context cancellation")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, open := <-ch; open {
		t.Fatalf("expected channel closed after context cancellation")
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroker(zap.NewNop())

	_, cancel := b.Subscribe(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*3; i++ {
			b.Broadcast(CaptureFailed{ErrorMessage: "flood"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("broadcast blocked on a slow subscriber")
	}
}

func TestCancelReleasesContextWatcher(t *testing.T) {
	b := NewBroker(zap.NewNop())

	baseline := runtime.NumGoroutine()
	cancels := make([]func(), 0, 50)
	for i := 0; i < 50; i++ {
		_, cancel := b.Subscribe(context.Background())
		cancels = append(cancels, cancel)
	}
	for _, cancel := range cancels {
		cancel()
	}

	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > baseline+5 {
		if time.Now().After(deadline) {
			t.Fatalf("context watchers leaked: %d goroutines, baseline %d",
				runtime.NumGoroutine(), baseline)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if b.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, have %d", b.SubscriberCount())
	}
}
