package booth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/events"
	obscontext "github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/observability/context"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/photo"
)

type fakeDriver struct {
	latency      time.Duration
	captureDelay time.Duration
	img          []byte
	err          error

	prepares atomic.Int32
	captures atomic.Int32

	mu         sync.Mutex
	captureCtx context.Context
}

func (d *fakeDriver) IsAvailable(ctx context.Context) bool { return true }

func (d *fakeDriver) Prepare(ctx context.Context) { d.prepares.Add(1) }

func (d *fakeDriver) Capture(ctx context.Context) ([]byte, error) {
	d.captures.Add(1)
	d.mu.Lock()
	d.captureCtx = ctx
	d.mu.Unlock()
	if d.captureDelay > 0 {
		time.Sleep(d.captureDelay)
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.img, nil
}

func (d *fakeDriver) CaptureLatency() time.Duration { return d.latency }

func (d *fakeDriver) Close() error { return nil }

type fakeStore struct {
	err   error
	saved atomic.Int32
}

func (s *fakeStore) Save(ctx context.Context, req photo.SaveRequest) (*photo.Photo, error) {
	s.saved.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &photo.Photo{ID: 42, Code: "XK42"}, nil
}

func testService(t *testing.T, driver *fakeDriver, store *fakeStore) (*Service, <-chan events.Event) {
	t.Helper()
	broker := events.NewBroker(zap.NewNop())
	svc := NewService(Config{
		CountdownDefault:  50 * time.Millisecond,
		SmileOffset:       1, // effectively zero but avoids the withDefaults clamp
		FastBuffer:        2 * time.Second,
		SlowBuffer:        3 * time.Second,
		SlowLatencyCutoff: time.Second,
	}, driver, broker, store, zap.NewNop())

	ch, cancel := broker.Subscribe(context.Background())
	t.Cleanup(cancel)
	return svc, ch
}

func nextEvent(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for event")
		return nil
	}
}

func TestPreCaptureDelay(t *testing.T) {
	cases := []struct {
		countdown, latency, offset, want time.Duration
	}{
		{1000 * time.Millisecond, 100 * time.Millisecond, 500 * time.Millisecond, 1400 * time.Millisecond},
		{5 * time.Second, 1500 * time.Millisecond, 500 * time.Millisecond, 4 * time.Second},
		{100 * time.Millisecond, 2 * time.Second, 0, 0}, // clamped
	}
	for _, tc := range cases {
		if got := PreCaptureDelay(tc.countdown, tc.latency, tc.offset); got != tc.want {
			t.Fatalf("PreCaptureDelay(%v, %v, %v) = %v, want %v",
				tc.countdown, tc.latency, tc.offset, got, tc.want)
		}
	}
}

func TestCaptureContextCarriesTriggerSource(t *testing.T) {
	driver := &fakeDriver{img: []byte{0xFF, 0xD8, 0xFF}}
	store := &fakeStore{}
	svc, ch := testService(t, driver, store)

	svc.Trigger(context.Background(), TriggerRequest{Source: "kiosk"})
	nextEvent(t, ch)
	nextEvent(t, ch)

	driver.mu.Lock()
	ctx := driver.captureCtx
	driver.mu.Unlock()
	if ctx == nil {
		t.Fatal("driver never captured")
	}
	if got := obscontext.TriggerSourceFromContext(ctx); got != "kiosk" {
		t.Fatalf("capture context trigger source = %q, want kiosk", got)
	}
}

func TestTriggerSourceFallsBackToContext(t *testing.T) {
	driver := &fakeDriver{img: []byte{0xFF, 0xD8, 0xFF}}
	store := &fakeStore{}
	svc, ch := testService(t, driver, store)

	ctx := obscontext.WithTriggerSource(context.Background(), "hardware-button")
	svc.Trigger(ctx, TriggerRequest{})

	started, ok := nextEvent(t, ch).(events.CountdownStarted)
	if !ok {
		t.Fatalf("first event is not CountdownStarted")
	}
	if started.TriggerSource != "hardware-button" {
		t.Fatalf("trigger source = %q, want hardware-button", started.TriggerSource)
	}
	nextEvent(t, ch)
}

func TestTriggerEmitsCountdownThenCaptured(t *testing.T) {
	driver := &fakeDriver{latency: 10 * time.Millisecond, img: []byte{0xFF, 0xD8, 0xFF}}
	store := &fakeStore{}
	svc, ch := testService(t, driver, store)

	svc.Trigger(context.Background(), TriggerRequest{Source: "ui", CountdownOverride: 30 * time.Millisecond})

	first := nextEvent(t, ch)
	countdown, ok := first.(events.CountdownStarted)
	if !ok {
		t.Fatalf("expected CountdownStarted first, got %T", first)
	}
	if countdown.DurationMS != 30 || countdown.TriggerSource != "ui" {
		t.Fatalf("unexpected countdown event %+v", countdown)
	}

	second := nextEvent(t, ch)
	captured, ok := second.(events.PhotoCaptured)
	if !ok {
		t.Fatalf("expected PhotoCaptured, got %T", second)
	}
	if captured.Code != "XK42" || captured.ImageURL != "/api/photos/XK42/image" {
		t.Fatalf("unexpected captured event %+v", captured)
	}

	if driver.prepares.Load() != 1 || driver.captures.Load() != 1 {
		t.Fatalf("expected one prepare and one capture, got %d/%d",
			driver.prepares.Load(), driver.captures.Load())
	}
}

func TestTriggerReturnsBeforeCountdownEnds(t *testing.T) {
	driver := &fakeDriver{img: []byte{0xFF, 0xD8, 0xFF}}
	svc, ch := testService(t, driver, &fakeStore{})

	start := time.Now()
	svc.Trigger(context.Background(), TriggerRequest{Source: "ui", CountdownOverride: 300 * time.Millisecond})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatalf("trigger blocked for %v", time.Since(start))
	}

	// Drain both events so the background goroutine finishes.
	nextEvent(t, ch)
	nextEvent(t, ch)
}

func TestCaptureErrorEmitsCaptureFailed(t *testing.T) {
	driver := &fakeDriver{err: errors.New("device busy: capture lock not acquired within 2s")}
	svc, ch := testService(t, driver, &fakeStore{})

	svc.Trigger(context.Background(), TriggerRequest{Source: "keyboard", CountdownOverride: 10 * time.Millisecond})

	nextEvent(t, ch) // countdown
	event := nextEvent(t, ch)
	failed, ok := event.(events.CaptureFailed)
	if !ok {
		t.Fatalf("expected CaptureFailed, got %T", event)
	}
	if !strings.Contains(failed.ErrorMessage, "device busy") {
		t.Fatalf("expected the driver error in the message, got %q", failed.ErrorMessage)
	}
}

func TestStoreErrorEmitsCaptureFailed(t *testing.T) {
	driver := &fakeDriver{img: []byte{0xFF, 0xD8, 0xFF}}
	store := &fakeStore{err: errors.New("disk full")}
	svc, ch := testService(t, driver, store)

	svc.Trigger(context.Background(), TriggerRequest{Source: "ui", CountdownOverride: 10 * time.Millisecond})

	nextEvent(t, ch)
	event := nextEvent(t, ch)
	failed, ok := event.(events.CaptureFailed)
	if !ok {
		t.Fatalf("expected CaptureFailed, got %T", event)
	}
	if !strings.Contains(failed.ErrorMessage, "disk full") {
		t.Fatalf("unexpected message %q", failed.ErrorMessage)
	}
}

func TestHardTimeoutAbandonsHangingCapture(t *testing.T) {
	driver := &fakeDriver{captureDelay: 2 * time.Second, img: []byte{0xFF, 0xD8, 0xFF}}
	broker := events.NewBroker(zap.NewNop())
	svc := NewService(Config{
		CountdownDefault:  10 * time.Millisecond,
		SmileOffset:       1,
		FastBuffer:        100 * time.Millisecond,
		SlowBuffer:        3 * time.Second,
		SlowLatencyCutoff: time.Second, // fake latency 0 -> fast buffer
	}, driver, broker, &fakeStore{}, zap.NewNop())

	ch, cancel := broker.Subscribe(context.Background())
	defer cancel()

	start := time.Now()
	svc.Trigger(context.Background(), TriggerRequest{Source: "ui"})

	nextEvent(t, ch) // countdown
	event := nextEvent(t, ch)
	failed, ok := event.(events.CaptureFailed)
	if !ok {
		t.Fatalf("expected CaptureFailed on hard timeout, got %T", event)
	}
	if !strings.Contains(failed.ErrorMessage, "giving up") {
		t.Fatalf("unexpected timeout message %q", failed.ErrorMessage)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("hard timeout fired too late: %v", elapsed)
	}
}

func TestSlowDriverGetsSlowBuffer(t *testing.T) {
	fast := NewService(Config{SlowLatencyCutoff: time.Second, FastBuffer: time.Second, SlowBuffer: time.Minute},
		&fakeDriver{latency: 100 * time.Millisecond}, events.NewBroker(zap.NewNop()), &fakeStore{}, zap.NewNop())
	if fast.hardTimeoutBuffer() != time.Second {
		t.Fatalf("expected fast buffer for low-latency driver")
	}

	slow := NewService(Config{SlowLatencyCutoff: time.Second, FastBuffer: time.Second, SlowBuffer: time.Minute},
		&fakeDriver{latency: 1500 * time.Millisecond}, events.NewBroker(zap.NewNop()), &fakeStore{}, zap.NewNop())
	if slow.hardTimeoutBuffer() != time.Minute {
		t.Fatalf("expected slow buffer for high-latency driver")
	}
}

func TestDefaultCountdownApplies(t *testing.T) {
	driver := &fakeDriver{img: []byte{0xFF, 0xD8, 0xFF}}
	svc, ch := testService(t, driver, &fakeStore{})

	svc.Trigger(context.Background(), TriggerRequest{})

	event := nextEvent(t, ch)
	countdown, ok := event.(events.CountdownStarted)
	if !ok {
		t.Fatalf("expected CountdownStarted, got %T", event)
	}
	if countdown.DurationMS != 50 {
		t.Fatalf("expected default 50ms countdown, got %d", countdown.DurationMS)
	}
	if countdown.TriggerSource != "unknown" {
		t.Fatalf("expected unknown source, got %q", countdown.TriggerSource)
	}
	nextEvent(t, ch) // terminal
}
