// Package booth turns one "take a photo" trigger into a timed sequence of
// countdown, device preparation, shutter and result delivery, bounded by a
// hard failure timeout.
package booth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/camera"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/events"
	obscontext "github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/observability/context"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/observability/metrics"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/observability/tracing"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/photo"
)

// TriggerRequest is one capture request from the UI, keyboard or API.
type TriggerRequest struct {
	// Source labels who pressed the button, for events and logs.
	Source string
	// CountdownOverride replaces the default countdown when positive.
	CountdownOverride time.Duration
}

// Store persists captured photos. Implemented by the photo service.
type Store interface {
	Save(ctx context.Context, req photo.SaveRequest) (*photo.Photo, error)
}

// Service orchestrates captures against one camera driver.
type Service struct {
	cfg    Config
	driver camera.Driver
	broker *events.Broker
	store  Store
	log    *zap.Logger
}

func NewService(cfg Config, driver camera.Driver, broker *events.Broker, store Store, log *zap.Logger) *Service {
	return &Service{
		cfg:    cfg.withDefaults(),
		driver: driver,
		broker: broker,
		store:  store,
		log:    log.Named("booth"),
	}
}

// Trigger accepts one capture request. The CountdownStarted event is
// broadcast before returning so the caller observes the workflow as started;
// everything else runs in the background and reports through the event
// channel. Triggers are independent of each other; they only contend on the
// driver's capture lock.
func (s *Service) Trigger(ctx context.Context, req TriggerRequest) {
	countdown := s.cfg.CountdownDefault
	if req.CountdownOverride > 0 {
		countdown = req.CountdownOverride
	}
	source := req.Source
	if source == "" {
		source = obscontext.TriggerSourceFromContext(ctx)
	}
	if source == "" {
		source = "unknown"
	}

	s.log.Info("trigger accepted",
		zap.String("source", source),
		zap.Duration("countdown", countdown))
	s.broker.Broadcast(events.NewCountdownStarted(countdown, source))

	go s.run(countdown, source)
}

// run executes one capture workflow and always ends in exactly one terminal
// event. The hard timeout races the capture; the losing side is not
// cancelled, only ignored, because the underlying device call may not be
// cancellable.
func (s *Service) run(countdown time.Duration, source string) {
	hardTimeout := countdown + s.hardTimeoutBuffer()
	start := time.Now()

	result := make(chan captureResult, 1)
	go func() {
		result <- s.capture(countdown, source)
	}()

	select {
	case r := <-result:
		elapsed := time.Since(start)
		if r.err != nil {
			s.log.Error("capture failed",
				zap.String("source", source),
				zap.Duration("elapsed", elapsed),
				zap.Error(r.err))
			metrics.Booth().ObserveCapture("failure", elapsed)
			s.broker.Broadcast(events.CaptureFailed{ErrorMessage: r.err.Error()})
			return
		}
		s.log.Info("photo captured",
			zap.String("source", source),
			zap.String("code", r.photo.Code),
			zap.Duration("elapsed", elapsed))
		metrics.Booth().ObserveCapture("success", elapsed)
		s.broker.Broadcast(events.PhotoCaptured{
			PhotoID:  r.photo.ID,
			Code:     r.photo.Code,
			ImageURL: r.photo.ImageURL(),
		})

	case <-time.After(hardTimeout):
		s.log.Error("capture abandoned after hard timeout",
			zap.String("source", source),
			zap.Duration("hard_timeout", hardTimeout))
		metrics.Booth().ObserveCapture("timeout", time.Since(start))
		s.broker.Broadcast(events.CaptureFailed{
			ErrorMessage: fmt.Sprintf("photo not ready within %s, giving up", hardTimeout.Round(time.Second)),
		})
	}
}

type captureResult struct {
	photo *photo.Photo
	err   error
}

// capture waits out the countdown while preparing the device, then performs
// the capture and persists the result.
func (s *Service) capture(countdown time.Duration, source string) (res captureResult) {
	defer func() {
		if r := recover(); r != nil {
			res = captureResult{err: fmt.Errorf("capture panicked: %v", r)}
		}
	}()

	// The workflow outlives the HTTP request, so the span roots a fresh
	// context that only inherits the trigger source.
	base := obscontext.WithTriggerSource(context.Background(), source)
	ctx, span := otel.Tracer("booth").Start(base, "booth.capture")
	defer span.End()
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("trigger_source", source),
		attribute.Int64("countdown_ms", countdown.Milliseconds()),
	)...)
	defer func() {
		if res.err != nil {
			span.RecordError(tracing.SafeError(res.err))
		}
	}()

	delay := PreCaptureDelay(countdown, s.driver.CaptureLatency(), s.cfg.SmileOffset)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		time.Sleep(delay)
	}()
	go func() {
		defer wg.Done()
		s.driver.Prepare(ctx)
	}()
	wg.Wait()

	img, err := s.driver.Capture(ctx)
	if err != nil {
		return captureResult{err: err}
	}

	stored, err := s.store.Save(ctx, photo.SaveRequest{
		Bytes:         img,
		TriggerSource: source,
		Countdown:     countdown,
	})
	if err != nil {
		return captureResult{err: fmt.Errorf("storing photo: %w", err)}
	}
	return captureResult{photo: stored}
}

// PreCaptureDelay is the wait between trigger and shutter command: the
// countdown minus the device's declared latency, plus the smile offset,
// clamped to non-negative. The goal is a shutter that fires at the visual
// zero of the countdown.
func PreCaptureDelay(countdown, latency, smileOffset time.Duration) time.Duration {
	delay := countdown - latency + smileOffset
	if delay < 0 {
		return 0
	}
	return delay
}

func (s *Service) hardTimeoutBuffer() time.Duration {
	if s.driver.CaptureLatency() >= s.cfg.SlowLatencyCutoff {
		return s.cfg.SlowBuffer
	}
	return s.cfg.FastBuffer
}
