// Package camera defines the capability contract a capture device driver
// implements. Two drivers exist: the adb-controlled remote phone camera and
// the local gocv webcam. The booth workflow only ever sees this interface.
package camera

import (
	"context"
	"time"
)

// Driver captures one photo at a time from a single physical device.
type Driver interface {
	// IsAvailable is a best-effort, non-blocking probe. It never returns an
	// error; any probing failure reads as unavailable.
	IsAvailable(ctx context.Context) bool

	// Prepare is an optional warm-up that may run concurrently with a
	// countdown. When the capture lock is already held it must skip rather
	// than queue, and internal errors are swallowed because the following
	// Capture redoes any needed setup.
	Prepare(ctx context.Context)

	// Capture performs one full capture and returns the encoded image bytes.
	// Concurrent calls serialize; a caller that cannot take the capture lock
	// within a bounded wait fails fast with ErrBusy.
	Capture(ctx context.Context) ([]byte, error)

	// CaptureLatency is the declared, static-per-configuration delay between
	// commanding the shutter and the frame actually being taken. The workflow
	// uses it to land the shutter on the visual zero of the countdown.
	CaptureLatency() time.Duration

	// Close releases device resources and stops background work.
	Close() error
}
