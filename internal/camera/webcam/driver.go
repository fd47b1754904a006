// Package webcam implements the capture contract against a local USB webcam
// via gocv. It has none of the remote-protocol complexity of the adb driver
// and doubles as the reference implementation of the contract: same lock and
// busy-error semantics, no multi-step state machine.
package webcam

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/camera"
)

// Config tunes the local webcam driver.
type Config struct {
	// DeviceIndex selects the capture device, usually 0 for the built-in one.
	DeviceIndex int
	// WarmupFrames are read and discarded before the real frame so
	// auto-exposure can settle.
	WarmupFrames int
	// JPEGQuality is the encoder quality from 1 to 100.
	JPEGQuality int
	// LockTimeout bounds the wait for the capture lock.
	LockTimeout time.Duration
	// Latency is the declared shutter latency reported to the workflow.
	Latency time.Duration
}

func (c Config) withDefaults() Config {
	if c.WarmupFrames <= 0 {
		c.WarmupFrames = 10
	}
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		c.JPEGQuality = 90
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = 2 * time.Second
	}
	if c.Latency <= 0 {
		c.Latency = 100 * time.Millisecond
	}
	return c
}

// Driver holds one persistent connection to the webcam, opened lazily on
// first use and reopened after a failed read.
type Driver struct {
	cfg Config
	log *zap.Logger

	captureMu chan struct{}

	// device is only touched while captureMu is held.
	device *gocv.VideoCapture
}

func New(cfg Config, log *zap.Logger) *Driver {
	return &Driver{
		cfg:       cfg.withDefaults(),
		log:       log.Named("webcam"),
		captureMu: make(chan struct{}, 1),
	}
}

// IsAvailable probes the device enumeration without keeping it open.
func (d *Driver) IsAvailable(ctx context.Context) bool {
	if !d.tryAcquire() {
		// A capture is running, so the device evidently exists.
		return true
	}
	defer d.release()

	if d.device != nil {
		return true
	}
	probe, err := gocv.OpenVideoCapture(d.cfg.DeviceIndex)
	if err != nil {
		return false
	}
	ok := probe.IsOpened()
	_ = probe.Close()
	return ok
}

// Prepare opens the device ahead of the countdown so Capture starts from a
// warm connection. Skips when a capture holds the lock; errors are swallowed.
func (d *Driver) Prepare(ctx context.Context) {
	if !d.tryAcquire() {
		d.log.Debug("prepare skipped, capture lock held")
		return
	}
	defer d.release()

	if err := d.ensureOpen(); err != nil {
		d.log.Warn("prepare failed, capture will reopen", zap.Error(err))
	}
}

// Capture grabs one frame, discarding warm-up frames first. A failed read
// closes the connection so the next call re-initializes it.
func (d *Driver) Capture(ctx context.Context) ([]byte, error) {
	if err := d.acquire(ctx); err != nil {
		return nil, err
	}
	defer d.release()

	if err := d.ensureOpen(); err != nil {
		return nil, err
	}

	img := gocv.NewMat()
	defer img.Close()

	for i := 0; i < d.cfg.WarmupFrames; i++ {
		if !d.device.Read(&img) {
			d.closeDevice()
			return nil, camera.Errorf(camera.ErrDeviceUnavailable,
				"warm-up read %d failed on device %d", i, d.cfg.DeviceIndex)
		}
	}

	if !d.device.Read(&img) || img.Empty() {
		d.closeDevice()
		return nil, camera.Errorf(camera.ErrDeviceUnavailable,
			"failed to read frame from device %d", d.cfg.DeviceIndex)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img,
		[]int{gocv.IMWriteJpegQuality, d.cfg.JPEGQuality})
	if err != nil {
		return nil, camera.WrapError(camera.ErrProtocolViolation, err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

// CaptureLatency reports the declared latency of the local device.
func (d *Driver) CaptureLatency() time.Duration {
	return d.cfg.Latency
}

// Close releases the device connection.
func (d *Driver) Close() error {
	if err := d.acquire(context.Background()); err != nil {
		return err
	}
	defer d.release()
	d.closeDevice()
	return nil
}

func (d *Driver) ensureOpen() error {
	if d.device != nil {
		return nil
	}
	device, err := gocv.OpenVideoCapture(d.cfg.DeviceIndex)
	if err != nil {
		return camera.Errorf(camera.ErrDeviceUnavailable,
			"opening device %d: %v", d.cfg.DeviceIndex, err)
	}
	if !device.IsOpened() {
		_ = device.Close()
		return camera.Errorf(camera.ErrDeviceUnavailable,
			"device %d did not open", d.cfg.DeviceIndex)
	}
	d.device = device
	d.log.Info("webcam opened", zap.Int("device", d.cfg.DeviceIndex))
	return nil
}

func (d *Driver) closeDevice() {
	if d.device == nil {
		return
	}
	if err := d.device.Close(); err != nil {
		d.log.Warn("closing webcam", zap.Error(err))
	}
	d.device = nil
}

func (d *Driver) acquire(ctx context.Context) error {
	select {
	case d.captureMu <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d.cfg.LockTimeout):
		return camera.Errorf(camera.ErrBusy,
			"capture lock not acquired within %s", d.cfg.LockTimeout)
	}
}

func (d *Driver) tryAcquire() bool {
	select {
	case d.captureMu <- struct{}{}:
		return true
	default:
		return false
	}
}

func (d *Driver) release() {
	<-d.captureMu
}

var _ camera.Driver = (*Driver)(nil)

// String identifies the driver in logs.
func (d *Driver) String() string {
	return fmt.Sprintf("webcam[%d]", d.cfg.DeviceIndex)
}
