// Package adbcam drives a phone camera over adb. The phone is a slow,
// stateful, failure-prone capture device: it sleeps, locks itself, and the
// camera app wanders off to sub-screens. Every capture therefore re-evaluates
// device readiness and any failure forces a full re-setup before the retry.
package adbcam

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/adb"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/camera"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/clock"
)

var _ camera.Driver = (*Driver)(nil)

// Android keyevent codes used by the device protocol.
const (
	keyBack   = "4"
	keyPower  = "26"
	keyCamera = "27"
	keyFocus  = "80"
	keyMenu   = "82"
	keyEnter  = "66"
	keyWakeup = "224"
)

// Driver implements camera.Driver against a remote Android device.
type Driver struct {
	cfg     Config
	runner  adb.Runner
	clk     clock.Clock
	log     *zap.Logger
	pattern *regexp.Regexp

	// captureMu serializes captures. Acquisition waits at most
	// cfg.LockTimeout, then fails fast with ErrBusy.
	captureMu chan struct{}

	// needsRecovery may be flipped by the keepalive loop while a capture is
	// in flight, so it stays a single atomic flag rather than joining the
	// mutex-guarded state.
	needsRecovery atomic.Bool

	// lastAction is the unix-nano timestamp of the last confirmed device
	// action. Also stamped by the keepalive loop, hence atomic.
	lastAction atomic.Int64

	keepalive *keepalive
}

func New(cfg Config, runner adb.Runner, clk clock.Clock, log *zap.Logger) (*Driver, error) {
	cfg = cfg.withDefaults()
	pattern, err := regexp.Compile(cfg.FilenamePattern)
	if err != nil {
		return nil, err
	}
	d := &Driver{
		cfg:       cfg,
		runner:    runner,
		clk:       clk,
		log:       log.Named("adbcam"),
		pattern:   pattern,
		captureMu: make(chan struct{}, 1),
	}
	d.keepalive = newKeepalive(d)
	return d, nil
}

// IsAvailable probes `adb devices`. Any failure reads as unavailable.
func (d *Driver) IsAvailable(ctx context.Context) bool {
	return d.deviceConnected(ctx) == nil
}

// Prepare warms the device up concurrently with a countdown. If a capture
// already holds the lock it skips, and all errors are swallowed: the
// subsequent Capture redoes any setup this missed.
func (d *Driver) Prepare(ctx context.Context) {
	if !d.tryAcquire() {
		d.log.Debug("prepare skipped, capture lock held")
		return
	}
	defer d.release()

	if err := d.ensureReady(ctx); err != nil {
		d.log.Warn("prepare failed, capture will retry setup", zap.Error(err))
	}
}

// Capture takes one photo, retrying with full device recovery between
// attempts. Concurrent callers serialize; a caller that cannot take the lock
// within the bounded wait gets ErrBusy.
func (d *Driver) Capture(ctx context.Context) ([]byte, error) {
	if err := d.acquire(ctx); err != nil {
		return nil, err
	}
	defer d.release()

	attempts := d.cfg.Attempts
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		img, err := d.captureOnce(ctx)
		if err == nil {
			return img, nil
		}
		if adb.IsCancellation(err) {
			return nil, err
		}
		lastErr = err
		d.flagRecovery()
		d.log.Warn("capture attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("attempts", attempts),
			zap.Error(err))
	}
	return nil, lastErr
}

// CaptureLatency reports the declared shutter latency of the remote device.
func (d *Driver) CaptureLatency() time.Duration {
	return d.cfg.Latency
}

// Close stops the keepalive loop.
func (d *Driver) Close() error {
	d.keepalive.stop()
	return nil
}

func (d *Driver) captureOnce(ctx context.Context) ([]byte, error) {
	if err := d.ensureReady(ctx); err != nil {
		return nil, err
	}

	snapshot, err := d.listPhotos(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := d.runner.Run(ctx, "shell", "input", "keyevent", keyCamera); err != nil {
		return nil, err
	}

	file, err := d.awaitNewPhoto(ctx, snapshot)
	if err != nil {
		return nil, err
	}

	if err := d.awaitStableSize(ctx, file); err != nil {
		return nil, err
	}

	data, err := d.pull(ctx, file.Name)
	if err != nil {
		return nil, err
	}
	if err := validateJPEG(data); err != nil {
		return nil, err
	}

	if d.cfg.DeleteAfterPull {
		remote := d.cfg.PhotoDir + "/" + file.Name
		if _, err := d.runner.Run(ctx, "shell", "rm", remote); err != nil {
			// The photo is already safe locally; a failed delete only leaves
			// clutter on the device.
			d.log.Warn("failed to delete remote photo", zap.String("file", file.Name), zap.Error(err))
		}
	}

	d.stampAction()
	return data, nil
}

// awaitNewPhoto polls the photo directory until a matching new file appears
// or the capture timeout elapses.
func (d *Driver) awaitNewPhoto(ctx context.Context, snapshot map[string]int64) (remoteFile, error) {
	deadline := time.Now().Add(d.cfg.CaptureTimeout)
	for {
		current, err := d.listPhotos(ctx)
		if err != nil {
			return remoteFile{}, err
		}
		if file, ok := findNewPhoto(snapshot, current, d.pattern); ok {
			return file, nil
		}
		if time.Now().After(deadline) {
			return remoteFile{}, camera.Errorf(camera.ErrTimeout,
				"no new photo in %s after %s", d.cfg.PhotoDir, d.cfg.CaptureTimeout)
		}
		select {
		case <-ctx.Done():
			return remoteFile{}, ctx.Err()
		case <-time.After(d.cfg.PollInterval):
		}
	}
}

// awaitStableSize confirms the camera app finished writing: two consecutive
// listings must report the same size. One size change is tolerated with a
// single extra check before the attempt fails.
func (d *Driver) awaitStableSize(ctx context.Context, file remoteFile) error {
	size := file.Size
	for extra := 0; extra < 2; extra++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.cfg.StabilityDelay):
		}

		current, err := d.listPhotos(ctx)
		if err != nil {
			return err
		}
		newSize, ok := current[file.Name]
		if !ok {
			return camera.Errorf(camera.ErrProtocolViolation,
				"photo %s vanished during stability check", file.Name)
		}
		if newSize == size {
			return nil
		}
		size = newSize
	}
	return camera.Errorf(camera.ErrProtocolViolation,
		"photo %s still growing after stability checks", file.Name)
}

// pull transfers the remote file into a local scratch file and reads it back.
func (d *Driver) pull(ctx context.Context, name string) ([]byte, error) {
	dir := d.cfg.PullDir
	if dir == "" {
		dir = os.TempDir()
	}
	local := filepath.Join(dir, name)
	defer os.Remove(local)

	remote := d.cfg.PhotoDir + "/" + name
	if _, err := d.runner.Run(ctx, "pull", remote, local); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(local)
	if err != nil {
		return nil, camera.WrapError(camera.ErrProtocolViolation, err)
	}
	return data, nil
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

// flagRecovery forces the full setup sequence on the next attempt.
func (d *Driver) flagRecovery() {
	d.needsRecovery.Store(true)
	d.lastAction.Store(0)
}

// stampAction records a confirmed device interaction.
func (d *Driver) stampAction() {
	d.lastAction.Store(d.clk.Now().UnixNano())
}

func (d *Driver) actionStale() bool {
	last := d.lastAction.Load()
	if last == 0 {
		return true
	}
	return d.clk.Since(time.Unix(0, last)) > d.cfg.StaleAfter
}
