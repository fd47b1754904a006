package adbcam

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/camera"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/observability/logger"
)

// ensureReady re-evaluates device readiness before a capture. The device can
// be put to sleep or disconnected between captures by events outside this
// process, so readiness is never cached beyond the stale threshold.
func (d *Driver) ensureReady(ctx context.Context) error {
	stale := d.actionStale()
	recovery := d.needsRecovery.Load()
	if !stale && !recovery {
		interactive, err := d.isInteractive(ctx)
		if err == nil && interactive {
			return nil
		}
	}

	d.log.Info("running device setup",
		zap.Bool("stale", stale),
		zap.Bool("recovery_flagged", recovery))
	return d.setup(ctx)
}

// setup runs the full recovery sequence: connectivity, wake, unlock, camera
// app relaunch, keepalive restart.
func (d *Driver) setup(ctx context.Context) error {
	if err := d.deviceConnected(ctx); err != nil {
		return err
	}
	if err := d.wakeScreen(ctx); err != nil {
		return err
	}
	if err := d.unlock(ctx); err != nil {
		return err
	}
	if err := d.openCamera(ctx); err != nil {
		return err
	}

	d.keepalive.restart()
	d.needsRecovery.Store(false)
	d.stampAction()
	d.log.Info("device setup complete")
	return nil
}

// deviceConnected fails fast when `adb devices` does not report the device as
// attached and authorized.
func (d *Driver) deviceConnected(ctx context.Context) error {
	lines, err := d.runner.Run(ctx, "devices")
	if err != nil {
		return err
	}
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == "device" {
			return nil
		}
	}
	return camera.Errorf(camera.ErrDeviceUnavailable, "no connected device in adb devices output")
}

// wakeScreen sends wake keyevents until the screen reports on, bounded by the
// configured attempt count.
func (d *Driver) wakeScreen(ctx context.Context) error {
	for attempt := 1; attempt <= d.cfg.WakeAttempts; attempt++ {
		on, err := d.isScreenOn(ctx)
		if err != nil {
			return err
		}
		if on {
			return nil
		}
		if _, err := d.runner.Run(ctx, "shell", "input", "keyevent", keyWakeup); err != nil {
			return err
		}
		if err := sleepCtx(ctx, d.cfg.AttemptDelay); err != nil {
			return err
		}
	}
	return camera.Errorf(camera.ErrDeviceUnavailable,
		"screen still off after %d wake attempts", d.cfg.WakeAttempts)
}

// unlock dismisses the keyguard, entering the PIN when one is configured,
// bounded by the configured attempt count.
func (d *Driver) unlock(ctx context.Context) error {
	for attempt := 1; attempt <= d.cfg.UnlockAttempts; attempt++ {
		interactive, err := d.isInteractive(ctx)
		if err != nil {
			return err
		}
		if interactive {
			return nil
		}
		if _, err := d.runner.Run(ctx, "shell", "input", "keyevent", keyMenu); err != nil {
			return err
		}
		if d.cfg.UnlockPIN != "" {
			d.log.Debug("entering unlock pin",
				zap.String("pin", logger.MaskPIN(d.cfg.UnlockPIN)))
			if _, err := d.runner.Run(ctx, "shell", "input", "text", d.cfg.UnlockPIN); err != nil {
				return err
			}
			if _, err := d.runner.Run(ctx, "shell", "input", "keyevent", keyEnter); err != nil {
				return err
			}
		}
		if err := sleepCtx(ctx, d.cfg.AttemptDelay); err != nil {
			return err
		}
	}
	return camera.Errorf(camera.ErrDeviceUnavailable,
		"device still locked after %d unlock attempts", d.cfg.UnlockAttempts)
}

// openCamera backs out of whatever sub-screen the camera app might be stuck
// in, then relaunches it fresh.
func (d *Driver) openCamera(ctx context.Context) error {
	for i := 0; i < 2; i++ {
		if _, err := d.runner.Run(ctx, "shell", "input", "keyevent", keyBack); err != nil {
			return err
		}
	}
	if _, err := d.runner.Run(ctx, "shell", "am", "start", "-a", d.cfg.CameraAction); err != nil {
		return err
	}
	return nil
}

// isScreenOn queries the power service for wakefulness.
func (d *Driver) isScreenOn(ctx context.Context) (bool, error) {
	lines, err := d.runner.Run(ctx, "shell", "dumpsys", "power")
	if err != nil {
		return false, err
	}
	for _, line := range lines {
		if strings.Contains(line, "mWakefulness=") {
			return strings.Contains(line, "mWakefulness=Awake"), nil
		}
	}
	return false, nil
}

// isInteractive queries the window service for an unlocked, interactive
// session.
func (d *Driver) isInteractive(ctx context.Context) (bool, error) {
	lines, err := d.runner.Run(ctx, "shell", "dumpsys", "window")
	if err != nil {
		return false, err
	}
	for _, line := range lines {
		if strings.Contains(line, "mDreamingLockscreen=") {
			return strings.Contains(line, "mDreamingLockscreen=false"), nil
		}
	}
	return false, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
