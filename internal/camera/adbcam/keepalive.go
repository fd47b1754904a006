package adbcam

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// keepalive periodically pokes the camera app so it does not auto-exit and
// the screen does not sleep between captures. It runs independently of any
// in-flight capture and only ever touches the driver's atomic state, never
// the capture lock.
type keepalive struct {
	driver *Driver

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newKeepalive(d *Driver) *keepalive {
	return &keepalive{driver: d}
}

// restart stops any running loop and starts a fresh one. Called every time
// the setup sequence runs.
func (k *keepalive) restart() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	k.cancel = cancel
	k.done = done
	go k.loop(ctx, done)
}

// stop terminates the loop, if running. Called on driver Close.
func (k *keepalive) stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.stopLocked()
}

func (k *keepalive) stopLocked() {
	if k.cancel != nil {
		k.cancel()
		<-k.done
		k.cancel = nil
		k.done = nil
	}
}

func (k *keepalive) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	d := k.driver
	log := d.log.Named("keepalive")
	startedAt := d.clk.Now()
	ticker := time.NewTicker(d.cfg.KeepaliveInterval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		tick++

		if d.clk.Since(startedAt) > d.cfg.KeepaliveMax {
			// Nobody has captured for a long while; stop burning the phone
			// screen, lock the device and force a full setup next time.
			log.Info("keepalive window elapsed, locking device",
				zap.Duration("ran_for", d.clk.Since(startedAt)))
			if _, err := d.runner.Run(ctx, "shell", "input", "keyevent", keyPower); err != nil {
				log.Warn("failed to lock device", zap.Error(err))
			}
			d.flagRecovery()
			return
		}

		if tick%2 == 1 {
			interactive, err := d.isInteractive(ctx)
			if err != nil || !interactive {
				log.Warn("device no longer interactive, flagging recovery",
					zap.Bool("interactive", interactive), zap.Error(err))
				d.flagRecovery()
				return
			}
			continue
		}

		if _, err := d.runner.Run(ctx, "shell", "input", "keyevent", keyFocus); err != nil {
			log.Warn("focus keepalive failed, flagging recovery", zap.Error(err))
			d.flagRecovery()
			return
		}
		d.stampAction()
	}
}
