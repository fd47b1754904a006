package main

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/adb"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/booth"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/camera"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/camera/adbcam"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/camera/webcam"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/clock"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/config"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/db"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/events"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/events/mqttbridge"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/observability"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/photo"
	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/server"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		clock.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,

		events.Module,
		fx.Provide(NewCameraDriver),
		photo.Module,
		booth.Module,
		server.Module,
		mqttbridge.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

// NewCameraDriver builds the configured capture device: an adb-controlled
// phone or a local webcam.
func NewCameraDriver(lc fx.Lifecycle, cfg config.Config, clk clock.Clock, log *zap.Logger) (camera.Driver, error) {
	var (
		driver camera.Driver
		err    error
	)

	switch cfg.CameraDriver {
	case "adb":
		runner := adb.NewExecRunner(cfg.ADBPath, cfg.ADBSerial, cfg.CommandTimeout, log)
		driver, err = adbcam.New(adbcam.Config{
			PhotoDir:          cfg.DevicePhotoDir,
			FilenamePattern:   cfg.PhotoFilePattern,
			UnlockPIN:         cfg.UnlockPIN,
			PollInterval:      cfg.PollInterval,
			CaptureTimeout:    cfg.CaptureTimeout,
			StabilityDelay:    cfg.StabilityDelay,
			LockTimeout:       cfg.CaptureLockTimeout,
			AttemptDelay:      cfg.AttemptDelay,
			StaleAfter:        cfg.DeviceStaleAfter,
			KeepaliveInterval: cfg.KeepaliveEvery,
			KeepaliveMax:      cfg.KeepaliveMaxFor,
			Latency:           cfg.LatencyEstimate,
			Attempts:          cfg.CaptureAttempts,
			DeleteAfterPull:   cfg.DeleteAfterPull,
		}, runner, clk, log)
		if err != nil {
			return nil, err
		}
	case "webcam":
		driver = webcam.New(webcam.Config{
			DeviceIndex:  cfg.WebcamIndex,
			WarmupFrames: cfg.WebcamWarmupSkips,
			JPEGQuality:  cfg.WebcamJPEGQuality,
		}, log)
	default:
		return nil, fmt.Errorf("unknown camera driver %q", cfg.CameraDriver)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return driver.Close()
		},
	})
	return driver, nil
}
