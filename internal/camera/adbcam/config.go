package adbcam

import "time"

// Config tunes the adb-controlled phone camera. Zero values are normalized by
// withDefaults so callers only set what they care about.
type Config struct {
	// PhotoDir is the directory on the device the camera app writes to.
	PhotoDir string
	// FilenamePattern matches freshly taken photos in PhotoDir.
	FilenamePattern string
	// CameraAction is the intent action used to launch the camera app.
	CameraAction string
	// UnlockPIN unlocks the device during setup; empty means swipe-only.
	UnlockPIN string

	PollInterval   time.Duration
	CaptureTimeout time.Duration
	StabilityDelay time.Duration
	LockTimeout    time.Duration
	AttemptDelay   time.Duration
	StaleAfter     time.Duration

	KeepaliveInterval time.Duration
	KeepaliveMax      time.Duration

	// Latency is the declared shutter latency reported to the workflow.
	Latency time.Duration

	// Attempts is the total number of shutter attempts per capture.
	// 1 means a single attempt with no retries.
	Attempts       int
	WakeAttempts   int
	UnlockAttempts int

	// DeleteAfterPull removes the photo from the device once transferred.
	DeleteAfterPull bool

	// PullDir receives transferred files; empty means the OS temp dir.
	PullDir string
}

func (c Config) withDefaults() Config {
	if c.PhotoDir == "" {
		c.PhotoDir = "/sdcard/DCIM/Camera"
	}
	if c.FilenamePattern == "" {
		c.FilenamePattern = `(?i)^IMG_.*\.jpe?g$`
	}
	if c.CameraAction == "" {
		c.CameraAction = "android.media.action.STILL_IMAGE_CAMERA"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.CaptureTimeout <= 0 {
		c.CaptureTimeout = 30 * time.Second
	}
	if c.StabilityDelay <= 0 {
		c.StabilityDelay = 300 * time.Millisecond
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = 2 * time.Second
	}
	if c.AttemptDelay <= 0 {
		c.AttemptDelay = time.Second
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 45 * time.Second
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = 20 * time.Second
	}
	if c.KeepaliveMax <= 0 {
		c.KeepaliveMax = 10 * time.Minute
	}
	if c.Latency <= 0 {
		c.Latency = 1500 * time.Millisecond
	}
	if c.Attempts <= 0 {
		c.Attempts = 2
	}
	if c.WakeAttempts <= 0 {
		c.WakeAttempts = 5
	}
	if c.UnlockAttempts <= 0 {
		c.UnlockAttempts = 10
	}
	return c
}
