package booth

import "time"

// Config controls countdown timing and the hard workflow timeout.
type Config struct {
	// CountdownDefault applies when a trigger carries no override.
	CountdownDefault time.Duration

	// SmileOffset delays the shutter slightly past the visual zero so guests
	// are actually smiling when the frame is taken.
	SmileOffset time.Duration

	// FastBuffer/SlowBuffer pad the hard timeout beyond the countdown. The
	// slow buffer applies when the driver's declared latency reaches
	// SlowLatencyCutoff, i.e. for remote devices that can hang mid-protocol.
	FastBuffer        time.Duration
	SlowBuffer        time.Duration
	SlowLatencyCutoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.CountdownDefault <= 0 {
		c.CountdownDefault = 5 * time.Second
	}
	if c.SmileOffset < 0 {
		c.SmileOffset = 0
	}
	if c.FastBuffer <= 0 {
		c.FastBuffer = 10 * time.Second
	}
	if c.SlowBuffer <= 0 {
		c.SlowBuffer = 90 * time.Second
	}
	if c.SlowLatencyCutoff <= 0 {
		c.SlowLatencyCutoff = time.Second
	}
	return c
}
