package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process-wide configuration, loaded from the environment.
// Component-level tuning defaults live in the per-component Config structs;
// this holds the values an operator actually sets.
type Config struct {
	Environment string
	HTTPAddr    string

	// Camera selection: "webcam" (default) or "adb".
	CameraDriver string

	// Countdown and workflow timing.
	CountdownDefault  time.Duration
	SmileOffset       time.Duration
	FastDeviceBuffer  time.Duration
	SlowDeviceBuffer  time.Duration
	SlowLatencyCutoff time.Duration

	// Remote (adb) device.
	ADBPath            string
	ADBSerial          string
	UnlockPIN          string
	DevicePhotoDir     string
	PhotoFilePattern   string
	DeleteAfterPull    bool
	CaptureAttempts    int
	CommandTimeout     time.Duration
	CaptureTimeout     time.Duration
	PollInterval       time.Duration
	StabilityDelay     time.Duration
	CaptureLockTimeout time.Duration
	AttemptDelay       time.Duration
	LatencyEstimate    time.Duration
	KeepaliveEvery     time.Duration
	KeepaliveMaxFor    time.Duration
	DeviceStaleAfter   time.Duration

	// Local webcam.
	WebcamIndex       int
	WebcamWarmupSkips int
	WebcamJPEGQuality int

	// Photo store.
	PhotoDir     string
	DatabasePath string

	// Trigger rate limiting.
	TriggerRateLimit  int
	TriggerRateWindow time.Duration

	// Optional MQTT event bridge; disabled when the broker URL is empty.
	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTTopicPrefix string

	// Tracing.
	TracingEnabled   bool
	TracingEndpoint  string
	TracingProtocol  string
	TracingSampling  float64
	ServiceName      string
	ServiceVersion   string
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present; missing values fall back to defaults
// suitable for a single-booth deployment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Environment: getString("BOOTH_ENV", "development"),
		HTTPAddr:    getString("BOOTH_HTTP_ADDR", ":8080"),

		CameraDriver: strings.ToLower(getString("BOOTH_CAMERA_DRIVER", "webcam")),

		CountdownDefault:  getDuration("BOOTH_COUNTDOWN_MS", 5000*time.Millisecond),
		SmileOffset:       getDuration("BOOTH_SMILE_OFFSET_MS", 500*time.Millisecond),
		FastDeviceBuffer:  getDuration("BOOTH_FAST_BUFFER_MS", 10*time.Second),
		SlowDeviceBuffer:  getDuration("BOOTH_SLOW_BUFFER_MS", 90*time.Second),
		SlowLatencyCutoff: getDuration("BOOTH_SLOW_LATENCY_CUTOFF_MS", time.Second),

		ADBPath:            getString("BOOTH_ADB_PATH", "adb"),
		ADBSerial:          getString("BOOTH_ADB_SERIAL", ""),
		UnlockPIN:          getString("BOOTH_UNLOCK_PIN", ""),
		DevicePhotoDir:     getString("BOOTH_DEVICE_PHOTO_DIR", "/sdcard/DCIM/Camera"),
		PhotoFilePattern:   getString("BOOTH_PHOTO_FILE_PATTERN", ""),
		DeleteAfterPull:    getBool("BOOTH_DELETE_AFTER_PULL", true),
		CaptureAttempts:    getInt("BOOTH_CAPTURE_ATTEMPTS", 2),
		CommandTimeout:     getDuration("BOOTH_COMMAND_TIMEOUT_MS", 15*time.Second),
		CaptureTimeout:     getDuration("BOOTH_CAPTURE_TIMEOUT_MS", 30*time.Second),
		PollInterval:       getDuration("BOOTH_POLL_INTERVAL_MS", 500*time.Millisecond),
		StabilityDelay:     getDuration("BOOTH_STABILITY_DELAY_MS", 300*time.Millisecond),
		CaptureLockTimeout: getDuration("BOOTH_LOCK_TIMEOUT_MS", 2*time.Second),
		AttemptDelay:       getDuration("BOOTH_ATTEMPT_DELAY_MS", time.Second),
		LatencyEstimate:    getDuration("BOOTH_CAPTURE_LATENCY_MS", 1500*time.Millisecond),
		KeepaliveEvery:     getDuration("BOOTH_KEEPALIVE_INTERVAL_MS", 20*time.Second),
		KeepaliveMaxFor:    getDuration("BOOTH_KEEPALIVE_MAX_MS", 10*time.Minute),
		DeviceStaleAfter:   getDuration("BOOTH_DEVICE_STALE_MS", 45*time.Second),

		WebcamIndex:       getInt("BOOTH_WEBCAM_INDEX", 0),
		WebcamWarmupSkips: getInt("BOOTH_WEBCAM_WARMUP_FRAMES", 10),
		WebcamJPEGQuality: getInt("BOOTH_WEBCAM_JPEG_QUALITY", 90),

		PhotoDir:     getString("BOOTH_PHOTO_DIR", "photos"),
		DatabasePath: getString("BOOTH_DB_PATH", "photobooth.db"),

		TriggerRateLimit:  getInt("BOOTH_TRIGGER_RATE_LIMIT", 3),
		TriggerRateWindow: getDuration("BOOTH_TRIGGER_RATE_WINDOW_MS", 10*time.Second),

		MQTTBrokerURL:   getString("BOOTH_MQTT_BROKER", ""),
		MQTTClientID:    getString("BOOTH_MQTT_CLIENT_ID", "photobooth"),
		MQTTTopicPrefix: getString("BOOTH_MQTT_TOPIC_PREFIX", "photobooth"),

		TracingEnabled:  getBool("BOOTH_TRACING_ENABLED", false),
		TracingEndpoint: getString("BOOTH_TRACING_ENDPOINT", ""),
		TracingProtocol: getString("BOOTH_TRACING_PROTOCOL", "grpc"),
		TracingSampling: getFloat("BOOTH_TRACING_SAMPLING", 1.0),
		ServiceName:     getString("BOOTH_SERVICE_NAME", "photobooth"),
		ServiceVersion:  getString("BOOTH_SERVICE_VERSION", "dev"),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func getFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

// getDuration reads a millisecond-denominated value.
func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms < 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
