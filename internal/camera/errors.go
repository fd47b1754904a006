package camera

import (
	"errors"
	"fmt"
)

// Sentinel error classes for capture failures. Drivers wrap their concrete
// failures with one of these so the workflow and the retry loop can branch on
// class without knowing device details.
var (
	// ErrDeviceUnavailable: no device connected or the control process failed.
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrBusy: the capture lock was not acquired within its bounded wait.
	// Never retried by callers.
	ErrBusy = errors.New("device busy")

	// ErrTimeout: a capture poll, command, or workflow deadline elapsed.
	ErrTimeout = errors.New("capture timed out")

	// ErrProtocolViolation: the device produced something malformed, e.g. a
	// pulled file without a JPEG signature or a file that vanished during the
	// stability check. Treated like unavailability: recovery then retry.
	ErrProtocolViolation = errors.New("device protocol violation")
)

// CaptureError carries a failure class plus the underlying cause.
type CaptureError struct {
	Class error
	Cause error
}

func (e *CaptureError) Error() string {
	if e.Cause == nil {
		return e.Class.Error()
	}
	return fmt.Sprintf("%s: %s", e.Class.Error(), e.Cause.Error())
}

func (e *CaptureError) Unwrap() error { return e.Class }

// WrapError classifies cause under class. A nil cause yields the bare class.
func WrapError(class, cause error) error {
	return &CaptureError{Class: class, Cause: cause}
}

// Errorf classifies a formatted message under class.
func Errorf(class error, format string, args ...any) error {
	return &CaptureError{Class: class, Cause: fmt.Errorf(format, args...)}
}
