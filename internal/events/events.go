package events

import "time"

// Kind discriminates booth events on the wire.
type Kind string

const (
	KindCountdownStarted Kind = "countdown_started"
	KindPhotoCaptured    Kind = "photo_captured"
	KindCaptureFailed    Kind = "capture_failed"
)

// Event is a booth status event fanned out to every live observer. Events are
// immutable once constructed; for a single trigger exactly one
// CountdownStarted precedes at most one terminal event.
type Event interface {
	Kind() Kind
}

// CountdownStarted announces that a trigger was accepted and the visible
// countdown began.
type CountdownStarted struct {
	DurationMS    int64  `json:"durationMs"`
	TriggerSource string `json:"triggerSource"`
}

func (CountdownStarted) Kind() Kind { return KindCountdownStarted }

// NewCountdownStarted builds the countdown event from a duration.
func NewCountdownStarted(d time.Duration, source string) CountdownStarted {
	return CountdownStarted{DurationMS: d.Milliseconds(), TriggerSource: source}
}

// PhotoCaptured is the successful terminal event for a trigger.
type PhotoCaptured struct {
	PhotoID  int64  `json:"photoId"`
	Code     string `json:"code"`
	ImageURL string `json:"imageUrl"`
}

func (PhotoCaptured) Kind() Kind { return KindPhotoCaptured }

// CaptureFailed is the failing terminal event for a trigger.
type CaptureFailed struct {
	ErrorMessage string `json:"errorMessage"`
}

func (CaptureFailed) Kind() Kind { return KindCaptureFailed }
