// Package adb is the command channel to the remote phone: it executes one adb
// invocation at a time and returns its output lines, mapping process failures
// to the device-unavailable error class.
package adb

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/camera"
)

// Runner executes a single device command and returns its trimmed output
// lines. Implementations enforce a per-command timeout.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]string, error)
}

// ExecRunner shells out to the adb binary. When Serial is set every command is
// pinned to that device with -s.
type ExecRunner struct {
	Path    string
	Serial  string
	Timeout time.Duration
	Log     *zap.Logger
}

func NewExecRunner(path, serial string, timeout time.Duration, log *zap.Logger) *ExecRunner {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ExecRunner{
		Path:    path,
		Serial:  serial,
		Timeout: timeout,
		Log:     log.Named("adb"),
	}
}

func (r *ExecRunner) Run(ctx context.Context, args ...string) ([]string, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	full := args
	if r.Serial != "" {
		full = append([]string{"-s", r.Serial}, args...)
	}

	cmd := exec.CommandContext(runCtx, r.Path, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if r.Log != nil {
		r.Log.Debug("command finished",
			zap.Strings("args", args),
			zap.Duration("elapsed", elapsed),
			zap.Bool("ok", err == nil))
	}

	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, camera.Errorf(camera.ErrTimeout, "adb %s timed out after %s", firstArg(args), r.Timeout)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, camera.Errorf(camera.ErrDeviceUnavailable, "adb %s failed: %s", firstArg(args), detail)
	}

	return splitLines(stdout.String()), nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return "<empty>"
	}
	return args[0]
}

func splitLines(out string) []string {
	raw := strings.Split(strings.ReplaceAll(out, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// IsCancellation reports whether err is a caller cancellation rather than a
// device failure. Cancellations never flag device recovery.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
