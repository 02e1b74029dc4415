//go:build windows

package logging

import "log/slog"

// CaptureStderr is a no-op on Windows; its audio backend does not write to
// the console.
func CaptureStderr(*slog.Logger) (restore func(), err error) {
	return func() {}, nil
}
