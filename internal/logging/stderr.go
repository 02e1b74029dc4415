//go:build !windows

package logging

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// CaptureStderr redirects file descriptor 2 into logger. The audio
// backend's C libraries (ALSA) write there directly and would otherwise
// draw over the UI. restore puts the original descriptor back; it is safe
// to call more than once.
func CaptureStderr(logger *slog.Logger) (restore func(), err error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create pipe: %w", err)
	}

	fd := int(os.Stderr.Fd())
	orig, err := unix.Dup(fd)
	if err != nil {
		r.Close()
		w.Close()
		return nil, fmt.Errorf("dup stderr: %w", err)
	}
	if err := unix.Dup2(int(w.Fd()), fd); err != nil {
		unix.Close(orig)
		r.Close()
		w.Close()
		return nil, fmt.Errorf("redirect stderr: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				logger.Warn("stderr", "line", line)
			}
		}
	}()

	return sync.OnceFunc(func() {
		_ = unix.Dup2(orig, fd)
		_ = unix.Close(orig)
		w.Close()
		<-done
		r.Close()
	}), nil
}
