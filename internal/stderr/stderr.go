//go:build unix

// Package stderr captures output that C libraries (ALSA, faad2) write
// directly to file descriptor 2, bypassing Go's os.Stderr, and forwards it
// to the log so the TUI layout stays intact.
package stderr

import (
	"bufio"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

var (
	mu         sync.Mutex
	origStderr = -1
	pipeRead   *os.File
	pipeWrite  *os.File
	done       chan struct{}
)

// Start redirects fd 2 into a pipe whose lines are logged at warn level.
// Call it before the speaker is initialized. On error the program can
// continue without capture.
func Start(logger *zap.Logger) error {
	mu.Lock()
	defer mu.Unlock()
	if origStderr >= 0 {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r, w, err := os.Pipe()
	if err != nil {
		return err
	}

	orig, err := unix.Dup(int(os.Stderr.Fd()))
	if err != nil {
		r.Close()
		w.Close()
		return err
	}

	if err := unix.Dup2(int(w.Fd()), int(os.Stderr.Fd())); err != nil {
		unix.Close(orig)
		r.Close()
		w.Close()
		return err
	}

	origStderr = orig
	pipeRead = r
	pipeWrite = w
	done = make(chan struct{})

	go forward(r, logger.With(zap.String("component", "stderr")), done)
	return nil
}

func forward(r *os.File, logger *zap.Logger, done chan<- struct{}) {
	defer close(done)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			logger.Warn("captured stderr", zap.String("line", line))
		}
	}
}

// WriteOriginal writes directly to the original stderr, bypassing capture.
func WriteOriginal(msg string) {
	mu.Lock()
	fd := origStderr
	mu.Unlock()
	if fd < 0 {
		_, _ = os.Stderr.WriteString(msg)
		return
	}
	_, _ = unix.Write(fd, []byte(msg))
}

// Stop restores the original stderr and waits for pending lines to be
// logged.
func Stop() {
	mu.Lock()
	defer mu.Unlock()
	if origStderr < 0 {
		return
	}

	_ = unix.Dup2(origStderr, int(os.Stderr.Fd()))
	_ = unix.Close(origStderr)
	origStderr = -1

	// fd 2 no longer references the pipe: closing our end ends the reader
	pipeWrite.Close()
	<-done
	pipeRead.Close()
}
