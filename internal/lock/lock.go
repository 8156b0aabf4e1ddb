// Package lock enforces one daemon per session directory via an
// exclusive flock on a lock file. The file carries the owner's PID,
// session name and start time so a refused acquire can say who holds it.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const fileName = "LOCK"

// Owner describes the process holding a session lock.
type Owner struct {
	PID     int
	Session string
	Since   time.Time
}

// HeldError is returned when another process already holds the lock.
type HeldError struct {
	Owner Owner
	Path  string
}

func (e *HeldError) Error() string {
	if e.Owner.PID == 0 {
		return fmt.Sprintf("session lock %s held by another process", e.Path)
	}
	return fmt.Sprintf("session %q locked by PID %d since %s",
		e.Owner.Session, e.Owner.PID, e.Owner.Since.Format(time.RFC3339))
}

// Lock is an acquired session lock.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes the exclusive lock for a session directory, creating the
// directory if needed. Returns HeldError when another daemon owns it.
func Acquire(sessionDir, sessionName string) (*Lock, error) {
	if err := os.MkdirAll(sessionDir, 0700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	path := filepath.Join(sessionDir, fileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		owner := readOwner(path)
		_ = f.Close()
		return nil, &HeldError{Owner: owner, Path: path}
	}

	if err := writeOwner(f, sessionName); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write lock owner: %w", err)
	}
	return &Lock{file: f, path: path}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock and removes the file. Safe on nil receiver and
// idempotent.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// Remove before close so a crash between the two cannot leave a
	// stale file that still flocks.
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

func writeOwner(f *os.File, sessionName string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err := fmt.Fprintf(f, "pid=%d\nsession=%s\nsince=%s\n",
		os.Getpid(), sessionName, time.Now().UTC().Format(time.RFC3339))
	return err
}

// readOwner parses the lock file for diagnostics. Missing or mangled
// fields stay zero; the error message degrades accordingly.
func readOwner(path string) Owner {
	data, err := os.ReadFile(path)
	if err != nil {
		return Owner{}
	}
	var o Owner
	for _, line := range strings.Split(string(data), "\n") {
		switch {
		case strings.HasPrefix(line, "pid="):
			o.PID, _ = strconv.Atoi(strings.TrimPrefix(line, "pid="))
		case strings.HasPrefix(line, "session="):
			o.Session = strings.TrimPrefix(line, "session=")
		case strings.HasPrefix(line, "since="):
			o.Since, _ = time.Parse(time.RFC3339, strings.TrimPrefix(line, "since="))
		}
	}
	return o
}
