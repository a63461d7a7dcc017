package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// rotatingWriter is a small self-rolling file writer: it appends to path
// until the written size would exceed maxBytes, then shifts path.1..path.N
// backups down one slot, renames the current file into path.1, and starts a
// fresh one. maxBytes <= 0 disables rotation; backups <= 0 discards the
// current file instead of keeping history.
//
// Deliberately hand-rolled rather than built on a rotation library:
// gopkg.in/natefinch/lumberjack.v2 appears in two retrieved go.mod files
// but has no call site anywhere in the retrieved corpus, so there is
// nothing to ground an adoption of it on.
type rotatingWriter struct {
	mu       sync.Mutex
	path     string
	f        *os.File
	size     int64
	maxBytes int64
	backups  int
}

func newRotatingWriter(path string, maxBytes int64, backups int) (*rotatingWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	return &rotatingWriter{path: path, f: f, size: size, maxBytes: maxBytes, backups: backups}, nil
}

func (w *rotatingWriter) setLimits(maxBytes int64, backups int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.maxBytes = maxBytes
	w.backups = backups
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.maxBytes > 0 && w.size > 0 && w.size+int64(len(p)) > w.maxBytes {
		if err := w.rotateLocked(); err != nil {
			return 0, err
		}
	}
	n, err := w.f.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingWriter) rotateLocked() error {
	if err := w.f.Close(); err != nil {
		return err
	}
	if w.backups > 0 {
		oldest := fmt.Sprintf("%s.%d", w.path, w.backups)
		os.Remove(oldest)
		for i := w.backups - 1; i >= 1; i-- {
			src := fmt.Sprintf("%s.%d", w.path, i)
			dst := fmt.Sprintf("%s.%d", w.path, i+1)
			renameIfExists(src, dst)
		}
		renameIfExists(w.path, w.path+".1")
	} else {
		os.Remove(w.path)
	}
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.f = f
	w.size = 0
	return nil
}

func renameIfExists(src, dst string) {
	if _, err := os.Stat(src); err == nil {
		os.Rename(src, dst)
	}
}

func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}
