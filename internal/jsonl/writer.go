// Package jsonl appends newline-delimited JSON records to a file.
package jsonl

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Writer is safe for concurrent use. A nil *Writer discards records.
type Writer struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	w       *bufio.Writer
	records int64
}

// New returns a writer that opens path on first write. A blank path yields nil.
func New(path string) *Writer {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return &Writer{path: path}
}

// Open is New followed by an immediate open, so a bad path fails at startup.
func Open(path string) (*Writer, error) {
	w := New(path)
	if w == nil {
		return nil, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureOpenLocked(); err != nil {
		return nil, fmt.Errorf("jsonl open %s: %w", w.path, err)
	}
	return w, nil
}

func (w *Writer) Path() string {
	if w == nil {
		return ""
	}
	return w.path
}

// Records counts records written by this writer.
func (w *Writer) Records() int64 {
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records
}

func (w *Writer) ensureOpenLocked() error {
	if w.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.w = bufio.NewWriterSize(f, 64*1024)
	return nil
}

// Write appends v as one line and flushes so tailers see it immediately.
func (w *Writer) Write(v any) error {
	if w == nil {
		return nil
	}
	if v == nil {
		return fmt.Errorf("jsonl: nil record")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureOpenLocked(); err != nil {
		return err
	}
	b = append(b, '\n')
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	w.records++
	return nil
}

// Close flushes and closes the file. The writer reopens on the next Write.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	if w.w != nil {
		if err := w.w.Flush(); err != nil {
			firstErr = err
		}
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.w = nil
	w.file = nil

	if firstErr != nil && errors.Is(firstErr, os.ErrClosed) {
		return nil
	}
	return firstErr
}
