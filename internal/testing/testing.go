// Package testing holds the in-memory stores, fake uploader and I/O helpers shared by package tests.
package testing

import (
	"errors"
	"io"
	"os"
	"testing"
)

// ErrWriteFailed is returned by [FailingWriter] once its budget is spent.
var ErrWriteFailed = errors.New("write failed")

// FailingWriter passes the first OK writes through to W and fails every later one.
//
// The zero value fails immediately.
type FailingWriter struct {
	OK     int
	W      io.Writer
	writes int
}

func (f *FailingWriter) Write(p []byte) (int, error) {
	if f.writes >= f.OK {
		return 0, ErrWriteFailed
	}
	f.writes++
	if f.W == nil {
		return len(p), nil
	}
	return f.W.Write(p)
}

// AssertFileExists fails t when nothing exists at path.
func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file at %s: %v", path, err)
	}
}

// MustReadFile returns the contents of path or stops the test.
func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(content)
}
