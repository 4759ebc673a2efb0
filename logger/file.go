package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fileSink is an io.Writer that appends JSON log lines to a per-component
// file tree. Rotating sinks open one file per day and roll to a numbered
// file when the size limit is reached; non-rotating sinks append to a
// single fixed file.
type fileSink struct {
	mu       sync.Mutex
	dir      string
	name     string
	maxBytes int64
	rotate   bool

	f    *os.File
	date string
	seq  int
	size int64
}

// newFileSink creates a rotating sink under dir for the named component.
func newFileSink(dir, name string, maxBytes int64) *fileSink {
	return &fileSink{dir: dir, name: name, maxBytes: maxBytes, rotate: true}
}

// newPlainSink creates an append-only sink with no rotation.
func newPlainSink(dir, name string) *fileSink {
	return &fileSink{dir: dir, name: name, rotate: false}
}

func (s *fileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensure(int64(len(p))); err != nil {
		return 0, err
	}
	n, err := s.f.Write(p)
	s.size += int64(n)
	return n, err
}

// Close releases the underlying file.
func (s *fileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// ensure opens or rotates the current file so the next write of n bytes lands
// in a file within the configured limits.
func (s *fileSink) ensure(n int64) error {
	if !s.rotate {
		if s.f != nil {
			return nil
		}
		return s.open(filepath.Join(s.dir, s.name+".log"))
	}

	today := time.Now().Format("2006-01-02")
	switch {
	case s.f == nil:
		s.date, s.seq = today, 0
	case s.date != today:
		s.closeCurrent()
		s.date, s.seq = today, 0
	case s.maxBytes > 0 && s.size+n > s.maxBytes && s.size > 0:
		s.closeCurrent()
		s.seq++
	default:
		return nil
	}
	return s.open(filepath.Join(s.dir, s.fileName()))
}

func (s *fileSink) fileName() string {
	if s.seq == 0 {
		return fmt.Sprintf("%s_%s.log", s.name, s.date)
	}
	return fmt.Sprintf("%s_%s.%d.log", s.name, s.date, s.seq)
}

func (s *fileSink) open(path string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	s.f = f
	s.size = 0
	if st, err := f.Stat(); err == nil {
		s.size = st.Size()
	}
	return nil
}

func (s *fileSink) closeCurrent() {
	if s.f != nil {
		_ = s.f.Close()
		s.f = nil
	}
}
