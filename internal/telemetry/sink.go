package telemetry

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"codeberg.org/mutker/framegov/internal/errors"
	"codeberg.org/mutker/framegov/internal/logger"
)

// sink serializes writes from concurrent exporters onto one destination.
type sink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

func newSink(path string) (*sink, error) {
	if path == "" {
		return nil, errors.New().New(ErrInvalidPath)
	}
	if path == StdoutPath {
		return &sink{w: os.Stdout}, nil
	}

	logger.Debug().Msgf("Opening report sink at: %s", path)

	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerm); err != nil {
		return nil, errors.New().Wrap(ErrSinkOpen, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, defaultFilePerm)
	if err != nil {
		return nil, errors.New().Wrap(ErrSinkOpen, err)
	}

	return &sink{w: f, closer: f}, nil
}

func (s *sink) write(fn func(io.Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(s.w)
}

func (s *sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closer == nil {
		return nil
	}
	if err := s.closer.Close(); err != nil {
		return errors.New().Wrap(ErrSinkClose, err)
	}
	s.closer = nil

	return nil
}
