package acquire

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

var errNoFrame = errors.New("no frame uploaded yet")

// Latest holds the most recent frame pushed by the tracking collaborator.
// Each frame is handed out once so a stale image is never submitted twice.
type Latest struct {
	mu    sync.Mutex
	frame []byte
}

var _ Fetcher = (*Latest)(nil)

func (l *Latest) Put(frame []byte) {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	l.mu.Lock()
	l.frame = cp
	l.mu.Unlock()
}

func (l *Latest) Capture(_ context.Context) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.frame) == 0 {
		return nil, errNoFrame
	}
	f := l.frame
	l.frame = nil
	return f, nil
}

// Static always returns the same frame. Useful for replaying a recorded image.
type Static []byte

func (s Static) Capture(_ context.Context) ([]byte, error) {
	if len(s) == 0 {
		return nil, errNoFrame
	}
	return s, nil
}
