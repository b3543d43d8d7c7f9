// Package acquire obtains a single frame from an unreliable external source,
// retrying a bounded number of times before giving up.
package acquire

import (
	"context"
	"time"

	iface "VpsClient/interface"
	"VpsClient/logger"
	"VpsClient/monitor"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts = 10
	DefaultDelay       = 1000 * time.Millisecond
)

// ErrSourceUnavailable is the terminal failure after every attempt missed.
var ErrSourceUnavailable = errors.New("Failed to fetch image from device")

// Fetcher makes one bounded attempt at a frame.
type Fetcher interface {
	Capture(ctx context.Context) ([]byte, error)
}

// StreamStopper is implemented by sources that stream and must be paused
// before a snapshot.
type StreamStopper interface {
	StopStream(ctx context.Context) error
}

type Loop struct {
	Source      Fetcher
	MaxAttempts int
	Delay       time.Duration
	Clock       clock.Clock

	log *zap.Logger
}

var _ iface.FrameSource = (*Loop)(nil)

func NewLoop(src Fetcher, maxAttempts int, delay time.Duration) *Loop {
	return &Loop{Source: src, MaxAttempts: maxAttempts, Delay: delay}
}

func (l *Loop) defaults() (int, time.Duration, clock.Clock) {
	n, d, c := l.MaxAttempts, l.Delay, l.Clock
	if n <= 0 {
		n = DefaultMaxAttempts
	}
	if d < 0 {
		d = DefaultDelay
	}
	if c == nil {
		c = clock.New()
	}
	return n, d, c
}

// Acquire returns the first frame the source yields. Between failed attempts
// it waits Delay; ctx cancellation ends the loop at once.
func (l *Loop) Acquire(ctx context.Context) ([]byte, error) {
	if l.log == nil {
		l.log = logger.Named("acquire")
	}
	maxAttempts, delay, clk := l.defaults()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, iface.NewError(iface.KindCapture, "acquire", errors.Wrap(err, "cancelled"))
		}

		frame, err := l.Source.Capture(ctx)
		monitor.FetchAttempt(err == nil)
		if err == nil {
			l.log.Debug("frame acquired", zap.Int("attempt_no", attempt), zap.Int("bytes", len(frame)))
			return frame, nil
		}
		lastErr = err
		l.log.Warn("frame fetch failed",
			zap.Int("attempt_no", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err))

		if attempt == maxAttempts {
			break
		}
		t := clk.Timer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, iface.NewError(iface.KindCapture, "acquire", errors.Wrap(ctx.Err(), "cancelled"))
		case <-t.C:
		}
	}

	l.log.Error("frame source unavailable", zap.Int("attempts", maxAttempts), zap.Error(lastErr))
	return nil, iface.NewError(iface.KindCapture, "acquire",
		errors.Wrapf(ErrSourceUnavailable, "%d attempts, last error: %v", maxAttempts, lastErr))
}

// StopStream forwards to the source when it streams; otherwise it is a no-op.
func (l *Loop) StopStream(ctx context.Context) error {
	if s, ok := l.Source.(StreamStopper); ok {
		return s.StopStream(ctx)
	}
	return nil
}
