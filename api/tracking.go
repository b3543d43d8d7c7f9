package api

import (
	"sync"
	"time"

	iface "VpsClient/interface"

	"github.com/pkg/errors"
)

var errNoTracking = errors.New("no tracking snapshot received")

// TrackingStore keeps the latest snapshot pushed by the tracking collaborator.
// A snapshot is replaced as a whole so pose, intrinsics and orientation never mix.
type TrackingStore struct {
	mu      sync.RWMutex
	snap    iface.TrackingSnapshot
	updated time.Time
	// MaxAge rejects snapshots older than this. Zero disables the check.
	MaxAge time.Duration
}

var _ iface.Tracker = (*TrackingStore)(nil)

func (s *TrackingStore) Set(snap iface.TrackingSnapshot) error {
	if snap.Pose.Rotation.Norm() == 0 {
		return errors.New("pose rotation is zero")
	}
	if snap.Intrinsics.Fx <= 0 || snap.Intrinsics.Fy <= 0 {
		return errors.New("focal lengths must be positive")
	}
	snap.Pose.Rotation = snap.Pose.Rotation.Normalized()
	s.mu.Lock()
	s.snap = snap
	s.updated = time.Now()
	s.mu.Unlock()
	return nil
}

func (s *TrackingStore) Snapshot() (iface.TrackingSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.updated.IsZero() {
		return iface.TrackingSnapshot{}, errNoTracking
	}
	if s.MaxAge > 0 && time.Since(s.updated) > s.MaxAge {
		return iface.TrackingSnapshot{}, errors.Errorf("tracking snapshot is %s old", time.Since(s.updated).Round(time.Millisecond))
	}
	return s.snap, nil
}
