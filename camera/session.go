package camera

import (
	"sync"

	"gocv.io/x/gocv"
)

// Session is one live hold on a camera device, bounded by explicit start and
// stop. It caches the native resolution resolved during acquisition and owns
// a reusable decode buffer.
type Session struct {
	id string

	mu           sync.Mutex
	dev          Device
	frame        gocv.Mat
	active       bool
	ready        bool
	nativeWidth  int
	nativeHeight int
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Active reports whether the session still holds the device.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Ready reports whether the stream has produced at least one decodable frame.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active && s.ready
}

// NativeSize returns the cached capture resolution. ok is false until the
// stream reached readiness; coordinate mapping is invalid before that.
func (s *Session) NativeSize() (width, height int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return 0, 0, false
	}
	return s.nativeWidth, s.nativeHeight, true
}

// stop releases the device exactly once. Returns true if this call did the
// release.
func (s *Session) stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	s.active = false
	s.ready = false
	s.release()
	return true
}

// release closes the device and decode buffer. Caller holds the lock, or the
// session has not been published yet.
func (s *Session) release() {
	if s.dev != nil {
		_ = s.dev.Close()
		s.dev = nil
	}
	s.frame.Close()
}
