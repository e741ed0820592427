package overlay

import (
	"sync"
	"time"

	"github.com/nvr-ai/go-capture/detect"
)

// TTL is how long an annotation stays on screen without being replaced.
// Annotations never extend their own lifetime; a later non-empty detection
// result replaces the whole set with a fresh expiry.
const TTL = 2500 * time.Millisecond

// Annotation is a transient visual marker derived 1:1 from one detection.
type Annotation struct {
	Rect       Rect
	Label      string
	IsMatch    bool
	Confidence float32
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Manager owns the current annotation set and its expiry.
//
// It is safe for concurrent use: the detection poller publishes results from
// its request goroutine while renderers read from the UI side.
type Manager struct {
	mu          sync.Mutex
	now         func() time.Time
	annotations []Annotation

	viewportWidth  int
	viewportHeight int
}

// NewManager returns an empty Manager using the wall clock.
func NewManager() *Manager {
	return &Manager{now: time.Now}
}

// SetViewport records the rendered size of the preview element. A zero size
// means the element has no layout yet; detections arriving in that window are
// dropped rather than mapped.
func (m *Manager) SetViewport(width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewportWidth = width
	m.viewportHeight = height
}

// OnDetections applies one poll result. An empty list clears all current
// annotations immediately; a non-empty list replaces the whole set with
// freshly mapped, freshly stamped annotations.
func (m *Manager) OnDetections(detections []detect.Detection, nativeWidth, nativeHeight int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(detections) == 0 {
		m.annotations = nil
		return
	}

	now := m.now()
	next := make([]Annotation, 0, len(detections))
	for _, d := range detections {
		rect, err := MapToDisplay(d.BBox, nativeWidth, nativeHeight, m.viewportWidth, m.viewportHeight)
		if err != nil {
			// Not mappable yet (no layout or no resolution); skip rendering.
			continue
		}
		next = append(next, Annotation{
			Rect:       rect,
			Label:      d.DisplayLabel(),
			IsMatch:    d.IsMatch(),
			Confidence: d.Confidence,
			CreatedAt:  now,
			ExpiresAt:  now.Add(TTL),
		})
	}
	m.annotations = next
}

// Active returns the annotations still within their lifetime, pruning any
// past expiry. Expired annotations are removed regardless of whether newer
// detections have arrived since.
func (m *Manager) Active() []Annotation {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	kept := m.annotations[:0]
	for _, a := range m.annotations {
		if now.Before(a.ExpiresAt) {
			kept = append(kept, a)
		}
	}
	m.annotations = kept

	out := make([]Annotation, len(kept))
	copy(out, kept)
	return out
}

// Clear drops all annotations.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.annotations = nil
}
