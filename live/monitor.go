// Package live composes the continuous surveillance path: capture session,
// detection poller, and overlay lifecycle.
package live

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-capture/camera"
	"github.com/nvr-ai/go-capture/detect"
	"github.com/nvr-ai/go-capture/logger"
	"github.com/nvr-ai/go-capture/metrics"
	"github.com/nvr-ai/go-capture/notify"
	"github.com/nvr-ai/go-capture/overlay"
)

// Monitor owns one capture session and its detection loop. All exit routes
// (explicit stop, auth expiry, process shutdown) release the camera through
// Stop; leaving the device held on any path is a defect.
type Monitor struct {
	manager  *camera.Manager
	client   detect.Submitter
	overlays *overlay.Manager
	sink     notify.Sink
	stats    *metrics.PipelineMetrics
	deviceID int
	cameraID string
	log      *logrus.Entry

	mu          sync.Mutex
	session     *camera.Session
	poller      *detect.Poller
	authExpired bool
}

// NewMonitor wires the surveillance components. Nothing is acquired until
// Start.
func NewMonitor(manager *camera.Manager, client detect.Submitter, overlays *overlay.Manager, sink notify.Sink, stats *metrics.PipelineMetrics, deviceID int, cameraID string) *Monitor {
	if stats == nil {
		stats = metrics.NewPipelineMetrics()
	}
	return &Monitor{
		manager:  manager,
		client:   client,
		overlays: overlays,
		sink:     sink,
		stats:    stats,
		deviceID: deviceID,
		cameraID: cameraID,
		log:      logger.WithField("component", "monitor"),
	}
}

// Start acquires the camera and begins polling. Any prior session held by
// this monitor is stopped first.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	m.authExpired = false

	session, err := m.manager.Start(camera.UserFacing(m.deviceID))
	if err != nil {
		return err
	}
	m.session = session

	m.poller = detect.NewPoller(session, m.client, m.cameraID, m.stats, detect.Callbacks{
		OnResult: func(detections []detect.Detection) {
			w, h, ok := session.NativeSize()
			if !ok {
				return
			}
			m.overlays.OnDetections(detections, w, h)
		},
		OnAuthExpired: func() {
			m.mu.Lock()
			m.authExpired = true
			m.mu.Unlock()
			m.sink.NotifyError("Session expired, please sign in again")
		},
	})
	m.poller.Start()
	return nil
}

// Stop halts polling and releases the camera. Idempotent; safe on a monitor
// that never started.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Monitor) stopLocked() {
	if m.poller != nil {
		m.poller.Stop()
		m.poller = nil
	}
	if m.session != nil {
		m.manager.Stop(m.session)
		m.session = nil
	}
	m.overlays.Clear()
}

// Running reports whether a session is held and the poll loop is scheduled.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil && m.poller != nil && m.poller.Running()
}

// AuthExpired reports whether the loop stopped because the credential was
// rejected; the UI should prompt for re-authentication.
func (m *Monitor) AuthExpired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authExpired
}

// SetViewport forwards the rendered preview size to the overlay mapper.
func (m *Monitor) SetViewport(width, height int) {
	m.overlays.SetViewport(width, height)
}

// Annotations returns the currently live overlay annotations.
func (m *Monitor) Annotations() []overlay.Annotation {
	return m.overlays.Active()
}

// NativeSize returns the active session's capture resolution.
func (m *Monitor) NativeSize() (width, height int, ok bool) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil {
		return 0, 0, false
	}
	return session.NativeSize()
}

// PreviewJPEG returns a mirrored preview frame from the live session.
func (m *Monitor) PreviewJPEG(maxWidth int) ([]byte, error) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil {
		return nil, camera.ErrNotReady
	}
	return session.PreviewJPEG(maxWidth)
}

// Snapshot runs one ad-hoc detection outside the polling cadence: it captures
// a mirrored snapshot at detection quality, submits it, and returns both the
// result and the snapshot the result's boxes refer to. Because the submitted
// image is the displayed image, its boxes need no mirror compensation.
func (m *Monitor) Snapshot(ctx context.Context) (*detect.Result, []byte, error) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil {
		return nil, nil, camera.ErrNotReady
	}

	frame, err := session.Sample(camera.SampleOptions{Quality: camera.QualityDetection, Mirror: true})
	if err != nil {
		return nil, nil, err
	}
	result, err := m.client.Detect(ctx, frame, m.cameraID)
	if err != nil {
		return nil, frame, err
	}
	return result, frame, nil
}

// Metrics exposes the pipeline counters.
func (m *Monitor) Metrics() map[string]float64 {
	return m.stats.CollectMetrics()
}
