package camera

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-capture/logger"
)

// readyTimeout bounds how long Start waits for the device to produce its
// first decodable frame before declaring the acquisition failed.
const readyTimeout = 5 * time.Second

// Manager acquires and releases capture sessions. It is the only component
// that touches the device layer directly.
type Manager struct {
	open DeviceOpener
	log  *logrus.Entry
}

// NewManager returns a Manager backed by the default gocv device opener.
func NewManager() *Manager {
	return NewManagerWithOpener(OpenGoCVDevice)
}

// NewManagerWithOpener returns a Manager using a custom opener. Tests inject
// synthetic devices through this.
func NewManagerWithOpener(open DeviceOpener) *Manager {
	return &Manager{
		open: open,
		log:  logger.WithField("component", "camera"),
	}
}

// Start acquires the device described by the constraints and blocks until the
// stream is producing frames. The returned session has its native resolution
// cached; it is never re-queried per frame.
//
// Callers own exactly one session at a time and must Stop any prior session
// before starting a new one.
func (m *Manager) Start(constraints Constraints) (*Session, error) {
	dev, err := m.open(constraints.DeviceID)
	if err != nil {
		m.log.WithError(err).WithField("device", constraints.DeviceID).Warn("device acquisition failed")
		return nil, err
	}

	dev.Set(gocv.VideoCaptureFrameWidth, float64(constraints.IdealWidth))
	dev.Set(gocv.VideoCaptureFrameHeight, float64(constraints.IdealHeight))

	s := &Session{
		id:    uuid.NewString(),
		dev:   dev,
		frame: gocv.NewMat(),
	}

	// Equivalent of waiting for "loaded metadata": the session is not usable
	// until the device has decoded at least one frame, at which point the
	// actual negotiated resolution is known.
	deadline := time.Now().Add(readyTimeout)
	for {
		if ok := dev.Read(&s.frame); ok && !s.frame.Empty() {
			s.nativeWidth = s.frame.Cols()
			s.nativeHeight = s.frame.Rows()
			break
		}
		if time.Now().After(deadline) {
			s.release()
			return nil, errors.Wrapf(ErrAcquisitionFailed, "device %d produced no frames within %s",
				constraints.DeviceID, readyTimeout)
		}
		time.Sleep(20 * time.Millisecond)
	}

	s.active = true
	s.ready = true
	m.log.WithFields(logrus.Fields{
		"session": s.id,
		"device":  constraints.DeviceID,
		"width":   s.nativeWidth,
		"height":  s.nativeHeight,
	}).Info("capture session started")
	return s, nil
}

// Stop releases the session's device. It is idempotent and safe to call on a
// nil or already-stopped session; every exit path of a consumer is expected
// to route through here.
func (m *Manager) Stop(s *Session) {
	if s == nil {
		return
	}
	if s.stop() {
		m.log.WithField("session", s.id).Info("capture session stopped")
	}
}
