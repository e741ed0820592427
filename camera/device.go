package camera

import (
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Device abstracts one platform capture handle. The production implementation
// wraps a gocv.VideoCapture; tests substitute synthetic frame sources.
type Device interface {
	// Read grabs and decodes the next frame into dst, returning false when the
	// device produced nothing.
	Read(dst *gocv.Mat) bool
	// Set applies a capture property, such as the ideal frame size.
	Set(prop gocv.VideoCaptureProperties, value float64)
	// Close releases the underlying device handle.
	Close() error
}

// DeviceOpener opens a capture device by index.
type DeviceOpener func(deviceID int) (Device, error)

// Constraints describe the fixed acquisition policy: a single user-facing
// video device at an ideal 1280x720, no audio track.
type Constraints struct {
	DeviceID    int
	IdealWidth  int
	IdealHeight int
}

// UserFacing returns the policy constraints for the given device index.
func UserFacing(deviceID int) Constraints {
	return Constraints{DeviceID: deviceID, IdealWidth: 1280, IdealHeight: 720}
}

type gocvDevice struct {
	vc *gocv.VideoCapture
}

func (d *gocvDevice) Read(dst *gocv.Mat) bool                        { return d.vc.Read(dst) }
func (d *gocvDevice) Set(prop gocv.VideoCaptureProperties, v float64) { d.vc.Set(prop, v) }
func (d *gocvDevice) Close() error                                   { return d.vc.Close() }

// OpenGoCVDevice is the default DeviceOpener backed by gocv.
func OpenGoCVDevice(deviceID int) (Device, error) {
	vc, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, classifyOpenError(err, deviceID)
	}
	return &gocvDevice{vc: vc}, nil
}

// classifyOpenError maps platform open failures onto the session error kinds.
// OpenCV reports both conditions as opaque strings, so matching is by message.
func classifyOpenError(err error, deviceID int) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission") || strings.Contains(msg, "access denied"):
		return errors.Wrapf(ErrPermissionDenied, "device %d", deviceID)
	case strings.Contains(msg, "not found") || strings.Contains(msg, "index") || strings.Contains(msg, "no such"):
		return errors.Wrapf(ErrDeviceNotFound, "device %d", deviceID)
	default:
		return errors.Wrapf(ErrAcquisitionFailed, "device %d: %v", deviceID, err)
	}
}
