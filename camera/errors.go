package camera

import "errors"

var (
	// ErrPermissionDenied indicates camera access was refused. Retryable after
	// the user grants access.
	ErrPermissionDenied = errors.New("camera: permission denied")
	// ErrDeviceNotFound indicates no capture device exists at the requested
	// index. Terminal for the session; there is nothing to retry against.
	ErrDeviceNotFound = errors.New("camera: device not found")
	// ErrAcquisitionFailed is the generic acquisition fallback. Retryable.
	ErrAcquisitionFailed = errors.New("camera: acquisition failed")
	// ErrNotReady indicates the stream has not produced a decodable frame yet.
	// Callers treat this as a silent skip, not a user-facing failure.
	ErrNotReady = errors.New("camera: stream not ready")
)
