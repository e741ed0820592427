package camera

import (
	"bytes"
	"image/jpeg"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// JPEG quality tiers, fixed by policy. Samples feed a remote model, so both
// sit in the visually lossless band.
const (
	// QualityEnrollment is used for wizard reference photographs.
	QualityEnrollment = 92
	// QualityDetection is used for ad-hoc detection snapshots.
	QualityDetection = 95
)

// SampleOptions control one still-image capture.
type SampleOptions struct {
	// Quality is the JPEG quality (1-100).
	Quality int
	// Mirror flips the frame horizontally so the encoded still matches the
	// mirrored on-screen preview. Background detection samples leave this off;
	// the detector operates on the un-mirrored native frame and the overlay
	// mapper compensates.
	Mirror bool
}

// Sample captures one JPEG-encoded still at the session's native resolution.
// Returns ErrNotReady if the stream is not (or no longer) producing frames.
func (s *Session) Sample(opts SampleOptions) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || !s.ready {
		return nil, ErrNotReady
	}
	if ok := s.dev.Read(&s.frame); !ok || s.frame.Empty() {
		return nil, ErrNotReady
	}

	mat := s.frame
	if opts.Mirror {
		mirrored := gocv.NewMat()
		defer mirrored.Close()
		gocv.Flip(s.frame, &mirrored, 1)
		mat = mirrored
	}

	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = QualityEnrollment
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, errors.Wrap(err, "camera: jpeg encode")
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// PreviewJPEG captures a mirrored, downscaled preview frame for display.
// maxWidth bounds the output width; height follows the native aspect ratio.
func (s *Session) PreviewJPEG(maxWidth int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || !s.ready {
		return nil, ErrNotReady
	}
	if ok := s.dev.Read(&s.frame); !ok || s.frame.Empty() {
		return nil, ErrNotReady
	}

	mirrored := gocv.NewMat()
	defer mirrored.Close()
	gocv.Flip(s.frame, &mirrored, 1)

	img, err := mirrored.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "camera: frame decode")
	}
	if maxWidth > 0 && maxWidth < img.Bounds().Dx() {
		img = resize.Resize(uint(maxWidth), 0, img, resize.Lanczos3)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, errors.Wrap(err, "camera: preview encode")
	}
	return out.Bytes(), nil
}
