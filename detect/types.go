package detect

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// BBox is a detection bounding box in native pixel space. On the wire it is
// the array form [x, y, width, height].
type BBox struct {
	X float32
	Y float32
	W float32
	H float32
}

// UnmarshalJSON decodes the [x, y, w, h] array form.
func (b *BBox) UnmarshalJSON(data []byte) error {
	var arr []float32
	if err := json.Unmarshal(data, &arr); err != nil {
		return errors.Wrap(err, "detect: bbox")
	}
	if len(arr) != 4 {
		return errors.Errorf("detect: bbox expects 4 elements, got %d", len(arr))
	}
	b.X, b.Y, b.W, b.H = arr[0], arr[1], arr[2], arr[3]
	return nil
}

// MarshalJSON encodes back to the array form.
func (b BBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float32{b.X, b.Y, b.W, b.H})
}

// Detection is one face reported by the detection service, read-only to this
// subsystem. Identity fields are present only when the service matched the
// face against an enrolled person.
type Detection struct {
	BBox          BBox     `json:"bbox"`
	Confidence    float32  `json:"confidence"`
	IdentityLabel string   `json:"identity_label,omitempty"`
	Similarity    *float32 `json:"similarity,omitempty"`
	Age           *int     `json:"age,omitempty"`
	Gender        string   `json:"gender,omitempty"`
}

// IsMatch reports whether the detection carries a matched identity.
func (d Detection) IsMatch() bool { return d.IdentityLabel != "" }

// DisplayLabel renders the annotation caption for this detection.
func (d Detection) DisplayLabel() string {
	if !d.IsMatch() {
		return "Unknown"
	}
	if d.Similarity != nil {
		return fmt.Sprintf("%s (%.0f%%)", d.IdentityLabel, *d.Similarity*100)
	}
	return d.IdentityLabel
}

// Result is the detection service response. An empty Detections slice is a
// valid, meaningful answer (no faces found) and is distinct from a transport
// error.
type Result struct {
	Count      int         `json:"count"`
	Detections []Detection `json:"detections"`
}
