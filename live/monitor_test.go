package live

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-capture/camera"
	"github.com/nvr-ai/go-capture/detect"
	"github.com/nvr-ai/go-capture/notify"
	"github.com/nvr-ai/go-capture/overlay"
)

type fakeDevice struct {
	frame  gocv.Mat
	closed int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		frame: gocv.NewMatWithSizeFromScalar(gocv.NewScalar(90, 90, 90, 0), 720, 1280, gocv.MatTypeCV8UC3),
	}
}

func (d *fakeDevice) Read(dst *gocv.Mat) bool {
	if d.closed > 0 {
		return false
	}
	d.frame.CopyTo(dst)
	return true
}

func (d *fakeDevice) Set(gocv.VideoCaptureProperties, float64) {}

func (d *fakeDevice) Close() error {
	d.closed++
	return nil
}

type fakeSubmitter struct {
	result *detect.Result
	err    error
	calls  int
}

func (f *fakeSubmitter) Detect(context.Context, []byte, string) (*detect.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestMonitor(sub detect.Submitter) (*Monitor, *fakeDevice, *overlay.Manager) {
	dev := newFakeDevice()
	manager := camera.NewManagerWithOpener(func(int) (camera.Device, error) {
		return dev, nil
	})
	overlays := overlay.NewManager()
	overlays.SetViewport(640, 360)
	m := NewMonitor(manager, sub, overlays, notify.Discard{}, nil, 0, "cam-test")
	return m, dev, overlays
}

func TestStartStopReleasesCamera(t *testing.T) {
	m, dev, overlays := newTestMonitor(&fakeSubmitter{result: &detect.Result{}})
	defer dev.frame.Close()

	require.NoError(t, m.Start())
	assert.True(t, m.Running())
	assert.False(t, m.AuthExpired())

	w, h, ok := m.NativeSize()
	require.True(t, ok)
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)

	overlays.OnDetections([]detect.Detection{{BBox: detect.BBox{X: 1, Y: 1, W: 10, H: 10}}}, 1280, 720)
	require.NotEmpty(t, m.Annotations())

	m.Stop()
	assert.False(t, m.Running())
	assert.Equal(t, 1, dev.closed)
	// Overlays never outlive their session.
	assert.Empty(t, m.Annotations())

	// Stop is idempotent, including on a monitor that never started.
	m.Stop()
	assert.Equal(t, 1, dev.closed)
}

func TestStartTearsDownPriorSession(t *testing.T) {
	var devices []*fakeDevice
	manager := camera.NewManagerWithOpener(func(int) (camera.Device, error) {
		d := newFakeDevice()
		devices = append(devices, d)
		return d, nil
	})
	m := NewMonitor(manager, &fakeSubmitter{result: &detect.Result{}}, overlay.NewManager(), notify.Discard{}, nil, 0, "cam-test")
	defer func() {
		m.Stop()
		for _, d := range devices {
			d.frame.Close()
		}
	}()

	require.NoError(t, m.Start())
	require.NoError(t, m.Start())

	require.Len(t, devices, 2)
	assert.Equal(t, 1, devices[0].closed)
	assert.Equal(t, 0, devices[1].closed)
	assert.True(t, m.Running())
}

func TestSnapshotWithoutSession(t *testing.T) {
	m, dev, _ := newTestMonitor(&fakeSubmitter{})
	defer dev.frame.Close()

	_, _, err := m.Snapshot(context.Background())
	assert.ErrorIs(t, err, camera.ErrNotReady)
}

func TestSnapshotReturnsResultAndFrame(t *testing.T) {
	sub := &fakeSubmitter{result: &detect.Result{
		Count:      1,
		Detections: []detect.Detection{{BBox: detect.BBox{X: 5, Y: 5, W: 20, H: 20}, Confidence: 0.8}},
	}}
	m, dev, _ := newTestMonitor(sub)
	defer dev.frame.Close()

	require.NoError(t, m.Start())
	defer m.Stop()

	result, frame, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Detections, 1)
	require.Greater(t, len(frame), 2)
	assert.Equal(t, []byte{0xFF, 0xD8}, frame[:2])
	assert.GreaterOrEqual(t, sub.calls, 1)
}

func TestSnapshotDetectionFailureStillReturnsFrame(t *testing.T) {
	sub := &fakeSubmitter{err: detect.ErrRequestFailed}
	m, dev, _ := newTestMonitor(sub)
	defer dev.frame.Close()

	require.NoError(t, m.Start())
	defer m.Stop()

	_, frame, err := m.Snapshot(context.Background())
	assert.ErrorIs(t, err, detect.ErrRequestFailed)
	assert.NotEmpty(t, frame)
}

func TestPreviewWithoutSession(t *testing.T) {
	m, dev, _ := newTestMonitor(&fakeSubmitter{})
	defer dev.frame.Close()

	_, err := m.PreviewJPEG(640)
	assert.ErrorIs(t, err, camera.ErrNotReady)
}
