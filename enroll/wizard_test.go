package enroll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkg/errors"
)

// fakeSession records lifecycle transitions and hands out distinguishable
// sample payloads.
type fakeSession struct {
	active    bool
	starts    int
	stops     int
	samples   int
	startErr  error
	sampleErr error
}

func (s *fakeSession) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	s.starts++
	s.active = true
	return nil
}

func (s *fakeSession) Stop() {
	s.stops++
	s.active = false
}

func (s *fakeSession) Active() bool { return s.active }

func (s *fakeSession) Sample() ([]byte, error) {
	if s.sampleErr != nil {
		return nil, s.sampleErr
	}
	s.samples++
	return []byte{byte(s.samples)}, nil
}

func newReviewWizard(t *testing.T) (*Wizard, *fakeSession) {
	t.Helper()
	session := &fakeSession{}
	w, err := NewWizard(session)
	require.NoError(t, err)
	for i := 0; i < RequiredPhotos; i++ {
		require.NoError(t, w.Capture())
	}
	require.Equal(t, PhaseReview, w.Phase())
	return w, session
}

func TestNewWizardAcquiresSession(t *testing.T) {
	session := &fakeSession{}
	w, err := NewWizard(session)
	require.NoError(t, err)

	assert.Equal(t, PhasePosing, w.Phase())
	assert.Equal(t, 1, session.starts)
	assert.True(t, session.active)
	assert.Equal(t, 0, w.CurrentStepIndex())
	assert.Equal(t, "forward", w.CurrentStep().Pose)
}

func TestNewWizardPropagatesStartError(t *testing.T) {
	boom := errors.New("permission denied")
	_, err := NewWizard(&fakeSession{startErr: boom})
	assert.ErrorIs(t, err, boom)
}

// TestStepIndexDerivedFromArtifactCount: the index is never stored, so it
// tracks the artifact count exactly through capture and removal.
func TestStepIndexDerivedFromArtifactCount(t *testing.T) {
	session := &fakeSession{}
	w, err := NewWizard(session)
	require.NoError(t, err)

	require.NoError(t, w.Capture())
	assert.Equal(t, 1, w.CurrentStepIndex())
	assert.Equal(t, "left", w.CurrentStep().Pose)

	require.NoError(t, w.Capture())
	assert.Equal(t, 2, w.CurrentStepIndex())
	assert.Equal(t, "right", w.CurrentStep().Pose)

	// The third capture fills the set; the index clamps to the last step.
	require.NoError(t, w.Capture())
	assert.Equal(t, RequiredPhotos-1, w.CurrentStepIndex())
}

func TestCaptureReachesReviewAndReleasesCamera(t *testing.T) {
	w, session := newReviewWizard(t)

	assert.Equal(t, PhaseReview, w.Phase())
	assert.False(t, session.active)
	assert.Equal(t, 1, session.stops)

	artifacts := w.Artifacts()
	require.Len(t, artifacts, RequiredPhotos)
	assert.Equal(t, "forward", artifacts[0].Pose)
	assert.Equal(t, "left", artifacts[1].Pose)
	assert.Equal(t, "right", artifacts[2].Pose)
}

func TestCaptureRejectedOutsidePosing(t *testing.T) {
	w, _ := newReviewWizard(t)
	assert.ErrorIs(t, w.Capture(), ErrInvalidPhase)
}

func TestCaptureRequiresActiveSession(t *testing.T) {
	session := &fakeSession{}
	w, err := NewWizard(session)
	require.NoError(t, err)

	session.active = false
	assert.ErrorIs(t, w.Capture(), ErrSessionInactive)
}

func TestCaptureSampleFailureDoesNotAdvance(t *testing.T) {
	session := &fakeSession{}
	w, err := NewWizard(session)
	require.NoError(t, err)

	session.sampleErr = errors.New("not ready")
	assert.Error(t, w.Capture())
	assert.Equal(t, 0, w.CurrentStepIndex())
	assert.Empty(t, w.Artifacts())
	assert.Equal(t, PhasePosing, w.Phase())
}

// TestRemoveReturnsToPosingAndReacquires: dropping a photo during review goes
// back to posing at the derived index and turns the camera back on.
func TestRemoveReturnsToPosingAndReacquires(t *testing.T) {
	w, session := newReviewWizard(t)

	require.NoError(t, w.Remove(1))

	assert.Equal(t, PhasePosing, w.Phase())
	assert.Equal(t, 2, w.CurrentStepIndex())
	assert.Equal(t, 2, session.starts)
	assert.True(t, session.active)

	// The remaining artifacts keep capture order.
	artifacts := w.Artifacts()
	require.Len(t, artifacts, 2)
	assert.Equal(t, "forward", artifacts[0].Pose)
	assert.Equal(t, "right", artifacts[1].Pose)
}

func TestRemoveValidation(t *testing.T) {
	session := &fakeSession{}
	w, err := NewWizard(session)
	require.NoError(t, err)

	// Not in review yet.
	assert.ErrorIs(t, w.Remove(0), ErrInvalidPhase)

	w, _ = newReviewWizard(t)
	assert.ErrorIs(t, w.Remove(-1), ErrIndexOutOfRange)
	assert.ErrorIs(t, w.Remove(RequiredPhotos), ErrIndexOutOfRange)
}

func TestFinishOnlyFromReview(t *testing.T) {
	session := &fakeSession{}
	w, err := NewWizard(session)
	require.NoError(t, err)

	_, err = w.Finish()
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

func TestFinishYieldsOrderedArtifacts(t *testing.T) {
	w, _ := newReviewWizard(t)

	artifacts, err := w.Finish()
	require.NoError(t, err)
	require.Len(t, artifacts, RequiredPhotos)
	assert.Equal(t, "forward", artifacts[0].Pose)
	assert.Equal(t, "left", artifacts[1].Pose)
	assert.Equal(t, "right", artifacts[2].Pose)
	assert.Equal(t, PhaseCompleted, w.Phase())

	// Terminal: nothing else is valid.
	assert.ErrorIs(t, w.Capture(), ErrInvalidPhase)
	_, err = w.Finish()
	assert.ErrorIs(t, err, ErrInvalidPhase)
}

// TestCancelReleasesCameraFromAnyNonTerminalState covers the teardown
// invariant: however the wizard exits, the camera ends up released.
func TestCancelReleasesCameraFromAnyNonTerminalState(t *testing.T) {
	t.Run("while posing", func(t *testing.T) {
		session := &fakeSession{}
		w, err := NewWizard(session)
		require.NoError(t, err)

		w.Cancel()
		assert.Equal(t, PhaseCancelled, w.Phase())
		assert.False(t, session.active)
	})

	t.Run("while reviewing", func(t *testing.T) {
		w, session := newReviewWizard(t)
		stopsBefore := session.stops

		w.Cancel()
		assert.Equal(t, PhaseCancelled, w.Phase())
		assert.Equal(t, stopsBefore+1, session.stops)
	})

	t.Run("after completion is a no-op", func(t *testing.T) {
		w, session := newReviewWizard(t)
		_, err := w.Finish()
		require.NoError(t, err)
		stopsBefore := session.stops

		w.Cancel()
		assert.Equal(t, PhaseCompleted, w.Phase())
		assert.Equal(t, stopsBefore, session.stops)
	})
}

func TestCaptureStepsAreFixed(t *testing.T) {
	steps := CaptureSteps()
	require.Len(t, steps, RequiredPhotos)
	for i, step := range steps {
		assert.Equal(t, i, step.Index)
		assert.NotEmpty(t, step.Instruction)
	}
}
