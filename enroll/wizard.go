package enroll

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-capture/logger"
)

// Phase enumerates the wizard's finite states.
type Phase int

const (
	// PhasePosing collects the photograph for the current step.
	PhasePosing Phase = iota
	// PhaseReview holds all required photographs for inspection; the camera
	// is released while reviewing.
	PhaseReview
	// PhaseCompleted is terminal: Finish handed the artifacts to the caller.
	PhaseCompleted
	// PhaseCancelled is terminal: the wizard was abandoned.
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhasePosing:
		return "posing"
	case PhaseReview:
		return "review"
	case PhaseCompleted:
		return "completed"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidPhase is returned for operations outside their valid phase.
	ErrInvalidPhase = errors.New("enroll: operation not valid in current phase")
	// ErrSessionInactive is returned when Capture is attempted without an
	// active capture session.
	ErrSessionInactive = errors.New("enroll: capture session not active")
	// ErrIndexOutOfRange is returned by Remove for an invalid artifact index.
	ErrIndexOutOfRange = errors.New("enroll: artifact index out of range")
)

// SessionControl abstracts the capture session lifecycle the wizard drives.
// Sample returns one encoded reference still at enrollment quality.
type SessionControl interface {
	Start() error
	Stop()
	Active() bool
	Sample() ([]byte, error)
}

// Artifact is one captured reference photograph, ordered by pose.
type Artifact struct {
	Pose       string
	Data       []byte
	CapturedAt time.Time
}

// Wizard sequences the fixed pose list and collects exactly RequiredPhotos
// ordered photographs. The current step index is always derived from the
// artifact count, never stored, so the two cannot desynchronize.
type Wizard struct {
	mu        sync.Mutex
	steps     []Step
	session   SessionControl
	log       *logrus.Entry
	now       func() time.Time
	phase     Phase
	artifacts []Artifact
}

// NewWizard opens a capture session and returns a wizard in the first posing
// step. The session error kinds propagate unchanged so the caller can offer
// the right retry affordance.
func NewWizard(session SessionControl) (*Wizard, error) {
	if err := session.Start(); err != nil {
		return nil, err
	}
	return &Wizard{
		steps:   CaptureSteps(),
		session: session,
		log:     logger.WithField("component", "wizard"),
		now:     time.Now,
		phase:   PhasePosing,
	}, nil
}

// Phase returns the current wizard phase.
func (w *Wizard) Phase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

// CurrentStepIndex is min(len(artifacts), RequiredPhotos-1), by construction.
func (w *Wizard) CurrentStepIndex() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stepIndexLocked()
}

func (w *Wizard) stepIndexLocked() int {
	if n := len(w.artifacts); n < len(w.steps) {
		return n
	}
	return len(w.steps) - 1
}

// CurrentStep exposes the active step's pose and instruction for UI guidance.
func (w *Wizard) CurrentStep() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.steps[w.stepIndexLocked()]
}

// Artifacts returns a copy of the captured photographs in capture order.
func (w *Wizard) Artifacts() []Artifact {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Artifact, len(w.artifacts))
	copy(out, w.artifacts)
	return out
}

// Capture takes the photograph for the current posing step and advances.
// Reaching the full photo count releases the camera and moves to review.
func (w *Wizard) Capture() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.phase != PhasePosing {
		return ErrInvalidPhase
	}
	if !w.session.Active() {
		return ErrSessionInactive
	}

	step := w.steps[w.stepIndexLocked()]
	data, err := w.session.Sample()
	if err != nil {
		return err
	}
	w.artifacts = append(w.artifacts, Artifact{
		Pose:       step.Pose,
		Data:       data,
		CapturedAt: w.now(),
	})
	w.log.WithFields(logrus.Fields{"pose": step.Pose, "captured": len(w.artifacts)}).Info("photo captured")

	if len(w.artifacts) == RequiredPhotos {
		// No need to keep the camera on during review.
		w.session.Stop()
		w.phase = PhaseReview
	}
	return nil
}

// Remove discards one captured photograph during review and returns to
// posing. Dropping below the required count re-acquires the capture session
// if it is no longer active.
func (w *Wizard) Remove(index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.phase != PhaseReview {
		return ErrInvalidPhase
	}
	if index < 0 || index >= len(w.artifacts) {
		return ErrIndexOutOfRange
	}

	w.artifacts = append(w.artifacts[:index], w.artifacts[index+1:]...)
	w.phase = PhasePosing
	w.log.WithField("remaining", len(w.artifacts)).Info("photo removed")

	if !w.session.Active() {
		if err := w.session.Start(); err != nil {
			return err
		}
	}
	return nil
}

// Finish yields the ordered artifact list for the enrollment handoff. It is
// only valid from review and performs no upload itself.
func (w *Wizard) Finish() ([]Artifact, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.phase != PhaseReview {
		return nil, ErrInvalidPhase
	}
	w.phase = PhaseCompleted
	out := make([]Artifact, len(w.artifacts))
	copy(out, w.artifacts)
	return out, nil
}

// Cancel abandons the wizard from any non-terminal state, releasing the
// camera if held.
func (w *Wizard) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.phase == PhaseCompleted || w.phase == PhaseCancelled {
		return
	}
	w.session.Stop()
	w.phase = PhaseCancelled
	w.log.Info("wizard cancelled")
}
