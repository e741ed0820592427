// Package api exposes the capture pipeline to the dashboard frontend over
// HTTP. The CRUD screens themselves live elsewhere; this surface only drives
// the live monitor and the guided capture wizard.
package api

import (
	"context"
	"encoding/base64"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-capture/camera"
	"github.com/nvr-ai/go-capture/detect"
	"github.com/nvr-ai/go-capture/enroll"
	"github.com/nvr-ai/go-capture/live"
	"github.com/nvr-ai/go-capture/logger"
	"github.com/nvr-ai/go-capture/notify"
)

// EnrollmentSubmitter is the enrollment handoff contract.
type EnrollmentSubmitter interface {
	Submit(ctx context.Context, personLabel string, artifacts []enroll.Artifact) (*enroll.Identity, error)
}

// WizardSessionFactory builds the session controller a new wizard drives.
type WizardSessionFactory func() enroll.SessionControl

// Server routes control requests to the pipeline components.
type Server struct {
	monitor    *live.Monitor
	enrollment EnrollmentSubmitter
	newSession WizardSessionFactory
	sink       notify.Sink
	log        *logrus.Entry

	mu       sync.Mutex
	wizard   *enroll.Wizard
	pending  []enroll.Artifact
	previewW int
}

// NewServer wires the control surface.
func NewServer(monitor *live.Monitor, enrollment EnrollmentSubmitter, newSession WizardSessionFactory, sink notify.Sink) *Server {
	return &Server{
		monitor:    monitor,
		enrollment: enrollment,
		newSession: newSession,
		sink:       sink,
		log:        logger.WithField("component", "api"),
		previewW:   640,
	}
}

// Handler builds the HTTP handler.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	r.GET("/api/status", s.status)
	r.POST("/api/monitor/start", s.monitorStart)
	r.POST("/api/monitor/stop", s.monitorStop)
	r.GET("/api/monitor/annotations", s.annotations)
	r.GET("/api/monitor/preview", s.preview)
	r.POST("/api/monitor/detect", s.adHocDetect)

	r.POST("/api/wizard", s.wizardStart)
	r.GET("/api/wizard", s.wizardState)
	r.POST("/api/wizard/capture", s.wizardCapture)
	r.DELETE("/api/wizard/photos/:index", s.wizardRemove)
	r.POST("/api/wizard/finish", s.wizardFinish)
	r.POST("/api/wizard/cancel", s.wizardCancel)

	return r
}

func (s *Server) status(c *gin.Context) {
	w, h, _ := s.monitor.NativeSize()
	s.mu.Lock()
	wizardActive := s.wizard != nil
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{
		"monitor": gin.H{
			"running":       s.monitor.Running(),
			"auth_expired":  s.monitor.AuthExpired(),
			"native_width":  w,
			"native_height": h,
		},
		"metrics":       s.monitor.Metrics(),
		"wizard_active": wizardActive,
	})
}

func (s *Server) monitorStart(c *gin.Context) {
	if err := s.monitor.Start(); err != nil {
		s.respondCameraError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"running": true})
}

func (s *Server) monitorStop(c *gin.Context) {
	s.monitor.Stop()
	c.JSON(http.StatusOK, gin.H{"running": false})
}

type annotationDTO struct {
	X         float32   `json:"x"`
	Y         float32   `json:"y"`
	Width     float32   `json:"width"`
	Height    float32   `json:"height"`
	Label     string    `json:"label"`
	IsMatch   bool      `json:"is_match"`
	ExpiresAt time.Time `json:"expires_at"`
}

// annotations returns the live overlay set mapped to the viewport reported by
// the caller. A zero-sized viewport yields an empty list; the frontend skips
// rendering until layout settles.
func (s *Server) annotations(c *gin.Context) {
	width, _ := strconv.Atoi(c.DefaultQuery("width", "0"))
	height, _ := strconv.Atoi(c.DefaultQuery("height", "0"))
	s.monitor.SetViewport(width, height)

	active := s.monitor.Annotations()
	out := make([]annotationDTO, 0, len(active))
	for _, a := range active {
		out = append(out, annotationDTO{
			X: a.Rect.X, Y: a.Rect.Y, Width: a.Rect.W, Height: a.Rect.H,
			Label: a.Label, IsMatch: a.IsMatch, ExpiresAt: a.ExpiresAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"annotations": out})
}

func (s *Server) preview(c *gin.Context) {
	width, _ := strconv.Atoi(c.DefaultQuery("width", strconv.Itoa(s.previewW)))
	frame, err := s.monitor.PreviewJPEG(width)
	if err != nil {
		s.respondCameraError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", frame)
}

func (s *Server) adHocDetect(c *gin.Context) {
	result, snapshot, err := s.monitor.Snapshot(c.Request.Context())
	if err != nil {
		if errors.Is(err, detect.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}
		s.respondCameraError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":      len(result.Detections),
		"detections": result.Detections,
		"snapshot":   base64.StdEncoding.EncodeToString(snapshot),
	})
}

type wizardStartRequest struct {
	PersonLabel string `json:"person_label" binding:"required"`
}

func (s *Server) wizardStart(c *gin.Context) {
	var req wizardStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "person_label is required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wizard != nil {
		s.wizard.Cancel()
	}
	w, err := enroll.NewWizard(s.newSession())
	if err != nil {
		s.respondCameraError(c, err)
		return
	}
	s.wizard = w
	s.pending = nil
	c.JSON(http.StatusCreated, s.wizardSnapshotLocked(req.PersonLabel))
}

func (s *Server) wizardState(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wizard == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no wizard in progress"})
		return
	}
	c.JSON(http.StatusOK, s.wizardSnapshotLocked(""))
}

func (s *Server) wizardSnapshotLocked(personLabel string) gin.H {
	step := s.wizard.CurrentStep()
	out := gin.H{
		"phase":       s.wizard.Phase().String(),
		"step_index":  s.wizard.CurrentStepIndex(),
		"pose":        step.Pose,
		"instruction": step.Instruction,
		"captured":    len(s.wizard.Artifacts()),
		"required":    enroll.RequiredPhotos,
	}
	if personLabel != "" {
		out["person_label"] = personLabel
	}
	return out
}

func (s *Server) wizardCapture(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wizard == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no wizard in progress"})
		return
	}
	if err := s.wizard.Capture(); err != nil {
		s.respondWizardError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.wizardSnapshotLocked(""))
}

func (s *Server) wizardRemove(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo index"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wizard == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no wizard in progress"})
		return
	}
	if err := s.wizard.Remove(index); err != nil {
		s.respondWizardError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.wizardSnapshotLocked(""))
}

type wizardFinishRequest struct {
	PersonLabel string `json:"person_label" binding:"required"`
}

// wizardFinish hands the artifact set to the enrollment collaborator. On a
// failed submission the artifacts are retained so the frontend can return the
// user to the naming step and retry instead of silently losing the photos.
func (s *Server) wizardFinish(c *gin.Context) {
	var req wizardFinishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "person_label is required"})
		return
	}

	s.mu.Lock()
	artifacts := s.pending
	if artifacts == nil {
		if s.wizard == nil {
			s.mu.Unlock()
			c.JSON(http.StatusNotFound, gin.H{"error": "no wizard in progress"})
			return
		}
		var err error
		artifacts, err = s.wizard.Finish()
		if err != nil {
			s.mu.Unlock()
			s.respondWizardError(c, err)
			return
		}
		s.pending = artifacts
	}
	s.mu.Unlock()

	identity, err := s.enrollment.Submit(c.Request.Context(), req.PersonLabel, artifacts)
	if err != nil {
		s.log.WithError(err).Error("enrollment submission failed")
		s.sink.NotifyError("Enrollment failed, your photos are kept - please try again")
		c.JSON(http.StatusBadGateway, gin.H{"error": "enrollment submission failed", "retained": true})
		return
	}

	s.mu.Lock()
	s.pending = nil
	s.wizard = nil
	s.mu.Unlock()

	s.sink.NotifySuccess("Enrollment submitted for " + req.PersonLabel)
	c.JSON(http.StatusOK, gin.H{"identity": identity})
}

func (s *Server) wizardCancel(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wizard != nil {
		s.wizard.Cancel()
		s.wizard = nil
	}
	s.pending = nil
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func (s *Server) respondWizardError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, enroll.ErrInvalidPhase):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, enroll.ErrIndexOutOfRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, camera.ErrNotReady):
		// Silent skip tier: the stream had no frame this instant.
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stream not ready", "retryable": true})
	default:
		s.respondCameraError(c, err)
	}
}

// respondCameraError maps acquisition failures to their retry semantics:
// permission problems invite a retry prompt, a missing device is terminal.
func (s *Server) respondCameraError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, camera.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "camera permission denied", "retryable": true})
	case errors.Is(err, camera.ErrDeviceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "camera not found", "retryable": false})
	case errors.Is(err, camera.ErrNotReady):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stream not ready", "retryable": true})
	default:
		s.log.WithError(err).Error("camera operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "camera acquisition failed", "retryable": true})
	}
}
