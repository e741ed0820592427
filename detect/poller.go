package detect

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-capture/camera"
	"github.com/nvr-ai/go-capture/logger"
	"github.com/nvr-ai/go-capture/metrics"
)

// PollInterval is the fixed cadence between tick starts.
const PollInterval = 3000 * time.Millisecond

// State names the poller's single-slot request state. The system favors
// freshness over completeness: a tick arriving while a request is in flight
// is skipped outright, never queued or coalesced.
type State int

const (
	// Idle means no detection request is outstanding.
	Idle State = iota
	// RequestInFlight means exactly one request is outstanding.
	RequestInFlight
)

func (s State) String() string {
	if s == RequestInFlight {
		return "in_flight"
	}
	return "idle"
}

// FrameSource supplies one encoded still per detection request.
type FrameSource interface {
	Sample(opts camera.SampleOptions) ([]byte, error)
}

// Submitter is the detection collaborator contract.
type Submitter interface {
	Detect(ctx context.Context, image []byte, cameraID string) (*Result, error)
}

// Callbacks receive poller outcomes. OnResult gets the full detection list on
// every successful round trip; an empty list is the signal to clear overlays.
// OnAuthExpired fires once when the credential is rejected, after the loop
// has stopped itself.
type Callbacks struct {
	OnResult      func(detections []Detection)
	OnAuthExpired func()
}

// Poller runs the recurring sample-and-submit loop for one capture session.
type Poller struct {
	frames    FrameSource
	client    Submitter
	cameraID  string
	callbacks Callbacks
	stats     *metrics.PipelineMetrics
	log       *logrus.Entry

	interval       time.Duration
	requestTimeout time.Duration

	mu      sync.Mutex
	state   State
	running bool
	gen     int
	stop    chan struct{}
}

// NewPoller wires a poller to a frame source and detection client. It does
// not start polling.
func NewPoller(frames FrameSource, client Submitter, cameraID string, stats *metrics.PipelineMetrics, callbacks Callbacks) *Poller {
	if stats == nil {
		stats = metrics.NewPipelineMetrics()
	}
	return &Poller{
		frames:         frames,
		client:         client,
		cameraID:       cameraID,
		callbacks:      callbacks,
		stats:          stats,
		log:            logger.WithField("component", "poller"),
		interval:       PollInterval,
		requestTimeout: 10 * time.Second,
	}
}

// Start schedules the recurring tick. Calling Start on a running poller is a
// no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.stop = make(chan struct{})
	go p.loop(p.stop)
	p.log.WithField("interval", p.interval).Info("polling started")
}

// Stop cancels future ticks. It does not wait for an in-flight request; a
// request already in flight settles on its own and its result is discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	if !p.running {
		return
	}
	p.running = false
	p.gen++
	close(p.stop)
	p.log.Info("polling stopped")
}

// Running reports whether the tick schedule is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// State returns the current request-slot state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

// tick claims the single request slot or skips. The inFlight state is the
// sole mutual-exclusion mechanism; only one logical timer drives requests.
func (p *Poller) tick() {
	p.mu.Lock()
	p.stats.RecordTick()
	if !p.running {
		p.mu.Unlock()
		return
	}
	if p.state == RequestInFlight {
		p.stats.RecordSkippedBusy()
		p.mu.Unlock()
		p.log.Debug("tick skipped, request in flight")
		return
	}
	p.state = RequestInFlight
	gen := p.gen
	p.mu.Unlock()

	go p.request(gen)
}

func (p *Poller) request(gen int) {
	defer p.settle()

	// Background detection uses the un-mirrored native frame; the overlay
	// mapper compensates for the mirrored preview.
	frame, err := p.frames.Sample(camera.SampleOptions{Quality: camera.QualityEnrollment})
	if err != nil {
		if errors.Is(err, camera.ErrNotReady) {
			p.log.Debug("frame not ready, skipping tick")
			return
		}
		p.stats.RecordFailure()
		p.log.WithError(err).Warn("frame sampling failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.requestTimeout)
	defer cancel()

	start := time.Now()
	result, err := p.client.Detect(ctx, frame, p.cameraID)
	p.stats.RecordLatency(time.Since(start))

	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			p.handleUnauthorized(gen)
			return
		}
		// Transient by policy: log, count, leave prior overlays to expire.
		p.stats.RecordFailure()
		p.log.WithError(err).Warn("detection request failed")
		return
	}

	if p.stale(gen) {
		// Polling stopped while this request was in flight; discard.
		return
	}

	p.stats.RecordPublish(len(result.Detections))
	if p.callbacks.OnResult != nil {
		p.callbacks.OnResult(result.Detections)
	}
}

func (p *Poller) settle() {
	p.mu.Lock()
	p.state = Idle
	p.mu.Unlock()
}

func (p *Poller) stale(gen int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.running || p.gen != gen
}

func (p *Poller) handleUnauthorized(gen int) {
	p.mu.Lock()
	current := p.running && p.gen == gen
	if current {
		p.stopLocked()
	}
	p.mu.Unlock()

	if current {
		p.log.Error("credential rejected by detection service, polling stopped")
		if p.callbacks.OnAuthExpired != nil {
			p.callbacks.OnAuthExpired()
		}
	}
}
