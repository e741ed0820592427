package camera

import "sync"

// Controller owns at most one session for a single consumer and enforces the
// teardown-before-start discipline. It satisfies the wizard's session
// contract: Sample produces enrollment-quality stills.
type Controller struct {
	manager     *Manager
	constraints Constraints

	mu      sync.Mutex
	session *Session
}

// NewController returns a controller acquiring sessions with the given
// constraints through the manager.
func NewController(manager *Manager, constraints Constraints) *Controller {
	return &Controller{manager: manager, constraints: constraints}
}

// Start acquires a fresh session, stopping any prior one first.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.manager.Stop(c.session)
		c.session = nil
	}
	s, err := c.manager.Start(c.constraints)
	if err != nil {
		return err
	}
	c.session = s
	return nil
}

// Stop releases the held session, if any. Idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manager.Stop(c.session)
	c.session = nil
}

// Active reports whether a live session is held.
func (c *Controller) Active() bool {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	return s != nil && s.Active()
}

// Sample captures one enrollment-quality still from the held session.
func (c *Controller) Sample() ([]byte, error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return nil, ErrNotReady
	}
	return s.Sample(SampleOptions{Quality: QualityEnrollment})
}

// PreviewJPEG captures a mirrored preview frame from the held session.
func (c *Controller) PreviewJPEG(maxWidth int) ([]byte, error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return nil, ErrNotReady
	}
	return s.PreviewJPEG(maxWidth)
}
