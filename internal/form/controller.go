// Package form implements the "add facility" form: the facility draft, the
// reporter list with its placeholder rule, and assembly of the submission
// batch.
package form

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"facility-form-backend/internal/directory"
)

// Directory supplies the agent list and the current user's key.
type Directory interface {
	Agents(ctx context.Context) ([]directory.Agent, error)
	SelfKey() string
}

// View is a snapshot of the form for rendering.
type View struct {
	Draft           Draft     `json:"draft"`
	Reporters       Reporters `json:"reporters"`
	DirectoryLoaded bool      `json:"directoryLoaded"`
	DirectoryError  string    `json:"directoryError,omitempty"`
	Submitting      bool      `json:"submitting"`
	Location        string    `json:"location,omitempty"`
}

// Controller owns the state of one form instance. Handlers may call it from
// several goroutines; each call runs to completion before the next.
type Controller struct {
	mu        sync.Mutex
	draft     Draft
	reporters Reporters

	// agents is nil until the directory load finishes.
	agents  []directory.Agent
	loaded  bool
	loadErr error

	submitting bool
	location   string

	cancel context.CancelFunc
	done   chan struct{}
	log    *zap.Logger
}

// New creates a controller holding one placeholder reporter and starts
// loading the agent directory in the background. The controller is usable
// immediately; reporter resolution finds nothing until the load completes.
func New(ctx context.Context, dir Directory, log *zap.Logger) *Controller {
	ctx, cancel := context.WithCancel(ctx)
	c := &Controller{
		reporters: NewReporters(),
		cancel:    cancel,
		done:      make(chan struct{}),
		log:       log,
	}
	go c.loadDirectory(ctx, dir)
	return c
}

func (c *Controller) loadDirectory(ctx context.Context, dir Directory) {
	defer close(c.done)

	agents, err := dir.Agents(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.loadErr = err
		c.log.Warn("agent directory unavailable, reporters cannot be resolved", zap.Error(err))
		return
	}
	c.agents = directory.Filter(agents, dir.SelfKey())
	c.loaded = true
}

// WaitLoaded blocks until the directory load has finished or ctx is done.
func (c *Controller) WaitLoaded(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels a directory load still in flight.
func (c *Controller) Close() {
	c.cancel()
}

// View returns a copy of the current state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) viewLocked() View {
	v := View{
		Draft:           c.draft,
		Reporters:       c.reporters.Clone(),
		DirectoryLoaded: c.loaded,
		Submitting:      c.submitting,
		Location:        c.location,
	}
	if c.loadErr != nil {
		v.DirectoryError = c.loadErr.Error()
	}
	return v
}

// Agents returns the loaded directory, or nil before it has loaded.
func (c *Controller) Agents() []directory.Agent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.agents == nil {
		return nil
	}
	return append([]directory.Agent(nil), c.agents...)
}

// SetField stores the raw value typed into a facility field.
func (c *Controller) SetField(name, value string) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.draft.SetField(name, value); err != nil {
		return View{}, err
	}
	return c.viewLocked(), nil
}

// ResolveReporter handles a keystroke in reporter row i.
func (c *Controller) ResolveReporter(i int, value string) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.reporters.Resolve(i, value, c.agents); err != nil {
		return View{}, err
	}
	return c.viewLocked(), nil
}

// BlurReporter handles reporter row i losing focus.
func (c *Controller) BlurReporter(i int) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.reporters.Rebalance(i); err != nil {
		return View{}, err
	}
	return c.viewLocked(), nil
}

// SetReporterProperties replaces the categories selected for row i.
func (c *Controller) SetReporterProperties(i int, selection []string) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.reporters.SetProperties(i, selection); err != nil {
		return View{}, err
	}
	return c.viewLocked(), nil
}

// Validate reports what a strict submission would reject.
func (c *Controller) Validate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Validate(c.draft, c.reporters)
}

// SubmitOptions tune Submit.
type SubmitOptions struct {
	// Strict runs Validate first and refuses to submit on any error.
	Strict bool
}

// Submit builds the facility batch from the current state and hands it to
// s as one atomic batch. On success it returns the facility detail path.
// The form keeps its state on failure so the user can retry.
func (c *Controller) Submit(ctx context.Context, s Submitter, opts SubmitOptions) (string, error) {
	c.mu.Lock()
	if c.location != "" {
		c.mu.Unlock()
		return "", ErrAlreadySubmitted
	}
	if c.submitting {
		c.mu.Unlock()
		return "", ErrSubmitInProgress
	}
	if opts.Strict {
		if err := Validate(c.draft, c.reporters); err != nil {
			c.mu.Unlock()
			return "", err
		}
	}
	draft := c.draft
	payloads, err := BuildPayloads(draft, c.reporters)
	if err != nil {
		c.mu.Unlock()
		return "", fmt.Errorf("%w: %w", ErrSubmit, err)
	}
	c.submitting = true
	c.mu.Unlock()

	err = s.Submit(ctx, payloads, true)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	if err != nil {
		c.log.Warn("facility submission failed", zap.String("record_id", draft.LicenseNumber), zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrSubmit, err)
	}
	c.location = FacilityPath(draft.LicenseNumber)
	c.log.Info("facility submitted",
		zap.String("record_id", draft.LicenseNumber),
		zap.Int("proposals", len(payloads)-1),
	)
	return c.location, nil
}
