package form

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"facility-form-backend/internal/directory"
	"facility-form-backend/internal/payload"
)

type fakeDirectory struct {
	agents []directory.Agent
	self   string
	err    error
	gate   chan struct{}
}

func (f *fakeDirectory) Agents(ctx context.Context) ([]directory.Agent, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.agents, f.err
}

func (f *fakeDirectory) SelfKey() string { return f.self }

type recordingSubmitter struct {
	mu       sync.Mutex
	payloads []payload.Payload
	atomic   bool
	calls    int
	err      error
	block    chan struct{}
}

func (r *recordingSubmitter) Submit(ctx context.Context, payloads []payload.Payload, atomic bool) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.payloads = payloads
	r.atomic = atomic
	return r.err
}

func newLoadedController(t *testing.T) *Controller {
	t.Helper()
	dir := &fakeDirectory{
		agents: append([]directory.Agent{{Name: "Me", Key: "self-key"}}, testAgents...),
		self:   "self-key",
	}
	c := New(context.Background(), dir, zap.NewNop())
	t.Cleanup(c.Close)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.WaitLoaded(ctx))
	return c
}

func fillDraft(t *testing.T, c *Controller) {
	t.Helper()
	d := sampleDraft()
	for name, value := range map[string]string{
		FieldLicenseNumber: d.LicenseNumber,
		FieldLicenseType:   d.LicenseType,
		FieldLegalName:     d.LegalName,
		FieldManager:       d.Manager,
		FieldLatitude:      d.Latitude,
		FieldLongitude:     d.Longitude,
	} {
		_, err := c.SetField(name, value)
		require.NoError(t, err)
	}
}

func TestController_EndToEnd(t *testing.T) {
	c := newLoadedController(t)

	v := c.View()
	require.Len(t, v.Reporters, 1)
	assert.True(t, v.DirectoryLoaded)

	fillDraft(t, c)
	_, err := c.ResolveReporter(0, "Alice")
	require.NoError(t, err)
	_, err = c.SetReporterProperties(0, []string{"plants", "reports"})
	require.NoError(t, err)
	v, err = c.BlurReporter(0)
	require.NoError(t, err)
	require.Len(t, v.Reporters, 2)
	assert.Equal(t, "alice-key", v.Reporters[0].Key)
	assert.Equal(t, "", v.Reporters[1].Key)

	sub := &recordingSubmitter{}
	location, err := c.Submit(context.Background(), sub, SubmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, "/facility/LIC-42", location)

	assert.True(t, sub.atomic)
	require.Len(t, sub.payloads, 2)
	assert.Equal(t, payload.ActionCreateRecord, sub.payloads[0].Action)
	require.NotNil(t, sub.payloads[1].CreateProposal)
	assert.Equal(t, "alice-key", sub.payloads[1].CreateProposal.ReceivingAgent)
	assert.Equal(t, []string{"plants", "reports"}, sub.payloads[1].CreateProposal.Properties)
	assert.Equal(t, int64(45), sub.payloads[0].CreateRecord.Properties[3].LocationValue.Latitude)

	assert.Equal(t, "/facility/LIC-42", c.View().Location)
	_, err = c.Submit(context.Background(), sub, SubmitOptions{})
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Equal(t, 1, sub.calls)
}

func TestController_SelfIsNotResolvable(t *testing.T) {
	c := newLoadedController(t)

	for _, a := range c.Agents() {
		assert.NotEqual(t, "self-key", a.Key)
	}
	v, err := c.ResolveReporter(0, "Me")
	require.NoError(t, err)
	assert.Equal(t, "", v.Reporters[0].Key)
}

func TestController_UsableBeforeDirectoryLoads(t *testing.T) {
	dir := &fakeDirectory{agents: testAgents, gate: make(chan struct{})}
	c := New(context.Background(), dir, zap.NewNop())
	defer c.Close()

	v, err := c.ResolveReporter(0, "Alice")
	require.NoError(t, err)
	assert.False(t, v.DirectoryLoaded)
	assert.Equal(t, "", v.Reporters[0].Key)
	assert.Nil(t, c.Agents())

	close(dir.gate)
	require.NoError(t, c.WaitLoaded(context.Background()))

	v, err = c.ResolveReporter(0, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice-key", v.Reporters[0].Key)
}

func TestController_CloseCancelsLoad(t *testing.T) {
	dir := &fakeDirectory{agents: testAgents, gate: make(chan struct{})}
	c := New(context.Background(), dir, zap.NewNop())
	c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.WaitLoaded(ctx))
	v := c.View()
	assert.False(t, v.DirectoryLoaded)
	assert.NotEmpty(t, v.DirectoryError)
}

func TestController_DirectoryError(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("ledger down")}
	c := New(context.Background(), dir, zap.NewNop())
	defer c.Close()
	require.NoError(t, c.WaitLoaded(context.Background()))

	v := c.View()
	assert.False(t, v.DirectoryLoaded)
	assert.Equal(t, "ledger down", v.DirectoryError)
}

func TestController_SubmitFailureKeepsState(t *testing.T) {
	c := newLoadedController(t)
	fillDraft(t, c)
	_, err := c.ResolveReporter(0, "Bob")
	require.NoError(t, err)
	_, err = c.BlurReporter(0)
	require.NoError(t, err)

	sub := &recordingSubmitter{err: errors.New("ledger rejected batch")}
	_, err = c.Submit(context.Background(), sub, SubmitOptions{})
	require.ErrorIs(t, err, ErrSubmit)
	assert.Contains(t, err.Error(), "ledger rejected batch")

	v := c.View()
	assert.Equal(t, "", v.Location)
	assert.False(t, v.Submitting)
	assert.Equal(t, "LIC-42", v.Draft.LicenseNumber)
	require.Len(t, v.Reporters, 2)

	sub.err = nil
	location, err := c.Submit(context.Background(), sub, SubmitOptions{})
	require.NoError(t, err)
	assert.Equal(t, "/facility/LIC-42", location)
}

func TestController_StrictSubmit(t *testing.T) {
	c := newLoadedController(t)
	_, err := c.ResolveReporter(0, "Zed")
	require.NoError(t, err)

	sub := &recordingSubmitter{}
	_, err = c.Submit(context.Background(), sub, SubmitOptions{Strict: true})
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 4)
	assert.Equal(t, 0, sub.calls)

	// The lenient path submits the same state, silently dropping the
	// unresolved reporter.
	_, err = c.Submit(context.Background(), sub, SubmitOptions{})
	require.NoError(t, err)
	assert.Len(t, sub.payloads, 1)
}

func TestController_ConcurrentSubmitRejected(t *testing.T) {
	c := newLoadedController(t)
	fillDraft(t, c)

	sub := &recordingSubmitter{block: make(chan struct{})}
	errs := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), sub, SubmitOptions{})
		errs <- err
	}()

	require.Eventually(t, func() bool { return c.View().Submitting }, time.Second, 5*time.Millisecond)
	_, err := c.Submit(context.Background(), sub, SubmitOptions{})
	assert.ErrorIs(t, err, ErrSubmitInProgress)

	close(sub.block)
	require.NoError(t, <-errs)
	assert.Equal(t, 1, sub.calls)
}

func TestController_BadInput(t *testing.T) {
	c := newLoadedController(t)
	_, err := c.SetField("zip", "97201")
	assert.ErrorIs(t, err, ErrUnknownField)
	_, err = c.BlurReporter(4)
	assert.ErrorIs(t, err, ErrReporterIndex)
	_, err = c.SetReporterProperties(0, []string{"everything"})
	assert.ErrorIs(t, err, ErrUnknownProperty)
}
