package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"facility-form-backend/config"
	"facility-form-backend/internal/db"
	"facility-form-backend/internal/directory"
	"facility-form-backend/internal/form"
	"facility-form-backend/internal/payload"
	"facility-form-backend/internal/session"
	"facility-form-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeDirectory struct {
	err error
}

func (f *fakeDirectory) Agents(context.Context) ([]directory.Agent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []directory.Agent{
		{Name: "Me", Key: "self-key"},
		{Name: "Alice", Key: "alice-key"},
		{Name: "Bob", Key: "bob-key"},
	}, nil
}

func (f *fakeDirectory) SelfKey() string { return "self-key" }

type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []payload.Payload
	err      error
}

func (f *fakeSubmitter) Submit(_ context.Context, payloads []payload.Payload, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = payloads
	return nil
}

type testServer struct {
	router    *gin.Engine
	store     store.Store
	sessions  *session.Registry
	submitter *fakeSubmitter
}

type testOptions struct {
	strict    bool
	webpush   *webpush.Options
	dirErr    error
	directory form.Directory
}

func newTestServer(t *testing.T, opts testOptions) *testServer {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gormDB, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	sqlDB, _ := gormDB.DB()
	t.Cleanup(func() { sqlDB.Close() })

	var dir form.Directory = &fakeDirectory{err: opts.dirErr}
	if opts.directory != nil {
		dir = opts.directory
	}
	s := store.NewGormStore(gormDB)
	sessions := session.NewRegistry(dir, time.Minute, zap.NewNop())
	sub := &fakeSubmitter{}

	h := NewHandler(Deps{
		Store:     s,
		Sessions:  sessions,
		Directory: dir,
		Submitter: sub,
		WebPush:   opts.webpush,
		Forms:     config.FormsConfig{SubmitTimeout: time.Second, StrictValidation: opts.strict},
		Log:       zap.NewNop(),
	})
	router := NewRouter(h, config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 30})
	return &testServer{router: router, store: s, sessions: sessions, submitter: sub}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

// open starts a form and waits for its directory to load.
func (ts *testServer) open(t *testing.T) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/forms", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp formResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Form.Reporters, 1)

	ctrl, err := ts.sessions.Get(resp.ID)
	require.NoError(t, err)
	require.NoError(t, ctrl.WaitLoaded(context.Background()))
	return resp.ID
}

func (ts *testServer) fill(t *testing.T, id string) {
	t.Helper()
	for field, value := range map[string]string{
		"licenseNumber": "LIC-42",
		"licenseType":   "cultivation",
		"legalName":     "Green Acres LLC",
		"manager":       "Dana",
		"latitude":      "45.7",
		"longitude":     "-122.6",
	} {
		w := ts.do(t, http.MethodPut, "/api/forms/"+id+"/fields/"+field, valueRequest{Value: value})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
}

func decodeForm(t *testing.T, w *httptest.ResponseRecorder) form.View {
	t.Helper()
	var resp formResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Form
}

func TestFormFlow(t *testing.T) {
	ts := newTestServer(t, testOptions{})
	id := ts.open(t)
	ts.fill(t, id)

	w := ts.do(t, http.MethodPut, "/api/forms/"+id+"/reporters/0/key", valueRequest{Value: "Alice"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice-key", decodeForm(t, w).Reporters[0].Key)

	w = ts.do(t, http.MethodPut, "/api/forms/"+id+"/reporters/0/properties", propertiesRequest{Properties: []string{"reports"}})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/forms/"+id+"/reporters/0/blur", nil)
	require.Equal(t, http.StatusOK, w.Code)
	v := decodeForm(t, w)
	require.Len(t, v.Reporters, 2)
	assert.Equal(t, "", v.Reporters[1].Key)

	w = ts.do(t, http.MethodGet, "/api/forms/"+id+"/validation", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/forms/"+id+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"location":"/facility/LIC-42"}`, w.Body.String())

	require.Len(t, ts.submitter.payloads, 2)
	assert.Equal(t, "alice-key", ts.submitter.payloads[1].CreateProposal.ReceivingAgent)

	w = ts.do(t, http.MethodPost, "/api/forms/"+id+"/submit", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodGet, "/api/forms/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/facility/LIC-42", decodeForm(t, w).Location)

	w = ts.do(t, http.MethodDelete, "/api/forms/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(t, http.MethodGet, "/api/forms/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFormErrors(t *testing.T) {
	ts := newTestServer(t, testOptions{})
	id := ts.open(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown session", http.MethodGet, "/api/forms/nope", nil, http.StatusNotFound},
		{"close unknown session", http.MethodDelete, "/api/forms/nope", nil, http.StatusNotFound},
		{"unknown field", http.MethodPut, "/api/forms/" + id + "/fields/zip", valueRequest{Value: "1"}, http.StatusBadRequest},
		{"missing body", http.MethodPut, "/api/forms/" + id + "/fields/manager", nil, http.StatusBadRequest},
		{"non-numeric index", http.MethodPost, "/api/forms/" + id + "/reporters/x/blur", nil, http.StatusBadRequest},
		{"index out of range", http.MethodPost, "/api/forms/" + id + "/reporters/3/blur", nil, http.StatusBadRequest},
		{"unknown property", http.MethodPut, "/api/forms/" + id + "/reporters/0/properties", propertiesRequest{Properties: []string{"weather"}}, http.StatusBadRequest},
		{"submit unknown session", http.MethodPost, "/api/forms/nope/submit", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestSubmitLedgerFailure(t *testing.T) {
	ts := newTestServer(t, testOptions{})
	id := ts.open(t)
	ts.fill(t, id)
	ts.submitter.err = fmt.Errorf("ledger unavailable")

	w := ts.do(t, http.MethodPost, "/api/forms/"+id+"/submit", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "ledger unavailable")

	w = ts.do(t, http.MethodGet, "/api/forms/"+id, nil)
	v := decodeForm(t, w)
	assert.Equal(t, "LIC-42", v.Draft.LicenseNumber)
	assert.Empty(t, v.Location)
}

func TestSubmitStrict(t *testing.T) {
	ts := newTestServer(t, testOptions{strict: true})
	id := ts.open(t)

	w := ts.do(t, http.MethodPut, "/api/forms/"+id+"/reporters/0/key", valueRequest{Value: "alice"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/forms/"+id+"/submit", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body struct {
		Fields []form.FieldError `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	fields := make([]string, len(body.Fields))
	for i, f := range body.Fields {
		fields[i] = f.Field
	}
	assert.Equal(t, []string{"licenseNumber", "latitude", "longitude", "reporters[0]"}, fields)
	assert.Nil(t, ts.submitter.payloads)
}

func TestDirectoryEndpoints(t *testing.T) {
	ts := newTestServer(t, testOptions{})

	w := ts.do(t, http.MethodGet, "/api/agents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[{"name":"Alice","key":"alice-key"},{"name":"Bob","key":"bob-key"}]}`, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/authorizable-properties", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var props struct {
		Data []form.Option `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &props))
	assert.Len(t, props.Data, 7)
	assert.Equal(t, "administration", props.Data[0].Value)
}

func TestDirectoryUnavailable(t *testing.T) {
	ts := newTestServer(t, testOptions{dirErr: fmt.Errorf("connection refused")})

	w := ts.do(t, http.MethodGet, "/api/agents", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	// The form still opens; reporters just cannot be resolved.
	id := ts.open(t)
	w = ts.do(t, http.MethodGet, "/api/forms/"+id, nil)
	v := decodeForm(t, w)
	assert.False(t, v.DirectoryLoaded)
	assert.Equal(t, "connection refused", v.DirectoryError)
}

type cachingDirectory struct {
	fakeDirectory
	mu          sync.Mutex
	invalidated int
}

func (c *cachingDirectory) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
}

func (c *cachingDirectory) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidated
}

func TestGetAgents_Refresh(t *testing.T) {
	dir := &cachingDirectory{}
	ts := newTestServer(t, testOptions{directory: dir})

	w := ts.do(t, http.MethodGet, "/api/agents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(t, http.MethodGet, "/api/agents", nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, 0, dir.count())

	for i := 1; i <= 3; i++ {
		w = ts.do(t, http.MethodGet, "/api/agents?refresh=true", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-Cache"), "refresh %d served from cache", i)
		assert.Equal(t, i, dir.count())
	}

	w = ts.do(t, http.MethodGet, "/api/agents", nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, 3, dir.count())
}
