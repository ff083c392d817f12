package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"facility-form-backend/config"
	"facility-form-backend/internal/codec"
)

// maxErrorBody bounds how much of a failed response is kept in an error.
const maxErrorBody = 4 << 10

// SubmitError is returned when the ledger refuses a batch submission.
type SubmitError struct {
	StatusCode int
	Body       string
}

func (e *SubmitError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("ledger rejected batch submission: status %d", e.StatusCode)
	}
	return fmt.Sprintf("ledger rejected batch submission: status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the ledger REST gateway.
type Client struct {
	baseURL string
	headers map[string]string
	client  *http.Client
	log     *zap.Logger
}

// NewClient creates a client for the gateway described by cfg.
func NewClient(cfg config.LedgerConfig, log *zap.Logger) *Client {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Warn("invalid ledger proxy URL, connecting directly", zap.String("proxy", cfg.HTTPProxy), zap.Error(err))
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		headers: cfg.Headers,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		log: log,
	}
}

// FetchAgents returns every agent registered on the ledger.
func (c *Client) FetchAgents(ctx context.Context) ([]Agent, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/agents", nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching agents: %w", err)
	}

	var resp agentsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agents response: %w", err)
	}
	return resp.Data, nil
}

// SubmitBatches posts batches to the ledger. The call returns once the
// ledger has accepted them for processing; commitment is observed through
// BatchStatuses.
func (c *Client) SubmitBatches(ctx context.Context, batches []Batch) error {
	body, err := codec.Marshal(BatchList{Batches: batches})
	if err != nil {
		return fmt.Errorf("failed to encode batch list: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/batches", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/cbor")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &SubmitError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return nil
}

// BatchStatuses asks the ledger for the status of the given batches.
func (c *Client) BatchStatuses(ctx context.Context, ids []string) ([]BatchStatus, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("id", strings.Join(ids, ","))
	req, err := c.newRequest(ctx, http.MethodGet, "/batch_statuses?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching batch statuses: %w", err)
	}

	var resp batchStatusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch status response: %w", err)
	}
	return resp.Data, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
