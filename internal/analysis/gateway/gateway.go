// Package gateway is the HTTP client for the fact-check gateway agent.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/ibeckermayer/credify/internal/analysis"
	"github.com/ibeckermayer/credify/internal/store"
)

// DefaultEndpoint is where the gateway agent listens by default.
const DefaultEndpoint = "http://localhost:8000/fact-check"

const maxBody = 1 << 20

// Recorder keeps service exchanges for debugging. *store.Exchanges
// satisfies it.
type Recorder interface {
	Save(e store.Exchange) (string, error)
}

// Options configure a Client.
type Options struct {
	// HTTPClient defaults to a client without timeout; the gateway may take
	// minutes while its agents search and score.
	HTTPClient *http.Client
	Recorder   Recorder
	Logger     *slog.Logger
}

// Client implements analysis.Client over HTTP JSON.
type Client struct {
	endpoint string
	http     *http.Client
	recorder Recorder
	logger   *slog.Logger
}

var _ analysis.Client = (*Client)(nil)

// New creates a client posting to endpoint.
func New(endpoint string, opts Options) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint: endpoint,
		http:     opts.HTTPClient,
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Endpoint returns the fact-check URL.
func (c *Client) Endpoint() string { return c.endpoint }

// FactCheck posts req and decodes the gateway's answer. Transport failures,
// non-2xx statuses and malformed bodies are errors.
func (c *Client) FactCheck(ctx context.Context, req analysis.Request) (*analysis.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	ex := store.Exchange{Timestamp: time.Now(), Endpoint: c.endpoint, Request: body}
	defer c.record(&ex)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		ex.Error = err.Error()
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		ex.Error = err.Error()
		return nil, fmt.Errorf("call fact-check service: %w", err)
	}
	defer resp.Body.Close()

	ex.Status = resp.StatusCode
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		ex.Error = err.Error()
		return nil, fmt.Errorf("read response: %w", err)
	}
	if json.Valid(raw) {
		ex.Response = raw
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("fact-check service returned %s", resp.Status)
		ex.Error = err.Error()
		return nil, err
	}

	var out analysis.Response
	if err := json.Unmarshal(raw, &out); err != nil {
		ex.Error = err.Error()
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// Health checks the gateway's /health route, a sibling of the fact-check
// route.
func (c *Client) Health(ctx context.Context) error {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	u.Path = path.Join(path.Dir(u.Path), "health")
	u.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call health: %w", err)
	}
	defer resp.Body.Close()

	var status struct {
		Status string `json:"status"`
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %s", resp.Status)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&status); err != nil {
		return fmt.Errorf("decode health: %w", err)
	}
	if status.Status != "ok" {
		return fmt.Errorf("gateway status %q", status.Status)
	}
	return nil
}

func (c *Client) record(ex *store.Exchange) {
	if c.recorder == nil {
		return
	}
	if saved, err := c.recorder.Save(*ex); err != nil {
		c.logger.Warn("failed to cache exchange", "error", err)
	} else {
		c.logger.Debug("cached exchange", "path", saved)
	}
}
