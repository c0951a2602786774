package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ibeckermayer/credify/internal/identity"
)

const (
	// NeutralScore stands in when the service gives no score.
	NeutralScore = 5.0

	NoDescription      = "No analysis available"
	UnavailableFlag    = "API unavailable"
	UnavailableMessage = "Unable to connect to fact-checking service. Please ensure agents are running."
	DefaultBeginDate   = "20240101"
	DefaultEndDate     = "20241231"
)

// PipelineOptions configure a Pipeline.
type PipelineOptions struct {
	BeginDate string
	EndDate   string
	Logger    *slog.Logger
	Now       func() time.Time
}

// Pipeline runs analyses against a swappable Client.
type Pipeline struct {
	mu     sync.RWMutex
	client Client

	beginDate string
	endDate   string
	logger    *slog.Logger
	now       func() time.Time
}

// NewPipeline creates a pipeline backed by client.
func NewPipeline(client Client, opts PipelineOptions) *Pipeline {
	p := &Pipeline{
		client:    client,
		beginDate: opts.BeginDate,
		endDate:   opts.EndDate,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if p.beginDate == "" {
		p.beginDate = DefaultBeginDate
	}
	if p.endDate == "" {
		p.endDate = DefaultEndDate
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// SetClient swaps the client used by later analyses.
func (p *Pipeline) SetClient(c Client) {
	p.mu.Lock()
	p.client = c
	p.mu.Unlock()
}

// Analyze fact-checks title on behalf of id. It never fails: any client
// error yields the fallback result.
func (p *Pipeline) Analyze(ctx context.Context, id identity.Identity, title string) Result {
	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()

	r := Result{
		ItemID:      id.ItemID,
		ContainerID: id.ContainerID,
		Title:       title,
		Timestamp:   p.now().UnixMilli(),
	}

	resp, err := client.FactCheck(ctx, Request{Query: title, BeginDate: p.beginDate, EndDate: p.endDate})
	if err == nil {
		err = validate(resp)
	}
	if err != nil {
		p.logger.Warn("fact-check failed", "item_id", id.ItemID, "error", err)
		r.Score = NeutralScore
		r.Flags = []string{UnavailableFlag}
		r.Description = UnavailableMessage
		return r
	}

	r.Score = Scale(resp.Score)
	r.Flags = resp.Flags
	if r.Flags == nil {
		r.Flags = []string{}
	}
	r.Description = NoDescription
	if resp.Description != nil && *resp.Description != "" {
		r.Description = *resp.Description
	}
	p.logger.Info("post analysed", "item_id", id.ItemID, "score", r.Score, "flags", len(r.Flags))
	return r
}

// ErrMalformedResponse marks a service response that cannot be scored.
var ErrMalformedResponse = errors.New("malformed fact-check response")

func validate(resp *Response) error {
	switch {
	case resp == nil:
		return fmt.Errorf("%w: empty response", ErrMalformedResponse)
	case resp.Score == nil:
		return nil
	case math.IsNaN(*resp.Score) || *resp.Score < 0 || *resp.Score > 1:
		return fmt.Errorf("%w: score %v outside [0, 1]", ErrMalformedResponse, *resp.Score)
	}
	return nil
}

// Scale maps a [0, 1] service score onto 0-10 with one decimal. An absent
// or NaN score is NeutralScore; anything else is clamped into range.
func Scale(score *float64) float64 {
	if score == nil || math.IsNaN(*score) {
		return NeutralScore
	}
	s := math.Max(0, math.Min(1, *score))
	return math.Round(s*100) / 10
}
