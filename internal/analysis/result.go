// Package analysis turns a post title into a credibility result by asking
// the fact-check service, degrading to a neutral fallback when it cannot.
package analysis

import (
	"context"
	"time"

	"github.com/ibeckermayer/credify/internal/identity"
)

// Result is the credibility verdict for one post. The JSON form is the
// record persisted as the last analysis.
type Result struct {
	ItemID      string   `json:"postId"`
	ContainerID string   `json:"subreddit"`
	Title       string   `json:"title"`
	Score       float64  `json:"score"`
	Flags       []string `json:"flags"`
	Description string   `json:"description"`
	Timestamp   int64    `json:"timestamp"` // epoch milliseconds
}

// Identity returns the post the result belongs to.
func (r Result) Identity() identity.Identity {
	return identity.Identity{ContainerID: r.ContainerID, ItemID: r.ItemID}
}

// Time converts Timestamp.
func (r Result) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Band classifies Score.
func (r Result) Band() Band {
	return BandFor(r.Score)
}

// Request is the body sent to the fact-check service.
type Request struct {
	Query     string `json:"query"`
	BeginDate string `json:"begin_date,omitempty"` // YYYYMMDD
	EndDate   string `json:"end_date,omitempty"`   // YYYYMMDD
}

// Response is what the service returns. Every field may be absent. Score
// is in [0, 1].
type Response struct {
	Score       *float64 `json:"score"`
	Flags       []string `json:"flags"`
	Description *string  `json:"description"`
}

// Client talks to a fact-check service.
type Client interface {
	FactCheck(ctx context.Context, req Request) (*Response, error)
}
