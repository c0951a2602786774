package ipc

import (
	"time"

	"github.com/ibeckermayer/credify/internal/analysis"
)

// ServiceName is the RPC receiver name.
const ServiceName = "Credify"

// CheckCurrentRequest asks for a check of a tab's post. An empty TabID
// means the active tab.
type CheckCurrentRequest struct {
	TabID string `json:"tab_id"`
}

// CheckCurrentResponse carries the popup label and the check outcome.
type CheckCurrentResponse struct {
	TabID    string   `json:"tab_id"`
	Label    string   `json:"label"`
	CanCheck bool     `json:"can_check"`
	Text     string   `json:"text"`
	Score    float64  `json:"score"`
	Flags    []string `json:"flags"`
	Error    string   `json:"error,omitempty"`
}

type LastAnalysisRequest struct{}

// LastAnalysisResponse returns the cached result, if any.
type LastAnalysisResponse struct {
	Found  bool            `json:"found"`
	Result analysis.Result `json:"result"`
}

type StatusRequest struct{}

// StatusResponse summarises the running daemon.
type StatusResponse struct {
	PID            int       `json:"pid"`
	StartedAt      time.Time `json:"started_at"`
	TabID          string    `json:"tab_id"`
	URL            string    `json:"url"`
	Label          string    `json:"label"`
	Endpoint       string    `json:"endpoint"`
	ServiceHealthy bool      `json:"service_healthy"`
	ServiceError   string    `json:"service_error,omitempty"`
	Injected       int       `json:"injected"`
	Pending        int       `json:"pending"`
	Failed         int       `json:"failed"`
	DatabasePath   string    `json:"database_path"`
}
