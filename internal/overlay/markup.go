package overlay

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/ibeckermayer/credify/internal/analysis"
)

const (
	// ModalClass marks the overlay root. At most one exists per page.
	ModalClass = "credify-modal"
	// StyleID is the id of the overlay stylesheet, injected once.
	StyleID = "credify-modal-styles"
	// CloseClass marks every control that dismisses the overlay.
	CloseClass = "credify-close"
)

var templates = template.Must(template.New("overlay").Parse(overlayTemplates))

// resultData is the template data for the result view.
type resultData struct {
	ItemID      string
	ContainerID string
	Title       string
	Score       string
	Percent     string
	Color       template.CSS
	Band        string
	Flags       []string
	Description string
}

// LoadingMarkup renders the loading overlay for itemID.
func LoadingMarkup(itemID string) (string, error) {
	return execute("loading", struct{ ItemID string }{itemID})
}

// ResultMarkup renders the result overlay for r.
func ResultMarkup(r analysis.Result) (string, error) {
	band := r.Band()
	return execute("result", resultData{
		ItemID:      r.ItemID,
		ContainerID: r.ContainerID,
		Title:       r.Title,
		Score:       FormatScore(r.Score),
		Percent:     fmt.Sprintf("%.0f%%", clamp(r.Score*10, 0, 100)),
		Color:       template.CSS(band.Color()),
		Band:        band.String(),
		Flags:       r.Flags,
		Description: r.Description,
	})
}

// FormatScore renders a 0-10 score the way users see it, e.g. "7.3".
func FormatScore(score float64) string {
	s := fmt.Sprintf("%.1f", score)
	return strings.TrimSuffix(s, ".0")
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s overlay: %w", name, err)
	}
	return buf.String(), nil
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

const overlayTemplates = `
{{define "loading"}}<div class="credify-modal" data-state="loading" data-post-id="{{.ItemID}}">
<div class="credify-modal-content">
<div class="credify-modal-header"><h2>Analyzing Post</h2><button class="credify-close-btn credify-close" type="button">×</button></div>
<div class="credify-modal-body"><div class="credify-loading"><div class="credify-spinner"></div><p>Checking credibility...</p></div></div>
</div>
</div>{{end}}

{{define "result"}}<div class="credify-modal" data-state="result" data-post-id="{{.ItemID}}" data-band="{{.Band}}">
<div class="credify-modal-content">
<div class="credify-modal-header"><h2>Credibility Analysis</h2><button class="credify-close-btn credify-close" type="button">×</button></div>
<div class="credify-modal-body">
<div class="credify-score-section">
<div class="credify-score-label">Credibility Score</div>
<div class="credify-score-value" style="color: {{.Color}}">{{.Score}}/10</div>
<div class="credify-score-bar"><div class="credify-score-fill" style="width: {{.Percent}}; background: {{.Color}}"></div></div>
</div>
<div class="credify-details-section">
<h3>Analysis Details</h3>
{{if .Title}}<div class="credify-info-item credify-post-title"><span class="credify-label">Post Title:</span> <span class="credify-value">{{.Title}}</span></div>{{end}}
<div class="credify-info-item"><span class="credify-label">Post ID:</span> <span class="credify-value">{{.ItemID}}</span></div>
{{if .ContainerID}}<div class="credify-info-item"><span class="credify-label">Subreddit:</span> <span class="credify-value">r/{{.ContainerID}}</span></div>{{end}}
{{if .Description}}<p class="credify-description">{{.Description}}</p>{{end}}
</div>
{{if .Flags}}<div class="credify-flags-section"><h3>Flags Detected</h3><ul class="credify-flags-list">{{range .Flags}}<li>{{.}}</li>{{end}}</ul></div>
{{else}}<div class="credify-flags-section credify-no-flags"><h3>No Issues Detected</h3><p>This post appears to be credible based on our analysis.</p></div>{{end}}
</div>
<div class="credify-modal-footer"><button class="credify-btn-secondary credify-close" type="button">Close</button></div>
</div>
</div>{{end}}
`

// Stylesheet is injected once per page alongside the first overlay.
const Stylesheet = `
.credify-modal { position: fixed; inset: 0; background: rgba(0, 0, 0, 0.7); display: flex; align-items: center; justify-content: center; z-index: 10000; }
.credify-modal-content { background: white; border-radius: 12px; width: 90%; max-width: 500px; max-height: 80vh; overflow-y: auto; }
.credify-modal-header { padding: 20px; border-bottom: 1px solid #e5e7eb; display: flex; justify-content: space-between; align-items: center; }
.credify-modal-header h2 { margin: 0; font-size: 20px; font-weight: 600; color: #111827; }
.credify-close-btn { background: none; border: none; font-size: 28px; color: #6b7280; cursor: pointer; width: 32px; height: 32px; border-radius: 6px; }
.credify-modal-body { padding: 20px; color: #374151; }
.credify-loading { text-align: center; padding: 40px 20px; }
.credify-spinner { width: 50px; height: 50px; border: 4px solid #e5e7eb; border-top-color: #0079d3; border-radius: 50%; animation: credifySpin 0.8s linear infinite; margin: 0 auto 20px; }
@keyframes credifySpin { to { transform: rotate(360deg); } }
.credify-score-section { text-align: center; padding: 20px; background: #f9fafb; border-radius: 8px; margin-bottom: 20px; }
.credify-score-value { font-size: 48px; font-weight: 700; margin-bottom: 12px; }
.credify-score-bar { width: 100%; height: 8px; background: #e5e7eb; border-radius: 4px; overflow: hidden; }
.credify-score-fill { height: 100%; }
.credify-info-item { padding: 8px 0; border-bottom: 1px solid #f3f4f6; }
.credify-label { font-weight: 600; color: #6b7280; }
.credify-flags-list li { background: #fef2f2; color: #991b1b; padding: 8px 12px; margin-bottom: 6px; border-radius: 6px; list-style: none; }
.credify-modal-footer { padding: 16px 20px; border-top: 1px solid #e5e7eb; display: flex; justify-content: flex-end; }
.credify-btn-secondary { padding: 10px 20px; background: #f3f4f6; color: #374151; border: none; border-radius: 6px; font-weight: 500; cursor: pointer; }
`
