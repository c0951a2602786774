// Package popup is the popup context: it labels the active tab and asks the
// background for the current post's analysis.
package popup

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/ibeckermayer/credify/internal/identity"
	"github.com/ibeckermayer/credify/internal/message"
)

// Texts shown by the popup.
const (
	NotOnHost   = "Not on Reddit"
	NotOnItem   = "Not viewing a specific Reddit post"
	Analyzing   = "Analyzing post..."
	Unavailable = "Unable to analyze post"
)

// Background is the part of the router the popup talks to.
type Background interface {
	ActiveURL(tabID string) (string, bool)
	ActiveTab() (string, bool)
	Call(ctx context.Context, from, to message.ContextID, msg message.Message) (message.Reply, error)
}

// View describes the tab the popup was opened for.
type View struct {
	TabID string
	Label string
	// CanCheck is true when the tab shows a single post.
	CanCheck bool
	Identity identity.Identity
}

// Status is the outcome of a check.
type Status struct {
	Text  string
	Score float64
	Flags []string
	Err   error
}

// Options configure a Popup.
type Options struct {
	Host string
	// OnStatus receives every status text, including the interim one.
	OnStatus func(text string)
	Logger   *slog.Logger
}

// Popup answers the tray menu and the check command.
type Popup struct {
	bg       Background
	host     string
	onStatus func(string)
	logger   *slog.Logger
}

// New creates a popup backed by bg.
func New(bg Background, opts Options) *Popup {
	if opts.Host == "" {
		opts.Host = "reddit.com"
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.OnStatus == nil {
		opts.OnStatus = func(string) {}
	}
	return &Popup{bg: bg, host: opts.Host, onStatus: opts.OnStatus, logger: opts.Logger}
}

// Current labels tabID. An empty tabID means the active tab.
func (p *Popup) Current(tabID string) View {
	if tabID == "" {
		tabID, _ = p.bg.ActiveTab()
	}
	v := View{TabID: tabID, Label: NotOnHost}
	url, ok := p.bg.ActiveURL(tabID)
	if !ok || !identity.OnHost(url, p.host) {
		return v
	}
	id, ok := identity.Parse(url)
	if !ok {
		v.Label = NotOnItem
		return v
	}
	v.Label = id.String()
	v.CanCheck = true
	v.Identity = id
	return v
}

// Check asks the background to analyse the tab's post and reports the
// cached result. Tabs not showing a post are not checked.
func (p *Popup) Check(ctx context.Context, tabID string) Status {
	v := p.Current(tabID)
	if !v.CanCheck {
		return p.report(Status{Text: v.Label})
	}
	p.onStatus(Analyzing)

	reply, err := p.bg.Call(ctx, message.Popup, message.Background, message.CheckCurrent{
		TargetContextID: message.TabContext(v.TabID),
	})
	if err == nil {
		err = reply.Err()
	}
	if err != nil {
		p.logger.Debug("check failed", "tab_id", v.TabID, "error", err)
		return p.report(Status{Text: Unavailable, Err: err})
	}
	return p.report(Status{
		Text:  ScoreText(reply.Score),
		Score: reply.Score,
		Flags: reply.Flags,
	})
}

func (p *Popup) report(s Status) Status {
	p.onStatus(s.Text)
	return s
}

// ScoreText renders a score as the popup shows it, e.g. "Score: 7.3/10".
func ScoreText(score float64) string {
	return "Score: " + strconv.FormatFloat(score, 'f', -1, 64) + "/10"
}
