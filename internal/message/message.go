// Package message defines what the background, content and popup contexts
// say to each other.
package message

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/ibeckermayer/credify/internal/analysis"
	"github.com/ibeckermayer/credify/internal/identity"
)

// ErrNoAnalysis is the reply error when the cache slot is empty. The text
// is shown to users as is.
var ErrNoAnalysis = errors.New("No analysis available")

// ContextID names a mailbox.
type ContextID string

const (
	Background ContextID = "background"
	Popup      ContextID = "popup"
)

const tabPrefix = "tab:"

// TabContext is the content context attached to a browser tab.
func TabContext(tabID string) ContextID {
	return ContextID(tabPrefix + tabID)
}

// TabID reverses TabContext.
func (c ContextID) TabID() (string, bool) {
	s := string(c)
	if !strings.HasPrefix(s, tabPrefix) {
		return "", false
	}
	return s[len(tabPrefix):], true
}

// Kind tags a Message variant.
type Kind string

const (
	KindNavigated         Kind = "navigated"
	KindForceAnalyze      Kind = "force-analyze"
	KindAnalysisCompleted Kind = "analysis-completed"
	KindCheckCurrent      Kind = "check-current"
)

// Message is one of Navigated, ForceAnalyze, AnalysisCompleted or
// CheckCurrent.
type Message interface {
	Kind() Kind
	isMessage()
}

// Navigated tells a content context its tab moved. ItemID is empty when the
// new page is not a single post.
type Navigated struct {
	ItemID      string
	ContainerID string
	URL         string
}

// ForceAnalyze asks a content context to analyse its current post.
type ForceAnalyze struct{}

// AnalysisCompleted reports a finished analysis to the background.
type AnalysisCompleted struct {
	ItemID      string
	ContainerID string
	Result      analysis.Result
}

// CheckCurrent asks the background for the latest result on behalf of a
// tab. It is the only message that expects a reply.
type CheckCurrent struct {
	TargetContextID ContextID
}

func (Navigated) Kind() Kind         { return KindNavigated }
func (ForceAnalyze) Kind() Kind      { return KindForceAnalyze }
func (AnalysisCompleted) Kind() Kind { return KindAnalysisCompleted }
func (CheckCurrent) Kind() Kind      { return KindCheckCurrent }

func (Navigated) isMessage()         {}
func (ForceAnalyze) isMessage()      {}
func (AnalysisCompleted) isMessage() {}
func (CheckCurrent) isMessage()      {}

// NavigatedTo builds a Navigated for url, carrying the post identity when
// url is a single-post page.
func NavigatedTo(url string) Navigated {
	id, _ := identity.Parse(url)
	return Navigated{ItemID: id.ItemID, ContainerID: id.ContainerID, URL: url}
}

// Identity returns the post identity, if the page is a single post.
func (n Navigated) Identity() (identity.Identity, bool) {
	if n.ItemID == "" {
		return identity.Identity{}, false
	}
	return identity.Identity{ContainerID: n.ContainerID, ItemID: n.ItemID}, true
}

// Envelope carries a message between contexts. ID correlates a request with
// its reply.
type Envelope struct {
	ID   uuid.UUID
	From ContextID
	To   ContextID
	Msg  Message
}

// New wraps msg with a fresh correlation id.
func New(from, to ContextID, msg Message) Envelope {
	return Envelope{ID: uuid.New(), From: from, To: to, Msg: msg}
}

// Reply answers a CheckCurrent.
type Reply struct {
	Score float64  `json:"score"`
	Flags []string `json:"flags"`
	Error string   `json:"error,omitempty"`
}

// ReplyFor builds the reply for a cached result, or the no-analysis reply.
func ReplyFor(r analysis.Result, ok bool) Reply {
	if !ok {
		return Reply{Error: ErrNoAnalysis.Error()}
	}
	flags := r.Flags
	if flags == nil {
		flags = []string{}
	}
	return Reply{Score: r.Score, Flags: flags}
}

// Err returns the reply's error, mapping the no-analysis text back to
// ErrNoAnalysis.
func (r Reply) Err() error {
	switch r.Error {
	case "":
		return nil
	case ErrNoAnalysis.Error():
		return ErrNoAnalysis
	default:
		return errors.New(r.Error)
	}
}
