package content_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/ibeckermayer/credify/internal/analysis"
	"github.com/ibeckermayer/credify/internal/cache"
	"github.com/ibeckermayer/credify/internal/content"
	"github.com/ibeckermayer/credify/internal/dom"
	"github.com/ibeckermayer/credify/internal/identity"
	"github.com/ibeckermayer/credify/internal/inject"
	"github.com/ibeckermayer/credify/internal/locate"
	"github.com/ibeckermayer/credify/internal/message"
	"github.com/ibeckermayer/credify/internal/overlay"
	"github.com/ibeckermayer/credify/internal/retry"
)

const page = `<html><head><title>Is this true? : r/news</title></head><body>
<shreddit-app>
<shreddit-post id="t3_abc" subreddit-name="news" post-title="Is this true?"><div data-testid="post-actions"></div></shreddit-post>
<shreddit-post id="t3_def" subreddit-name="pics"><div data-testid="post-actions"></div></shreddit-post>
</shreddit-app>
</body></html>`

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) Analyze(ctx context.Context, id identity.Identity, title string) analysis.Result {
	args := m.Called(id, title)
	return args.Get(0).(analysis.Result)
}

type outbox struct {
	mu   sync.Mutex
	envs []message.Envelope
}

func (o *outbox) Send(env message.Envelope) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.envs = append(o.envs, env)
	return nil
}

func (o *outbox) completed() []message.AnalysisCompleted {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []message.AnalysisCompleted
	for _, e := range o.envs {
		if m, ok := e.Msg.(message.AnalysisCompleted); ok {
			out = append(out, m)
		}
	}
	return out
}

type fixture struct {
	agent    *content.Agent
	doc      *dom.Document
	analyzer *mockAnalyzer
	slot     *cache.Slot
	out      *outbox
}

func newFixture(t *testing.T, url string) *fixture {
	t.Helper()
	doc, err := dom.ParseString(page)
	require.NoError(t, err)
	doc.SetURL(url)

	f := &fixture{doc: doc, analyzer: &mockAnalyzer{}, slot: cache.New(nil), out: &outbox{}}
	f.agent = content.New(context.Background(), content.Options{
		TabID:    "1",
		Surface:  inject.NewDocumentSurface(doc),
		Renderer: overlay.NewDocumentRenderer(doc),
		Analyzer: f.analyzer,
		Cache:    f.slot,
		Sender:   f.out,
		Inject: inject.Options{
			ItemPolicy: retry.Policy{Attempts: 2},
			BarPolicy:  retry.Policy{Attempts: 1},
		},
		Debounce: 10 * time.Millisecond,
	})
	t.Cleanup(f.agent.Stop)
	return f
}

func (f *fixture) controls() int {
	var n int
	f.doc.Read(func(root *html.Node) { n = len(dom.QueryAll(root, "."+locate.ControlClass)) })
	return n
}

func (f *fixture) modal() *html.Node {
	var n *html.Node
	f.doc.Read(func(root *html.Node) { n = dom.Query(root, "."+overlay.ModalClass) })
	return n
}

var abc = identity.Identity{ContainerID: "news", ItemID: "abc"}

func TestNavigatedToPostInjectsAndPreAnalyses(t *testing.T) {
	f := newFixture(t, "https://www.reddit.com/r/news/comments/abc/is_this_true/")
	f.analyzer.On("Analyze", abc, "Is this true?").Return(analysis.Result{ItemID: "abc", ContainerID: "news", Score: 8})

	f.agent.Handle(context.Background(), message.New(message.Background, f.agent.ID(), message.NavigatedTo("https://www.reddit.com/r/news/comments/abc/is_this_true/")))

	assert.Eventually(t, func() bool { return len(f.out.completed()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.controls())
	assert.Equal(t, inject.Injected, f.agent.Controller().State("abc"))
	done := f.out.completed()[0]
	assert.Equal(t, "abc", done.ItemID)
	assert.Equal(t, "news", done.ContainerID)
	assert.Equal(t, 8.0, done.Result.Score)

	cur, ok := f.agent.Current()
	assert.True(t, ok)
	assert.Equal(t, abc, cur)
}

func TestNavigatedWithoutIdentityScansWholePage(t *testing.T) {
	f := newFixture(t, "https://www.reddit.com/")

	f.agent.Handle(context.Background(), message.New(message.Background, f.agent.ID(), message.NavigatedTo("https://www.reddit.com/")))

	assert.Eventually(t, func() bool { return f.controls() == 2 }, time.Second, 5*time.Millisecond)
	_, ok := f.agent.Current()
	assert.False(t, ok)
	assert.Empty(t, f.out.completed())
	f.analyzer.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}

func TestStartRunsInitialScan(t *testing.T) {
	f := newFixture(t, "https://www.reddit.com/r/pics/")
	f.agent.Start()
	assert.Eventually(t, func() bool { return f.controls() == 2 }, time.Second, 5*time.Millisecond)
}

func TestActivateUsesCachedResult(t *testing.T) {
	f := newFixture(t, "https://www.reddit.com/")
	require.NoError(t, f.slot.Put(context.Background(), analysis.Result{ItemID: "abc", Score: 3}))

	require.NoError(t, f.agent.Activate(context.Background(), "abc"))

	f.analyzer.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
	state, item := f.agent.Overlay().State()
	assert.Equal(t, overlay.Result, state)
	assert.Equal(t, "abc", item)
	require.NotNil(t, f.modal())
	assert.Equal(t, "negative", dom.Attr(f.modal(), "data-band"))
}

func TestActivateRunsPipelineOnCacheMiss(t *testing.T) {
	f := newFixture(t, "https://www.reddit.com/")
	require.NoError(t, f.slot.Put(context.Background(), analysis.Result{ItemID: "other"}))
	f.analyzer.On("Analyze", identity.Identity{ContainerID: "pics", ItemID: "def"}, locate.UnknownTitle).
		Return(analysis.Result{ItemID: "def", ContainerID: "pics", Score: 5.5})

	require.NoError(t, f.agent.Activate(context.Background(), "def"))

	f.analyzer.AssertExpectations(t)
	state, _ := f.agent.Overlay().State()
	assert.Equal(t, overlay.Result, state)
	assert.Equal(t, "caution", dom.Attr(f.modal(), "data-band"))
	require.Len(t, f.out.completed(), 1)
	assert.Equal(t, "def", f.out.completed()[0].ItemID)
}

func TestDismissDuringAnalysisKeepsOverlayClosed(t *testing.T) {
	f := newFixture(t, "https://www.reddit.com/")
	release := make(chan time.Time)
	f.analyzer.On("Analyze", mock.Anything, mock.Anything).
		WaitUntil(release).
		Return(analysis.Result{ItemID: "abc", Score: 9})

	errc := make(chan error, 1)
	go func() { errc <- f.agent.Activate(context.Background(), "abc") }()

	assert.Eventually(t, func() bool {
		state, _ := f.agent.Overlay().State()
		return state == overlay.Loading
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, f.agent.Dismiss(context.Background(), overlay.ReasonCancelKey))
	close(release)

	require.NoError(t, <-errc)
	state, _ := f.agent.Overlay().State()
	assert.Equal(t, overlay.Closed, state)
	assert.Nil(t, f.modal())
	assert.Len(t, f.out.completed(), 1)
}

func TestForceAnalyzeUsesCurrentPost(t *testing.T) {
	f := newFixture(t, "https://www.reddit.com/r/news/comments/abc/is_this_true/")
	f.analyzer.On("Analyze", abc, "Is this true?").Return(analysis.Result{ItemID: "abc"})

	f.agent.Handle(context.Background(), message.New(message.Background, f.agent.ID(), message.ForceAnalyze{}))
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, f.out.completed())

	f.agent.Handle(context.Background(), message.New(message.Background, f.agent.ID(), message.NavigatedTo("https://www.reddit.com/r/news/comments/abc/is_this_true/")))
	assert.Eventually(t, func() bool { return len(f.out.completed()) == 1 }, time.Second, 5*time.Millisecond)

	f.agent.Handle(context.Background(), message.New(message.Background, f.agent.ID(), message.ForceAnalyze{}))
	assert.Eventually(t, func() bool { return len(f.out.completed()) == 2 }, time.Second, 5*time.Millisecond)
}
