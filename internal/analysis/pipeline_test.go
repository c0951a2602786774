package analysis_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ibeckermayer/credify/internal/analysis"
	"github.com/ibeckermayer/credify/internal/identity"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) FactCheck(ctx context.Context, req analysis.Request) (*analysis.Response, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*analysis.Response)
	return resp, args.Error(1)
}

func ptr[T any](v T) *T { return &v }

var (
	post    = identity.Identity{ContainerID: "news", ItemID: "abc"}
	fixedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

func newPipeline(c analysis.Client) *analysis.Pipeline {
	return analysis.NewPipeline(c, analysis.PipelineOptions{Now: func() time.Time { return fixedAt }})
}

func TestAnalyzeScalesScore(t *testing.T) {
	client := &mockClient{}
	client.On("FactCheck", mock.Anything, analysis.Request{Query: "Title", BeginDate: "20240101", EndDate: "20241231"}).
		Return(&analysis.Response{Score: ptr(0.73), Flags: []string{"Verified"}, Description: ptr("ok")}, nil)

	r := newPipeline(client).Analyze(context.Background(), post, "Title")

	client.AssertExpectations(t)
	assert.Equal(t, analysis.Result{
		ItemID:      "abc",
		ContainerID: "news",
		Title:       "Title",
		Score:       7.3,
		Flags:       []string{"Verified"},
		Description: "ok",
		Timestamp:   fixedAt.UnixMilli(),
	}, r)
	assert.Equal(t, analysis.Positive, r.Band())
}

func TestAnalyzeFillsAbsentFields(t *testing.T) {
	client := &mockClient{}
	client.On("FactCheck", mock.Anything, mock.Anything).Return(&analysis.Response{}, nil)

	r := newPipeline(client).Analyze(context.Background(), post, "Title")

	assert.Equal(t, analysis.NeutralScore, r.Score)
	assert.NotNil(t, r.Flags)
	assert.Empty(t, r.Flags)
	assert.Equal(t, analysis.NoDescription, r.Description)
}

func TestAnalyzeKeepsZeroScore(t *testing.T) {
	client := &mockClient{}
	client.On("FactCheck", mock.Anything, mock.Anything).Return(&analysis.Response{Score: ptr(0.0)}, nil)

	r := newPipeline(client).Analyze(context.Background(), post, "Title")
	assert.Equal(t, 0.0, r.Score)
	assert.Equal(t, analysis.Negative, r.Band())
}

func TestAnalyzeFallsBackOnError(t *testing.T) {
	client := &mockClient{}
	client.On("FactCheck", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	r := newPipeline(client).Analyze(context.Background(), post, "Title")

	assert.Equal(t, 5.0, r.Score)
	assert.Equal(t, []string{"API unavailable"}, r.Flags)
	assert.Equal(t, analysis.UnavailableMessage, r.Description)
	assert.Equal(t, "Title", r.Title)
	assert.Equal(t, "abc", r.ItemID)
}

func TestAnalyzeFallsBackOnOutOfRangeScore(t *testing.T) {
	for _, score := range []float64{1.5, -0.2, math.NaN()} {
		client := &mockClient{}
		client.On("FactCheck", mock.Anything, mock.Anything).Return(&analysis.Response{Score: ptr(score), Flags: []string{"Verified"}}, nil)

		r := newPipeline(client).Analyze(context.Background(), post, "Title")

		assert.Equal(t, analysis.NeutralScore, r.Score, "score %v", score)
		assert.Equal(t, []string{analysis.UnavailableFlag}, r.Flags, "score %v", score)
		assert.Equal(t, analysis.UnavailableMessage, r.Description)
	}
}

func TestSetClientSwapsBackend(t *testing.T) {
	failing := &mockClient{}
	failing.On("FactCheck", mock.Anything, mock.Anything).Return(nil, errors.New("down"))
	working := &mockClient{}
	working.On("FactCheck", mock.Anything, mock.Anything).Return(&analysis.Response{Score: ptr(0.4)}, nil)

	p := newPipeline(failing)
	assert.Equal(t, []string{analysis.UnavailableFlag}, p.Analyze(context.Background(), post, "t").Flags)

	p.SetClient(working)
	assert.Equal(t, 4.0, p.Analyze(context.Background(), post, "t").Score)
}

func TestScale(t *testing.T) {
	tests := []struct {
		in   *float64
		want float64
	}{
		{nil, 5},
		{ptr(0.0), 0},
		{ptr(1.0), 10},
		{ptr(0.456), 4.6},
		{ptr(0.999), 10},
		{ptr(1.5), 10},
		{ptr(-0.2), 0},
		{ptr(math.NaN()), 5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, analysis.Scale(tt.in), 1e-9)
	}
}

func TestBandFor(t *testing.T) {
	assert.Equal(t, analysis.Positive, analysis.BandFor(7))
	assert.Equal(t, analysis.Caution, analysis.BandFor(6.99))
	assert.Equal(t, analysis.Caution, analysis.BandFor(4))
	assert.Equal(t, analysis.Negative, analysis.BandFor(3.99))
	assert.Equal(t, "#10b981", analysis.Positive.Color())
	assert.Equal(t, "#f59e0b", analysis.Caution.Color())
	assert.Equal(t, "#ef4444", analysis.Negative.Color())
}
