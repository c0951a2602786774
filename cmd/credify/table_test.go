package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ibeckermayer/credify/internal/analysis"
)

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"Name", "Count"}, [][]string{{"a", "1"}, {"b"}}, []columnAlignment{alignLeft, alignRight})
	assert.True(t, strings.HasPrefix(out, "╭"))
	assert.Contains(t, out, "Name")
	assert.Contains(t, out, "Count")
	assert.Contains(t, out, "a")
	assert.Empty(t, renderTable(nil, nil, nil))
}

func TestRenderResult(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	out := renderResult(analysis.Result{
		ItemID:      "abc",
		ContainerID: "news",
		Score:       7.3,
		Timestamp:   now.Add(-3 * time.Minute).UnixMilli(),
	}, now)
	assert.Contains(t, out, "r/news - Post ID: abc")
	assert.Contains(t, out, "7.3/10")
	assert.Contains(t, out, "positive")
	assert.Contains(t, out, "3 minutes ago")
}
