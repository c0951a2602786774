package message_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ibeckermayer/credify/internal/analysis"
	"github.com/ibeckermayer/credify/internal/identity"
	"github.com/ibeckermayer/credify/internal/message"
)

func TestNavigatedTo(t *testing.T) {
	n := message.NavigatedTo("https://www.reddit.com/r/news/comments/abc/title/")
	id, ok := n.Identity()
	assert.True(t, ok)
	assert.Equal(t, identity.Identity{ContainerID: "news", ItemID: "abc"}, id)
	assert.Equal(t, message.KindNavigated, n.Kind())

	_, ok = message.NavigatedTo("https://www.reddit.com/r/news/").Identity()
	assert.False(t, ok)
}

func TestTabContext(t *testing.T) {
	id, ok := message.TabContext("42").TabID()
	assert.True(t, ok)
	assert.Equal(t, "42", id)

	_, ok = message.Background.TabID()
	assert.False(t, ok)
}

func TestEnvelopeIDsAreUnique(t *testing.T) {
	a := message.New(message.Popup, message.Background, message.CheckCurrent{})
	b := message.New(message.Popup, message.Background, message.CheckCurrent{})
	assert.NotEqual(t, a.ID, b.ID)
}

func TestReplyFor(t *testing.T) {
	r := message.ReplyFor(analysis.Result{Score: 7.5, Flags: []string{"Verified"}}, true)
	assert.Equal(t, message.Reply{Score: 7.5, Flags: []string{"Verified"}}, r)
	assert.NoError(t, r.Err())

	empty := message.ReplyFor(analysis.Result{}, false)
	assert.Equal(t, "No analysis available", empty.Error)
	assert.ErrorIs(t, empty.Err(), message.ErrNoAnalysis)

	assert.EqualError(t, message.Reply{Error: "boom"}.Err(), "boom")
}
