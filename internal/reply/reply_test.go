package reply

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_BeginReplacesPrevious(t *testing.T) {
	var banners []Banner
	tr := NewTracker(func(b Banner) { banners = append(banners, b) })

	tr.Begin(1, "أنت", "first", "")
	tr.Begin(2, "friend", "", "صورة")

	d, ok := tr.Current()
	require.True(t, ok)
	assert.Equal(t, int64(2), d.TargetID)

	id := tr.TargetID()
	require.NotNil(t, id)
	assert.Equal(t, int64(2), *id)

	require.Len(t, banners, 2)
	assert.Equal(t, Banner{Visible: true, Sender: "رد على friend", Media: "[صورة]"}, banners[1])
}

func TestTracker_Dismiss(t *testing.T) {
	var last Banner
	tr := NewTracker(func(b Banner) { last = b })

	tr.Begin(5, "friend", "hello", "")
	assert.Equal(t, "hello", last.Content)
	assert.Empty(t, last.Media)

	tr.Dismiss()
	_, ok := tr.Current()
	assert.False(t, ok)
	assert.Nil(t, tr.TargetID())
	assert.False(t, last.Visible)
}
