package news

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedRejectsSameDayDuplicate(t *testing.T) {
	f := NewFeed()
	f.Reset(3)

	require.True(t, f.Publish(Item{Symbol: "AAA", Headline: "AAA bounces"}))
	assert.False(t, f.Publish(Item{Symbol: "AAA", Headline: "AAA bounces"}))
	assert.True(t, f.Publish(Item{Symbol: "BBB", Headline: "AAA bounces"}), "other symbol may reuse text")

	items := f.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 3, items[0].Day)
	assert.Equal(t, 1, f.CountFor("AAA"))
}

func TestFeedResetAllowsHeadlineNextDay(t *testing.T) {
	f := NewFeed()
	f.Reset(1)
	require.True(t, f.Publish(Item{Symbol: "AAA", Headline: "AAA bounces"}))
	first := f.Items()[0].ID

	f.Reset(2)
	assert.Empty(t, f.Items())
	require.True(t, f.Publish(Item{Symbol: "AAA", Headline: "AAA bounces"}))
	assert.NotEqual(t, first, f.Items()[0].ID)
}

func TestItemIDIsStable(t *testing.T) {
	assert.Equal(t, ItemID(4, "AAA", "x"), ItemID(4, "AAA", "x"))
	assert.NotEqual(t, ItemID(4, "AAA", "x"), ItemID(5, "AAA", "x"))
}

func TestSentimentSign(t *testing.T) {
	assert.Equal(t, 1, Positive.Sign())
	assert.Equal(t, -1, Negative.Sign())
	assert.Equal(t, 0, Neutral.Sign())
}
