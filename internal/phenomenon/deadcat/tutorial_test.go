package deadcat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phenomsim/internal/news"
	"phenomsim/internal/phenomenon"
)

func TestTutorialHint(t *testing.T) {
	src := string(Kind)

	hint := tutorialHint(news.Item{Source: src, Kind: NewsCrash})
	require.NotNil(t, hint)
	assert.Contains(t, hint.Type, "CRASH")

	hint = tutorialHint(news.Item{Source: src, Kind: NewsBounce, Meta: news.Metadata{BouncePhase: BounceStarting, VolumeIndicator: "rising"}})
	require.NotNil(t, hint)
	assert.Equal(t, "Volume rising. Needs >50% retracement and rising volume.", hint.Description)

	hint = tutorialHint(news.Item{Source: src, Kind: NewsBounce, Meta: news.Metadata{BouncePhase: BounceRepeatAttempt, BounceNumber: 2}})
	require.NotNil(t, hint)
	assert.Equal(t, "BOUNCE #2 - VERY RISKY (~20% probability)", hint.Type)

	hint = tutorialHint(news.Item{Source: src, Kind: NewsBounce, Meta: news.Metadata{BouncePhase: BounceRepeatAttempt, BounceNumber: 5}})
	require.NotNil(t, hint)
	assert.Contains(t, hint.Type, "~10%")

	assert.NotNil(t, tutorialHint(news.Item{Source: src, Kind: NewsRecoveryComplete}))
	assert.Nil(t, tutorialHint(news.Item{Source: src, Kind: NewsBounce, Meta: news.Metadata{BouncePhase: BounceProgress}}))
	assert.Nil(t, tutorialHint(news.Item{Source: "insider_buying", Kind: NewsCrash}))
}

func TestTutorialHintDoesNotMutate(t *testing.T) {
	it := news.Item{Source: string(Kind), Kind: NewsBounce, Meta: news.Metadata{BouncePhase: BounceFailed}}
	before := it
	e := New(DefaultConfig(), phenomenon.Deps{})
	_ = e.TutorialHint(it)
	assert.Equal(t, before, it)
}
