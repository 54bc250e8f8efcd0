package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openseek/openseek/server/profile"
)

func TestStrategyFromConfig(t *testing.T) {
	s, err := StrategyFromConfig(profile.StrategyConfig{
		Mode:               "tool-call-only",
		LoopTransform:      "split-trailing-text",
		FinalizerTransform: "collapse-to-answer",
		RelatedTransform:   "identity",
		MaxRounds:          3,
	})
	require.NoError(t, err)
	assert.Equal(t, ModeToolCallOnly, s.Mode)
	assert.Equal(t, TransformSplitTrailingText, s.LoopTransform)
	assert.Equal(t, TransformCollapseToAnswer, s.FinalizerTransform)
	assert.Equal(t, 3, s.MaxRounds)
}

func TestStrategyFromConfigDefaultsMaxRounds(t *testing.T) {
	s, err := StrategyFromConfig(profile.StrategyConfig{Mode: "standard"})
	require.NoError(t, err)
	assert.Equal(t, 6, s.MaxRounds)
}

func TestStrategyFromConfigRejectsUnknowns(t *testing.T) {
	_, err := StrategyFromConfig(profile.StrategyConfig{Mode: "creative"})
	assert.Error(t, err)

	_, err = StrategyFromConfig(profile.StrategyConfig{Mode: "standard", LoopTransform: "reverse"})
	assert.Error(t, err)
}
