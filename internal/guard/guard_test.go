package guard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string {
	return &s
}

func TestEvaluate_NilOrEmptyBaselineNeverBlocks(t *testing.T) {
	g := New(DefaultThresholds())

	assert.False(t, g.Evaluate(nil, "").Blocked)
	assert.False(t, g.Evaluate(strPtr(""), "").Blocked)
	assert.False(t, g.Evaluate(nil, strings.Repeat("x", 1000)).Blocked)
}

func TestEvaluate_GrowthNeverBlocks(t *testing.T) {
	g := New(DefaultThresholds())

	v := g.Evaluate(strPtr(strings.Repeat("a", 300)), strings.Repeat("a", 600))
	assert.False(t, v.Blocked)
	assert.Equal(t, -300, v.LostChars)
}

func TestEvaluate_Thresholds(t *testing.T) {
	g := New(DefaultThresholds())

	tests := []struct {
		name      string
		prevLen   int
		candLen   int
		blocked   bool
		lostChars int
	}{
		{"scenario A: 10% loss of 200", 200, 180, false, 20},
		{"scenario B: total loss of 300", 300, 0, true, 300},
		{"small file shrinks by half but under 50 chars", 80, 40, false, 40},
		{"large file loses many chars under 20%", 1000, 850, false, 150},
		{"exactly 20% is allowed", 1000, 800, false, 200},
		{"exactly 50 chars is allowed", 100, 50, false, 50},
		{"51 chars and 51%", 100, 49, true, 51},
		{"just over 20% and 50 chars", 300, 239, true, 61},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := g.Evaluate(strPtr(strings.Repeat("a", tt.prevLen)), strings.Repeat("a", tt.candLen))
			assert.Equal(t, tt.blocked, v.Blocked)
			assert.Equal(t, tt.lostChars, v.LostChars)
		})
	}
}

func TestEvaluate_CountsCharactersNotBytes(t *testing.T) {
	g := New(DefaultThresholds())

	// 100 three-byte runes shrinking to 60: 40 chars lost, under the absolute limit.
	prev := strings.Repeat("€", 100)
	v := g.Evaluate(&prev, strings.Repeat("€", 60))
	assert.False(t, v.Blocked)
	assert.Equal(t, 40, v.LostChars)
	assert.InDelta(t, 0.4, v.LostPercent, 1e-9)
}

func TestEvaluate_CustomThresholds(t *testing.T) {
	g := New(Thresholds{MaxLossPercent: 0.5, MaxLossChars: 10})

	assert.False(t, g.Evaluate(strPtr(strings.Repeat("a", 100)), strings.Repeat("a", 60)).Blocked)
	assert.True(t, g.Evaluate(strPtr(strings.Repeat("a", 100)), strings.Repeat("a", 40)).Blocked)
}

func TestNew_FallsBackToDefaults(t *testing.T) {
	g := New(Thresholds{MaxLossPercent: 0, MaxLossChars: -1})
	assert.Equal(t, DefaultThresholds(), g.Thresholds())
}

func TestRestored(t *testing.T) {
	g := New(DefaultThresholds())
	prev := strPtr(strings.Repeat("a", 300))

	assert.False(t, g.Restored(prev, ""))
	assert.True(t, g.Restored(prev, strings.Repeat("a", 250)), "loss of 50 chars is back within limits")
	assert.True(t, g.Restored(prev, strings.Repeat("a", 240)), "loss of exactly 20% is back within limits")
	assert.True(t, g.Restored(nil, ""))
}

func TestVerdictMessage(t *testing.T) {
	g := New(DefaultThresholds())
	v := g.Evaluate(strPtr(strings.Repeat("a", 300)), "")
	assert.Equal(t, "Content loss detected: 100% (300 characters) would be removed", v.Message())
}
