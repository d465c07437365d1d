// Package guard decides whether a pending save looks like accidental content loss.
//
// A save is suspicious when it removes both a large share of the document and a
// meaningful absolute amount of text. Either condition alone is normal editing:
// small notes shrink by large ratios, and long notes lose whole paragraphs.
package guard

import (
	"fmt"
	"unicode/utf8"
)

const (
	DefaultMaxLossPercent = 0.20
	DefaultMaxLossChars   = 50
)

// Thresholds bound how much content a single save may drop.
type Thresholds struct {
	MaxLossPercent float64
	MaxLossChars   int
}

// DefaultThresholds returns the 20% / 50 character limits.
func DefaultThresholds() Thresholds {
	return Thresholds{MaxLossPercent: DefaultMaxLossPercent, MaxLossChars: DefaultMaxLossChars}
}

// Verdict is the outcome of a single evaluation.
type Verdict struct {
	Blocked     bool
	LostChars   int
	LostPercent float64
}

// Message renders the warning shown to the user for a blocked verdict.
func (v Verdict) Message() string {
	return fmt.Sprintf("Content loss detected: %.0f%% (%d characters) would be removed", v.LostPercent*100, v.LostChars)
}

// ContentLossGuard is a pure size-delta heuristic; it holds no state besides its thresholds.
type ContentLossGuard struct {
	thresholds Thresholds
}

func New(t Thresholds) *ContentLossGuard {
	if t.MaxLossPercent <= 0 {
		t.MaxLossPercent = DefaultMaxLossPercent
	}
	if t.MaxLossChars < 0 {
		t.MaxLossChars = DefaultMaxLossChars
	}
	return &ContentLossGuard{thresholds: t}
}

// Thresholds returns the configured limits.
func (g *ContentLossGuard) Thresholds() Thresholds {
	return g.thresholds
}

// Evaluate compares the last persisted content with a candidate.
// A nil or empty previous value is an unknown baseline and never blocks.
func (g *ContentLossGuard) Evaluate(previous *string, candidate string) Verdict {
	if previous == nil || *previous == "" {
		return Verdict{}
	}
	prevLen := utf8.RuneCountInString(*previous)
	lost := prevLen - utf8.RuneCountInString(candidate)
	percent := float64(lost) / float64(prevLen)
	return Verdict{
		Blocked:     percent > g.thresholds.MaxLossPercent && lost > g.thresholds.MaxLossChars,
		LostChars:   lost,
		LostPercent: percent,
	}
}

// Restored reports whether candidate has come back within the limits of previous,
// which is what clears a blocked document without an explicit override.
func (g *ContentLossGuard) Restored(previous *string, candidate string) bool {
	return !g.Evaluate(previous, candidate).Blocked
}
