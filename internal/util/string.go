// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"math"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/unicode/norm"
)

// Ellipsis is appended by the truncation helpers.
const Ellipsis = "…"

// CollapseSpace trims s and folds every run of whitespace into one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SummarizeTitle turns a prompt into a short conversation title.
// Whitespace is collapsed, the text is NFC-normalized, and anything longer
// than maxRunes is cut to maxRunes characters followed by an ellipsis.
// An empty prompt yields fallback.
func SummarizeTitle(prompt string, maxRunes int, fallback string) string {
	t := norm.NFC.String(CollapseSpace(prompt))
	if t == "" {
		return fallback
	}
	runes := []rune(t)
	if len(runes) <= maxRunes {
		return t
	}
	return string(runes[:maxRunes]) + Ellipsis
}

// TruncateRunes cuts s to at most maxRunes characters, the last of which is
// an ellipsis when anything was removed.
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes == 1 {
		return string(runes[:1])
	}
	return string(runes[:maxRunes-1]) + Ellipsis
}

// TruncateWidth cuts s to fit maxWidth terminal columns.
// Wide characters (CJK, emoji) count as two columns.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	return runewidth.Truncate(s, maxWidth, Ellipsis)
}

// PadWidth right-pads s with spaces to width columns.
func PadWidth(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// ClampInt bounds v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampFloat bounds v to [lo, hi]. NaN maps to lo.
func ClampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
