// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// suggest.go - Typo correction for commands and slash commands.
package cli

import (
	"strings"
)

// validCommands lists top-level commands and their aliases.
var validCommands = []string{
	"chat",
	"ask",
	"sessions",
	"models",
	"quota",
	"config",
	"login",
	"logout",
	"version",
	"help",
	// Aliases
	"session",
	"model",
}

// slashCommands lists REPL commands, including aliases.
var slashCommands = []string{
	"/help", "/new", "/clear", "/sessions", "/switch", "/models", "/model",
	"/templates", "/template", "/system", "/stream", "/ctx", "/temp",
	"/history", "/settings", "/show", "/export", "/quota", "/login", "/logout",
	"/quit", "/exit",
}

// SuggestCommand returns the closest top-level command to input, or "".
func SuggestCommand(input string) string {
	return suggest(strings.ToLower(input), validCommands)
}

// SuggestSlashCommand returns the closest slash command to input, or "".
func SuggestSlashCommand(input string) string {
	return suggest(strings.ToLower(input), slashCommands)
}

// suggest picks the candidate with the smallest edit distance within a
// length-dependent threshold.
func suggest(input string, candidates []string) string {
	if len(strings.TrimPrefix(input, "/")) < 2 {
		return ""
	}

	// Short inputs allow one edit, medium two, long three.
	maxDistance := 1
	if len(input) >= 4 {
		maxDistance = 2
	}
	if len(input) > 8 {
		maxDistance = 3
	}

	bestMatch := ""
	bestDistance := -1
	for _, cmd := range candidates {
		distance := levenshteinDistance(input, cmd)
		if distance == 0 {
			return ""
		}
		if distance <= maxDistance && (bestDistance == -1 || distance < bestDistance) {
			bestDistance = distance
			bestMatch = cmd
		}
	}
	return bestMatch
}

// levenshteinDistance is the number of single-character edits between s1
// and s2.
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	cols := len(s2) + 1
	prev := make([]int, cols)
	curr := make([]int, cols)
	for j := 0; j < cols; j++ {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j < cols; j++ {
			cost := 0
			if s1[i-1] != s2[j-1] {
				cost = 1
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[cols-1]
}
