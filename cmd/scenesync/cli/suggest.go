// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

// closest returns the candidate name most likely meant by a mistyped
// name. A unique candidate that name abbreviates wins outright;
// otherwise the nearest candidate within a few edits, scaled to the
// length of name. Returns "" when nothing is close.
func closest(name string, candidates []string) string {
	var abbreviated []string
	for _, candidate := range candidates {
		if candidate != name && strings.HasPrefix(candidate, name) {
			abbreviated = append(abbreviated, candidate)
		}
	}
	if len(abbreviated) == 1 && name != "" {
		return abbreviated[0]
	}

	limit := min(3, max(1, len(name)/2))
	best, bestDistance := "", limit+1
	for _, candidate := range candidates {
		if distance := editDistance(name, candidate); distance < bestDistance {
			best, bestDistance = candidate, distance
		}
	}
	return best
}

// suggestFlag returns the defined flag nearest to the first unknown
// long flag in args, with its "--" prefix.
func suggestFlag(args []string, flagSet *pflag.FlagSet) string {
	var names []string
	flagSet.VisitAll(func(flag *pflag.Flag) { names = append(names, flag.Name) })

	for _, arg := range args {
		if arg == "--" {
			return ""
		}
		name, isLong := strings.CutPrefix(arg, "--")
		if !isLong {
			continue
		}
		name, _, _ = strings.Cut(name, "=")
		if flagSet.Lookup(name) != nil {
			continue
		}
		if suggestion := closest(name, names); suggestion != "" {
			return "--" + suggestion
		}
		return ""
	}
	return ""
}

// editDistance is the optimal string alignment distance: insertions,
// deletions, substitutions, and swaps of adjacent runes each cost one.
func editDistance(a, b string) int {
	left, right := []rune(a), []rune(b)
	table := make([][]int, len(left)+1)
	for i := range table {
		table[i] = make([]int, len(right)+1)
		table[i][0] = i
	}
	for j := range table[0] {
		table[0][j] = j
	}
	for i := 1; i <= len(left); i++ {
		for j := 1; j <= len(right); j++ {
			cost := 1
			if left[i-1] == right[j-1] {
				cost = 0
			}
			table[i][j] = min(table[i-1][j]+1, table[i][j-1]+1, table[i-1][j-1]+cost)
			if i > 1 && j > 1 && left[i-1] == right[j-2] && left[i-2] == right[j-1] {
				table[i][j] = min(table[i][j], table[i-2][j-2]+1)
			}
		}
	}
	return table[len(left)][len(right)]
}
