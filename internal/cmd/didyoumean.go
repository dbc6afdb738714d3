package cmd

import "strings"

// suggestThreshold is the largest edit distance still worth suggesting.
const suggestThreshold = 3

// levenshtein computes the edit distance between a and b using one row.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}
	if b == "" {
		return len(a)
	}
	row := make([]int, len(b)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(a); i++ {
		diag := row[0]
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			next := min(row[j]+1, row[j-1]+1, diag+cost)
			diag = row[j]
			row[j] = next
		}
	}
	return row[len(b)]
}

// closest returns the candidate nearest to input, compared by key, or ""
// when none is within suggestThreshold. Earlier candidates win ties.
func closest(input string, candidates []string, key func(string) string) string {
	best, bestDist := "", suggestThreshold+1
	for _, c := range candidates {
		if d := levenshtein(input, key(c)); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// suggestCommand finds the closest command name to the unknown input.
func suggestCommand(unknown string, commands []string) string {
	return closest(strings.ToLower(unknown), commands, strings.ToLower)
}

// suggestFlag finds the closest flag to unknown, ignoring leading dashes,
// and returns it with its own prefix.
func suggestFlag(unknown string, flagNames []string) string {
	stripped := strings.ToLower(strings.TrimLeft(unknown, "-"))
	if stripped == "" {
		return ""
	}
	return closest(stripped, flagNames, func(f string) string {
		return strings.ToLower(strings.TrimLeft(f, "-"))
	})
}
