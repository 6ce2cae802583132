package core

import (
	"math"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Round2 rounds f to 2 decimal places.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// StringInSlice reports whether s is in list.
func StringInSlice(s string, list []string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// UniqueStrings returns the distinct non-empty values of list, keeping the first-seen order.
func UniqueStrings(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	uniq := make([]string, 0, len(list))
	for _, s := range list {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		uniq = append(uniq, s)
	}
	return uniq
}
