package models

import "strings"

// Bench is the name of a reservable workstation in the room
type Bench string

// DefaultBenches is the bench enumeration used when none is configured
var DefaultBenches = []Bench{"General", "RF", "Parametric", "Assembly", "Rework"}

// ParseBenches converts a comma-separated list into benches, skipping blanks
func ParseBenches(s string) []Bench {
	parts := strings.Split(s, ",")
	benches := make([]Bench, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			benches = append(benches, Bench(p))
		}
	}
	return benches
}

// BenchNames converts benches to plain strings
func BenchNames(benches []Bench) []string {
	names := make([]string, len(benches))
	for i, b := range benches {
		names[i] = string(b)
	}
	return names
}

// ContainsBench reports whether bench is in benches
func ContainsBench(benches []Bench, bench Bench) bool {
	for _, b := range benches {
		if b == bench {
			return true
		}
	}
	return false
}

// UnionBenches returns current followed by the members of added not already present.
// Duplicates inside added are collapsed as well.
func UnionBenches(current, added []Bench) []Bench {
	result := make([]Bench, 0, len(current)+len(added))
	seen := make(map[Bench]struct{}, len(current)+len(added))
	for _, list := range [][]Bench{current, added} {
		for _, b := range list {
			if _, ok := seen[b]; ok {
				continue
			}
			seen[b] = struct{}{}
			result = append(result, b)
		}
	}
	return result
}

// SubtractBenches returns the members of current that are not in removed, keeping order
func SubtractBenches(current, removed []Bench) []Bench {
	result := make([]Bench, 0, len(current))
	for _, b := range current {
		if !ContainsBench(removed, b) {
			result = append(result, b)
		}
	}
	return result
}
