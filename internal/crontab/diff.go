package crontab

import "sort"

// Diff is the line-level change between two crontab snapshots.
type Diff struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// diffLines compares two snapshots as multisets, so duplicate lines are
// counted rather than collapsed.
func diffLines(before, after []string) Diff {
	counts := make(map[string]int, len(before))
	for _, l := range before {
		counts[l]++
	}
	var d Diff
	for _, l := range after {
		if counts[l] > 0 {
			counts[l]--
			continue
		}
		d.Added = append(d.Added, l)
	}
	for _, l := range before {
		if counts[l] > 0 {
			counts[l]--
			d.Removed = append(d.Removed, l)
		}
	}
	return d
}

// sameLines reports whether a and b hold the same lines with the same multiplicity.
func sameLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
