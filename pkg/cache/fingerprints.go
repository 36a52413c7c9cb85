package cache

import "sort"

// FingerprintSet is a set of capture fingerprints
type FingerprintSet map[string]struct{}

// NewFingerprintSet builds a set from the given fingerprints
func NewFingerprintSet(fps ...string) FingerprintSet {
	s := make(FingerprintSet, len(fps))
	for _, fp := range fps {
		s.Add(fp)
	}
	return s
}

// Add inserts fp; empty fingerprints are ignored
func (s FingerprintSet) Add(fp string) {
	if fp == "" {
		return
	}
	s[fp] = struct{}{}
}

// Has reports whether fp is in the set
func (s FingerprintSet) Has(fp string) bool {
	if fp == "" {
		return false
	}
	_, ok := s[fp]
	return ok
}

// Union adds every member of other and returns how many were new
func (s FingerprintSet) Union(other FingerprintSet) int {
	added := 0
	for fp := range other {
		if !s.Has(fp) {
			s.Add(fp)
			added++
		}
	}
	return added
}

// Len returns the number of fingerprints
func (s FingerprintSet) Len() int {
	return len(s)
}

// Sorted returns the members in ascending order
func (s FingerprintSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for fp := range s {
		out = append(out, fp)
	}
	sort.Strings(out)
	return out
}
