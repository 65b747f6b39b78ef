package model

import (
	"encoding/json"
	"slices"
)

// IntSet is a set of integers serialised as a sorted JSON array.
type IntSet map[int]struct{}

// Add inserts v.
func (s IntSet) Add(v int) { s[v] = struct{}{} }

// Has reports whether v is in the set.
func (s IntSet) Has(v int) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns the members in ascending order.
func (s IntSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// MarshalJSON implements json.Marshaler.
func (s IntSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *IntSet) UnmarshalJSON(data []byte) error {
	var vals []int
	if err := json.Unmarshal(data, &vals); err != nil {
		return err
	}
	*s = make(IntSet, len(vals))
	for _, v := range vals {
		(*s)[v] = struct{}{}
	}
	return nil
}

// StringSet is a set of strings serialised as a sorted JSON array.
type StringSet map[string]struct{}

// Add inserts v.
func (s StringSet) Add(v string) { s[v] = struct{}{} }

// Has reports whether v is in the set.
func (s StringSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns the members in ascending order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// MarshalJSON implements json.Marshaler.
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var vals []string
	if err := json.Unmarshal(data, &vals); err != nil {
		return err
	}
	*s = make(StringSet, len(vals))
	for _, v := range vals {
		(*s)[v] = struct{}{}
	}
	return nil
}
