package query

import (
	"fmt"
	"strings"
)

// AllClasses disables the class filter.
const AllClasses = "All"

// Direction is the sort direction.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// ParseDirection accepts "asc"/"desc" in any case; empty means ascending.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	}
	return "", fmt.Errorf("invalid sort direction %q", s)
}

// SortState is the active sort column and direction. An empty Key means
// the canonical order.
type SortState struct {
	Key       string    `json:"key,omitempty"`
	Direction Direction `json:"direction"`
}

// Toggle selects key: the same key flips the direction, a new key starts
// ascending.
func (s SortState) Toggle(key string) SortState {
	if key == s.Key && s.Direction != Descending {
		return SortState{Key: key, Direction: Descending}
	}
	return SortState{Key: key, Direction: Ascending}
}

// Params are the inputs of one query.
type Params struct {
	Class  string    `json:"class"`
	Search string    `json:"search,omitempty"`
	Sort   SortState `json:"sort"`
}

// DefaultParams returns the identity query.
func DefaultParams() Params {
	return Params{Class: AllClasses, Sort: SortState{Direction: Ascending}}
}

// Normalize fills defaults.
func (p Params) Normalize() Params {
	if p.Class == "" {
		p.Class = AllClasses
	}
	if p.Sort.Direction == "" {
		p.Sort.Direction = Ascending
	}
	return p
}
