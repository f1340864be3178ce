package batch

import "sort"

// Mode selects between the two mutually exclusive selection behaviours.
type Mode int

const (
	// ModeSingle keeps at most one selected date; selecting replaces it.
	ModeSingle Mode = iota
	// ModeMulti accumulates a set of distinct dates; selecting toggles.
	ModeMulti
)

// SelectionSet tracks the dates the user has marked for the next batch
// action. It is cleared on mode toggle, on batch completion, and on explicit
// cancel; a failed batch leaves it intact for correction.
//
// SelectionSet is not safe for concurrent use; it belongs to the single
// UI-driven event loop.
type SelectionSet struct {
	mode  Mode
	dates map[string]struct{}
}

// NewSelectionSet returns an empty single-select set.
func NewSelectionSet() *SelectionSet {
	return &SelectionSet{mode: ModeSingle, dates: make(map[string]struct{})}
}

// Mode returns the active selection mode.
func (s *SelectionSet) Mode() Mode {
	return s.mode
}

// SetMode switches selection modes. Toggling always clears the selection.
func (s *SelectionSet) SetMode(mode Mode) {
	if mode != s.mode {
		s.mode = mode
		s.Clear()
	}
}

// Select marks a date. In single mode it replaces the current selection; in
// multi mode it toggles membership.
func (s *SelectionSet) Select(date string) {
	if s.mode == ModeSingle {
		s.Clear()
		s.dates[date] = struct{}{}
		return
	}
	if _, ok := s.dates[date]; ok {
		delete(s.dates, date)
		return
	}
	s.dates[date] = struct{}{}
}

// Clear empties the selection without changing the mode.
func (s *SelectionSet) Clear() {
	s.dates = make(map[string]struct{})
}

// Empty reports whether no dates are selected.
func (s *SelectionSet) Empty() bool {
	return len(s.dates) == 0
}

// Len returns the number of selected dates.
func (s *SelectionSet) Len() int {
	return len(s.dates)
}

// Contains reports whether the date is currently selected.
func (s *SelectionSet) Contains(date string) bool {
	_, ok := s.dates[date]
	return ok
}

// Dates returns the selected date keys in ascending order.
func (s *SelectionSet) Dates() []string {
	dates := make([]string, 0, len(s.dates))
	for date := range s.dates {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}
