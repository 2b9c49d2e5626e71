package service

import (
	"slices"
	"time"
)

// OccupancyFunc reports whether a candidate slot is already taken.
type OccupancyFunc func(slot time.Time) (bool, error)

// SlotScheduler picks publication slots out of a fixed set of daily hours.
type SlotScheduler struct {
	hours       []int
	loc         *time.Location
	horizonDays int
}

func NewSlotScheduler(hours []int, loc *time.Location, horizonDays int) *SlotScheduler {
	sorted := slices.Clone(hours)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	if loc == nil {
		loc = time.UTC
	}
	return &SlotScheduler{hours: sorted, loc: loc, horizonDays: horizonDays}
}

// FindNextAvailableSlot scans forward from the calendar date of ref and
// returns the first candidate hour strictly after ref that occupied does not
// report as taken. The result is in UTC.
func (s *SlotScheduler) FindNextAvailableSlot(ref time.Time, occupied OccupancyFunc) (time.Time, error) {
	if len(s.hours) == 0 {
		return time.Time{}, ErrNoSlotAvailable
	}

	local := ref.In(s.loc)
	year, month, day := local.Date()

	for offset := 0; offset <= s.horizonDays; offset++ {
		for _, hour := range s.hours {
			candidate := time.Date(year, month, day+offset, hour, 0, 0, 0, s.loc)
			// hour falls in a DST gap and was normalized to another hour
			if candidate.Hour() != hour {
				continue
			}
			if !candidate.After(ref) {
				continue
			}

			taken, err := occupied(candidate.UTC())
			if err != nil {
				return time.Time{}, err
			}
			if !taken {
				return candidate.UTC(), nil
			}
		}
	}
	return time.Time{}, ErrNoSlotAvailable
}

// Hours returns the candidate hours in ascending order.
func (s *SlotScheduler) Hours() []int {
	return slices.Clone(s.hours)
}

// SlotSet is an in-memory occupancy snapshot.
type SlotSet map[int64]struct{}

func NewSlotSet(slots ...time.Time) SlotSet {
	set := make(SlotSet, len(slots))
	for _, t := range slots {
		set.Add(t)
	}
	return set
}

func (s SlotSet) Add(t time.Time) {
	s[t.Unix()] = struct{}{}
}

func (s SlotSet) Occupied(t time.Time) (bool, error) {
	_, ok := s[t.Unix()]
	return ok, nil
}
