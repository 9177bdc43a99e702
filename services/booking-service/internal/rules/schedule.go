package rules

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidSchedule = errors.New("date/time outside clinic schedule")

// Canonical scheduling rules for the clinic. Slots start on a fixed
// half-hour grid and must fit entirely inside an operating window.
const (
	SlotMinutes = 30
	SameDayLead = 60 * time.Minute
)

// window is an operating window in minutes from midnight, half-open.
type window struct {
	open  int
	close int
}

var weekWindows = map[time.Weekday][]window{
	time.Monday:    {{9 * 60, 13 * 60}, {15 * 60, 19 * 60}},
	time.Tuesday:   {{9 * 60, 13 * 60}, {15 * 60, 19 * 60}},
	time.Wednesday: {{9 * 60, 13 * 60}, {15 * 60, 19 * 60}},
	time.Thursday:  {{9 * 60, 13 * 60}, {15 * 60, 19 * 60}},
	time.Friday:    {{9 * 60, 13 * 60}, {15 * 60, 19 * 60}},
	time.Saturday:  {{9 * 60, 13 * 60}},
}

// ValidateSchedule checks a slot start against the operating calendar.
// Deterministic given now; callers inject the clock.
func ValidateSchedule(startsAt, now time.Time) error {
	startsAt = startsAt.In(now.Location())

	sy, sm, sd := startsAt.Date()
	ny, nm, nd := now.Date()
	startDay := time.Date(sy, sm, sd, 0, 0, 0, 0, now.Location())
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, now.Location())

	if startDay.Before(today) {
		return fmt.Errorf("%w: date is in the past", ErrInvalidSchedule)
	}
	if startsAt.Second() != 0 || startsAt.Nanosecond() != 0 || startsAt.Minute()%SlotMinutes != 0 {
		return fmt.Errorf("%w: time must be on a %d-minute slot boundary", ErrInvalidSchedule, SlotMinutes)
	}

	windows, open := weekWindows[startsAt.Weekday()]
	if !open {
		return fmt.Errorf("%w: clinic is closed on %s", ErrInvalidSchedule, startsAt.Weekday())
	}
	minute := startsAt.Hour()*60 + startsAt.Minute()
	fits := false
	for _, w := range windows {
		if minute >= w.open && minute+SlotMinutes <= w.close {
			fits = true
			break
		}
	}
	if !fits {
		return fmt.Errorf("%w: %02d:%02d is outside operating hours", ErrInvalidSchedule, startsAt.Hour(), startsAt.Minute())
	}

	if startDay.Equal(today) && startsAt.Sub(now) < SameDayLead {
		return fmt.Errorf("%w: same-day bookings need at least %d minutes of lead time", ErrInvalidSchedule, int(SameDayLead.Minutes()))
	}
	return nil
}

// SlotStarts returns every bookable slot start for the given calendar day,
// in the day's location. Empty on closed days.
func SlotStarts(day time.Time) []time.Time {
	y, m, d := day.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, day.Location())

	var starts []time.Time
	for _, w := range weekWindows[day.Weekday()] {
		for minute := w.open; minute+SlotMinutes <= w.close; minute += SlotMinutes {
			starts = append(starts, midnight.Add(time.Duration(minute)*time.Minute))
		}
	}
	return starts
}

// FreeSlots filters the day's grid down to slots that are not occupied and
// still satisfy the schedule rules relative to now.
func FreeSlots(day time.Time, occupied []time.Time, now time.Time) []time.Time {
	taken := make(map[int64]struct{}, len(occupied))
	for _, t := range occupied {
		taken[t.Unix()] = struct{}{}
	}

	var free []time.Time
	for _, start := range SlotStarts(day) {
		if _, ok := taken[start.Unix()]; ok {
			continue
		}
		if ValidateSchedule(start, now) != nil {
			continue
		}
		free = append(free, start)
	}
	return free
}
