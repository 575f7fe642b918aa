// Package timewindow converts user-supplied local HH:MM windows into
// UTC intervals for forecast comparison.
package timewindow

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrInvalidTimeFormat is returned when an HH:MM token does not parse to two
// in-range integers.
var ErrInvalidTimeFormat = eris.New("timewindow: invalid HH:MM format")

// ParseHM parses a strict 24h "HH:MM" token.
func ParseHM(hm string) (hour, minute int, err error) {
	parts := strings.Split(hm, ":")
	if len(parts) != 2 {
		return 0, 0, eris.Wrapf(ErrInvalidTimeFormat, "%q", hm)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, eris.Wrapf(ErrInvalidTimeFormat, "%q", hm)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, eris.Wrapf(ErrInvalidTimeFormat, "%q", hm)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, eris.Wrapf(ErrInvalidTimeFormat, "%q out of range", hm)
	}
	return hour, minute, nil
}

// Resolve interprets startHM and endHM as today-local times in loc and
// returns the window as UTC instants. When end is not after start the end
// rolls forward one day: the window crosses midnight, it is never zero or
// negative length. This is the production policy.
func Resolve(startHM, endHM string, loc *time.Location, now time.Time) (start, end time.Time, err error) {
	sh, sm, err := ParseHM(startHM)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	eh, em, err := ParseHM(endHM)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	local := now.In(loc)
	start = time.Date(local.Year(), local.Month(), local.Day(), sh, sm, 0, 0, loc)
	end = time.Date(local.Year(), local.Month(), local.Day(), eh, em, 0, 0, loc)
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start.UTC(), end.UTC(), nil
}

// ResolveFromNow pins the window start to now and ends it at endHM today-local.
// An end at or before now is an error rather than a rollover; this is the
// strict legacy policy for "from now" timing.
func ResolveFromNow(endHM string, loc *time.Location, now time.Time) (start, end time.Time, err error) {
	eh, em, err := ParseHM(endHM)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	local := now.In(loc)
	end = time.Date(local.Year(), local.Month(), local.Day(), eh, em, 0, 0, loc)
	if !end.After(local) {
		return time.Time{}, time.Time{}, eris.Errorf(
			"timewindow: end time must be later than now; now=%s end=%s",
			local.Format("15:04"), endHM)
	}
	return local.UTC(), end.UTC(), nil
}

// SlotOverlaps reports whether a forecast slot [slotStart, slotStart+slotLen)
// overlaps the window [start, end). Both intervals are half-open; touching
// endpoints do not overlap.
func SlotOverlaps(slotStart time.Time, slotLen time.Duration, start, end time.Time) bool {
	slotEnd := slotStart.Add(slotLen)
	return slotStart.Before(end) && slotEnd.After(start)
}
