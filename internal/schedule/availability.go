package schedule

import "time"

// SameDate reports whether a and b fall on the same calendar date in the
// catalog location.
func (c Catalog) SameDate(a, b time.Time) bool {
	return c.Date(a).Equal(c.Date(b))
}

// AvailableSlots is the catalog minus the slots already started or starting
// within the current hour. Only today is filtered; every other day gets the
// full catalog. A slot is offered today only when its hour is strictly
// greater than now's hour.
func (c Catalog) AvailableSlots(day, now time.Time) []Slot {
	all := c.Slots()
	if !c.SameDate(day, now) {
		return all
	}

	current := now.In(c.Location()).Hour()
	out := make([]Slot, 0, len(all))
	for _, s := range all {
		if s.Hour() > current {
			out = append(out, s)
		}
	}
	return out
}

func (c Catalog) HasAvailableSlots(day, now time.Time) bool {
	return len(c.AvailableSlots(day, now)) > 0
}

// MinSelectableDate is today when today still has openings, tomorrow otherwise.
func (c Catalog) MinSelectableDate(now time.Time) time.Time {
	today := c.Date(now)
	if c.HasAvailableSlots(today, now) {
		return today
	}
	return today.AddDate(0, 0, 1)
}

// Expired reports whether (day, slot) can no longer be booked at now:
// any earlier day, or today at or before the current hour.
func (c Catalog) Expired(day time.Time, s Slot, now time.Time) bool {
	d, n := c.Date(day), c.Date(now)
	switch {
	case d.Before(n):
		return true
	case d.After(n):
		return false
	default:
		return s.Hour() <= now.In(c.Location()).Hour()
	}
}

// Selectable removes taken slots from an availability list, keeping order.
func Selectable(available, taken []Slot) []Slot {
	if len(taken) == 0 {
		return append([]Slot(nil), available...)
	}
	blocked := make(map[Slot]struct{}, len(taken))
	for _, s := range taken {
		blocked[s] = struct{}{}
	}
	out := make([]Slot, 0, len(available))
	for _, s := range available {
		if _, ok := blocked[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

// Labels renders slots as "HH:00" strings.
func Labels(slots []Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
	}
	return out
}
