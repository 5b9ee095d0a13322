// Package schedule holds the fixed daily slot grid and the pure availability
// rules evaluated against it. Nothing here touches storage or the wall clock;
// callers pass the reference instant explicitly.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultFirstHour = 10
	DefaultLastHour  = 17

	DateLayout = "2006-01-02"
)

var (
	ErrInvalidSlot   = errors.New("slot is not part of the schedule")
	ErrInvalidBounds = errors.New("invalid slot bounds")
	ErrInvalidDate   = errors.New("invalid date")
)

// Slot is a bookable hour of the day.
type Slot int

func (s Slot) Hour() int { return int(s) }

// String renders the slot as "HH:00".
func (s Slot) String() string {
	return fmt.Sprintf("%02d:00", int(s))
}

// ParseSlot accepts "HH:00" labels. Anything off the hour grid is rejected.
func ParseSlot(label string) (Slot, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(label), ":")
	if !ok || len(mm) != 2 || len(hh) == 0 || len(hh) > 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSlot, label)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSlot, label)
	}
	if mm != "00" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSlot, label)
	}
	return Slot(hour), nil
}

// Catalog is the ordered set of slots offered every day, first..last hour
// inclusive, interpreted in a single clinic location.
type Catalog struct {
	first Slot
	last  Slot
	loc   *time.Location
}

func NewCatalog(firstHour, lastHour int, loc *time.Location) (Catalog, error) {
	if firstHour < 0 || lastHour > 23 || firstHour > lastHour {
		return Catalog{}, fmt.Errorf("%w: first=%d last=%d", ErrInvalidBounds, firstHour, lastHour)
	}
	if loc == nil {
		loc = time.UTC
	}
	return Catalog{first: Slot(firstHour), last: Slot(lastHour), loc: loc}, nil
}

// DefaultCatalog is 10:00 through 17:00 in UTC.
func DefaultCatalog() Catalog {
	return Catalog{first: DefaultFirstHour, last: DefaultLastHour, loc: time.UTC}
}

func (c Catalog) First() Slot { return c.first }
func (c Catalog) Last() Slot  { return c.last }

func (c Catalog) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Slots returns the full grid. The same sequence is produced for every day.
func (c Catalog) Slots() []Slot {
	out := make([]Slot, 0, int(c.last-c.first)+1)
	for s := c.first; s <= c.last; s++ {
		out = append(out, s)
	}
	return out
}

func (c Catalog) Contains(s Slot) bool {
	return s >= c.first && s <= c.last
}

// Parse parses a label and checks catalog membership.
func (c Catalog) Parse(label string) (Slot, error) {
	s, err := ParseSlot(label)
	if err != nil {
		return 0, err
	}
	if !c.Contains(s) {
		return 0, fmt.Errorf("%w: %s outside %s-%s", ErrInvalidSlot, s, c.first, c.last)
	}
	return s, nil
}

// Date truncates t to midnight of its calendar date in the catalog location.
func (c Catalog) Date(t time.Time) time.Time {
	t = t.In(c.Location())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.Location())
}

// ParseDate reads a "YYYY-MM-DD" value as a calendar date in the catalog location.
func (c Catalog) ParseDate(v string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(v), c.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, v)
	}
	return d, nil
}

// At is the instant a slot starts on the given day, read off the wall clock
// so days with a DST change still land on the labelled hour.
func (c Catalog) At(day time.Time, s Slot) time.Time {
	d := c.Date(day)
	return time.Date(d.Year(), d.Month(), d.Day(), s.Hour(), 0, 0, 0, c.Location())
}

// DayBounds returns [start, end) of the calendar day.
func (c Catalog) DayBounds(day time.Time) (time.Time, time.Time) {
	start := c.Date(day)
	return start, start.AddDate(0, 0, 1)
}

// SlotOf reduces a stored appointment instant to its slot. Instants that do
// not sit on the hour grid or fall outside the catalog report false.
func (c Catalog) SlotOf(t time.Time) (Slot, bool) {
	t = t.In(c.Location())
	if t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0 {
		return 0, false
	}
	s := Slot(t.Hour())
	return s, c.Contains(s)
}
