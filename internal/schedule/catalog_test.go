package schedule

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"
)

func TestCatalogSlotsContiguous(t *testing.T) {
	for first := 0; first <= 23; first++ {
		for last := first; last <= 23; last++ {
			c, err := NewCatalog(first, last, time.UTC)
			if err != nil {
				t.Fatalf("NewCatalog(%d, %d): %v", first, last, err)
			}
			slots := c.Slots()
			if len(slots) != last-first+1 {
				t.Fatalf("NewCatalog(%d, %d): got %d slots, want %d", first, last, len(slots), last-first+1)
			}
			for i, s := range slots {
				if s.Hour() != first+i {
					t.Fatalf("NewCatalog(%d, %d): slot %d = %d, want %d", first, last, i, s.Hour(), first+i)
				}
			}
		}
	}
}

func TestDefaultCatalog(t *testing.T) {
	got := Labels(DefaultCatalog().Slots())
	want := []string{"10:00", "11:00", "12:00", "13:00", "14:00", "15:00", "16:00", "17:00"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("slot %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestNewCatalogRejectsBadBounds(t *testing.T) {
	tests := []struct {
		name        string
		first, last int
	}{
		{"inverted", 17, 10},
		{"negative", -1, 5},
		{"past midnight", 10, 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCatalog(tt.first, tt.last, nil); !errors.Is(err, ErrInvalidBounds) {
				t.Errorf("expected ErrInvalidBounds, got %v", err)
			}
		})
	}
}

func TestParseSlot(t *testing.T) {
	tests := []struct {
		in      string
		want    Slot
		wantErr bool
	}{
		{"10:00", 10, false},
		{"09:00", 9, false},
		{"9:00", 9, false},
		{" 17:00 ", 17, false},
		{"10:30", 0, true},
		{"25:00", 0, true},
		{"10", 0, true},
		{"", 0, true},
		{"ab:00", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSlot(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidSlot) {
				t.Errorf("ParseSlot(%q): expected ErrInvalidSlot, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSlot(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSlot(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCatalogParseMembership(t *testing.T) {
	c := DefaultCatalog()
	if _, err := c.Parse("18:00"); !errors.Is(err, ErrInvalidSlot) {
		t.Errorf("18:00 should be outside the default catalog, got %v", err)
	}
	if s, err := c.Parse("17:00"); err != nil || s != 17 {
		t.Errorf("Parse(17:00) = %v, %v", s, err)
	}
}

func TestSlotOf(t *testing.T) {
	c := DefaultCatalog()
	if s, ok := c.SlotOf(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)); !ok || s != 10 {
		t.Errorf("SlotOf(10:00) = %v, %v", s, ok)
	}
	if _, ok := c.SlotOf(time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)); ok {
		t.Error("10:30 is off the grid")
	}
	if _, ok := c.SlotOf(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)); ok {
		t.Error("08:00 is outside the catalog")
	}
}

func TestAtAndDayBoundsUseLocation(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	c, err := NewCatalog(10, 17, loc)
	if err != nil {
		t.Fatal(err)
	}
	day, err := c.ParseDate("2024-05-01")
	if err != nil {
		t.Fatal(err)
	}
	at := c.At(day, 10)
	if !at.Equal(time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC)) {
		t.Errorf("At = %v", at.UTC())
	}
	start, end := c.DayBounds(at)
	if end.Sub(start) != 24*time.Hour || !start.Equal(day) {
		t.Errorf("DayBounds = %v..%v", start, end)
	}
	if _, err := c.ParseDate("05/01/2024"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}

func TestAtAcrossDaylightSaving(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewCatalog(10, 17, london)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		day     string
		tenUTC  time.Time
		dayLong time.Duration
	}{
		// clocks go forward at 01:00 GMT
		{"2024-03-31", time.Date(2024, 3, 31, 9, 0, 0, 0, time.UTC), 23 * time.Hour},
		// clocks go back at 02:00 BST
		{"2024-10-27", time.Date(2024, 10, 27, 10, 0, 0, 0, time.UTC), 25 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.day, func(t *testing.T) {
			day, err := c.ParseDate(tt.day)
			if err != nil {
				t.Fatal(err)
			}
			if at := c.At(day, 10); !at.Equal(tt.tenUTC) {
				t.Errorf("At(10:00) = %v, want %v", at.UTC(), tt.tenUTC)
			}
			for _, s := range c.Slots() {
				at := c.At(day, s)
				if at.In(london).Hour() != s.Hour() {
					t.Errorf("At(%s) is %s local", s, at.In(london).Format("15:04"))
				}
				got, ok := c.SlotOf(at)
				if !ok || got != s {
					t.Errorf("SlotOf(At(%s)) = %v, %v", s, got, ok)
				}
			}
			start, end := c.DayBounds(day)
			if end.Sub(start) != tt.dayLong {
				t.Errorf("DayBounds spans %s, want %s", end.Sub(start), tt.dayLong)
			}
		})
	}
}
