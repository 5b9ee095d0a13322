package appointment

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStatusEventsCarryAppointmentID(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, f.patient, "10:00")
	if _, _, err := f.svc.Confirm(context.Background(), appt.ID, f.doctor.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), appt.ID, f.patient); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	want := []string{
		EventAppointmentRequested,
		EventAppointmentConfirmed,
		EventChatRoomOpened,
		EventAppointmentCancelled,
		EventChatRoomClosed,
	}
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	if len(f.repo.events) != len(want) {
		t.Fatalf("events = %d, want %d", len(f.repo.events), len(want))
	}
	for i, ev := range f.repo.events {
		if ev.EventType != want[i] {
			t.Errorf("event %d = %s, want %s", i, ev.EventType, want[i])
		}
		if ev.AppointmentID == nil || *ev.AppointmentID != appt.ID {
			t.Errorf("event %s not tied to appointment %s", ev.EventType, appt.ID)
		}
	}
}

func TestFailedEventWriteRollsBackBooking(t *testing.T) {
	f := newFixture(t)
	f.repo.failEvents = true

	_, err := f.svc.AttemptBook(context.Background(), BookingRequest{
		Actor:    patient(f.patient),
		DoctorID: f.doctor.ID,
		Day:      may1,
		Slot:     "10:00",
	}, earlyAM)
	if !errors.Is(err, errEventWrite) {
		t.Fatalf("err = %v, want the event write error", err)
	}

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if n := f.repo.countAt(f.doctor.ID, at); n != 0 {
		t.Fatalf("%d appointments written without their event", n)
	}
	if got := f.repo.eventTypes(); len(got) != 0 {
		t.Errorf("events = %v", got)
	}
}

func TestFailedEventWriteKeepsStatus(t *testing.T) {
	tests := []struct {
		name string
		run  func(f *fixture, appt *Appointment) error
	}{
		{"confirm", func(f *fixture, appt *Appointment) error {
			_, _, err := f.svc.Confirm(context.Background(), appt.ID, f.doctor.ID)
			return err
		}},
		{"complete", func(f *fixture, appt *Appointment) error {
			_, err := f.svc.Complete(context.Background(), appt.ID, f.doctor.ID, "rest and fluids")
			return err
		}},
		{"cancel", func(f *fixture, appt *Appointment) error {
			_, err := f.svc.Cancel(context.Background(), appt.ID, f.patient)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			appt := f.book(t, f.patient, "10:00")
			f.repo.failEvents = true

			if err := tt.run(f, appt); !errors.Is(err, errEventWrite) {
				t.Fatalf("err = %v, want the event write error", err)
			}
			if got := f.repo.status(appt.ID); got != StatusPending {
				t.Errorf("status = %s, want pending", got)
			}
			if got := f.repo.eventTypes(); len(got) != 1 || got[0] != EventAppointmentRequested {
				t.Errorf("events = %v", got)
			}
			if n := f.repo.roomCount(); n != 0 {
				t.Errorf("%d rooms opened for an unconfirmed appointment", n)
			}
		})
	}
}
