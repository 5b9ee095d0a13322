package appointment

import (
	"errors"
	"fmt"

	"github.com/hackgods/carelink-scheduling/internal/schedule"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("not permitted for this appointment")

	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrChatRoomNotFound    = errors.New("chat room not found")

	ErrInvalidSlot       = schedule.ErrInvalidSlot
	ErrSlotExpired       = errors.New("slot is in the past")
	ErrSlotTaken         = errors.New("that slot was just taken, choose another")
	ErrSlotBusy          = errors.New("slot is currently being booked, please retry")
	ErrDoctorUnavailable = errors.New("doctor is not accepting bookings")
	ErrMissingNotes      = errors.New("consultation notes are required")

	// ErrInvalidStatusTransition is a permission failure: the requested move is
	// not allowed from the appointment's current status.
	ErrInvalidStatusTransition = fmt.Errorf("%w: invalid status transition", ErrForbidden)

	// errStatusChanged is returned by repositories when a conditional update
	// matched no row because the status moved underneath it.
	errStatusChanged = errors.New("appointment status changed")
)
