package appointment

import "github.com/google/uuid"

func IsAssignedDoctor(a *Appointment, doctorID uuid.UUID) bool {
	return a != nil && doctorID != uuid.Nil && a.DoctorID == doctorID
}

func IsOwningPatient(a *Appointment, patientID uuid.UUID) bool {
	return a != nil && patientID != uuid.Nil && a.PatientID == patientID
}

// IsParticipant is used for reads: the owning patient, or the assigned doctor
// logged in as userID.
func IsParticipant(d *AppointmentDetail, userID uuid.UUID) bool {
	if d == nil || userID == uuid.Nil {
		return false
	}
	if d.PatientID == userID {
		return true
	}
	return d.Doctor != nil && d.Doctor.UserID != nil && *d.Doctor.UserID == userID
}
