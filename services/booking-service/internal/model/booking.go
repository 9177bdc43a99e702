package model

import "time"

// BookingType is the service category requested for an appointment.
type BookingType string

const (
	TypeConsultation BookingType = "consultation"
	TypeVaccination  BookingType = "vaccination"
	TypeLabAnalysis  BookingType = "lab_analysis"
	TypeGrooming     BookingType = "grooming"
	TypeBathing      BookingType = "bathing"
	TypeImaging      BookingType = "imaging"
)

func ParseBookingType(s string) (BookingType, bool) {
	switch BookingType(s) {
	case TypeConsultation, TypeVaccination, TypeLabAnalysis, TypeGrooming, TypeBathing, TypeImaging:
		return BookingType(s), true
	}
	return "", false
}

// Status is the booking lifecycle state. Confirmed is the only non-terminal state.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusAborted   Status = "aborted"
	StatusCompleted Status = "completed"
)

func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusAborted || s == StatusCompleted
}

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusConfirmed, StatusCancelled, StatusAborted, StatusCompleted:
		return Status(s), true
	}
	return "", false
}

// StaffProfile is a staff member's professional category.
type StaffProfile string

const (
	ProfileVeterinarian StaffProfile = "veterinarian"
	ProfileAuxiliary    StaffProfile = "auxiliary"
	ProfileTechnician   StaffProfile = "technician"
)

type Booking struct {
	ID      string
	PetID   string
	StaffID string

	// StartsAt is the slot start in the clinic's timezone. Date and
	// time-of-day are never stored separately; every rule derives them
	// from this instant.
	StartsAt time.Time

	Type   BookingType
	Status Status

	ReminderRequested bool
	ReminderSent      bool

	CancelReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DueReminder is a reminder-eligible booking joined with the contact data
// needed to build the notification.
type DueReminder struct {
	BookingID   string
	ClientName  string
	ClientEmail string
	PetName     string
	StartsAt    time.Time
}
