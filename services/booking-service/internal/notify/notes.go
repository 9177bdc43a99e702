package notify

import "time"

// AssignmentNote tells a staff member about a booking assigned to them.
type AssignmentNote struct {
	BookingID  string
	StaffEmail string
	StaffName  string
	ClientName string
	PetName    string
	StartsAt   time.Time
	Type       string
}

// ReminderNote is the day-before reminder for the pet's owner.
type ReminderNote struct {
	BookingID   string
	ClientEmail string
	ClientName  string
	PetName     string
	StartsAt    time.Time
	Location    string
}

// ReleaseNote tells a staff member one of their confirmed slots was freed.
type ReleaseNote struct {
	BookingID  string
	StaffEmail string
	StaffName  string
	StartsAt   time.Time
	Status     string
	Reason     string
}
