package email

import (
	"fmt"
	"strings"
)

// Message is a rendered notification ready for a Sender.
type Message struct {
	To      string
	Subject string
	Body    string
}

// AssignmentPayload mirrors the clinic.booking.assigned.v1 event body.
type AssignmentPayload struct {
	BookingID  string `json:"booking_id"`
	StaffEmail string `json:"staff_email"`
	StaffName  string `json:"staff_name"`
	ClientName string `json:"client_name"`
	PetName    string `json:"pet_name"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Type       string `json:"type"`
}

// ReminderPayload mirrors the clinic.booking.reminder.v1 event body.
type ReminderPayload struct {
	BookingID   string `json:"booking_id"`
	ClientEmail string `json:"client_email"`
	ClientName  string `json:"client_name"`
	PetName     string `json:"pet_name"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
}

// ReleasePayload mirrors the clinic.booking.released.v1 event body.
type ReleasePayload struct {
	BookingID  string `json:"booking_id"`
	StaffEmail string `json:"staff_email"`
	StaffName  string `json:"staff_name"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Status     string `json:"status"`
	Reason     string `json:"reason"`
}

func BuildAssignment(p AssignmentPayload) Message {
	serviceName := strings.ReplaceAll(p.Type, "_", " ")
	body := fmt.Sprintf(
		"Hello %s,\n\nA new %s has been booked with you.\n\nPet: %s (owner: %s)\nDate: %s at %s\n",
		p.StaffName, serviceName, p.PetName, p.ClientName, p.Date, p.Time,
	)
	return Message{
		To:      p.StaffEmail,
		Subject: fmt.Sprintf("New booking on %s at %s", p.Date, p.Time),
		Body:    body,
	}
}

func BuildReminder(p ReminderPayload) Message {
	body := fmt.Sprintf(
		"Hello %s,\n\nThis is a reminder of %s's appointment tomorrow, %s at %s.\n",
		p.ClientName, p.PetName, p.Date, p.Time,
	)
	if p.Location != "" {
		body += fmt.Sprintf("\nWhere: %s\n", p.Location)
	}
	return Message{
		To:      p.ClientEmail,
		Subject: fmt.Sprintf("Reminder: %s's appointment tomorrow at %s", p.PetName, p.Time),
		Body:    body,
	}
}

func BuildRelease(p ReleasePayload) Message {
	verb := "cancelled"
	if p.Status == "aborted" {
		verb = "aborted"
	}
	body := fmt.Sprintf(
		"Hello %s,\n\nYour booking on %s at %s was %s; the slot is free again.\n",
		p.StaffName, p.Date, p.Time, verb,
	)
	if p.Reason != "" {
		body += fmt.Sprintf("\nReason: %s\n", p.Reason)
	}
	return Message{
		To:      p.StaffEmail,
		Subject: fmt.Sprintf("Slot freed on %s at %s", p.Date, p.Time),
		Body:    body,
	}
}
