package model

// Directory entities are owned by the clinic's account system; the booking
// engine reads them and never writes them.

type Pet struct {
	ID            string
	OwnerClientID string
	Name          string
	Species       string
}

type Client struct {
	ID     string
	Name   string
	Email  string
	Phone  string
	Active bool
}

type Staff struct {
	ID      string
	Name    string
	Email   string
	Profile StaffProfile
}
