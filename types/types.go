package types

import "time"

// Course is one watched course from the catalog.
type Course struct {
	ID   int
	Name string
}

// Candidate is a single slot row extracted from a course listing page.
// Request is non-nil exactly when Available is true.
type Candidate struct {
	Date      string // as printed on the page, e.g. "01-06-24 10:00-11:00"
	Room      string // e.g. "Aula 3"
	Available bool
	Request   *BookingRequest
}

// BookingRequest carries the positional parameters of the page's inline
// booking action, verbatim, plus a fresh nonce generated per extraction.
type BookingRequest struct {
	ModuleID   string
	DateP      string
	ScheduleID string
	SlotNumber string
	BookingID  string
	Action     string
	Nonce      string
}

// BookingRecord is the durable outcome of one successful booking.
type BookingRecord struct {
	CourseID  int
	CheckedAt time.Time
	BookedAt  time.Time
	StartTime time.Time
	EndTime   time.Time
	Room      string
}

// ActiveBooking is a future booking joined with its course name, as listed
// by the /lista_prenotazioni command.
type ActiveBooking struct {
	CourseName string
	StartTime  time.Time
	EndTime    time.Time
	Room       string
}
