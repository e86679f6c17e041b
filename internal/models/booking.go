package models

import "time"

// Booking is one request to occupy a resource group for a span of
// consecutive calendar days. StartDate carries the calendar date only;
// time-of-day has no significance. DurationDays is kept as a string
// because rows migrated from the legacy datastore are not guaranteed to
// hold a clean integer; occupancy accounting parses it defensively.
type Booking struct {
	ID             int64     `json:"id"`
	ApplicantName  string    `json:"applicant_name"`
	ApplicantEmail string    `json:"applicant_email"`
	Phone          string    `json:"phone"`
	Institution    string    `json:"institution"`
	ResourceGroup  string    `json:"resource_group"`
	ResourceType   string    `json:"resource_type"` // internship, room, equipment, vehicle
	StartDate      time.Time `json:"start_date"`
	DurationDays   string    `json:"duration_days"`
	Status         string    `json:"status"` // pending, approved, rejected
	Comment        string    `json:"comment"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Version        int64     `json:"version"`
}
