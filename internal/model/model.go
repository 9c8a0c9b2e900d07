// Package model defines the core domain types for the RSVP and ticketing flow.
package model

import "time"

// RSVP represents one person's submitted intent to attend the launch event.
type RSVP struct {
	ID                      string    `json:"id"`
	FullName                string    `json:"full_name"`
	Email                   string    `json:"email"`
	Phone                   string    `json:"phone"`
	InstitutionOrganization string    `json:"institution_organization"`
	JobTitle                string    `json:"job_title"`
	CreatedAt               time.Time `json:"created_at"`
}

// Ticket is the issued proof of a confirmed RSVP. QRCode holds the encoded
// ticket payload, not an image.
type Ticket struct {
	ID           string    `json:"id"`
	RSVPID       string    `json:"rsvp_id"`
	TicketNumber string    `json:"ticket_number"`
	QRCode       string    `json:"qr_code"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// StatusActive is the only ticket status this flow produces.
const StatusActive = "active"

// Submission is the RSVP form payload. Unknown JSON fields are discarded on
// decode; the service additionally copies only these five fields into the
// persisted record.
type Submission struct {
	FullName                string `json:"full_name" validate:"required"`
	Email                   string `json:"email" validate:"required,email"`
	Phone                   string `json:"phone" validate:"required"`
	InstitutionOrganization string `json:"institution_organization"`
	JobTitle                string `json:"job_title"`
}

// IssuedTicket is the combined result returned to the presentation layer.
// New and returning registrants get the same shape.
type IssuedTicket struct {
	TicketNumber string `json:"ticket_number"`
	QRCode       string `json:"qr_code"`
	Status       string `json:"status"`
	QRImageURL   string `json:"qr_image_url"`
	RSVP         RSVP   `json:"rsvp"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
