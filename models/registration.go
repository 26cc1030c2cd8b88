package models

import "time"

type PaymentStatus string

const (
	PaymentPendingVerification PaymentStatus = "pending_verification"
	PaymentApproved            PaymentStatus = "approved"
	PaymentRejected            PaymentStatus = "rejected"
)

// Valid reports whether the status is one of the three known values.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPendingVerification, PaymentApproved, PaymentRejected:
		return true
	}
	return false
}

// Player is one of the four teammates registered alongside the captain
// (players 2-5, the captain being player 1). Order is display order.
type Player struct {
	Name       string `json:"name"`
	ValorantID string `json:"valorant_id"`
}

// Registration is one submitted team. Stored in the registrations table,
// players as a JSONB column.
type Registration struct {
	ID            int           `json:"id" db:"id"`
	TeamName      string        `json:"team_name" db:"team_name"`
	CaptainName   string        `json:"captain_name" db:"captain_name"`
	CaptainEmail  string        `json:"captain_email" db:"captain_email"`
	CaptainPhone  string        `json:"captain_phone" db:"captain_phone"`
	Players       []Player      `json:"players" db:"players"`
	PaymentStatus PaymentStatus `json:"payment_status" db:"payment_status"`
	RegisteredAt  time.Time     `json:"registered_at" db:"registered_at"`

	ScreenshotKey *string `json:"-" db:"screenshot_key"`
	ScreenshotURL *string `json:"screenshot_url,omitempty" db:"-"`
}

// PublicView strips captain contact details and moderation fields for the
// public roster.
type PublicView struct {
	Slot     int    `json:"slot"`
	TeamName string `json:"team_name"`
}
