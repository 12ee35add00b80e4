package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketPending   TicketStatus = "pending"
	TicketActive    TicketStatus = "active"
	TicketCheckedIn TicketStatus = "checked_in"
	TicketCancelled TicketStatus = "cancelled"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID      string       `bun:"id,pk"`
	EventID string       `bun:"event_id,notnull"`
	TierID  string       `bun:"tier_id,notnull"`
	UserID  string       `bun:"user_id,notnull"`
	Status  TicketStatus `bun:"status,notnull"`
	// SectorID and VenueID are denormalized from the seat (or the tier's own
	// sector) so capacity counts never need a join.
	SeatID    *string `bun:"seat_id,nullzero"`
	SectorID  *string `bun:"sector_id,nullzero"`
	VenueID   *string `bun:"venue_id,nullzero"`
	GuestName string  `bun:"guest_name"`
	// PricePaid is set only for PWYC offline/at-the-door purchases; the online
	// PWYC amount lives on the payment record.
	PricePaid   *float64   `bun:"price_paid,nullzero"`
	QRCode      []byte     `bun:"qr_code"`
	IssuedAt    time.Time  `bun:"issued_at,notnull"`
	CheckedInAt *time.Time `bun:"checked_in_at,nullzero"`
}

// Counted reports whether the ticket occupies capacity. Cancelled tickets are
// excluded from every capacity count.
func (t *Ticket) Counted() bool {
	return t.Status != TicketCancelled
}
