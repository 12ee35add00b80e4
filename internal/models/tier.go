package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentMethod string

const (
	PaymentOnline    PaymentMethod = "online"
	PaymentOffline   PaymentMethod = "offline"
	PaymentAtTheDoor PaymentMethod = "at_the_door"
	PaymentFree      PaymentMethod = "free"
)

type PriceType string

const (
	PriceFixed PriceType = "fixed"
	PricePWYC  PriceType = "pwyc"
)

type SeatAssignmentMode string

const (
	SeatAssignmentNone       SeatAssignmentMode = "none"
	SeatAssignmentRandom     SeatAssignmentMode = "random"
	SeatAssignmentUserChoice SeatAssignmentMode = "user_choice"
)

type TicketTier struct {
	bun.BaseModel `bun:"table:ticket_tiers"`

	ID      string `bun:"id,pk"`
	EventID string `bun:"event_id,notnull"`
	Name    string `bun:"name,notnull"`
	// TotalQuantity is nil for unlimited tiers.
	TotalQuantity  *int               `bun:"total_quantity,nullzero"`
	QuantitySold   int                `bun:"quantity_sold"`
	Price          float64            `bun:"price"`
	PaymentMethod  PaymentMethod      `bun:"payment_method,notnull"`
	PriceType      PriceType          `bun:"price_type,notnull"`
	SeatAssignment SeatAssignmentMode `bun:"seat_assignment,notnull"`
	SectorID       *string            `bun:"sector_id,nullzero"`
	// MaxTicketsPerUser overrides the event-level limit when set.
	MaxTicketsPerUser *int `bun:"max_tickets_per_user,nullzero"`
	// RestrictedToMembershipTiers is empty for unrestricted tiers.
	RestrictedToMembershipTiers []string   `bun:"restricted_to_membership_tiers,array"`
	SalesStartAt                *time.Time `bun:"sales_start_at,nullzero"`
	SalesEndAt                  *time.Time `bun:"sales_end_at,nullzero"`
	CreatedAt                   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

// OnSale reports whether the tier's sales window contains now. A missing
// boundary leaves that side of the window open.
func (t *TicketTier) OnSale(now time.Time) bool {
	if t.SalesStartAt != nil && now.Before(*t.SalesStartAt) {
		return false
	}
	if t.SalesEndAt != nil && now.After(*t.SalesEndAt) {
		return false
	}
	return true
}

// GeneralAdmission reports whether the tier skips seat-level bookkeeping.
func (t *TicketTier) GeneralAdmission() bool {
	return t.SeatAssignment == SeatAssignmentNone
}
