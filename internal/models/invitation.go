package models

import (
	"time"

	"github.com/uptrace/bun"
)

// EventInvitation carries per-user override flags. The issuance engine
// consumes invitations but never mutates them.
type EventInvitation struct {
	bun.BaseModel `bun:"table:event_invitations"`

	ID                       string    `bun:"id,pk"`
	EventID                  string    `bun:"event_id,notnull"`
	UserID                   string    `bun:"user_id,notnull"`
	WaivesPurchase           bool      `bun:"waives_purchase"`
	WaivesMembershipRequired bool      `bun:"waives_membership_required"`
	CreatedAt                time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
