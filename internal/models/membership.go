package models

import (
	"time"

	"github.com/uptrace/bun"
)

type MembershipStatus string

const (
	MembershipActive  MembershipStatus = "active"
	MembershipExpired MembershipStatus = "expired"
)

type Membership struct {
	bun.BaseModel `bun:"table:memberships"`

	ID             string           `bun:"id,pk"`
	UserID         string           `bun:"user_id,notnull"`
	OrganizationID string           `bun:"organization_id,notnull"`
	TierID         string           `bun:"tier_id,notnull"`
	Status         MembershipStatus `bun:"status,notnull"`
	CreatedAt      time.Time        `bun:"created_at,notnull,default:current_timestamp"`
}
