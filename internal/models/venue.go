package models

import (
	"github.com/uptrace/bun"
)

type Venue struct {
	bun.BaseModel `bun:"table:venues"`

	ID   string `bun:"id,pk"`
	Name string `bun:"name,notnull"`
	// Capacity is nil for venues without a fixed headcount.
	Capacity *int `bun:"capacity,nullzero"`
}

type VenueSector struct {
	bun.BaseModel `bun:"table:venue_sectors"`

	ID      string `bun:"id,pk"`
	VenueID string `bun:"venue_id,notnull"`
	Name    string `bun:"name,notnull"`
	// Capacity is a hard physical limit; nil means unlimited.
	Capacity *int `bun:"capacity,nullzero"`
}

type VenueSeat struct {
	bun.BaseModel `bun:"table:venue_seats"`

	ID       string `bun:"id,pk"`
	SectorID string `bun:"sector_id,notnull"`
	Label    string `bun:"label,notnull"`
	IsActive bool   `bun:"is_active"`
}
