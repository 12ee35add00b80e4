package models

import (
	"time"

	"github.com/uptrace/bun"
)

type EventStatus string

const (
	EventDraft  EventStatus = "draft"
	EventOpen   EventStatus = "open"
	EventClosed EventStatus = "closed"
)

type EventType string

const (
	EventPublic      EventType = "public"
	EventMembersOnly EventType = "members_only"
	EventPrivate     EventType = "private"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID             string      `bun:"id,pk"`
	OrganizationID string      `bun:"organization_id,notnull"`
	Name           string      `bun:"name,notnull"`
	Status         EventStatus `bun:"status,notnull"`
	Type           EventType   `bun:"type,notnull"`
	StartDate      time.Time   `bun:"start_date,notnull"`
	EndDate        time.Time   `bun:"end_date,notnull"`
	// MaxAttendees caps the whole event; 0 means unlimited.
	MaxAttendees      int        `bun:"max_attendees"`
	VenueID           *string    `bun:"venue_id,nullzero"`
	RequiresTicket    bool       `bun:"requires_ticket"`
	RSVPBefore        *time.Time `bun:"rsvp_before,nullzero"`
	WaitlistOpen      bool       `bun:"waitlist_open"`
	MaxTicketsPerUser *int       `bun:"max_tickets_per_user,nullzero"`
	CreatedAt         time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

// Finished reports whether the event has already ended.
func (e *Event) Finished(now time.Time) bool {
	return now.After(e.EndDate)
}

// EffectiveCapacity returns the binding attendee ceiling: the minimum of the
// event's own cap and the venue capacity. 0 means unlimited.
func (e *Event) EffectiveCapacity(venue *Venue) int {
	cap := e.MaxAttendees
	if venue != nil && venue.Capacity != nil {
		if cap == 0 || *venue.Capacity < cap {
			cap = *venue.Capacity
		}
	}
	return cap
}
