// Package stats aggregates issuance numbers for the staff dashboard.
package stats

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"

	"ticketly/internal/models"
)

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// EventStats is the aggregated issuance picture for one event. Cancelled
// tickets are excluded everywhere; they no longer hold capacity.
type EventStats struct {
	EventID       string      `json:"event_id"`
	Capacity      int         `json:"capacity"`
	Issued        int         `json:"issued"`
	Pending       int         `json:"pending"`
	CheckedIn     int         `json:"checked_in"`
	Remaining     *int        `json:"remaining,omitempty"`
	Tiers         []TierStats `json:"tiers"`
	DailyIssuance []DailyRow  `json:"daily_issuance"`
}

// TierStats breaks the event totals down per tier.
type TierStats struct {
	TierID    string `json:"tier_id"`
	TierName  string `json:"tier_name"`
	Issued    int    `json:"issued"`
	Pending   int    `json:"pending"`
	CheckedIn int    `json:"checked_in"`
	Quantity  *int   `json:"quantity,omitempty"`
}

// DailyRow counts tickets issued on one calendar day.
type DailyRow struct {
	Date   string `json:"date"`
	Issued int    `json:"issued"`
}

// GetEventStats aggregates per-tier and per-day issuance counts for the event.
func (s *Service) GetEventStats(ctx context.Context, eventID string) (*EventStats, error) {
	var event models.Event
	err := s.db.NewSelect().Model(&event).Where("id = ?", eventID).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("event %s not found", eventID)
		}
		return nil, err
	}

	out := &EventStats{EventID: eventID, Capacity: event.MaxAttendees}

	type tierRaw struct {
		TierID    string `bun:"tier_id"`
		TierName  string `bun:"tier_name"`
		Quantity  *int   `bun:"total_quantity"`
		Issued    int    `bun:"issued"`
		Pending   int    `bun:"pending"`
		CheckedIn int    `bun:"checked_in"`
	}

	var tiers []tierRaw
	err = s.db.NewRaw(`
		SELECT
			tt.id AS tier_id,
			tt.name AS tier_name,
			tt.total_quantity,
			COALESCE(SUM(CASE WHEN t.status != ? THEN 1 ELSE 0 END), 0) AS issued,
			COALESCE(SUM(CASE WHEN t.status = ? THEN 1 ELSE 0 END), 0) AS pending,
			COALESCE(SUM(CASE WHEN t.status = ? THEN 1 ELSE 0 END), 0) AS checked_in
		FROM ticket_tiers tt
		LEFT JOIN tickets t ON t.tier_id = tt.id
		WHERE tt.event_id = ?
		GROUP BY tt.id, tt.name, tt.total_quantity
		ORDER BY tt.name
	`, models.TicketCancelled, models.TicketPending, models.TicketCheckedIn, eventID).
		Scan(ctx, &tiers)
	if err != nil {
		return nil, err
	}

	for _, row := range tiers {
		out.Tiers = append(out.Tiers, TierStats{
			TierID:    row.TierID,
			TierName:  row.TierName,
			Issued:    row.Issued,
			Pending:   row.Pending,
			CheckedIn: row.CheckedIn,
			Quantity:  row.Quantity,
		})
		out.Issued += row.Issued
		out.Pending += row.Pending
		out.CheckedIn += row.CheckedIn
	}

	if event.MaxAttendees > 0 {
		remaining := event.MaxAttendees - out.Issued
		if remaining < 0 {
			remaining = 0
		}
		out.Remaining = &remaining
	}

	type dailyRaw struct {
		Day    string `bun:"day"`
		Issued int    `bun:"issued"`
	}
	var daily []dailyRaw
	err = s.db.NewRaw(`
		SELECT DATE(issued_at) AS day, COUNT(*) AS issued
		FROM tickets
		WHERE event_id = ? AND status != ?
		GROUP BY DATE(issued_at)
		ORDER BY day
	`, eventID, models.TicketCancelled).
		Scan(ctx, &daily)
	if err != nil {
		return nil, err
	}
	for _, row := range daily {
		day := row.Day
		// Postgres hands the date back with a time component; keep the day.
		if len(day) > 10 {
			day = day[:10]
		}
		out.DailyIssuance = append(out.DailyIssuance, DailyRow{Date: day, Issued: row.Issued})
	}

	return out, nil
}
