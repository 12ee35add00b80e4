package db

import (
	"context"

	"github.com/uptrace/bun"

	"ticketly/internal/models"
)

// occupiedStatuses are the ticket statuses that hold a seat. A seat may be
// held by at most one such ticket at a time.
var occupiedStatuses = []models.TicketStatus{
	models.TicketPending,
	models.TicketActive,
	models.TicketCheckedIn,
}

// LockAvailableSeats locks up to limit unoccupied active seats in the
// sector, ordered by id so concurrent allocators walk the rows in the same
// order. Used by random assignment.
func (s *Store) LockAvailableSeats(ctx context.Context, sectorID string, limit int) ([]models.VenueSeat, error) {
	occupied := s.DB.NewSelect().
		Model((*models.Ticket)(nil)).
		Column("seat_id").
		Where("seat_id IS NOT NULL").
		Where("status IN (?)", bun.In(occupiedStatuses))

	var seats []models.VenueSeat
	q := s.DB.NewSelect().
		Model(&seats).
		Where("sector_id = ?", sectorID).
		Where("is_active = ?", true).
		Where("id NOT IN (?)", occupied).
		OrderExpr("id").
		Limit(limit)
	if err := s.forUpdate(q).Scan(ctx); err != nil {
		return nil, err
	}
	return seats, nil
}

// LockSeats locks exactly the requested seat rows. Missing ids simply do not
// come back; the resolver treats any shortfall as a conflict.
func (s *Store) LockSeats(ctx context.Context, seatIDs []string) ([]models.VenueSeat, error) {
	var seats []models.VenueSeat
	q := s.DB.NewSelect().
		Model(&seats).
		Where("id IN (?)", bun.In(seatIDs)).
		OrderExpr("id")
	if err := s.forUpdate(q).Scan(ctx); err != nil {
		return nil, err
	}
	return seats, nil
}

// TakenSeats returns which of the given seats are already held by a
// pending/active/checked-in ticket.
func (s *Store) TakenSeats(ctx context.Context, seatIDs []string) ([]string, error) {
	var taken []string
	err := s.DB.NewSelect().
		Model((*models.Ticket)(nil)).
		Column("seat_id").
		Where("seat_id IN (?)", bun.In(seatIDs)).
		Where("status IN (?)", bun.In(occupiedStatuses)).
		Scan(ctx, &taken)
	if err != nil {
		return nil, err
	}
	return taken, nil
}
