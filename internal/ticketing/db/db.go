package db

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ticketly/internal/models"
)

// Store holds the locked read/write primitives over the four nested
// counters: tier quantity, event attendee count, sector occupancy, and seat
// occupancy. No business logic lives here; just counts under locks.
//
// Store wraps a bun.IDB so the same methods run against the pooled DB or a
// transaction. The batch ticket service always hands it a transaction.
type Store struct {
	DB bun.IDB
}

func NewStore(idb bun.IDB) *Store {
	return &Store{DB: idb}
}

// forUpdate appends FOR UPDATE on dialects that support row locks. SQLite
// (used by the tests) serializes writers itself, so the clause is omitted.
func (s *Store) forUpdate(q *bun.SelectQuery) *bun.SelectQuery {
	if s.DB.Dialect().Name() == dialect.SQLite {
		return q
	}
	return q.For("UPDATE")
}

func (s *Store) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := s.DB.NewSelect().Model(&event).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *Store) GetVenue(ctx context.Context, id string) (*models.Venue, error) {
	var venue models.Venue
	err := s.DB.NewSelect().Model(&venue).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &venue, nil
}

// LockTier fetches the tier row under a row lock. Concurrent purchases
// against the same tier serialize here.
func (s *Store) LockTier(ctx context.Context, id string) (*models.TicketTier, error) {
	var tier models.TicketTier
	q := s.DB.NewSelect().Model(&tier).Where("id = ?", id).Limit(1)
	if err := s.forUpdate(q).Scan(ctx); err != nil {
		return nil, err
	}
	return &tier, nil
}

// LockEvent takes a row lock on the event so capacity counts across tiers of
// the same event observe a consistent snapshot.
func (s *Store) LockEvent(ctx context.Context, id string) error {
	var event models.Event
	q := s.DB.NewSelect().Model(&event).Column("id").Where("id = ?", id).Limit(1)
	return s.forUpdate(q).Scan(ctx)
}

// LockSector fetches the sector row under a row lock.
func (s *Store) LockSector(ctx context.Context, id string) (*models.VenueSector, error) {
	var sector models.VenueSector
	q := s.DB.NewSelect().Model(&sector).Where("id = ?", id).Limit(1)
	if err := s.forUpdate(q).Scan(ctx); err != nil {
		return nil, err
	}
	return &sector, nil
}

// CountEventTickets counts non-cancelled tickets for the event. Callers must
// hold the event lock first.
func (s *Store) CountEventTickets(ctx context.Context, eventID string) (int, error) {
	return s.DB.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", eventID).
		Where("status != ?", models.TicketCancelled).
		Count(ctx)
}

// CountSectorGATickets counts non-cancelled general-admission tickets in the
// sector. Seated tickets are governed by their seat rows instead.
func (s *Store) CountSectorGATickets(ctx context.Context, sectorID string) (int, error) {
	return s.DB.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("sector_id = ?", sectorID).
		Where("seat_id IS NULL").
		Where("status != ?", models.TicketCancelled).
		Count(ctx)
}

// CountUserTierTickets counts the user's PENDING/ACTIVE tickets for the tier.
// Pending tickets awaiting payment count toward the per-user cap until the
// expiry worker cancels them.
func (s *Store) CountUserTierTickets(ctx context.Context, userID, tierID string) (int, error) {
	return s.DB.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("user_id = ?", userID).
		Where("tier_id = ?", tierID).
		Where("status IN (?)", bun.In([]models.TicketStatus{models.TicketPending, models.TicketActive})).
		Count(ctx)
}

func (s *Store) InsertTickets(ctx context.Context, tickets []models.Ticket) error {
	_, err := s.DB.NewInsert().Model(&tickets).Exec(ctx)
	return err
}

// IncrementQuantitySold bumps the tier counter in place. An atomic increment,
// not read-modify-write, so concurrent transactions cannot lose updates.
func (s *Store) IncrementQuantitySold(ctx context.Context, tierID string, n int) error {
	_, err := s.DB.NewUpdate().
		Model((*models.TicketTier)(nil)).
		Set("quantity_sold = quantity_sold + ?", n).
		Where("id = ?", tierID).
		Exec(ctx)
	return err
}

// DecrementQuantitySold is the expiry worker's counterpart to
// IncrementQuantitySold.
func (s *Store) DecrementQuantitySold(ctx context.Context, tierID string, n int) error {
	_, err := s.DB.NewUpdate().
		Model((*models.TicketTier)(nil)).
		Set("quantity_sold = quantity_sold - ?", n).
		Where("id = ?", tierID).
		Exec(ctx)
	return err
}
