package ticketing

import (
	"context"
	"fmt"

	"ticketly/internal/models"
)

// SeatStore is the slice of the inventory ledger the resolver needs.
type SeatStore interface {
	LockAvailableSeats(ctx context.Context, sectorID string, limit int) ([]models.VenueSeat, error)
	LockSeats(ctx context.Context, seatIDs []string) ([]models.VenueSeat, error)
	TakenSeats(ctx context.Context, seatIDs []string) ([]string, error)
}

// ResolveSeats produces one seat (or nil) per item, in item order. Resolution
// is all-or-nothing: any invalid or taken seat fails the whole batch. Seat
// rows are locked so two concurrent buyers are never handed the same seat.
func ResolveSeats(ctx context.Context, store SeatStore, tier *models.TicketTier, items []BatchItem) ([]*models.VenueSeat, error) {
	switch tier.SeatAssignment {
	case models.SeatAssignmentNone:
		return make([]*models.VenueSeat, len(items)), nil

	case models.SeatAssignmentRandom:
		return resolveRandom(ctx, store, tier, len(items))

	case models.SeatAssignmentUserChoice:
		return resolveUserChoice(ctx, store, tier, items)
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownSeatAssignment, tier.SeatAssignment)
}

func resolveRandom(ctx context.Context, store SeatStore, tier *models.TicketTier, count int) ([]*models.VenueSeat, error) {
	if tier.SectorID == nil {
		return nil, fmt.Errorf("tier %s uses seat assignment but has no sector", tier.ID)
	}
	seats, err := store.LockAvailableSeats(ctx, *tier.SectorID, count)
	if err != nil {
		return nil, fmt.Errorf("failed to lock available seats: %w", err)
	}
	if len(seats) < count {
		return nil, &CapacityError{Scope: ScopeSeats, Available: len(seats), Requested: count}
	}
	resolved := make([]*models.VenueSeat, count)
	for i := range seats {
		resolved[i] = &seats[i]
	}
	return resolved, nil
}

func resolveUserChoice(ctx context.Context, store SeatStore, tier *models.TicketTier, items []BatchItem) ([]*models.VenueSeat, error) {
	if tier.SectorID == nil {
		return nil, fmt.Errorf("tier %s uses seat assignment but has no sector", tier.ID)
	}

	ids := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if item.SeatID == nil || *item.SeatID == "" {
			return nil, &SeatConflictError{Detail: "a seat must be chosen for every ticket"}
		}
		if seen[*item.SeatID] {
			return nil, &SeatConflictError{SeatID: *item.SeatID, Detail: "requested more than once"}
		}
		seen[*item.SeatID] = true
		ids = append(ids, *item.SeatID)
	}

	seats, err := store.LockSeats(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock requested seats: %w", err)
	}
	byID := make(map[string]*models.VenueSeat, len(seats))
	for i := range seats {
		byID[seats[i].ID] = &seats[i]
	}

	resolved := make([]*models.VenueSeat, len(items))
	for i, id := range ids {
		seat, ok := byID[id]
		if !ok {
			return nil, &SeatConflictError{SeatID: id, Detail: "does not exist"}
		}
		if seat.SectorID != *tier.SectorID {
			return nil, &SeatConflictError{SeatID: id, Detail: "belongs to a different sector"}
		}
		if !seat.IsActive {
			return nil, &SeatConflictError{SeatID: id, Detail: "is not active"}
		}
		resolved[i] = seat
	}

	taken, err := store.TakenSeats(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to check seat occupancy: %w", err)
	}
	if len(taken) > 0 {
		return nil, &SeatConflictError{SeatID: taken[0], Detail: "is already taken"}
	}

	// Caller-specified order is preserved so the ticket-to-seat
	// correspondence in the response matches the request.
	return resolved, nil
}
