package ticketing

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ticketly/internal/logger"
	"ticketly/internal/models"
	"ticketly/internal/ticketing/db"
)

// ExpiryWorker periodically cancels PENDING online tickets whose checkout was
// abandoned, releasing their inventory. It uses the same atomic-decrement
// discipline as the issuance path so the no-oversell invariant holds from
// both directions.
type ExpiryWorker struct {
	Bun      *bun.DB
	Log      *logger.Logger
	TTL      time.Duration
	Interval time.Duration
}

func NewExpiryWorker(bunDB *bun.DB, log *logger.Logger, ttl, interval time.Duration) *ExpiryWorker {
	return &ExpiryWorker{Bun: bunDB, Log: log, TTL: ttl, Interval: interval}
}

// Run sweeps on every tick until the context is cancelled.
func (w *ExpiryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.Sweep(ctx)
			if err != nil {
				if w.Log != nil {
					w.Log.Error("EXPIRY", fmt.Sprintf("sweep failed: %v", err))
				}
				continue
			}
			if n > 0 && w.Log != nil {
				w.Log.Info("EXPIRY", fmt.Sprintf("cancelled %d expired pending ticket(s)", n))
			}
		}
	}
}

// Sweep cancels every stale PENDING ticket of an online tier and decrements
// the tier counters, all in one transaction.
func (w *ExpiryWorker) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-w.TTL)
	var cancelled int

	err := w.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		store := db.NewStore(tx)

		stale, err := w.lockStaleTickets(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		if len(stale) == 0 {
			return nil
		}

		ids := make([]string, len(stale))
		perTier := make(map[string]int)
		for i, t := range stale {
			ids[i] = t.ID
			perTier[t.TierID]++
		}

		_, err = tx.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("status = ?", models.TicketCancelled).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to cancel expired tickets: %w", err)
		}

		for tierID, n := range perTier {
			if err := store.DecrementQuantitySold(ctx, tierID, n); err != nil {
				return fmt.Errorf("failed to release tier %s inventory: %w", tierID, err)
			}
		}

		cancelled = len(stale)
		return nil
	})
	return cancelled, err
}

func (w *ExpiryWorker) lockStaleTickets(ctx context.Context, tx bun.Tx, cutoff time.Time) ([]models.Ticket, error) {
	onlineTiers := tx.NewSelect().
		Model((*models.TicketTier)(nil)).
		Column("id").
		Where("payment_method = ?", models.PaymentOnline)

	var stale []models.Ticket
	q := tx.NewSelect().
		Model(&stale).
		Where("status = ?", models.TicketPending).
		Where("issued_at < ?", cutoff).
		Where("tier_id IN (?)", onlineTiers)
	if tx.Dialect().Name() != dialect.SQLite {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return stale, nil
}
