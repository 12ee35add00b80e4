package tickets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ticketly/internal/logger"
	"ticketly/internal/models"
	"ticketly/internal/tickets/qr"
)

var (
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrAlreadyCheckedIn = errors.New("ticket already checked in")
	ErrTicketNotPaid    = errors.New("ticket is awaiting payment")
	ErrTicketCancelled  = errors.New("ticket is cancelled")
)

// Service handles the post-issuance ticket lifecycle: payment
// activation, door check-in and lookups.
type Service struct {
	Bun *bun.DB
	QR  *qr.Generator
	Log *logger.Logger
}

func NewService(bunDB *bun.DB, generator *qr.Generator, log *logger.Logger) *Service {
	return &Service{Bun: bunDB, QR: generator, Log: log}
}

// CheckIn verifies a scanned claim code and marks the ticket checked in.
// Only active tickets can pass the door; the row is locked so two
// scanners cannot admit the same ticket twice.
func (s *Service) CheckIn(ctx context.Context, claimCode string) (*models.Ticket, error) {
	claim, err := s.QR.DecodeClaim(claimCode)
	if err != nil {
		return nil, err
	}

	var ticket models.Ticket
	err = s.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().Model(&ticket).Where("id = ?", claim.TicketID)
		if tx.Dialect().Name() != dialect.SQLite {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTicketNotFound
			}
			return err
		}

		switch ticket.Status {
		case models.TicketCheckedIn:
			return ErrAlreadyCheckedIn
		case models.TicketPending:
			return ErrTicketNotPaid
		case models.TicketCancelled:
			return ErrTicketCancelled
		}

		now := time.Now()
		ticket.Status = models.TicketCheckedIn
		ticket.CheckedInAt = &now

		_, err := tx.NewUpdate().
			Model(&ticket).
			Column("status", "checked_in_at").
			WherePK().
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Log.LogTicket("CHECKED_IN", ticket.TierID, fmt.Sprintf("ticket %s checked in", ticket.ID))
	return &ticket, nil
}

// Activate flips pending tickets to active after payment confirmation
// and stamps each with its QR claim code. Called by the payment webhook
// with the ticket IDs from the checkout session metadata.
func (s *Service) Activate(ctx context.Context, ticketIDs []string) ([]models.Ticket, error) {
	if len(ticketIDs) == 0 {
		return nil, nil
	}

	var activated []models.Ticket
	err := s.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var tickets []models.Ticket
		q := tx.NewSelect().
			Model(&tickets).
			Where("id IN (?)", bun.In(ticketIDs)).
			Where("status = ?", models.TicketPending)
		if tx.Dialect().Name() != dialect.SQLite {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			return err
		}

		for i := range tickets {
			tickets[i].Status = models.TicketActive

			qrBytes, err := s.QR.GenerateEncryptedQR(tickets[i])
			if err != nil {
				return fmt.Errorf("generate QR for ticket %s: %w", tickets[i].ID, err)
			}
			tickets[i].QRCode = qrBytes

			if _, err := tx.NewUpdate().
				Model(&tickets[i]).
				Column("status", "qr_code").
				WherePK().
				Exec(ctx); err != nil {
				return err
			}
		}

		activated = tickets
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, t := range activated {
		s.Log.LogTicket("ACTIVATED", t.TierID, fmt.Sprintf("ticket %s activated after payment", t.ID))
	}
	return activated, nil
}

// GetTicket returns a single ticket by ID.
func (s *Service) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	ticket := new(models.Ticket)
	err := s.Bun.NewSelect().Model(ticket).Where("id = ?", ticketID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// GetTicketsByUser returns the user's tickets, newest first.
func (s *Service) GetTicketsByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := s.Bun.NewSelect().
		Model(&tickets).
		Where("user_id = ?", userID).
		OrderExpr("issued_at DESC").
		Scan(ctx)
	return tickets, err
}

// GetTicketsByEvent returns every non-cancelled ticket for the event.
func (s *Service) GetTicketsByEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := s.Bun.NewSelect().
		Model(&tickets).
		Where("event_id = ?", eventID).
		Where("status != ?", models.TicketCancelled).
		OrderExpr("issued_at ASC").
		Scan(ctx)
	return tickets, err
}
