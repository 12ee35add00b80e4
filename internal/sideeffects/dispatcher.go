package sideeffects

import (
	"context"
	"fmt"
	"time"

	"ticketly/internal/logger"
	"ticketly/internal/models"
	"ticketly/internal/sse"
)

// Publisher is the slice of the Kafka producer the dispatcher needs.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// WaitlistRemover drops a user from an event's waitlist once they hold
// tickets.
type WaitlistRemover interface {
	RemoveFromWaitlist(ctx context.Context, eventID, userID string)
}

// Emitter pushes live issuance frames to SSE subscribers.
type Emitter interface {
	Emit(update sse.IssuanceUpdate)
}

// Topics names the destinations the dispatcher publishes to.
type Topics struct {
	TicketsCreated  string
	EventVisibility string
}

// Dispatcher fans out post-commit hooks after a batch is issued. Every
// hook is best effort: failures are logged and swallowed, because the
// tickets are already committed.
type Dispatcher struct {
	Producer Publisher
	Waitlist WaitlistRemover
	Emitter  Emitter
	Topics   Topics
	Log      *logger.Logger
}

func New(producer Publisher, waitlist WaitlistRemover, emitter Emitter, topics Topics, log *logger.Logger) *Dispatcher {
	return &Dispatcher{Producer: producer, Waitlist: waitlist, Emitter: emitter, Topics: topics, Log: log}
}

// TicketsCreatedEvent is the payload streamed when a batch is issued.
type TicketsCreatedEvent struct {
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	TierID    string    `json:"tier_id"`
	TicketIDs []string  `json:"ticket_ids"`
	Status    string    `json:"status"`
	IssuedAt  time.Time `json:"issued_at"`
}

// TicketsCreated publishes the batch notification and removes the buyer
// from the event's waitlist.
func (d *Dispatcher) TicketsCreated(ctx context.Context, event *models.Event, userID string, tickets []models.Ticket) {
	if len(tickets) == 0 {
		return
	}
	d.fanout(ctx, event.ID, userID, tickets)
}

// TicketsActivated fires the deferred hooks once the payment webhook
// flips a pending online batch to active. Online purchases skip the
// hooks at issuance; the batch's tickets carry the event and buyer.
func (d *Dispatcher) TicketsActivated(ctx context.Context, tickets []models.Ticket) {
	if len(tickets) == 0 {
		return
	}
	d.fanout(ctx, tickets[0].EventID, tickets[0].UserID, tickets)
}

func (d *Dispatcher) fanout(ctx context.Context, eventID, userID string, tickets []models.Ticket) {
	ids := make([]string, 0, len(tickets))
	for _, t := range tickets {
		ids = append(ids, t.ID)
	}

	payload := TicketsCreatedEvent{
		EventID:   eventID,
		UserID:    userID,
		TierID:    tickets[0].TierID,
		TicketIDs: ids,
		Status:    string(tickets[0].Status),
		IssuedAt:  tickets[0].IssuedAt,
	}

	if d.Producer != nil {
		if err := d.Producer.Publish(ctx, d.Topics.TicketsCreated, eventID, payload); err != nil {
			d.Log.Error("SIDE_EFFECTS", fmt.Sprintf("publish tickets created for event %s: %v", eventID, err))
		}
	}

	if d.Waitlist != nil {
		d.Waitlist.RemoveFromWaitlist(ctx, eventID, userID)
	}

	if d.Emitter != nil {
		d.Emitter.Emit(sse.IssuanceUpdate{
			EventID:  eventID,
			TierID:   payload.TierID,
			Count:    len(tickets),
			Status:   payload.Status,
			IssuedAt: payload.IssuedAt,
		})
	}
}
