package sideeffects

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketly/internal/logger"
	"ticketly/internal/models"
	"ticketly/internal/sse"
)

type fakePublisher struct {
	topic   string
	key     string
	payload any
	err     error
	calls   int
}

func (f *fakePublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	f.calls++
	f.topic = topic
	f.key = key
	f.payload = payload
	return f.err
}

type fakeRemover struct {
	eventID string
	userID  string
	calls   int
}

func (f *fakeRemover) RemoveFromWaitlist(ctx context.Context, eventID, userID string) {
	f.calls++
	f.eventID = eventID
	f.userID = userID
}

type fakeEmitter struct {
	updates []sse.IssuanceUpdate
}

func (f *fakeEmitter) Emit(update sse.IssuanceUpdate) {
	f.updates = append(f.updates, update)
}

func testTickets() (*models.Event, []models.Ticket) {
	issued := time.Now()
	event := &models.Event{ID: "evt-1"}
	tickets := []models.Ticket{
		{ID: "t-1", TierID: "tier-1", Status: models.TicketActive, IssuedAt: issued},
		{ID: "t-2", TierID: "tier-1", Status: models.TicketActive, IssuedAt: issued},
	}
	return event, tickets
}

func TestTicketsCreatedPublishesAndRemoves(t *testing.T) {
	pub := &fakePublisher{}
	rem := &fakeRemover{}
	emit := &fakeEmitter{}
	d := New(pub, rem, emit, Topics{TicketsCreated: "ticketly.tickets.created"}, logger.NewLogger())

	event, tickets := testTickets()
	d.TicketsCreated(context.Background(), event, "user-1", tickets)

	require.Equal(t, 1, pub.calls)
	assert.Equal(t, "ticketly.tickets.created", pub.topic)
	assert.Equal(t, "evt-1", pub.key)

	payload, ok := pub.payload.(TicketsCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, []string{"t-1", "t-2"}, payload.TicketIDs)
	assert.Equal(t, "tier-1", payload.TierID)
	assert.Equal(t, "active", payload.Status)

	require.Equal(t, 1, rem.calls)
	assert.Equal(t, "evt-1", rem.eventID)
	assert.Equal(t, "user-1", rem.userID)

	require.Len(t, emit.updates, 1)
	assert.Equal(t, "evt-1", emit.updates[0].EventID)
	assert.Equal(t, 2, emit.updates[0].Count)
}

func TestTicketsActivatedDerivesEventAndBuyerFromBatch(t *testing.T) {
	producer := &fakePublisher{}
	remover := &fakeRemover{}
	emitter := &fakeEmitter{}
	d := New(producer, remover, emitter, Topics{TicketsCreated: "tickets.created"}, logger.NewLogger())

	issued := time.Now()
	d.TicketsActivated(context.Background(), []models.Ticket{
		{ID: "t-1", EventID: "evt-9", UserID: "user-7", TierID: "tier-1", Status: models.TicketActive, IssuedAt: issued},
		{ID: "t-2", EventID: "evt-9", UserID: "user-7", TierID: "tier-1", Status: models.TicketActive, IssuedAt: issued},
	})

	require.Equal(t, 1, producer.calls)
	assert.Equal(t, "evt-9", producer.key)
	payload, ok := producer.payload.(TicketsCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, "evt-9", payload.EventID)
	assert.Equal(t, "user-7", payload.UserID)
	assert.Equal(t, []string{"t-1", "t-2"}, payload.TicketIDs)

	assert.Equal(t, 1, remover.calls)
	assert.Equal(t, "evt-9", remover.eventID)
	assert.Equal(t, "user-7", remover.userID)

	require.Len(t, emitter.updates, 1)
	assert.Equal(t, "evt-9", emitter.updates[0].EventID)
	assert.Equal(t, 2, emitter.updates[0].Count)
}

func TestTicketsActivatedEmptyBatchIsNoop(t *testing.T) {
	producer := &fakePublisher{}
	d := New(producer, nil, nil, Topics{TicketsCreated: "tickets.created"}, logger.NewLogger())

	d.TicketsActivated(context.Background(), nil)

	assert.Zero(t, producer.calls)
}

func TestTicketsCreatedSwallowsPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	rem := &fakeRemover{}
	emit := &fakeEmitter{}
	d := New(pub, rem, emit, Topics{TicketsCreated: "ticketly.tickets.created"}, logger.NewLogger())

	event, tickets := testTickets()
	d.TicketsCreated(context.Background(), event, "user-1", tickets)

	// Waitlist removal still runs even when the publish fails.
	assert.Equal(t, 1, rem.calls)
}

func TestTicketsCreatedEmptyBatchIsNoop(t *testing.T) {
	pub := &fakePublisher{}
	rem := &fakeRemover{}
	emit := &fakeEmitter{}
	d := New(pub, rem, emit, Topics{TicketsCreated: "ticketly.tickets.created"}, logger.NewLogger())

	d.TicketsCreated(context.Background(), &models.Event{ID: "evt-1"}, "user-1", nil)

	assert.Zero(t, pub.calls)
	assert.Zero(t, rem.calls)
}

func TestTicketsCreatedNilDependencies(t *testing.T) {
	d := New(nil, nil, nil, Topics{}, logger.NewLogger())
	event, tickets := testTickets()
	assert.NotPanics(t, func() {
		d.TicketsCreated(context.Background(), event, "user-1", tickets)
	})
}
