package ticketing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ticketly/internal/eligibility"
	"ticketly/internal/logger"
	"ticketly/internal/models"
	"ticketly/internal/tickets/qr"
)

type stubGateway struct {
	url   string
	err   error
	calls int
}

func (g *stubGateway) CreateBatchCheckoutSession(ctx context.Context, event *models.Event, tier *models.TicketTier, userID string, tickets []models.Ticket, priceOverride *float64) (string, error) {
	g.calls++
	return g.url, g.err
}

type stubEffects struct {
	calls   int
	tickets []models.Ticket
}

func (e *stubEffects) TicketsCreated(ctx context.Context, event *models.Event, userID string, tickets []models.Ticket) {
	e.calls++
	e.tickets = tickets
}

// stubLoader snapshots fixture rows into an eligibility context without
// the full loader's queries.
type stubLoader struct {
	bunDB *bun.DB
}

func (l *stubLoader) LoadContext(ctx context.Context, userID, eventID string) (*eligibility.Context, error) {
	var event models.Event
	if err := l.bunDB.NewSelect().Model(&event).Where("id = ?", eventID).Scan(ctx); err != nil {
		return nil, err
	}
	ec := &eligibility.Context{
		Now:   time.Now(),
		User:  &models.User{ID: userID},
		Event: &event,
	}
	if event.VenueID != nil {
		var venue models.Venue
		if err := l.bunDB.NewSelect().Model(&venue).Where("id = ?", *event.VenueID).Scan(ctx); err == nil {
			ec.Venue = &venue
		}
	}
	if err := l.bunDB.NewSelect().Model(&ec.Tiers).Where("event_id = ?", eventID).Scan(ctx); err != nil {
		return nil, err
	}
	var inv models.EventInvitation
	err := l.bunDB.NewSelect().Model(&inv).
		Where("event_id = ?", eventID).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err == nil {
		ec.Invitation = &inv
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return ec, nil
}

type harness struct {
	svc     *BatchService
	bunDB   *bun.DB
	gateway *stubGateway
	effects *stubEffects
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	for _, model := range []interface{}{
		(*models.Event)(nil),
		(*models.Venue)(nil),
		(*models.VenueSector)(nil),
		(*models.VenueSeat)(nil),
		(*models.TicketTier)(nil),
		(*models.Ticket)(nil),
		(*models.EventInvitation)(nil),
	} {
		_, err = bunDB.NewCreateTable().Model(model).Exec(context.Background())
		require.NoError(t, err)
	}

	gateway := &stubGateway{url: "https://checkout.example/session"}
	effects := &stubEffects{}
	loader := &stubLoader{bunDB: bunDB}
	elig := eligibility.NewService(eligibility.DefaultConfig(), loader, logger.NewLogger())

	svc := NewBatchService(bunDB, elig, loader, gateway, effects, qr.NewGenerator("test-secret"), logger.NewLogger())
	t.Cleanup(func() { bunDB.Close() })

	return &harness{svc: svc, bunDB: bunDB, gateway: gateway, effects: effects}
}

func (h *harness) insertEvent(t *testing.T, mutate func(*models.Event)) *models.Event {
	t.Helper()
	event := &models.Event{
		ID:             uuid.NewString(),
		OrganizationID: "org-1",
		Name:           "Launch Night",
		Status:         models.EventOpen,
		Type:           models.EventPublic,
		StartDate:      time.Now().Add(24 * time.Hour),
		EndDate:        time.Now().Add(30 * time.Hour),
		RequiresTicket: true,
	}
	if mutate != nil {
		mutate(event)
	}
	_, err := h.bunDB.NewInsert().Model(event).Exec(context.Background())
	require.NoError(t, err)
	return event
}

func (h *harness) insertTier(t *testing.T, eventID string, mutate func(*models.TicketTier)) *models.TicketTier {
	t.Helper()
	tier := &models.TicketTier{
		ID:             uuid.NewString(),
		EventID:        eventID,
		Name:           "General",
		PaymentMethod:  models.PaymentFree,
		PriceType:      models.PriceFixed,
		SeatAssignment: models.SeatAssignmentNone,
	}
	if mutate != nil {
		mutate(tier)
	}
	_, err := h.bunDB.NewInsert().Model(tier).Exec(context.Background())
	require.NoError(t, err)
	return tier
}

func (h *harness) insertTickets(t *testing.T, event *models.Event, tier *models.TicketTier, n int, status models.TicketStatus) {
	t.Helper()
	for i := 0; i < n; i++ {
		ticket := models.Ticket{
			ID:       uuid.NewString(),
			EventID:  event.ID,
			TierID:   tier.ID,
			UserID:   fmt.Sprintf("other-user-%d", i),
			Status:   status,
			IssuedAt: time.Now().Add(-time.Hour),
		}
		_, err := h.bunDB.NewInsert().Model(&ticket).Exec(context.Background())
		require.NoError(t, err)
	}
}

func items(n int) []BatchItem {
	out := make([]BatchItem, n)
	for i := range out {
		out[i] = BatchItem{GuestName: fmt.Sprintf("Guest %d", i+1)}
	}
	return out
}

func (h *harness) quantitySold(t *testing.T, tierID string) int {
	t.Helper()
	var tier models.TicketTier
	require.NoError(t, h.bunDB.NewSelect().Model(&tier).Where("id = ?", tierID).Scan(context.Background()))
	return tier.QuantitySold
}

func TestFreeTierIssuesActiveTickets(t *testing.T) {
	h := newHarness(t)
	event := h.insertEvent(t, nil)
	tier := h.insertTier(t, event.ID, nil)

	res, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID,
		TierID:  tier.ID,
		UserID:  "user-1",
		Items:   items(2),
	})
	require.NoError(t, err)
	require.Len(t, res.Tickets, 2)
	assert.Empty(t, res.CheckoutURL)

	for _, ticket := range res.Tickets {
		assert.Equal(t, models.TicketActive, ticket.Status)
		assert.NotEmpty(t, ticket.QRCode)
		assert.Equal(t, "user-1", ticket.UserID)
	}
	assert.Equal(t, "Guest 1", res.Tickets[0].GuestName)

	assert.Equal(t, 2, h.quantitySold(t, tier.ID))
	assert.Equal(t, 1, h.effects.calls)
	assert.Zero(t, h.gateway.calls)
}

func TestEventCapacityNamesExactRemaining(t *testing.T) {
	h := newHarness(t)
	event := h.insertEvent(t, func(e *models.Event) { e.MaxAttendees = 10 })
	tier := h.insertTier(t, event.ID, nil)
	h.insertTickets(t, event, tier, 8, models.TicketActive)

	_, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1", Items: items(5),
	})
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 2, capErr.Available)
	assert.Equal(t, 5, capErr.Requested)
	assert.False(t, capErr.Exhausted)
	assert.Equal(t, http.StatusBadRequest, capErr.HTTPStatus())
	assert.Contains(t, capErr.Error(), "2")

	// The stated remaining amount fits.
	res, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1", Items: items(2),
	})
	require.NoError(t, err)
	require.Len(t, res.Tickets, 2)

	// The event is now full: hard stop, not a retry-with-less hint.
	_, err = h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-2", Items: items(1),
	})
	require.ErrorAs(t, err, &capErr)
	assert.True(t, capErr.Exhausted)
	assert.Equal(t, http.StatusTooManyRequests, capErr.HTTPStatus())
}

func TestCancelledTicketsDoNotOccupyCapacity(t *testing.T) {
	h := newHarness(t)
	event := h.insertEvent(t, func(e *models.Event) { e.MaxAttendees = 2 })
	tier := h.insertTier(t, event.ID, nil)
	h.insertTickets(t, event, tier, 1, models.TicketActive)
	h.insertTickets(t, event, tier, 5, models.TicketCancelled)

	res, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1", Items: items(1),
	})
	require.NoError(t, err)
	assert.Len(t, res.Tickets, 1)
}

func TestPerUserLimit(t *testing.T) {
	h := newHarness(t)
	event := h.insertEvent(t, func(e *models.Event) { e.MaxTicketsPerUser = intPtr(2) })
	tier := h.insertTier(t, event.ID, nil)

	_, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1", Items: items(1),
	})
	require.NoError(t, err)

	// One ticket of headroom left; asking for two names the exact count.
	_, err = h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1", Items: items(2),
	})
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, ScopeUserLimit, capErr.Scope)
	assert.Equal(t, 1, capErr.Available)
	assert.Equal(t, "you can only purchase 1 more ticket(s)", capErr.Error())

	_, err = h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1", Items: items(1),
	})
	require.NoError(t, err)

	// At the cap: a user-level stop is the user's own fault, not scarcity.
	_, err = h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1", Items: items(1),
	})
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, ScopeUserLimit, capErr.Scope)
	assert.True(t, capErr.Exhausted)
	assert.Equal(t, http.StatusBadRequest, capErr.HTTPStatus())
	assert.Equal(t, "maximum number of tickets reached", capErr.Error())

	// A different user is unaffected.
	_, err = h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-2", Items: items(2),
	})
	require.NoError(t, err)
}

func TestTierMaxPerUserOverridesEvent(t *testing.T) {
	h := newHarness(t)
	event := h.insertEvent(t, func(e *models.Event) { e.MaxTicketsPerUser = intPtr(1) })
	tier := h.insertTier(t, event.ID, func(tt *models.TicketTier) { tt.MaxTicketsPerUser = intPtr(3) })

	res, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1", Items: items(3),
	})
	require.NoError(t, err)
	assert.Len(t, res.Tickets, 3)
}

func TestLoweredPerUserLimitStillBlocksOverholders(t *testing.T) {
	h := newHarness(t)
	event := h.insertEvent(t, nil)
	tier := h.insertTier(t, event.ID, nil)

	_, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1", Items: items(3),
	})
	require.NoError(t, err)

	// Organizer lowers the cap below what the user already holds.
	_, err = h.bunDB.NewUpdate().Model((*models.Event)(nil)).
		Set("max_tickets_per_user = ?", 2).
		Where("id = ?", event.ID).
		Exec(context.Background())
	require.NoError(t, err)

	_, err = h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1", Items: items(1),
	})
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, ScopeUserLimit, capErr.Scope)
	assert.True(t, capErr.Exhausted)
	assert.Equal(t, "maximum number of tickets reached", capErr.Error())
	assert.Equal(t, 3, h.quantitySold(t, tier.ID))
}

func TestLoweredEventCapacityStillBlocksWhenOverfull(t *testing.T) {
	h := newHarness(t)
	event := h.insertEvent(t, func(e *models.Event) { e.MaxAttendees = 10 })
	tier := h.insertTier(t, event.ID, nil)
	h.insertTickets(t, event, tier, 4, models.TicketActive)

	_, err := h.bunDB.NewUpdate().Model((*models.Event)(nil)).
		Set("max_attendees = ?", 3).
		Where("id = ?", event.ID).
		Exec(context.Background())
	require.NoError(t, err)

	_, err = h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1", Items: items(1),
	})
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, ScopeEvent, capErr.Scope)
	assert.True(t, capErr.Exhausted)
	assert.Equal(t, 0, capErr.Available)
}

func TestTierCapacity(t *testing.T) {
	h := newHarness(t)
	event := h.insertEvent(t, nil)
	tier := h.insertTier(t, event.ID, func(tt *models.TicketTier) {
		tt.TotalQuantity = intPtr(3)
		tt.QuantitySold = 2
	})

	_, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1", Items: items(2),
	})
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, ScopeTier, capErr.Scope)
	assert.Equal(t, 1, capErr.Available)

	res, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1", Items: items(1),
	})
	require.NoError(t, err)
	assert.Len(t, res.Tickets, 1)

	_, err = h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-2", Items: items(1),
	})
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, ScopeTier, capErr.Scope)
	assert.True(t, capErr.Exhausted)
	assert.Equal(t, http.StatusTooManyRequests, capErr.HTTPStatus())
}

func TestOnlineFlowReturnsCheckoutURL(t *testing.T) {
	h := newHarness(t)
	event := h.insertEvent(t, nil)
	tier := h.insertTier(t, event.ID, func(tt *models.TicketTier) {
		tt.PaymentMethod = models.PaymentOnline
		tt.Price = 25
	})

	res, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1", Items: items(2),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/session", res.CheckoutURL)
	assert.Equal(t, 1, h.gateway.calls)

	for _, ticket := range res.Tickets {
		assert.Equal(t, models.TicketPending, ticket.Status)
		// No QR until payment lands.
		assert.Empty(t, ticket.QRCode)
	}

	// Side effects wait for the payment webhook on the online branch.
	assert.Zero(t, h.effects.calls)
	assert.Equal(t, 2, h.quantitySold(t, tier.ID))
}

func TestOnlineGatewayFailureLeavesPendingTickets(t *testing.T) {
	h := newHarness(t)
	h.gateway.err = errors.New("stripe down")
	event := h.insertEvent(t, nil)
	tier := h.insertTier(t, event.ID, func(tt *models.TicketTier) {
		tt.PaymentMethod = models.PaymentOnline
	})

	_, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1", Items: items(2),
	})
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)

	// The committed PENDING tickets stay behind for the expiry worker.
	count, cerr := h.bunDB.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("status = ?", models.TicketPending).
		Count(context.Background())
	require.NoError(t, cerr)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, h.quantitySold(t, tier.ID))
}

func TestOfflineTierIssuesPendingWithoutGateway(t *testing.T) {
	h := newHarness(t)
	event := h.insertEvent(t, nil)
	tier := h.insertTier(t, event.ID, func(tt *models.TicketTier) {
		tt.PaymentMethod = models.PaymentOffline
	})

	res, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1", Items: items(1),
	})
	require.NoError(t, err)
	assert.Equal(t, models.TicketPending, res.Tickets[0].Status)
	assert.Zero(t, h.gateway.calls)
	assert.Equal(t, 1, h.effects.calls)
}

func TestAtTheDoorPWYCStoresPricePaid(t *testing.T) {
	h := newHarness(t)
	event := h.insertEvent(t, nil)
	tier := h.insertTier(t, event.ID, func(tt *models.TicketTier) {
		tt.PaymentMethod = models.PaymentAtTheDoor
		tt.PriceType = models.PricePWYC
	})

	override := 12.5
	res, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1",
		Items: items(1), PriceOverride: &override,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Tickets[0].PricePaid)
	assert.Equal(t, 12.5, *res.Tickets[0].PricePaid)
	assert.Equal(t, models.TicketActive, res.Tickets[0].Status)
}

func TestOnlinePWYCDoesNotStorePricePaid(t *testing.T) {
	h := newHarness(t)
	event := h.insertEvent(t, nil)
	tier := h.insertTier(t, event.ID, func(tt *models.TicketTier) {
		tt.PaymentMethod = models.PaymentOnline
		tt.PriceType = models.PricePWYC
	})

	override := 30.0
	res, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1",
		Items: items(1), PriceOverride: &override,
	})
	require.NoError(t, err)
	// The chosen amount lives on the payment, not the ticket.
	assert.Nil(t, res.Tickets[0].PricePaid)
}

func TestClosedEventDeniesButBypassSkipsGates(t *testing.T) {
	h := newHarness(t)
	event := h.insertEvent(t, func(e *models.Event) { e.Status = models.EventDraft })
	tier := h.insertTier(t, event.ID, nil)

	_, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1", Items: items(1),
	})
	var inelErr *IneligibleError
	require.ErrorAs(t, err, &inelErr)
	assert.Equal(t, eligibility.ReasonEventNotOpen, inelErr.Result.Reason)

	// Staff issuance skips gates entirely.
	res, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1",
		Items: items(1), BypassEligibility: true,
	})
	require.NoError(t, err)
	assert.Len(t, res.Tickets, 1)
}

func TestBypassStillEnforcesCapacity(t *testing.T) {
	h := newHarness(t)
	event := h.insertEvent(t, func(e *models.Event) { e.MaxAttendees = 1 })
	tier := h.insertTier(t, event.ID, nil)
	h.insertTickets(t, event, tier, 1, models.TicketActive)

	_, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1",
		Items: items(1), BypassEligibility: true,
	})
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.True(t, capErr.Exhausted)
}

func TestComplimentaryInvitationIssuesActiveButRespectsSectorCap(t *testing.T) {
	h := newHarness(t)

	venue := &models.Venue{ID: uuid.NewString(), Name: "Hall"}
	_, err := h.bunDB.NewInsert().Model(venue).Exec(context.Background())
	require.NoError(t, err)
	sector := &models.VenueSector{ID: uuid.NewString(), VenueID: venue.ID, Name: "Floor", Capacity: intPtr(2)}
	_, err = h.bunDB.NewInsert().Model(sector).Exec(context.Background())
	require.NoError(t, err)

	event := h.insertEvent(t, func(e *models.Event) { e.VenueID = &venue.ID })
	tier := h.insertTier(t, event.ID, func(tt *models.TicketTier) {
		tt.PaymentMethod = models.PaymentOnline
		tt.SectorID = &sector.ID
	})

	inv := &models.EventInvitation{
		ID: uuid.NewString(), EventID: event.ID, UserID: "vip-user", WaivesPurchase: true,
	}
	_, err = h.bunDB.NewInsert().Model(inv).Exec(context.Background())
	require.NoError(t, err)

	// Purchase waived: tickets come out ACTIVE with no gateway call.
	res, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "vip-user", Items: items(2),
	})
	require.NoError(t, err)
	assert.Equal(t, models.TicketActive, res.Tickets[0].Status)
	assert.Zero(t, h.gateway.calls)

	// The sector's physical limit binds even for complimentary entry.
	_, err = h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "vip-user", Items: items(1),
	})
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, ScopeSector, capErr.Scope)
	assert.True(t, capErr.Exhausted)
}

func TestUserChoiceSeatsDenormalizedOntoTickets(t *testing.T) {
	h := newHarness(t)

	venue := &models.Venue{ID: uuid.NewString(), Name: "Hall"}
	_, err := h.bunDB.NewInsert().Model(venue).Exec(context.Background())
	require.NoError(t, err)
	sector := &models.VenueSector{ID: uuid.NewString(), VenueID: venue.ID, Name: "Balcony"}
	_, err = h.bunDB.NewInsert().Model(sector).Exec(context.Background())
	require.NoError(t, err)

	seatA := &models.VenueSeat{ID: "seat-a", SectorID: sector.ID, Label: "A1", IsActive: true}
	seatB := &models.VenueSeat{ID: "seat-b", SectorID: sector.ID, Label: "A2", IsActive: true}
	_, err = h.bunDB.NewInsert().Model(seatA).Exec(context.Background())
	require.NoError(t, err)
	_, err = h.bunDB.NewInsert().Model(seatB).Exec(context.Background())
	require.NoError(t, err)

	event := h.insertEvent(t, func(e *models.Event) { e.VenueID = &venue.ID })
	tier := h.insertTier(t, event.ID, func(tt *models.TicketTier) {
		tt.SeatAssignment = models.SeatAssignmentUserChoice
		tt.SectorID = &sector.ID
	})

	res, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1",
		Items: []BatchItem{
			{GuestName: "Guest 1", SeatID: &seatB.ID},
			{GuestName: "Guest 2", SeatID: &seatA.ID},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Tickets, 2)

	// Request order survives, and the seat/sector/venue are stamped on the row.
	assert.Equal(t, "seat-b", *res.Tickets[0].SeatID)
	assert.Equal(t, "seat-a", *res.Tickets[1].SeatID)
	assert.Equal(t, sector.ID, *res.Tickets[0].SectorID)
	assert.Equal(t, venue.ID, *res.Tickets[0].VenueID)

	// Both seats are now held; a retry on either fails the whole batch.
	_, err = h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-2",
		Items: []BatchItem{{GuestName: "Guest 3", SeatID: &seatA.ID}},
	})
	var conflict *SeatConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "seat-a", conflict.SeatID)

	count, cerr := h.bunDB.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("user_id = ?", "user-2").
		Count(context.Background())
	require.NoError(t, cerr)
	assert.Zero(t, count)
}

func TestRandomSeatsSkipOccupied(t *testing.T) {
	h := newHarness(t)

	venue := &models.Venue{ID: uuid.NewString(), Name: "Hall"}
	_, err := h.bunDB.NewInsert().Model(venue).Exec(context.Background())
	require.NoError(t, err)
	sector := &models.VenueSector{ID: uuid.NewString(), VenueID: venue.ID, Name: "Stalls"}
	_, err = h.bunDB.NewInsert().Model(sector).Exec(context.Background())
	require.NoError(t, err)
	for _, id := range []string{"seat-1", "seat-2", "seat-3"} {
		s := &models.VenueSeat{ID: id, SectorID: sector.ID, Label: id, IsActive: true}
		_, err = h.bunDB.NewInsert().Model(s).Exec(context.Background())
		require.NoError(t, err)
	}

	event := h.insertEvent(t, func(e *models.Event) { e.VenueID = &venue.ID })
	tier := h.insertTier(t, event.ID, func(tt *models.TicketTier) {
		tt.SeatAssignment = models.SeatAssignmentRandom
		tt.SectorID = &sector.ID
	})

	res, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1", Items: items(2),
	})
	require.NoError(t, err)

	held := map[string]bool{}
	for _, ticket := range res.Tickets {
		require.NotNil(t, ticket.SeatID)
		held[*ticket.SeatID] = true
	}
	assert.Len(t, held, 2)

	// One seat left in the sector.
	_, err = h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-2", Items: items(2),
	})
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, ScopeSeats, capErr.Scope)
	assert.Equal(t, 1, capErr.Available)
}

func TestTierMismatchedEventRejected(t *testing.T) {
	h := newHarness(t)
	event := h.insertEvent(t, nil)
	other := h.insertEvent(t, nil)
	tier := h.insertTier(t, other.ID, nil)

	_, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1", Items: items(1),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not belong")
}

func TestEmptyBatchRejected(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: "evt", TierID: "tier", UserID: "user-1",
	})
	require.Error(t, err)
}

func TestUnknownPaymentMethodAborts(t *testing.T) {
	h := newHarness(t)
	event := h.insertEvent(t, nil)
	tier := h.insertTier(t, event.ID, func(tt *models.TicketTier) {
		tt.PaymentMethod = models.PaymentMethod("wire_transfer")
	})

	_, err := h.svc.CreateBatch(context.Background(), CreateBatchInput{
		EventID: event.ID, TierID: tier.ID, UserID: "user-1", Items: items(1),
	})
	require.ErrorIs(t, err, ErrUnknownPaymentMethod)

	// The aborted transaction left nothing behind.
	count, cerr := h.bunDB.NewSelect().Model((*models.Ticket)(nil)).Count(context.Background())
	require.NoError(t, cerr)
	assert.Zero(t, count)
	assert.Zero(t, h.quantitySold(t, tier.ID))
}

func intPtr(n int) *int { return &n }
