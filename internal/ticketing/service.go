package ticketing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ticketly/internal/eligibility"
	"ticketly/internal/logger"
	"ticketly/internal/models"
	"ticketly/internal/ticketing/db"
)

// CheckoutGateway opens an opaque session-based checkout for the whole batch.
// Called only for the ONLINE branch, strictly after the transaction commits.
type CheckoutGateway interface {
	CreateBatchCheckoutSession(ctx context.Context, event *models.Event, tier *models.TicketTier, userID string, tickets []models.Ticket, priceOverride *float64) (string, error)
}

// SideEffects fires the post-commit hooks: visibility recount, batch
// notification, waitlist removal. Fire-and-forget; failures are logged by the
// dispatcher, never returned.
type SideEffects interface {
	TicketsCreated(ctx context.Context, event *models.Event, userID string, tickets []models.Ticket)
}

// QRGenerator produces the encrypted check-in code stamped on tickets issued
// ACTIVE.
type QRGenerator interface {
	GenerateEncryptedQR(ticket models.Ticket) ([]byte, error)
}

// BatchService materializes 1..N tickets atomically against one tier,
// enforcing every capacity layer under row locks inside a single
// transaction.
type BatchService struct {
	Bun         *bun.DB
	Eligibility *eligibility.Service
	Loader      eligibility.ContextLoader
	Gateway     CheckoutGateway
	Effects     SideEffects
	QR          QRGenerator
	Log         *logger.Logger
}

func NewBatchService(bunDB *bun.DB, elig *eligibility.Service, loader eligibility.ContextLoader, gateway CheckoutGateway, effects SideEffects, qr QRGenerator, log *logger.Logger) *BatchService {
	return &BatchService{
		Bun:         bunDB,
		Eligibility: elig,
		Loader:      loader,
		Gateway:     gateway,
		Effects:     effects,
		QR:          qr,
		Log:         log,
	}
}

// BatchItem is one requested ticket. SeatID is required for user-choice
// tiers and ignored otherwise.
type BatchItem struct {
	GuestName string  `json:"guest_name"`
	SeatID    *string `json:"seat_id,omitempty"`
}

type CreateBatchInput struct {
	EventID string
	TierID  string
	UserID  string
	Items   []BatchItem
	// PriceOverride is the buyer-chosen amount for PWYC tiers.
	PriceOverride *float64
	// BypassEligibility lets privileged callers skip the event-level gate
	// chain. Capacity checks are never bypassed.
	BypassEligibility bool
}

// BatchResult is either a list of issued tickets or, for the ONLINE branch,
// the same list in PENDING state plus a checkout URL.
type BatchResult struct {
	Tickets     []models.Ticket
	CheckoutURL string
}

// CreateBatch runs one purchase. Validation, capacity checks, seat
// resolution, and persistence happen inside a single transaction; no lock is
// held while talking to the payment gateway.
func (s *BatchService) CreateBatch(ctx context.Context, in CreateBatchInput) (*BatchResult, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("batch must contain at least one ticket")
	}

	ec, err := s.Loader.LoadContext(ctx, in.UserID, in.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase context: %w", err)
	}

	if !in.BypassEligibility {
		if res := s.Eligibility.Evaluate(ec); !res.Allowed {
			return nil, &IneligibleError{Result: res}
		}
	}

	// An invitation that waives purchase short-circuits the payment branch:
	// the batch is complimentary and issued ACTIVE. Capacity still applies.
	complimentary := ec.Invitation != nil && ec.Invitation.WaivesPurchase

	var (
		event   *models.Event
		tier    *models.TicketTier
		created []models.Ticket
	)

	err = s.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		store := db.NewStore(tx)

		event, err = store.GetEvent(ctx, in.EventID)
		if err != nil {
			return fmt.Errorf("event %s not found: %w", in.EventID, err)
		}
		var venue *models.Venue
		if event.VenueID != nil {
			venue, err = store.GetVenue(ctx, *event.VenueID)
			if err != nil {
				return fmt.Errorf("venue %s not found: %w", *event.VenueID, err)
			}
		}

		// Serialize concurrent purchases against the same tier.
		tier, err = store.LockTier(ctx, in.TierID)
		if err != nil {
			return fmt.Errorf("tier %s not found: %w", in.TierID, err)
		}
		if tier.EventID != in.EventID {
			return fmt.Errorf("tier %s does not belong to event %s", in.TierID, in.EventID)
		}

		if err := s.checkBatchSize(ctx, store, event, venue, tier, in); err != nil {
			return err
		}
		if err := checkTierCapacity(tier, len(in.Items)); err != nil {
			return err
		}
		if err := checkEventCapacity(ctx, store, event, venue, len(in.Items)); err != nil {
			return err
		}
		if err := checkSectorCapacity(ctx, store, tier, len(in.Items)); err != nil {
			return err
		}

		seats, err := ResolveSeats(ctx, store, tier, in.Items)
		if err != nil {
			return err
		}

		if res := eligibility.CheckTierEligibility(ec, tier); !res.Allowed {
			return &IneligibleError{Result: res}
		}

		status, err := issuanceStatus(tier.PaymentMethod, complimentary)
		if err != nil {
			return err
		}

		created, err = s.buildTickets(event, tier, in, seats, status, complimentary)
		if err != nil {
			return err
		}
		if err := store.InsertTickets(ctx, created); err != nil {
			return fmt.Errorf("failed to insert tickets: %w", err)
		}
		return store.IncrementQuantitySold(ctx, tier.ID, len(created))
	})
	if err != nil {
		return nil, err
	}

	if s.Log != nil {
		s.Log.LogTicket("BATCH_CREATED", in.TierID, fmt.Sprintf("%d ticket(s) for user %s", len(created), in.UserID))
	}

	if !complimentary && tier.PaymentMethod == models.PaymentOnline {
		// Locks are already released; a slow gateway never blocks inventory.
		// On failure the PENDING tickets stay behind for the expiry worker.
		url, gerr := s.Gateway.CreateBatchCheckoutSession(ctx, event, tier, in.UserID, created, in.PriceOverride)
		if gerr != nil {
			return nil, &GatewayError{Err: gerr}
		}
		return &BatchResult{Tickets: created, CheckoutURL: url}, nil
	}

	if s.Effects != nil {
		s.Effects.TicketsCreated(ctx, event, in.UserID, created)
	}
	return &BatchResult{Tickets: created}, nil
}

// checkBatchSize enforces the per-user limit and the coarse event headroom up
// front, naming the exact remaining count in the error.
func (s *BatchService) checkBatchSize(ctx context.Context, store *db.Store, event *models.Event, venue *models.Venue, tier *models.TicketTier, in CreateBatchInput) error {
	remaining := -1 // -1 = unlimited
	scope := ScopeUserLimit

	limit := tier.MaxTicketsPerUser
	if limit == nil {
		limit = event.MaxTicketsPerUser
	}
	if limit != nil {
		used, err := store.CountUserTierTickets(ctx, in.UserID, tier.ID)
		if err != nil {
			return fmt.Errorf("failed to count user tickets: %w", err)
		}
		// A lowered limit can leave a user over it already; clamp so the
		// -1 unlimited sentinel never collides with a negative remainder.
		if remaining = *limit - used; remaining < 0 {
			remaining = 0
		}
	}

	if cap := event.EffectiveCapacity(venue); cap > 0 {
		count, err := store.CountEventTickets(ctx, event.ID)
		if err != nil {
			return fmt.Errorf("failed to count event tickets: %w", err)
		}
		left := cap - count
		if left < 0 {
			left = 0
		}
		if remaining < 0 || left < remaining {
			remaining = left
			scope = ScopeEvent
		}
	}

	if remaining >= 0 && len(in.Items) > remaining {
		if remaining <= 0 {
			return &CapacityError{Scope: scope, Available: 0, Requested: len(in.Items), Exhausted: true}
		}
		return &CapacityError{Scope: scope, Available: remaining, Requested: len(in.Items)}
	}
	return nil
}

func checkTierCapacity(tier *models.TicketTier, requested int) error {
	if tier.TotalQuantity == nil {
		return nil
	}
	available := *tier.TotalQuantity - tier.QuantitySold
	if available <= 0 {
		return &CapacityError{Scope: ScopeTier, Available: 0, Requested: requested, Exhausted: true}
	}
	if requested > available {
		return &CapacityError{Scope: ScopeTier, Available: available, Requested: requested}
	}
	return nil
}

// checkEventCapacity locks the event row before counting so purchases across
// different tiers of the same event serialize here.
func checkEventCapacity(ctx context.Context, store *db.Store, event *models.Event, venue *models.Venue, requested int) error {
	cap := event.EffectiveCapacity(venue)
	if cap == 0 {
		return nil
	}
	if err := store.LockEvent(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to lock event: %w", err)
	}
	count, err := store.CountEventTickets(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("failed to count event tickets: %w", err)
	}
	available := cap - count
	if available <= 0 {
		return &CapacityError{Scope: ScopeEvent, Available: 0, Requested: requested, Exhausted: true}
	}
	if requested > available {
		return &CapacityError{Scope: ScopeEvent, Available: available, Requested: requested}
	}
	return nil
}

// checkSectorCapacity enforces the physical sector limit for general
// admission. This one is never waived, not even for complimentary tickets.
func checkSectorCapacity(ctx context.Context, store *db.Store, tier *models.TicketTier, requested int) error {
	if !tier.GeneralAdmission() || tier.SectorID == nil {
		return nil
	}
	sector, err := store.LockSector(ctx, *tier.SectorID)
	if err != nil {
		return fmt.Errorf("sector %s not found: %w", *tier.SectorID, err)
	}
	if sector.Capacity == nil {
		return nil
	}
	count, err := store.CountSectorGATickets(ctx, sector.ID)
	if err != nil {
		return fmt.Errorf("failed to count sector tickets: %w", err)
	}
	available := *sector.Capacity - count
	if available <= 0 {
		return &CapacityError{Scope: ScopeSector, Available: 0, Requested: requested, Exhausted: true}
	}
	if requested > available {
		return &CapacityError{Scope: ScopeSector, Available: available, Requested: requested}
	}
	return nil
}

func issuanceStatus(method models.PaymentMethod, complimentary bool) (models.TicketStatus, error) {
	if complimentary {
		return models.TicketActive, nil
	}
	switch method {
	case models.PaymentOnline, models.PaymentOffline:
		return models.TicketPending, nil
	case models.PaymentAtTheDoor, models.PaymentFree:
		// Treated as committed attendance even though payment may happen
		// physically later.
		return models.TicketActive, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, method)
}

func (s *BatchService) buildTickets(event *models.Event, tier *models.TicketTier, in CreateBatchInput, seats []*models.VenueSeat, status models.TicketStatus, complimentary bool) ([]models.Ticket, error) {
	now := time.Now()
	storePrice := !complimentary &&
		tier.PriceType == models.PricePWYC &&
		in.PriceOverride != nil &&
		(tier.PaymentMethod == models.PaymentOffline || tier.PaymentMethod == models.PaymentAtTheDoor)

	tickets := make([]models.Ticket, len(in.Items))
	for i, item := range in.Items {
		t := models.Ticket{
			ID:        uuid.NewString(),
			EventID:   event.ID,
			TierID:    tier.ID,
			UserID:    in.UserID,
			Status:    status,
			GuestName: item.GuestName,
			VenueID:   event.VenueID,
			IssuedAt:  now,
		}
		if seats[i] != nil {
			t.SeatID = &seats[i].ID
			sectorID := seats[i].SectorID
			t.SectorID = &sectorID
		} else if tier.SectorID != nil {
			t.SectorID = tier.SectorID
		}
		if storePrice {
			t.PricePaid = in.PriceOverride
		}
		if status == models.TicketActive && s.QR != nil {
			qr, err := s.QR.GenerateEncryptedQR(t)
			if err != nil {
				return nil, fmt.Errorf("failed to generate ticket QR: %w", err)
			}
			t.QRCode = qr
		}
		tickets[i] = t
	}
	return tickets, nil
}
