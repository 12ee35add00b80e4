package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ticketly/internal/auth"
	"ticketly/internal/eligibility"
	"ticketly/internal/logger"
	"ticketly/internal/sse"
	"ticketly/internal/stats"
	"ticketly/internal/tickets"
	"ticketly/internal/ticketing"
	"ticketly/internal/utils"
	"ticketly/internal/waitlist"
)

const StaffRole = "staff"

// Handler exposes purchase, eligibility, check-in and waitlist
// endpoints.
type Handler struct {
	Batch       *ticketing.BatchService
	Eligibility *eligibility.Service
	Tickets     *tickets.Service
	Waitlist    *waitlist.Waitlist
	Emitter     *sse.IssuanceEmitter
	Stats       *stats.Service
	Webhook     http.Handler
	Log         *logger.Logger
}

func NewHandler(batch *ticketing.BatchService, elig *eligibility.Service, ticketSvc *tickets.Service, wl *waitlist.Waitlist, emitter *sse.IssuanceEmitter, statsSvc *stats.Service, webhook http.Handler, log *logger.Logger) *Handler {
	return &Handler{
		Batch:       batch,
		Eligibility: elig,
		Tickets:     ticketSvc,
		Waitlist:    wl,
		Emitter:     emitter,
		Stats:       statsSvc,
		Webhook:     webhook,
		Log:         log,
	}
}

// Routes mounts the authenticated API. The webhook stays outside the
// auth middleware; Stripe signs its own requests.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	if h.Webhook != nil {
		r.Method(http.MethodPost, "/payments/webhook", h.Webhook)
	}

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.Get("/events/{eventID}/eligibility", h.CheckEligibility)
		r.Post("/events/{eventID}/tiers/{tierID}/purchase", h.Purchase)

		r.Post("/events/{eventID}/waitlist", h.JoinWaitlist)
		r.Delete("/events/{eventID}/waitlist", h.LeaveWaitlist)
		r.Get("/events/{eventID}/waitlist", h.WaitlistPosition)

		r.Get("/tickets", h.MyTickets)
		r.Get("/tickets/{ticketID}", h.GetTicket)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(StaffRole))
			r.Post("/checkin", h.CheckIn)
			r.Post("/events/{eventID}/tiers/{tierID}/issue", h.IssueAtDoor)
			r.Get("/events/{eventID}/live", h.LiveIssuance)
			r.Get("/events/{eventID}/stats", h.EventStats)
		})
	})

	return r
}

type purchaseRequest struct {
	Items         []ticketing.BatchItem `json:"items"`
	PriceOverride *float64              `json:"price_override,omitempty"`
	// ForUserID lets staff issue on behalf of a walk-in buyer.
	ForUserID string `json:"for_user_id,omitempty"`
}

// Purchase issues a batch of tickets for the authenticated user.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	h.createBatch(w, r, false)
}

// IssueAtDoor is the staff path: eligibility gates are skipped, capacity
// is not.
func (h *Handler) IssueAtDoor(w http.ResponseWriter, r *http.Request) {
	h.createBatch(w, r, true)
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request, bypass bool) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("authentication required", "missing user identity"))
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	if len(req.Items) == 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request", "items must contain at least one ticket"))
		return
	}

	buyer := userID
	if bypass && req.ForUserID != "" {
		buyer = req.ForUserID
	}

	result, err := h.Batch.CreateBatch(r.Context(), ticketing.CreateBatchInput{
		EventID:           chi.URLParam(r, "eventID"),
		TierID:            chi.URLParam(r, "tierID"),
		UserID:            buyer,
		Items:             req.Items,
		PriceOverride:     req.PriceOverride,
		BypassEligibility: bypass,
	})
	if err != nil {
		h.writeBatchError(w, err)
		return
	}

	payload := map[string]interface{}{
		"tickets": result.Tickets,
	}
	if result.CheckoutURL != "" {
		payload["checkout_url"] = result.CheckoutURL
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse(fmt.Sprintf("%d ticket(s) issued", len(result.Tickets)), payload))
}

// writeBatchError translates the issuance error taxonomy to HTTP.
func (h *Handler) writeBatchError(w http.ResponseWriter, err error) {
	var capErr *ticketing.CapacityError
	if errors.As(err, &capErr) {
		utils.WriteJSON(w, capErr.HTTPStatus(), utils.ErrorResponseWithDetails("purchase rejected", capErr.Error(), map[string]interface{}{
			"scope":     capErr.Scope,
			"available": capErr.Available,
			"requested": capErr.Requested,
			"exhausted": capErr.Exhausted,
		}))
		return
	}

	var seatErr *ticketing.SeatConflictError
	if errors.As(err, &seatErr) {
		utils.WriteJSON(w, seatErr.HTTPStatus(), utils.ErrorResponse("seat unavailable", seatErr.Error()))
		return
	}

	var inelErr *ticketing.IneligibleError
	if errors.As(err, &inelErr) {
		utils.WriteJSON(w, inelErr.HTTPStatus(), utils.ErrorResponseWithDetails("not eligible", inelErr.Error(), inelErr.Result))
		return
	}

	var gwErr *ticketing.GatewayError
	if errors.As(err, &gwErr) {
		h.Log.Error("API", fmt.Sprintf("payment gateway failure: %v", gwErr))
		utils.WriteJSON(w, http.StatusBadGateway, utils.ErrorResponse("payment could not be started", "payment gateway unavailable, your reservation will expire shortly"))
		return
	}

	h.Log.Error("API", fmt.Sprintf("batch creation failed: %v", err))
	utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("purchase failed", err.Error()))
}

// CheckEligibility previews the gate chain without buying anything.
func (h *Handler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("authentication required", "missing user identity"))
		return
	}

	result, err := h.Eligibility.CheckEligibility(r.Context(), userID, chi.URLParam(r, "eventID"))
	if err != nil {
		h.Log.Error("API", fmt.Sprintf("eligibility check failed: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("eligibility check failed", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("eligibility evaluated", result))
}

type checkInRequest struct {
	ClaimCode string `json:"claim_code"`
}

// CheckIn validates a scanned claim code and admits the ticket holder.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	if req.ClaimCode == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request", "claim_code is required"))
		return
	}

	ticket, err := h.Tickets.CheckIn(r.Context(), req.ClaimCode)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, tickets.ErrTicketNotFound):
			status = http.StatusNotFound
		case errors.Is(err, tickets.ErrAlreadyCheckedIn):
			status = http.StatusConflict
		}
		utils.WriteJSON(w, status, utils.ErrorResponse("check-in rejected", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("checked in", ticket))
}

// MyTickets lists the authenticated user's tickets.
func (h *Handler) MyTickets(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	list, err := h.Tickets.GetTicketsByUser(r.Context(), userID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to load tickets", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("tickets loaded", list))
}

// GetTicket returns one ticket, owner or staff only.
func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Tickets.GetTicket(r.Context(), chi.URLParam(r, "ticketID"))
	if err != nil {
		if errors.Is(err, tickets.ErrTicketNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("ticket not found", err.Error()))
			return
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to load ticket", err.Error()))
		return
	}

	if ticket.UserID != auth.UserID(r.Context()) && !auth.HasRole(r.Context(), StaffRole) {
		utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse("access denied", "ticket belongs to another user"))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ticket loaded", ticket))
}

// JoinWaitlist puts the user in line for a sold out event.
func (h *Handler) JoinWaitlist(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	eventID := chi.URLParam(r, "eventID")

	position, err := h.Waitlist.Join(r.Context(), eventID, userID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to join waitlist", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("joined waitlist", map[string]int64{"position": position}))
}

// LeaveWaitlist removes the user from the event's queue.
func (h *Handler) LeaveWaitlist(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	eventID := chi.URLParam(r, "eventID")

	if err := h.Waitlist.Leave(r.Context(), eventID, userID); err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to leave waitlist", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("left waitlist", nil))
}

// LiveIssuance streams issuance updates for the event as server-sent
// events until the client disconnects.
func (h *Handler) LiveIssuance(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("streaming unsupported", "response writer cannot flush"))
		return
	}

	eventID := chi.URLParam(r, "eventID")
	updates := h.Emitter.Subscribe(r.Context(), eventID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for update := range updates {
		data, err := json.Marshal(update)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

// EventStats returns the aggregated issuance counts for an event.
func (h *Handler) EventStats(w http.ResponseWriter, r *http.Request) {
	result, err := h.Stats.GetEventStats(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		h.Log.Error("API", fmt.Sprintf("stats aggregation failed: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to load stats", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("event stats", result))
}

// WaitlistPosition reports the user's place in line, 0 if not waiting.
func (h *Handler) WaitlistPosition(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	eventID := chi.URLParam(r, "eventID")

	position, err := h.Waitlist.Position(r.Context(), eventID, userID)
	if err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to read waitlist", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("waitlist position", map[string]int64{"position": position}))
}
