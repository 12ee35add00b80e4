package ticketing

import (
	"errors"
	"fmt"
	"net/http"

	"ticketly/internal/eligibility"
)

// ErrUnknownPaymentMethod and ErrUnknownSeatAssignment are programmer errors:
// the engine aborts loudly rather than defaulting.
var (
	ErrUnknownPaymentMethod  = errors.New("unknown payment method")
	ErrUnknownSeatAssignment = errors.New("unknown seat assignment mode")
)

// CapacityScope names which counter ran out.
type CapacityScope string

const (
	ScopeUserLimit CapacityScope = "user_limit"
	ScopeTier      CapacityScope = "tier"
	ScopeEvent     CapacityScope = "event"
	ScopeSector    CapacityScope = "sector"
	ScopeSeats     CapacityScope = "seats"
)

// CapacityError distinguishes "nothing left" (429, retry never) from "N left,
// you asked for M" (400, retry with a smaller batch).
type CapacityError struct {
	Scope     CapacityScope
	Available int
	Requested int
	Exhausted bool
}

func (e *CapacityError) Error() string {
	if e.Exhausted {
		if e.Scope == ScopeUserLimit {
			return "maximum number of tickets reached"
		}
		return fmt.Sprintf("sold out: no %s capacity remaining", e.Scope)
	}
	if e.Scope == ScopeUserLimit {
		return fmt.Sprintf("you can only purchase %d more ticket(s)", e.Available)
	}
	if e.Scope == ScopeSeats {
		return fmt.Sprintf("only %d seat(s) available, requested %d", e.Available, e.Requested)
	}
	return fmt.Sprintf("only %d ticket(s) remaining, requested %d", e.Available, e.Requested)
}

// HTTPStatus maps exhausted inventory to 429 and partial shortfalls (and the
// per-user limit) to 400.
func (e *CapacityError) HTTPStatus() int {
	if e.Exhausted && e.Scope != ScopeUserLimit {
		return http.StatusTooManyRequests
	}
	return http.StatusBadRequest
}

// SeatConflictError covers a seat that is taken, inactive, missing, or in the
// wrong sector. Seat assignment is batch-atomic, so one bad seat fails all.
type SeatConflictError struct {
	SeatID string
	Detail string
}

func (e *SeatConflictError) Error() string {
	if e.SeatID == "" {
		return fmt.Sprintf("seat conflict: %s", e.Detail)
	}
	return fmt.Sprintf("seat %s: %s", e.SeatID, e.Detail)
}

func (e *SeatConflictError) HTTPStatus() int { return http.StatusBadRequest }

// IneligibleError wraps a gate denial. It is an expected outcome, not a
// fault: callers render the reason and next step to the user.
type IneligibleError struct {
	Result *eligibility.Result
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("not eligible: %s", e.Result.Reason)
}

func (e *IneligibleError) HTTPStatus() int { return http.StatusForbidden }

// GatewayError propagates a payment-gateway failure unchanged. The PENDING
// tickets created before the call remain for the expiry worker to reconcile.
type GatewayError struct {
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway error: %v", e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
