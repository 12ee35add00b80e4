package eligibility

import (
	"context"
	"fmt"

	"ticketly/internal/logger"
	"ticketly/internal/models"
)

// Config toggles individual gates. It is passed in explicitly so the chain
// stays pure and testable; the status gate is always on.
type Config struct {
	EnforceVisibility     bool
	EnforceQuestionnaires bool
	EnforceRSVPDeadline   bool
	EnforceSalesWindow    bool
	EnforceCapacity       bool
}

// DefaultConfig enables every gate.
func DefaultConfig() Config {
	return Config{
		EnforceVisibility:     true,
		EnforceQuestionnaires: true,
		EnforceRSVPDeadline:   true,
		EnforceSalesWindow:    true,
		EnforceCapacity:       true,
	}
}

// ContextLoader assembles the read-only snapshot for one (user, event) pair.
type ContextLoader interface {
	LoadContext(ctx context.Context, userID, eventID string) (*Context, error)
}

type Service struct {
	cfg    Config
	loader ContextLoader
	log    *logger.Logger
}

func NewService(cfg Config, loader ContextLoader, log *logger.Logger) *Service {
	return &Service{cfg: cfg, loader: loader, log: log}
}

// CheckEligibility loads the context for the pair and evaluates the gate
// chain. The chain is read-only; no state is mutated.
func (s *Service) CheckEligibility(ctx context.Context, userID, eventID string) (*Result, error) {
	ec, err := s.loader.LoadContext(ctx, userID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load eligibility context: %w", err)
	}
	res := s.Evaluate(ec)
	if s.log != nil && !res.Allowed {
		s.log.LogEligibility(string(res.Reason), fmt.Sprintf("user %s denied for event %s", userID, eventID))
	}
	return res, nil
}

// Evaluate runs the gate chain over an already-loaded context. The first
// denying gate wins.
func (s *Service) Evaluate(ec *Context) *Result {
	for _, g := range s.gates() {
		if res := g.Check(ec); res != nil {
			return res
		}
	}
	return allowed()
}

func (s *Service) gates() []Gate {
	gates := []Gate{{Name: "event_status", Check: gateEventStatus}}
	if s.cfg.EnforceVisibility {
		gates = append(gates,
			Gate{Name: "visibility", Check: gateVisibility},
			Gate{Name: "invitation", Check: gateInvitation},
		)
	}
	if s.cfg.EnforceQuestionnaires {
		gates = append(gates, Gate{Name: "questionnaires", Check: gateQuestionnaires})
	}
	if s.cfg.EnforceRSVPDeadline {
		gates = append(gates, Gate{Name: "rsvp_deadline", Check: gateRSVPDeadline})
	}
	if s.cfg.EnforceSalesWindow {
		gates = append(gates, Gate{Name: "sales_window", Check: gateSalesWindow})
	}
	if s.cfg.EnforceCapacity {
		gates = append(gates, Gate{Name: "capacity", Check: gateCapacity})
	}
	return gates
}

// CheckTierEligibility is the narrower purchase-time predicate. A tier
// restricted to specific membership tiers requires an active membership in
// that set, unless an invitation waives the requirement.
func CheckTierEligibility(ec *Context, tier *models.TicketTier) *Result {
	if len(tier.RestrictedToMembershipTiers) == 0 {
		return allowed()
	}
	if ec.Invitation != nil && ec.Invitation.WaivesMembershipRequired {
		return allowed()
	}
	if ec.Membership != nil {
		for _, id := range tier.RestrictedToMembershipTiers {
			if id == ec.Membership.TierID {
				return allowed()
			}
		}
	}
	return deny(ReasonMembershipTierRequired, NextUpgradeMembership)
}
