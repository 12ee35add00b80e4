package eligibility

// Reason identifies why access was denied. Callers render it to the end user,
// so values are stable strings rather than numeric codes.
type Reason string

const (
	ReasonEventNotOpen               Reason = "event_not_open"
	ReasonMembersOnly                Reason = "members_only"
	ReasonInvitationRequired         Reason = "invitation_required"
	ReasonQuestionnaireMissing       Reason = "questionnaire_missing"
	ReasonQuestionnairePendingReview Reason = "questionnaire_pending_review"
	ReasonQuestionnaireFailed        Reason = "questionnaire_failed"
	ReasonRSVPClosed                 Reason = "rsvp_closed"
	ReasonTicketSalesClosed          Reason = "ticket_sales_closed"
	ReasonCapacityFull               Reason = "capacity_full"
	ReasonMembershipTierRequired     Reason = "membership_tier_required"
)

// NextStep is the suggested action for a denied user.
type NextStep string

const (
	NextBecomeMember                   NextStep = "become_member"
	NextRequestInvitation              NextStep = "request_invitation"
	NextCompleteQuestionnaire          NextStep = "complete_questionnaire"
	NextWaitForQuestionnaireEvaluation NextStep = "wait_for_questionnaire_evaluation"
	NextWaitToRetakeQuestionnaire      NextStep = "wait_to_retake_questionnaire"
	NextJoinWaitlist                   NextStep = "join_waitlist"
	NextUpgradeMembership              NextStep = "upgrade_membership"
)

// Result is the outcome of one eligibility evaluation. It is constructed
// fresh per call and never persisted.
type Result struct {
	Allowed  bool     `json:"allowed"`
	Reason   Reason   `json:"reason,omitempty"`
	NextStep NextStep `json:"next_step,omitempty"`

	// Questionnaire ids in each outstanding state, populated only when the
	// questionnaire gate denies.
	MissingQuestionnaires []string `json:"missing_questionnaires,omitempty"`
	PendingQuestionnaires []string `json:"pending_questionnaires,omitempty"`
	FailedQuestionnaires  []string `json:"failed_questionnaires,omitempty"`
}

func allowed() *Result {
	return &Result{Allowed: true}
}

func deny(reason Reason, next NextStep) *Result {
	return &Result{Reason: reason, NextStep: next}
}
