package eligibility

import (
	"time"

	"ticketly/internal/models"
)

// QuestionnaireState bundles one required questionnaire with the user's
// latest submission and its latest evaluation. Attempts counts every
// submission the user ever made for it.
type QuestionnaireState struct {
	Questionnaire models.Questionnaire
	Submission    *models.QuestionnaireSubmission
	Evaluation    *models.QuestionnaireEvaluation
	Attempts      int
}

// Context is the read-only snapshot a gate chain evaluates. Everything is
// fetched up front so gates stay pure and independently testable.
type Context struct {
	Now   time.Time
	User  *models.User
	Event *models.Event
	Venue *models.Venue
	Tiers []models.TicketTier

	// Membership is the user's ACTIVE membership in the event's organization,
	// nil when there is none.
	Membership *models.Membership
	Invitation *models.EventInvitation

	Questionnaires []QuestionnaireState

	// AttendeeCount is the number of non-cancelled tickets for the event.
	AttendeeCount int
}
