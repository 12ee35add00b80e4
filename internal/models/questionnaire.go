package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Questionnaire is an organization-level form that may gate admission to an
// event. MembersExempt skips the whole check for active members, even when
// they previously failed it.
type Questionnaire struct {
	bun.BaseModel `bun:"table:questionnaires"`

	ID             string `bun:"id,pk"`
	OrganizationID string `bun:"organization_id,notnull"`
	Name           string `bun:"name,notnull"`
	MembersExempt  bool   `bun:"members_exempt"`
	// MaxAttempts is nil for unlimited retakes.
	MaxAttempts *int `bun:"max_attempts,nullzero"`
	// CanRetakeAfter is the cooldown after a rejection; nil means no cooldown.
	CanRetakeAfter *time.Duration `bun:"can_retake_after,nullzero"`
	// MaxSubmissionAge expires approvals older than this; nil means approvals
	// never expire.
	MaxSubmissionAge *time.Duration `bun:"max_submission_age,nullzero"`
}

// EventQuestionnaire links a required questionnaire to an event.
type EventQuestionnaire struct {
	bun.BaseModel `bun:"table:event_questionnaires"`

	EventID         string `bun:"event_id,pk"`
	QuestionnaireID string `bun:"questionnaire_id,pk"`
}

type QuestionnaireSubmission struct {
	bun.BaseModel `bun:"table:questionnaire_submissions"`

	ID              string    `bun:"id,pk"`
	QuestionnaireID string    `bun:"questionnaire_id,notnull"`
	UserID          string    `bun:"user_id,notnull"`
	SubmittedAt     time.Time `bun:"submitted_at,notnull"`
}

type EvaluationStatus string

const (
	EvaluationApproved      EvaluationStatus = "approved"
	EvaluationRejected      EvaluationStatus = "rejected"
	EvaluationPendingReview EvaluationStatus = "pending_review"
)

type QuestionnaireEvaluation struct {
	bun.BaseModel `bun:"table:questionnaire_evaluations"`

	ID             string           `bun:"id,pk"`
	SubmissionID   string           `bun:"submission_id,notnull"`
	ProposedStatus EvaluationStatus `bun:"proposed_status,notnull"`
	UpdatedAt      time.Time        `bun:"updated_at,notnull"`
}
