package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ticketly/internal/eligibility"
	"ticketly/internal/models"
)

// Loader assembles the eligibility context from the relational store. All
// reads are plain (unlocked): the gate chain is advisory and the batch
// ticket service re-checks capacity under locks.
type Loader struct {
	Bun *bun.DB
}

func NewLoader(bunDB *bun.DB) *Loader {
	return &Loader{Bun: bunDB}
}

func (l *Loader) LoadContext(ctx context.Context, userID, eventID string) (*eligibility.Context, error) {
	ec := &eligibility.Context{Now: time.Now()}

	var user models.User
	if err := l.Bun.NewSelect().Model(&user).Where("id = ?", userID).Limit(1).Scan(ctx); err != nil {
		return nil, err
	}
	ec.User = &user

	var event models.Event
	if err := l.Bun.NewSelect().Model(&event).Where("id = ?", eventID).Limit(1).Scan(ctx); err != nil {
		return nil, err
	}
	ec.Event = &event

	if event.VenueID != nil {
		var venue models.Venue
		if err := l.Bun.NewSelect().Model(&venue).Where("id = ?", *event.VenueID).Limit(1).Scan(ctx); err != nil {
			return nil, err
		}
		ec.Venue = &venue
	}

	if err := l.Bun.NewSelect().Model(&ec.Tiers).Where("event_id = ?", eventID).Order("created_at").Scan(ctx); err != nil {
		return nil, err
	}

	membership, err := l.activeMembership(ctx, userID, event.OrganizationID)
	if err != nil {
		return nil, err
	}
	ec.Membership = membership

	invitation, err := l.invitationFor(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	ec.Invitation = invitation

	states, err := l.questionnaireStates(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	ec.Questionnaires = states

	count, err := l.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", eventID).
		Where("status != ?", models.TicketCancelled).
		Count(ctx)
	if err != nil {
		return nil, err
	}
	ec.AttendeeCount = count

	return ec, nil
}

func (l *Loader) activeMembership(ctx context.Context, userID, orgID string) (*models.Membership, error) {
	var m models.Membership
	err := l.Bun.NewSelect().
		Model(&m).
		Where("user_id = ?", userID).
		Where("organization_id = ?", orgID).
		Where("status = ?", models.MembershipActive).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (l *Loader) invitationFor(ctx context.Context, userID, eventID string) (*models.EventInvitation, error) {
	var inv models.EventInvitation
	err := l.Bun.NewSelect().
		Model(&inv).
		Where("user_id = ?", userID).
		Where("event_id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (l *Loader) questionnaireStates(ctx context.Context, userID, eventID string) ([]eligibility.QuestionnaireState, error) {
	var questionnaires []models.Questionnaire
	err := l.Bun.NewSelect().
		Model(&questionnaires).
		Join("JOIN event_questionnaires eq ON eq.questionnaire_id = questionnaire.id").
		Where("eq.event_id = ?", eventID).
		Order("questionnaire.id").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	states := make([]eligibility.QuestionnaireState, 0, len(questionnaires))
	for _, q := range questionnaires {
		state := eligibility.QuestionnaireState{Questionnaire: q}

		attempts, err := l.Bun.NewSelect().
			Model((*models.QuestionnaireSubmission)(nil)).
			Where("questionnaire_id = ?", q.ID).
			Where("user_id = ?", userID).
			Count(ctx)
		if err != nil {
			return nil, err
		}
		state.Attempts = attempts

		var sub models.QuestionnaireSubmission
		err = l.Bun.NewSelect().
			Model(&sub).
			Where("questionnaire_id = ?", q.ID).
			Where("user_id = ?", userID).
			Order("submitted_at DESC").
			Limit(1).
			Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if err == nil {
			state.Submission = &sub

			var eval models.QuestionnaireEvaluation
			err = l.Bun.NewSelect().
				Model(&eval).
				Where("submission_id = ?", sub.ID).
				Order("updated_at DESC").
				Limit(1).
				Scan(ctx)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return nil, err
			}
			if err == nil {
				state.Evaluation = &eval
			}
		}

		states = append(states, state)
	}
	return states, nil
}
