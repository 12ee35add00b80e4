package eligibility

import (
	"ticketly/internal/models"
)

// A Gate is one admission rule. It returns nil to pass or a terminal Result
// to deny. Gates never mutate the context; the first denying gate in the
// chain determines the user-visible reason and next step.
type Gate struct {
	Name  string
	Check func(*Context) *Result
}

// gateEventStatus denies for draft, closed, or already finished events.
// There is no next step: nothing the user does will open the event.
func gateEventStatus(ec *Context) *Result {
	if ec.Event.Status != models.EventOpen {
		return deny(ReasonEventNotOpen, "")
	}
	if ec.Event.Finished(ec.Now) {
		return deny(ReasonEventNotOpen, "")
	}
	return nil
}

// gateVisibility requires an active org membership for members-only events.
func gateVisibility(ec *Context) *Result {
	if ec.Event.Type == models.EventMembersOnly && ec.Membership == nil {
		return deny(ReasonMembersOnly, NextBecomeMember)
	}
	return nil
}

// gateInvitation requires an invitation for private events.
func gateInvitation(ec *Context) *Result {
	if ec.Event.Type == models.EventPrivate && ec.Invitation == nil {
		return deny(ReasonInvitationRequired, NextRequestInvitation)
	}
	return nil
}

// gateQuestionnaires walks every required questionnaire and collects the ids
// still outstanding. Missing outranks pending review, which outranks failed,
// because a missing questionnaire is the one the user can act on right now.
func gateQuestionnaires(ec *Context) *Result {
	var missing, pending, failed []string
	var retakeBlocked bool

	for _, qs := range ec.Questionnaires {
		q := qs.Questionnaire

		// Exempt members stay exempt even with a rejected evaluation on file.
		if q.MembersExempt && ec.Membership != nil {
			continue
		}

		switch questionnaireState(ec, qs) {
		case qMissing:
			missing = append(missing, q.ID)
		case qPending:
			pending = append(pending, q.ID)
		case qFailedRetakeLater:
			failed = append(failed, q.ID)
			retakeBlocked = true
		case qFailedExhausted:
			failed = append(failed, q.ID)
		}
	}

	var res *Result
	switch {
	case len(missing) > 0:
		res = deny(ReasonQuestionnaireMissing, NextCompleteQuestionnaire)
	case len(pending) > 0:
		res = deny(ReasonQuestionnairePendingReview, NextWaitForQuestionnaireEvaluation)
	case len(failed) > 0:
		next := NextStep("")
		if retakeBlocked {
			next = NextWaitToRetakeQuestionnaire
		}
		res = deny(ReasonQuestionnaireFailed, next)
	default:
		return nil
	}

	res.MissingQuestionnaires = missing
	res.PendingQuestionnaires = pending
	res.FailedQuestionnaires = failed
	return res
}

type qOutcome int

const (
	qPassed qOutcome = iota
	qMissing
	qPending
	qFailedRetakeLater
	qFailedExhausted
)

func questionnaireState(ec *Context, qs QuestionnaireState) qOutcome {
	q := qs.Questionnaire

	if qs.Submission == nil {
		return qMissing
	}
	if qs.Evaluation == nil || qs.Evaluation.ProposedStatus == models.EvaluationPendingReview {
		return qPending
	}

	switch qs.Evaluation.ProposedStatus {
	case models.EvaluationRejected:
		attemptsLeft := q.MaxAttempts == nil || qs.Attempts < *q.MaxAttempts
		if !attemptsLeft {
			return qFailedExhausted
		}
		cooldownOver := q.CanRetakeAfter == nil ||
			!ec.Now.Before(qs.Submission.SubmittedAt.Add(*q.CanRetakeAfter))
		if cooldownOver {
			// Retake allowed: surface it as missing so the user completes it
			// again.
			return qMissing
		}
		return qFailedRetakeLater

	case models.EvaluationApproved:
		if q.MaxSubmissionAge != nil &&
			ec.Now.After(qs.Evaluation.UpdatedAt.Add(*q.MaxSubmissionAge)) {
			// Approval expired; the user must submit afresh.
			return qMissing
		}
		return qPassed
	}

	return qPending
}

// gateRSVPDeadline denies once the RSVP window has closed.
func gateRSVPDeadline(ec *Context) *Result {
	if ec.Event.RSVPBefore != nil && ec.Now.After(*ec.Event.RSVPBefore) {
		return deny(ReasonRSVPClosed, "")
	}
	return nil
}

// gateSalesWindow denies when the event requires a ticket and no tier is
// currently on sale.
func gateSalesWindow(ec *Context) *Result {
	if !ec.Event.RequiresTicket {
		return nil
	}
	for i := range ec.Tiers {
		if ec.Tiers[i].OnSale(ec.Now) {
			return nil
		}
	}
	return deny(ReasonTicketSalesClosed, "")
}

// gateCapacity denies once the effective capacity is reached, pointing at the
// waitlist when one is open.
func gateCapacity(ec *Context) *Result {
	cap := ec.Event.EffectiveCapacity(ec.Venue)
	if cap == 0 || ec.AttendeeCount < cap {
		return nil
	}
	if ec.Event.WaitlistOpen {
		return deny(ReasonCapacityFull, NextJoinWaitlist)
	}
	return deny(ReasonCapacityFull, "")
}
