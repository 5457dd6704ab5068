package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RescheduleAttempt captures a commit outcome for auditing.
type RescheduleAttempt struct {
	ID                uuid.UUID
	CaseID            string
	PrimaryFacility   FacilityID
	PrimaryDate       time.Time
	PrimaryTime       TimeOfDay
	SecondaryFacility FacilityID
	SecondaryDate     *time.Time
	SecondaryTime     TimeOfDay
	Success           bool
	FailureReason     string
	AttemptedAt       time.Time
}

// NewRescheduleAttempt builds an attempt record for the given payload.
func NewRescheduleAttempt(caseID string, payload SchedulePayload, success bool, failureReason string) RescheduleAttempt {
	primary := payload.Primary()
	attempt := RescheduleAttempt{
		ID:              uuid.New(),
		CaseID:          caseID,
		PrimaryFacility: primary.FacilityID(),
		PrimaryDate:     primary.Date(),
		PrimaryTime:     primary.Time(),
		Success:         success,
		FailureReason:   failureReason,
		AttemptedAt:     time.Now().UTC(),
	}
	if secondary, ok := payload.Secondary(); ok {
		d := secondary.Date()
		attempt.SecondaryFacility = secondary.FacilityID()
		attempt.SecondaryDate = &d
		attempt.SecondaryTime = secondary.Time()
	}
	return attempt
}

// RescheduleAttemptRepository defines persistence for reschedule attempts.
type RescheduleAttemptRepository interface {
	// Create stores a new reschedule attempt.
	Create(ctx context.Context, attempt RescheduleAttempt) error
	// ListByCase returns the most recent attempts for a case, newest first.
	ListByCase(ctx context.Context, caseID string, limit int) ([]RescheduleAttempt, error)
}
