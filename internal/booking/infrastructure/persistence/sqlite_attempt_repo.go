package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/slotwatch/internal/booking/domain"
)

// attemptTimeLayout is fixed width so stored timestamps sort as text.
const attemptTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteAttemptRepository persists reschedule attempts in SQLite.
type SQLiteAttemptRepository struct {
	db *sql.DB
}

var _ domain.RescheduleAttemptRepository = (*SQLiteAttemptRepository)(nil)

// NewSQLiteAttemptRepository creates a new SQLite attempt repository.
func NewSQLiteAttemptRepository(db *sql.DB) *SQLiteAttemptRepository {
	return &SQLiteAttemptRepository{db: db}
}

// Create stores a new reschedule attempt.
func (r *SQLiteAttemptRepository) Create(ctx context.Context, attempt domain.RescheduleAttempt) error {
	query := `
		INSERT INTO reschedule_attempts (
			id, case_id, primary_facility, primary_date, primary_time,
			secondary_facility, secondary_date, secondary_time,
			success, failure_reason, attempted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var secondaryFacility, secondaryDate, secondaryTime, failureReason sql.NullString
	if attempt.SecondaryDate != nil {
		secondaryFacility = sql.NullString{String: attempt.SecondaryFacility.String(), Valid: true}
		secondaryDate = sql.NullString{String: domain.FormatDate(*attempt.SecondaryDate), Valid: true}
		secondaryTime = sql.NullString{String: attempt.SecondaryTime.String(), Valid: true}
	}
	if attempt.FailureReason != "" {
		failureReason = sql.NullString{String: attempt.FailureReason, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		attempt.ID.String(),
		attempt.CaseID,
		attempt.PrimaryFacility.String(),
		domain.FormatDate(attempt.PrimaryDate),
		attempt.PrimaryTime.String(),
		secondaryFacility,
		secondaryDate,
		secondaryTime,
		boolToInt(attempt.Success),
		failureReason,
		attempt.AttemptedAt.UTC().Format(attemptTimeLayout),
	)
	return err
}

// ListByCase returns the most recent attempts for a case, newest first.
// A non-positive limit returns every attempt.
func (r *SQLiteAttemptRepository) ListByCase(ctx context.Context, caseID string, limit int) ([]domain.RescheduleAttempt, error) {
	query := `
		SELECT id, case_id, primary_facility, primary_date, primary_time,
			   secondary_facility, secondary_date, secondary_time,
			   success, failure_reason, attempted_at
		FROM reschedule_attempts
		WHERE case_id = ?
		ORDER BY attempted_at DESC
	`
	args := []any{caseID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := make([]domain.RescheduleAttempt, 0)
	for rows.Next() {
		var (
			attempt                                          domain.RescheduleAttempt
			idStr, primaryFacility, primaryDate, primaryTime string
			secondaryFacility, secondaryDate, secondaryTime  sql.NullString
			failureReason                                    sql.NullString
			success                                          int
			attemptedAtStr                                   string
		)
		if err := rows.Scan(
			&idStr,
			&attempt.CaseID,
			&primaryFacility,
			&primaryDate,
			&primaryTime,
			&secondaryFacility,
			&secondaryDate,
			&secondaryTime,
			&success,
			&failureReason,
			&attemptedAtStr,
		); err != nil {
			return nil, err
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("scan attempt id %q: %w", idStr, err)
		}
		attempt.ID = id
		attempt.PrimaryFacility = domain.FacilityID(primaryFacility)
		if attempt.PrimaryDate, err = domain.ParseDate(primaryDate); err != nil {
			return nil, fmt.Errorf("scan attempt %s primary date: %w", idStr, err)
		}
		attempt.PrimaryTime = domain.TimeOfDay(primaryTime)
		attempt.Success = success == 1
		attempt.FailureReason = failureReason.String
		if attempt.AttemptedAt, err = time.Parse(attemptTimeLayout, attemptedAtStr); err != nil {
			return nil, fmt.Errorf("scan attempt %s attempted_at: %w", idStr, err)
		}

		if secondaryDate.Valid {
			d, err := domain.ParseDate(secondaryDate.String)
			if err != nil {
				return nil, fmt.Errorf("scan attempt %s secondary date: %w", idStr, err)
			}
			attempt.SecondaryFacility = domain.FacilityID(secondaryFacility.String)
			attempt.SecondaryDate = &d
			attempt.SecondaryTime = domain.TimeOfDay(secondaryTime.String)
		}

		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attempts, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
