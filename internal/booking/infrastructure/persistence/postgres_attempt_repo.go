package persistence

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/slotwatch/internal/booking/domain"
)

// PostgresAttemptRepository persists reschedule attempts in PostgreSQL.
type PostgresAttemptRepository struct {
	pool *pgxpool.Pool
}

var _ domain.RescheduleAttemptRepository = (*PostgresAttemptRepository)(nil)

// NewPostgresAttemptRepository creates a new repository.
func NewPostgresAttemptRepository(pool *pgxpool.Pool) *PostgresAttemptRepository {
	return &PostgresAttemptRepository{pool: pool}
}

// Create stores a new reschedule attempt.
func (r *PostgresAttemptRepository) Create(ctx context.Context, attempt domain.RescheduleAttempt) error {
	query := `
		INSERT INTO reschedule_attempts (
			id, case_id, primary_facility, primary_date, primary_time,
			secondary_facility, secondary_date, secondary_time,
			success, failure_reason, attempted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	var secondaryFacility, secondaryTime pgtype.Text
	if attempt.SecondaryDate != nil {
		secondaryFacility = pgtype.Text{String: attempt.SecondaryFacility.String(), Valid: true}
		secondaryTime = pgtype.Text{String: attempt.SecondaryTime.String(), Valid: true}
	}

	_, err := r.pool.Exec(ctx, query,
		attempt.ID,
		attempt.CaseID,
		attempt.PrimaryFacility.String(),
		attempt.PrimaryDate,
		attempt.PrimaryTime.String(),
		secondaryFacility,
		attempt.SecondaryDate,
		secondaryTime,
		attempt.Success,
		pgtype.Text{String: attempt.FailureReason, Valid: attempt.FailureReason != ""},
		attempt.AttemptedAt,
	)
	return err
}

// ListByCase returns the most recent attempts for a case, newest first.
// A non-positive limit returns every attempt.
func (r *PostgresAttemptRepository) ListByCase(ctx context.Context, caseID string, limit int) ([]domain.RescheduleAttempt, error) {
	query := `
		SELECT id, case_id, primary_facility, primary_date, primary_time,
			   secondary_facility, secondary_date, secondary_time,
			   success, failure_reason, attempted_at
		FROM reschedule_attempts
		WHERE case_id = $1
		ORDER BY attempted_at DESC
	`
	args := []any{caseID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := make([]domain.RescheduleAttempt, 0)
	for rows.Next() {
		var (
			attempt                          domain.RescheduleAttempt
			primaryFacility, primaryTime     string
			secondaryFacility, secondaryTime pgtype.Text
			secondaryDate                    pgtype.Date
			failureReason                    pgtype.Text
		)
		if err := rows.Scan(
			&attempt.ID,
			&attempt.CaseID,
			&primaryFacility,
			&attempt.PrimaryDate,
			&primaryTime,
			&secondaryFacility,
			&secondaryDate,
			&secondaryTime,
			&attempt.Success,
			&failureReason,
			&attempt.AttemptedAt,
		); err != nil {
			return nil, err
		}
		attempt.PrimaryFacility = domain.FacilityID(primaryFacility)
		attempt.PrimaryTime = domain.TimeOfDay(primaryTime)
		attempt.FailureReason = failureReason.String
		if secondaryDate.Valid {
			d := secondaryDate.Time
			attempt.SecondaryFacility = domain.FacilityID(secondaryFacility.String)
			attempt.SecondaryDate = &d
			attempt.SecondaryTime = domain.TimeOfDay(secondaryTime.String)
		}
		attempts = append(attempts, attempt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return attempts, nil
}
