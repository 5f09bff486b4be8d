package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Zayn-Suleman/loan-preQualification/internal/domain"
)

const selectApplicationSQL = `
SELECT application_id, pan_number_encrypted, pan_number_hash,
       first_name, last_name, date_of_birth, email, phone_number,
       requested_amount, COALESCE(annual_income, 0), loan_type,
       status, credit_score, decision_reason, max_approved_amount,
       version, created_at, updated_at
FROM applications
WHERE application_id = $1
`

// CreateApplication inserts the application row, its ENCRYPT audit entry and
// the submission outbox row in one transaction. Duplicate PAN fingerprints
// surface as domain.ErrDuplicatePAN.
func (r *Repository) CreateApplication(ctx context.Context, app *domain.Application, ev *domain.OutboxEvent) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO applications (
			application_id, pan_number_encrypted, pan_number_hash,
			first_name, last_name, date_of_birth, email, phone_number,
			requested_amount, annual_income, loan_type,
			status, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1, NOW(), NOW())
	`,
		app.ID, app.PANEncrypted, app.PANHash,
		app.FirstName, app.LastName, app.DateOfBirth, app.Email, app.PhoneNumber,
		app.RequestedAmount, app.AnnualIncome, string(app.LoanType),
		string(app.Status),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicatePAN
		}
		return fmt.Errorf("insert application: %w", err)
	}

	if err := r.InsertAuditTx(ctx, tx, domain.AuditEntry{
		ApplicationID: app.ID,
		ServiceName:   "prequal-api",
		Operation:     "ENCRYPT",
	}); err != nil {
		return err
	}

	if err := r.InsertOutboxTx(ctx, tx, ev); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetApplication loads one row by id. domain.ErrApplicationNotFound when the
// row is missing.
func (r *Repository) GetApplication(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	return scanApplication(r.pool.QueryRow(ctx, selectApplicationSQL, id))
}

// GetApplicationTx is the transactional variant used inside ProcessOnce.
func (r *Repository) GetApplicationTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Application, error) {
	return scanApplication(tx.QueryRow(ctx, selectApplicationSQL, id))
}

func scanApplication(row pgx.Row) (*domain.Application, error) {
	var app domain.Application
	var loanType string
	var status string
	err := row.Scan(
		&app.ID, &app.PANEncrypted, &app.PANHash,
		&app.FirstName, &app.LastName, &app.DateOfBirth, &app.Email, &app.PhoneNumber,
		&app.RequestedAmount, &app.AnnualIncome, &loanType,
		&status, &app.CreditScore, &app.DecisionReason, &app.MaxApprovedAmount,
		&app.Version, &app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrApplicationNotFound
		}
		return nil, err
	}
	app.LoanType = domain.LoanType(loanType)
	app.Status = domain.ApplicationStatus(status)
	return &app, nil
}

// TryUpdateDecisionTx issues the versioned UPDATE. Returns false with no
// error when a concurrent writer advanced the version first.
func (r *Repository) TryUpdateDecisionTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, d domain.Decision, expectedVersion int) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE applications
		SET status = $2,
		    credit_score = $3,
		    decision_reason = $4,
		    max_approved_amount = $5,
		    version = version + 1,
		    updated_at = NOW()
		WHERE application_id = $1
		  AND version = $6
	`, id, string(d.Status), d.CreditScore, d.Reason, d.MaxApprovedAmount, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("update application: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateDecisionWithRetryTx runs the optimistic-lock protocol: read version,
// attempt the guarded UPDATE, re-read and retry on conflict, up to
// maxRetries attempts. Exhaustion returns domain.ErrRetriesExhausted (a
// transient failure for the consumer framework); a missing row returns
// domain.ErrApplicationNotFound (permanent).
func (r *Repository) UpdateDecisionWithRetryTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, d domain.Decision, maxRetries int) error {
	return updateWithRetry(id, maxRetries,
		func() (*domain.Application, error) { return r.GetApplicationTx(ctx, tx, id) },
		func(version int) (bool, error) { return r.TryUpdateDecisionTx(ctx, tx, id, d, version) },
	)
}

func updateWithRetry(id uuid.UUID, maxRetries int, get func() (*domain.Application, error), try func(version int) (bool, error)) error {
	for attempt := 0; attempt < maxRetries; attempt++ {
		app, err := get()
		if err != nil {
			return err
		}
		if app.Status.Terminal() {
			// A concurrent worker already decided; terminal states are
			// never revised.
			return domain.ErrAlreadyDecided
		}

		ok, err := try(app.Version)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("%w: application %s after %d attempts", domain.ErrRetriesExhausted, id, maxRetries)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
