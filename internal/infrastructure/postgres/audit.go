package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/Zayn-Suleman/loan-preQualification/internal/domain"
)

const insertAuditSQL = `
INSERT INTO audit_log (application_id, service_name, operation, user_id, accessed_at)
VALUES ($1, $2, $3, $4, NOW())
`

// InsertAuditTx appends one compliance-trail row inside the caller's
// transaction.
func (r *Repository) InsertAuditTx(ctx context.Context, tx pgx.Tx, e domain.AuditEntry) error {
	_, err := tx.Exec(ctx, insertAuditSQL, e.ApplicationID, e.ServiceName, e.Operation, e.UserID)
	return err
}

// InsertAudit is the non-transactional variant for reads (MASK access).
func (r *Repository) InsertAudit(ctx context.Context, e domain.AuditEntry) error {
	_, err := r.pool.Exec(ctx, insertAuditSQL, e.ApplicationID, e.ServiceName, e.Operation, e.UserID)
	return err
}
