// Package decision consumes credit reports and applies the terminal
// prequalification decision under optimistic locking.
package decision

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	rules "github.com/Zayn-Suleman/loan-preQualification/internal/decision"
	"github.com/Zayn-Suleman/loan-preQualification/internal/domain"
	"github.com/Zayn-Suleman/loan-preQualification/internal/infrastructure/kafka"
	"github.com/Zayn-Suleman/loan-preQualification/internal/infrastructure/postgres"
	"github.com/Zayn-Suleman/loan-preQualification/internal/metrics"
	"github.com/Zayn-Suleman/loan-preQualification/internal/worker"
)

const serviceName = "decision-worker"

// Repository is the slice of persistence this handler needs. Satisfied by
// *postgres.Repository.
type Repository interface {
	ProcessOnce(ctx context.Context, msg postgres.InboundMessage, fn func(tx pgx.Tx) error) (bool, error)
	GetApplicationTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Application, error)
	UpdateDecisionWithRetryTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, d domain.Decision, maxRetries int) error
	InsertAuditTx(ctx context.Context, tx pgx.Tx, e domain.AuditEntry) error
}

// Handler applies one credit_reports_generated message exactly once. The
// decision write, its audit entry and the idempotency marker commit in a
// single transaction; offset commit follows only after that.
type Handler struct {
	repo             Repository
	group            string
	maxUpdateRetries int
	log              zerolog.Logger
}

func NewHandler(repo Repository, group string, maxUpdateRetries int, log zerolog.Logger) *Handler {
	return &Handler{
		repo:             repo,
		group:            group,
		maxUpdateRetries: maxUpdateRetries,
		log:              log.With().Str("component", "decision_handler").Logger(),
	}
}

func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	var ev domain.CreditReportEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return worker.Permanentf("malformed credit report event: %w", err)
	}
	appID, err := uuid.Parse(ev.ApplicationID)
	if err != nil {
		return worker.Permanentf("invalid application_id %q: %w", ev.ApplicationID, err)
	}

	inbound := postgres.InboundMessage{
		MessageID:     worker.Fingerprint(ev.ApplicationID, msg.Topic, msg.Partition, msg.Offset),
		Topic:         msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		ConsumerGroup: h.group,
	}

	var applied *domain.Decision
	processed, err := h.repo.ProcessOnce(ctx, inbound, func(tx pgx.Tx) error {
		d, err := h.process(ctx, tx, appID, ev)
		applied = d
		return err
	})
	if err != nil {
		return err
	}
	if !processed {
		metrics.MessagesDuplicate.WithLabelValues(msg.Topic, h.group).Inc()
		h.log.Info().
			Str("application_id", ev.ApplicationID).
			Int64("offset", msg.Offset).
			Msg("duplicate delivery skipped")
		return nil
	}
	if applied != nil {
		metrics.DecisionsRecorded.WithLabelValues(string(applied.Status)).Inc()
	}
	return nil
}

// process returns the decision it committed, or nil when the application was
// already terminal and left untouched.
func (h *Handler) process(ctx context.Context, tx pgx.Tx, appID uuid.UUID, ev domain.CreditReportEvent) (*domain.Decision, error) {
	app, err := h.repo.GetApplicationTx(ctx, tx, appID)
	if err != nil {
		if errors.Is(err, domain.ErrApplicationNotFound) {
			// Reports reference applications written before the submit event
			// was published; a missing row means the report is orphaned.
			return nil, worker.Permanent(err)
		}
		return nil, err
	}

	if app.Status.Terminal() {
		h.log.Info().
			Str("application_id", ev.ApplicationID).
			Str("status", string(app.Status)).
			Msg("already decided, skipping")
		return nil, nil
	}

	monthly := rules.MonthlyIncome(app.AnnualIncome)
	d := rules.Evaluate(monthly, app.RequestedAmount, ev.CibilScore)

	if err := h.repo.UpdateDecisionWithRetryTx(ctx, tx, appID, d, h.maxUpdateRetries); err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyDecided):
			return nil, nil
		case errors.Is(err, domain.ErrApplicationNotFound):
			return nil, worker.Permanent(err)
		default:
			// Includes ErrRetriesExhausted: transient, the message is
			// redelivered and contention is retried from scratch.
			return nil, err
		}
	}

	if err := h.repo.InsertAuditTx(ctx, tx, domain.AuditEntry{
		ApplicationID: appID,
		ServiceName:   serviceName,
		Operation:     "DECISION",
	}); err != nil {
		return nil, err
	}

	h.log.Info().
		Str("application_id", ev.ApplicationID).
		Str("status", string(d.Status)).
		Int("cibil_score", d.CreditScore).
		Msg("decision recorded")
	return &d, nil
}
