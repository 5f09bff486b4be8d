// Package credit consumes submitted applications, generates the simulated
// credit report and stages it on the outbox for the decision stage.
package credit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	scoring "github.com/Zayn-Suleman/loan-preQualification/internal/credit"
	"github.com/Zayn-Suleman/loan-preQualification/internal/domain"
	"github.com/Zayn-Suleman/loan-preQualification/internal/encryption"
	"github.com/Zayn-Suleman/loan-preQualification/internal/infrastructure/kafka"
	"github.com/Zayn-Suleman/loan-preQualification/internal/infrastructure/postgres"
	"github.com/Zayn-Suleman/loan-preQualification/internal/metrics"
	"github.com/Zayn-Suleman/loan-preQualification/internal/worker"
)

const serviceName = "credit-worker"

var monthsPerYear = decimal.NewFromInt(12)

// Repository is the slice of persistence this handler needs. Satisfied by
// *postgres.Repository.
type Repository interface {
	ProcessOnce(ctx context.Context, msg postgres.InboundMessage, fn func(tx pgx.Tx) error) (bool, error)
	InsertAuditTx(ctx context.Context, tx pgx.Tx, e domain.AuditEntry) error
	InsertOutboxTx(ctx context.Context, tx pgx.Tx, ev *domain.OutboxEvent) error
}

// Handler processes one loan_applications_submitted message exactly once:
// decrypt the PAN, score the applicant, and co-commit the credit report
// outbox row with the idempotency marker.
type Handler struct {
	repo   Repository
	crypto *encryption.Service
	group  string
	log    zerolog.Logger
}

func NewHandler(repo Repository, crypto *encryption.Service, group string, log zerolog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		crypto: crypto,
		group:  group,
		log:    log.With().Str("component", "credit_handler").Logger(),
	}
}

func (h *Handler) Handle(ctx context.Context, msg kafka.Message) error {
	var ev domain.SubmittedEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return worker.Permanentf("malformed submitted event: %w", err)
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

	processed, err := h.repo.ProcessOnce(ctx, inbound, func(tx pgx.Tx) error {
		return h.process(ctx, tx, appID, ev)
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
	}
	return nil
}

func (h *Handler) process(ctx context.Context, tx pgx.Tx, appID uuid.UUID, ev domain.SubmittedEvent) error {
	pan, err := h.crypto.DecryptPANFromWire(ev.PANEncrypted)
	if err != nil {
		// Undecryptable ciphertext never heals on redelivery.
		return worker.Permanentf("application %s: %w", appID, err)
	}

	if err := h.repo.InsertAuditTx(ctx, tx, domain.AuditEntry{
		ApplicationID: appID,
		ServiceName:   serviceName,
		Operation:     "DECRYPT",
	}); err != nil {
		return err
	}

	score := scoring.Score(scoring.Input{
		ApplicationID: ev.ApplicationID,
		PAN:           pan,
		MonthlyIncome: ev.AnnualIncome.Div(monthsPerYear),
		LoanType:      domain.LoanType(ev.LoanType),
	})

	wirePAN, err := h.crypto.EncryptPANForWire(pan)
	if err != nil {
		return fmt.Errorf("re-encrypt PAN: %w", err)
	}

	report := domain.CreditReportEvent{
		ApplicationID: ev.ApplicationID,
		PANEncrypted:  wirePAN,
		ApplicantName: ev.FirstName + " " + ev.LastName,
		CibilScore:    score,
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal credit report: %w", err)
	}

	if err := h.repo.InsertOutboxTx(ctx, tx, &domain.OutboxEvent{
		AggregateID:  appID,
		EventType:    domain.EventCreditReportGenerated,
		Payload:      payload,
		TopicName:    domain.TopicCreditReports,
		PartitionKey: ev.ApplicationID,
	}); err != nil {
		return err
	}

	h.log.Info().
		Str("application_id", ev.ApplicationID).
		Int("cibil_score", score).
		Msg("credit report generated")
	return nil
}
