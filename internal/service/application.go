// Package service holds the intake and lookup use cases behind the REST
// transport.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Zayn-Suleman/loan-preQualification/internal/domain"
	"github.com/Zayn-Suleman/loan-preQualification/internal/encryption"
	"github.com/Zayn-Suleman/loan-preQualification/internal/infrastructure/redis"
	"github.com/Zayn-Suleman/loan-preQualification/internal/metrics"
)

const apiServiceName = "prequal-api"

// Repository is the persistence surface the service needs.
type Repository interface {
	CreateApplication(ctx context.Context, app *domain.Application, ev *domain.OutboxEvent) error
	GetApplication(ctx context.Context, id uuid.UUID) (*domain.Application, error)
	InsertAudit(ctx context.Context, e domain.AuditEntry) error
}

// Cache stores masked views of decided applications.
type Cache interface {
	GetDecided(ctx context.Context, id uuid.UUID, dest any) error
	SetDecided(ctx context.Context, id uuid.UUID, view any) error
}

// SubmitCommand is a validated intake request.
type SubmitCommand struct {
	PAN             string
	FirstName       string
	LastName        string
	DateOfBirth     time.Time
	Email           string
	PhoneNumber     string
	RequestedAmount decimal.Decimal
	AnnualIncome    decimal.Decimal
	LoanType        domain.LoanType
}

// ApplicationView is the read model returned to clients. The PAN never
// leaves the service unmasked.
type ApplicationView struct {
	ApplicationID     string           `json:"application_id"`
	PANMasked         string           `json:"pan_number_masked"`
	FirstName         string           `json:"first_name"`
	LastName          string           `json:"last_name"`
	Email             string           `json:"email"`
	RequestedAmount   decimal.Decimal  `json:"requested_amount"`
	AnnualIncome      decimal.Decimal  `json:"annual_income"`
	LoanType          string           `json:"loan_type"`
	Status            string           `json:"status"`
	CreditScore       *int             `json:"credit_score,omitempty"`
	DecisionReason    *string          `json:"decision_reason,omitempty"`
	MaxApprovedAmount *decimal.Decimal `json:"max_approved_amount,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

type ApplicationService struct {
	repo   Repository
	crypto *encryption.Service
	cache  Cache
	log    zerolog.Logger
}

func NewApplicationService(repo Repository, crypto *encryption.Service, cache Cache, log zerolog.Logger) *ApplicationService {
	return &ApplicationService{
		repo:   repo,
		crypto: crypto,
		cache:  cache,
		log:    log.With().Str("component", "application_service").Logger(),
	}
}

// Submit persists a PENDING application and its submission event in one
// transaction. Duplicate PANs surface as domain.ErrDuplicatePAN.
func (s *ApplicationService) Submit(ctx context.Context, cmd SubmitCommand) (*domain.Application, error) {
	encrypted, err := s.crypto.EncryptPAN(cmd.PAN)
	if err != nil {
		return nil, fmt.Errorf("encrypt PAN: %w", err)
	}
	wirePAN, err := s.crypto.EncryptPANForWire(cmd.PAN)
	if err != nil {
		return nil, fmt.Errorf("encrypt PAN for wire: %w", err)
	}

	now := time.Now().UTC()
	app := &domain.Application{
		ID:              uuid.New(),
		PANEncrypted:    encrypted,
		PANHash:         s.crypto.HashPAN(cmd.PAN),
		FirstName:       cmd.FirstName,
		LastName:        cmd.LastName,
		DateOfBirth:     cmd.DateOfBirth,
		Email:           cmd.Email,
		PhoneNumber:     cmd.PhoneNumber,
		RequestedAmount: cmd.RequestedAmount,
		AnnualIncome:    cmd.AnnualIncome,
		LoanType:        cmd.LoanType,
		Status:          domain.StatusPending,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	payload, err := json.Marshal(domain.SubmittedEvent{
		ApplicationID:   app.ID.String(),
		PANEncrypted:    wirePAN,
		PANHash:         app.PANHash,
		FirstName:       app.FirstName,
		LastName:        app.LastName,
		DateOfBirth:     app.DateOfBirth.Format("2006-01-02"),
		Email:           app.Email,
		PhoneNumber:     app.PhoneNumber,
		RequestedAmount: app.RequestedAmount,
		AnnualIncome:    app.AnnualIncome,
		LoanType:        string(app.LoanType),
		Status:          string(app.Status),
		CreatedAt:       now.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal submitted event: %w", err)
	}

	ev := &domain.OutboxEvent{
		AggregateID:  app.ID,
		EventType:    domain.EventApplicationSubmitted,
		Payload:      payload,
		TopicName:    domain.TopicApplicationsSubmitted,
		PartitionKey: app.ID.String(),
	}

	if err := s.repo.CreateApplication(ctx, app, ev); err != nil {
		return nil, err
	}

	metrics.ApplicationsSubmitted.Inc()
	s.log.Info().
		Str("application_id", app.ID.String()).
		Str("loan_type", string(app.LoanType)).
		Msg("application submitted")
	return app, nil
}

// Get returns the masked view of one application. Terminal views are served
// from and written to the cache; a PENDING row always hits the database.
func (s *ApplicationService) Get(ctx context.Context, id uuid.UUID) (*ApplicationView, error) {
	if s.cache != nil {
		var cached ApplicationView
		if err := s.cache.GetDecided(ctx, id, &cached); err == nil {
			s.auditMask(ctx, id)
			return &cached, nil
		} else if !errors.Is(err, redis.ErrCacheMiss) {
			s.log.Warn().Err(err).Msg("cache read failed")
		}
	}

	app, err := s.repo.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}

	pan, err := s.crypto.DecryptPAN(app.PANEncrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt stored PAN: %w", err)
	}

	view := &ApplicationView{
		ApplicationID:     app.ID.String(),
		PANMasked:         MaskPAN(pan),
		FirstName:         app.FirstName,
		LastName:          app.LastName,
		Email:             app.Email,
		RequestedAmount:   app.RequestedAmount,
		AnnualIncome:      app.AnnualIncome,
		LoanType:          string(app.LoanType),
		Status:            string(app.Status),
		CreditScore:       app.CreditScore,
		DecisionReason:    app.DecisionReason,
		MaxApprovedAmount: app.MaxApprovedAmount,
		CreatedAt:         app.CreatedAt,
		UpdatedAt:         app.UpdatedAt,
	}

	s.auditMask(ctx, id)

	if s.cache != nil && app.Status.Terminal() {
		if err := s.cache.SetDecided(ctx, id, view); err != nil {
			s.log.Warn().Err(err).Msg("cache write failed")
		}
	}
	return view, nil
}

func (s *ApplicationService) auditMask(ctx context.Context, id uuid.UUID) {
	if err := s.repo.InsertAudit(ctx, domain.AuditEntry{
		ApplicationID: id,
		ServiceName:   apiServiceName,
		Operation:     "MASK",
	}); err != nil {
		s.log.Warn().Err(err).Str("application_id", id.String()).Msg("audit write failed")
	}
}

// MaskPAN hides everything but the last five characters.
func MaskPAN(pan string) string {
	if len(pan) <= 5 {
		return "XXXXX"
	}
	return "XXXXX" + pan[len(pan)-5:]
}
