package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ApplicationStatus string

const (
	StatusPending      ApplicationStatus = "PENDING"
	StatusPreApproved  ApplicationStatus = "PRE_APPROVED"
	StatusRejected     ApplicationStatus = "REJECTED"
	StatusManualReview ApplicationStatus = "MANUAL_REVIEW"
)

// Terminal reports whether the status was set by the decision worker and
// must never be revised.
func (s ApplicationStatus) Terminal() bool {
	return s == StatusPreApproved || s == StatusRejected || s == StatusManualReview
}

type LoanType string

const (
	LoanPersonal LoanType = "PERSONAL"
	LoanHome     LoanType = "HOME"
	LoanAuto     LoanType = "AUTO"
)

var (
	ErrDuplicatePAN        = errors.New("duplicate PAN: an application with this PAN already exists")
	ErrApplicationNotFound = errors.New("application not found")
	ErrVersionConflict     = errors.New("optimistic lock conflict: stale version")
	ErrRetriesExhausted    = errors.New("optimistic lock retries exhausted")
	ErrAlreadyDecided      = errors.New("application already in a terminal status")
)

// Application is the aggregate root. The version column is the optimistic
// lock: every committed mutation increments it by exactly one.
type Application struct {
	ID           uuid.UUID
	PANEncrypted []byte
	PANHash      string // hex SHA-256, 64 chars, globally unique
	FirstName    string
	LastName     string
	DateOfBirth  time.Time
	Email        string
	PhoneNumber  string

	RequestedAmount decimal.Decimal
	AnnualIncome    decimal.Decimal
	LoanType        LoanType

	Status            ApplicationStatus
	CreditScore       *int
	DecisionReason    *string
	MaxApprovedAmount *decimal.Decimal

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Decision is the outcome applied to an application under optimistic locking.
type Decision struct {
	Status            ApplicationStatus
	CreditScore       int
	Reason            string
	MaxApprovedAmount *decimal.Decimal
}

// AuditEntry is one append-only row of the sensitive-identifier access trail.
type AuditEntry struct {
	ApplicationID uuid.UUID
	ServiceName   string
	Operation     string // ENCRYPT, DECRYPT, MASK, DECISION
	UserID        *string
}
