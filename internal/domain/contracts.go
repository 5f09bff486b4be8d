package domain

import "github.com/shopspring/decimal"

// Event types recorded on outbox rows.
const (
	EventApplicationSubmitted  = "APPLICATION_SUBMITTED"
	EventCreditReportGenerated = "CREDIT_REPORT_GENERATED"
)

// Topic names. Dead-letter topics are derived per source topic.
const (
	TopicApplicationsSubmitted = "loan_applications_submitted"
	TopicCreditReports         = "credit_reports_generated"
)

func DLQTopicFor(topic string) string { return topic + "_dlq" }

// SubmittedEvent is the fixed schema of loan_applications_submitted.
// The PAN travels encrypted and base64-encoded; the hash allows duplicate
// checks without decryption.
type SubmittedEvent struct {
	ApplicationID   string          `json:"application_id"`
	PANEncrypted    string          `json:"pan_number_encrypted"`
	PANHash         string          `json:"pan_number_hash"`
	FirstName       string          `json:"first_name"`
	LastName        string          `json:"last_name"`
	DateOfBirth     string          `json:"date_of_birth"` // ISO-8601 date
	Email           string          `json:"email"`
	PhoneNumber     string          `json:"phone_number"`
	RequestedAmount decimal.Decimal `json:"requested_amount"`
	AnnualIncome    decimal.Decimal `json:"annual_income"`
	LoanType        string          `json:"loan_type"`
	Status          string          `json:"status"`
	CreatedAt       string          `json:"created_at"` // ISO-8601
}

// CreditReportEvent is the fixed schema of credit_reports_generated.
type CreditReportEvent struct {
	ApplicationID string `json:"application_id"`
	PANEncrypted  string `json:"pan_number"` // wire-safe encrypted
	ApplicantName string `json:"applicant_name"`
	CibilScore    int    `json:"cibil_score"`
	GeneratedAt   string `json:"credit_report_generated_at"` // ISO-8601
}
