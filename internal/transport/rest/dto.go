package rest

import (
	"errors"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Zayn-Suleman/loan-preQualification/internal/domain"
	"github.com/Zayn-Suleman/loan-preQualification/internal/service"
)

// panPattern is the Indian PAN layout: five letters, four digits, one letter.
var panPattern = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)

var maxRequestedAmount = decimal.NewFromInt(10_000_000)

const (
	minApplicantAge = 18
	maxApplicantAge = 100
)

// SubmitRequest is the intake payload of POST /api/v1/applications.
type SubmitRequest struct {
	PANNumber       string          `json:"pan_number" validate:"required,pan"`
	FirstName       string          `json:"first_name" validate:"required,min=1,max=100"`
	LastName        string          `json:"last_name" validate:"required,min=1,max=100"`
	DateOfBirth     string          `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Email           string          `json:"email" validate:"required,email,max=255"`
	PhoneNumber     string          `json:"phone_number" validate:"required,numeric,len=10"`
	RequestedAmount decimal.Decimal `json:"requested_amount"`
	AnnualIncome    decimal.Decimal `json:"annual_income"`
	LoanType        string          `json:"loan_type" validate:"required,oneof=PERSONAL HOME AUTO"`
}

// NewValidator wires the PAN rule into a validator instance.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("pan", func(fl validator.FieldLevel) bool {
		return panPattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate runs tag validation plus the rules tags cannot express: applicant
// age bounds and amount ranges. Returns a field->message map, empty when the
// request is acceptable.
func (r *SubmitRequest) Validate(v *validator.Validate, now time.Time) map[string]string {
	problems := map[string]string{}

	if err := v.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				problems[fieldName(fe)] = tagMessage(fe)
			}
		} else {
			problems["request"] = "invalid request"
		}
	}

	if _, ok := problems["date_of_birth"]; !ok {
		dob, err := time.Parse("2006-01-02", r.DateOfBirth)
		if err == nil {
			age := yearsBetween(dob, now)
			if age < minApplicantAge || age > maxApplicantAge {
				problems["date_of_birth"] = "applicant must be between 18 and 100 years old"
			}
		}
	}

	if !r.RequestedAmount.IsPositive() {
		problems["requested_amount"] = "must be greater than zero"
	} else if r.RequestedAmount.GreaterThan(maxRequestedAmount) {
		problems["requested_amount"] = "must not exceed 10000000"
	}
	if !r.AnnualIncome.IsPositive() {
		problems["annual_income"] = "must be greater than zero"
	}

	return problems
}

// ToCommand converts a validated request. Call Validate first.
func (r *SubmitRequest) ToCommand() (service.SubmitCommand, error) {
	dob, err := time.Parse("2006-01-02", r.DateOfBirth)
	if err != nil {
		return service.SubmitCommand{}, err
	}
	return service.SubmitCommand{
		PAN:             r.PANNumber,
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		DateOfBirth:     dob,
		Email:           r.Email,
		PhoneNumber:     r.PhoneNumber,
		RequestedAmount: r.RequestedAmount,
		AnnualIncome:    r.AnnualIncome,
		LoanType:        domain.LoanType(r.LoanType),
	}, nil
}

func yearsBetween(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.YearDay() < dob.YearDay() {
		years--
	}
	return years
}

func fieldName(fe validator.FieldError) string {
	switch fe.Field() {
	case "PANNumber":
		return "pan_number"
	case "FirstName":
		return "first_name"
	case "LastName":
		return "last_name"
	case "DateOfBirth":
		return "date_of_birth"
	case "Email":
		return "email"
	case "PhoneNumber":
		return "phone_number"
	case "RequestedAmount":
		return "requested_amount"
	case "AnnualIncome":
		return "annual_income"
	case "LoanType":
		return "loan_type"
	default:
		return fe.Field()
	}
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "pan":
		return "must match format AAAAA9999A"
	case "email":
		return "must be a valid email address"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "numeric", "len":
		return "must be a 10 digit number"
	case "oneof":
		return "must be one of PERSONAL, HOME, AUTO"
	case "min", "max":
		return "length out of range"
	default:
		return "is invalid"
	}
}
