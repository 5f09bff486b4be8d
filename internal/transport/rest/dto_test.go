package rest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zayn-Suleman/loan-preQualification/internal/domain"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func validRequest() SubmitRequest {
	return SubmitRequest{
		PANNumber:       "ABCDE1234F",
		FirstName:       "Asha",
		LastName:        "Verma",
		DateOfBirth:     "1990-03-12",
		Email:           "asha.verma@example.com",
		PhoneNumber:     "9876543210",
		RequestedAmount: decimal.NewFromInt(500000),
		AnnualIncome:    decimal.NewFromInt(900000),
		LoanType:        "PERSONAL",
	}
}

func TestValidate_AcceptsValidRequest(t *testing.T) {
	v := NewValidator()
	req := validRequest()
	assert.Empty(t, req.Validate(v, testNow))
}

func TestValidate_PANFormat(t *testing.T) {
	v := NewValidator()

	for _, pan := range []string{"abcde1234f", "ABCDE12345", "ABCD1234FF", "ABCDE1234", "ABCDE1234FX", ""} {
		req := validRequest()
		req.PANNumber = pan
		problems := req.Validate(v, testNow)
		assert.Contains(t, problems, "pan_number", "PAN %q should be rejected", pan)
	}
}

func TestValidate_AgeBounds(t *testing.T) {
	v := NewValidator()

	cases := map[string]struct {
		dob string
		ok  bool
	}{
		"seventeen":         {dob: "2008-01-01", ok: false},
		"just eighteen":     {dob: "2007-06-14", ok: true},
		"eighteen tomorrow": {dob: "2007-06-16", ok: false},
		"hundred":           {dob: "1925-07-01", ok: true},
		"over a hundred":    {dob: "1920-01-01", ok: false},
		"not a date":        {dob: "12/03/1990", ok: false},
		"future date":       {dob: "2030-01-01", ok: false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := validRequest()
			req.DateOfBirth = tc.dob
			problems := req.Validate(v, testNow)
			if tc.ok {
				assert.NotContains(t, problems, "date_of_birth")
			} else {
				assert.Contains(t, problems, "date_of_birth")
			}
		})
	}
}

func TestValidate_AmountBounds(t *testing.T) {
	v := NewValidator()

	req := validRequest()
	req.RequestedAmount = decimal.Zero
	assert.Contains(t, req.Validate(v, testNow), "requested_amount")

	req = validRequest()
	req.RequestedAmount = decimal.NewFromInt(-1)
	assert.Contains(t, req.Validate(v, testNow), "requested_amount")

	req = validRequest()
	req.RequestedAmount = decimal.NewFromInt(10_000_000)
	assert.NotContains(t, req.Validate(v, testNow), "requested_amount")

	req = validRequest()
	req.RequestedAmount = decimal.NewFromInt(10_000_001)
	assert.Contains(t, req.Validate(v, testNow), "requested_amount")

	req = validRequest()
	req.AnnualIncome = decimal.Zero
	assert.Contains(t, req.Validate(v, testNow), "annual_income")
}

func TestValidate_PhoneAndEmail(t *testing.T) {
	v := NewValidator()

	req := validRequest()
	req.PhoneNumber = "98765"
	assert.Contains(t, req.Validate(v, testNow), "phone_number")

	req = validRequest()
	req.PhoneNumber = "98765abcde"
	assert.Contains(t, req.Validate(v, testNow), "phone_number")

	req = validRequest()
	req.Email = "not-an-email"
	assert.Contains(t, req.Validate(v, testNow), "email")
}

func TestValidate_LoanType(t *testing.T) {
	v := NewValidator()

	req := validRequest()
	req.LoanType = "BOAT"
	assert.Contains(t, req.Validate(v, testNow), "loan_type")

	for _, lt := range []string{"PERSONAL", "HOME", "AUTO"} {
		req = validRequest()
		req.LoanType = lt
		assert.NotContains(t, req.Validate(v, testNow), "loan_type")
	}
}

func TestToCommand(t *testing.T) {
	req := validRequest()
	cmd, err := req.ToCommand()
	require.NoError(t, err)

	assert.Equal(t, "ABCDE1234F", cmd.PAN)
	assert.Equal(t, domain.LoanPersonal, cmd.LoanType)
	assert.Equal(t, time.Date(1990, 3, 12, 0, 0, 0, 0, time.UTC), cmd.DateOfBirth)
	assert.True(t, cmd.RequestedAmount.Equal(decimal.NewFromInt(500000)))
}
