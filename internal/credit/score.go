// Package credit computes simulated CIBIL scores.
//
// Scoring must be referentially transparent: the same application id and
// payload always yield the same score, across runs and across processes.
// That makes redelivered messages safe to reprocess.
package credit

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/Zayn-Suleman/loan-preQualification/internal/domain"
)

const (
	baseScore = 650
	minScore  = 300
	maxScore  = 900
)

// Fixed PAN->score mapping so test submissions are predictable end to end.
var testPANScores = map[string]int{
	"ABCDE1234F": 790,
	"FGHIJ5678K": 610,
}

var (
	highIncome = decimal.NewFromInt(75000)
	lowIncome  = decimal.NewFromInt(30000)
)

// Input carries everything the scoring function may look at.
type Input struct {
	ApplicationID string
	PAN           string // decrypted
	MonthlyIncome decimal.Decimal
	LoanType      domain.LoanType
}

// Score returns an integer in [300, 900].
func Score(in Input) int {
	if s, ok := testPANScores[in.PAN]; ok {
		return s
	}

	score := baseScore

	switch {
	case in.MonthlyIncome.GreaterThan(highIncome):
		score += 40
	case in.MonthlyIncome.LessThan(lowIncome):
		score -= 20
	}

	switch in.LoanType {
	case domain.LoanPersonal:
		score -= 10
	case domain.LoanHome:
		score += 10
	}
	// AUTO is neutral.

	score += jitter(in.ApplicationID)

	if score < minScore {
		score = minScore
	}
	if score > maxScore {
		score = maxScore
	}
	return score
}

// jitter draws one value in [-5, +5] from a generator seeded with the first
// 8 bytes of SHA-256(application id), big-endian. Same id, same jitter.
func jitter(applicationID string) int {
	sum := sha256.Sum256([]byte(applicationID))
	seed := binary.BigEndian.Uint64(sum[:8])
	r := rand.New(rand.NewSource(int64(seed)))
	return r.Intn(11) - 5
}
