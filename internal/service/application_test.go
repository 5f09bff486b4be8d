package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zayn-Suleman/loan-preQualification/internal/domain"
	"github.com/Zayn-Suleman/loan-preQualification/internal/encryption"
)

type fakeRepo struct {
	createdApp *domain.Application
	createdEv  *domain.OutboxEvent
	createErr  error

	stored *domain.Application
	audits []domain.AuditEntry
}

func (f *fakeRepo) CreateApplication(ctx context.Context, app *domain.Application, ev *domain.OutboxEvent) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.createdApp = app
	f.createdEv = ev
	return nil
}

func (f *fakeRepo) GetApplication(ctx context.Context, id uuid.UUID) (*domain.Application, error) {
	if f.stored == nil || f.stored.ID != id {
		return nil, domain.ErrApplicationNotFound
	}
	return f.stored, nil
}

func (f *fakeRepo) InsertAudit(ctx context.Context, e domain.AuditEntry) error {
	f.audits = append(f.audits, e)
	return nil
}

func newCrypto(t *testing.T) *encryption.Service {
	t.Helper()
	raw := make([]byte, 32)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	svc, err := encryption.New(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	return svc
}

func submitCmd() SubmitCommand {
	return SubmitCommand{
		PAN:             "ZZZZZ1111Z",
		FirstName:       "Asha",
		LastName:        "Verma",
		DateOfBirth:     time.Date(1990, 3, 12, 0, 0, 0, 0, time.UTC),
		Email:           "asha.verma@example.com",
		PhoneNumber:     "9876543210",
		RequestedAmount: decimal.NewFromInt(500000),
		AnnualIncome:    decimal.NewFromInt(900000),
		LoanType:        domain.LoanPersonal,
	}
}

func TestSubmit_PersistsPendingApplicationWithOutboxRow(t *testing.T) {
	repo := &fakeRepo{}
	crypto := newCrypto(t)
	svc := NewApplicationService(repo, crypto, nil, zerolog.Nop())

	app, err := svc.Submit(context.Background(), submitCmd())
	require.NoError(t, err)

	require.NotNil(t, repo.createdApp)
	assert.Equal(t, domain.StatusPending, repo.createdApp.Status)
	assert.Equal(t, 1, repo.createdApp.Version)
	assert.Equal(t, app.ID, repo.createdApp.ID)

	// The PAN must never be stored in the clear.
	assert.NotContains(t, string(repo.createdApp.PANEncrypted), "ZZZZZ1111Z")
	pan, err := crypto.DecryptPAN(repo.createdApp.PANEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "ZZZZZ1111Z", pan)
	assert.Len(t, repo.createdApp.PANHash, 64)
}

func TestSubmit_OutboxEventMatchesWireSchema(t *testing.T) {
	repo := &fakeRepo{}
	crypto := newCrypto(t)
	svc := NewApplicationService(repo, crypto, nil, zerolog.Nop())

	app, err := svc.Submit(context.Background(), submitCmd())
	require.NoError(t, err)

	ev := repo.createdEv
	require.NotNil(t, ev)
	assert.Equal(t, domain.EventApplicationSubmitted, ev.EventType)
	assert.Equal(t, domain.TopicApplicationsSubmitted, ev.TopicName)
	assert.Equal(t, app.ID, ev.AggregateID)
	assert.Equal(t, app.ID.String(), ev.PartitionKey)

	var wire domain.SubmittedEvent
	require.NoError(t, json.Unmarshal(ev.Payload, &wire))
	assert.Equal(t, app.ID.String(), wire.ApplicationID)
	assert.Equal(t, "PENDING", wire.Status)
	assert.Equal(t, "1990-03-12", wire.DateOfBirth)
	assert.NotContains(t, string(ev.Payload), "ZZZZZ1111Z")

	// The wire PAN round-trips through the shared key.
	pan, err := crypto.DecryptPANFromWire(wire.PANEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "ZZZZZ1111Z", pan)
}

func TestSubmit_PropagatesDuplicatePAN(t *testing.T) {
	repo := &fakeRepo{createErr: domain.ErrDuplicatePAN}
	svc := NewApplicationService(repo, newCrypto(t), nil, zerolog.Nop())

	_, err := svc.Submit(context.Background(), submitCmd())
	assert.ErrorIs(t, err, domain.ErrDuplicatePAN)
}

func TestGet_MasksPANAndAudits(t *testing.T) {
	crypto := newCrypto(t)
	encrypted, err := crypto.EncryptPAN("ZZZZZ1111Z")
	require.NoError(t, err)

	id := uuid.New()
	repo := &fakeRepo{stored: &domain.Application{
		ID:              id,
		PANEncrypted:    encrypted,
		FirstName:       "Asha",
		LastName:        "Verma",
		Email:           "asha.verma@example.com",
		RequestedAmount: decimal.NewFromInt(500000),
		AnnualIncome:    decimal.NewFromInt(900000),
		LoanType:        domain.LoanPersonal,
		Status:          domain.StatusPending,
		Version:         1,
	}}
	svc := NewApplicationService(repo, crypto, nil, zerolog.Nop())

	view, err := svc.Get(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, "XXXXX1111Z", view.PANMasked)
	assert.Equal(t, "PENDING", view.Status)

	require.Len(t, repo.audits, 1)
	assert.Equal(t, "MASK", repo.audits[0].Operation)
	assert.Equal(t, id, repo.audits[0].ApplicationID)
}

func TestGet_NotFound(t *testing.T) {
	svc := NewApplicationService(&fakeRepo{}, newCrypto(t), nil, zerolog.Nop())

	_, err := svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrApplicationNotFound)
}

func TestMaskPAN(t *testing.T) {
	assert.Equal(t, "XXXXX1234F", MaskPAN("ABCDE1234F"))
	assert.Equal(t, "XXXXX", MaskPAN("AB"))
	assert.Equal(t, "XXXXX", MaskPAN(""))
}
