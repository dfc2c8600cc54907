package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var applicationColumns = []string{
	"id", "session_id", "partner_slug", "full_name", "date_of_birth", "phone", "email",
	"loan_amount", "tenor_months", "purpose", "recaptcha_dob_score", "recaptcha_phone_score",
	"challenge_used", "created_at",
}

func sampleApplication() *domain.LoanApplication {
	return &domain.LoanApplication{
		ID:                  "0b6c3a52-5d3e-4c1b-9f51-2f1e0d7c9a10",
		SessionID:           "sess-1",
		PartnerSlug:         "default",
		FullName:            "Budi Santoso",
		DateOfBirth:         time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC),
		Phone:               "6281234567890",
		Email:               "budi@example.com",
		LoanAmount:          500000000,
		TenorMonths:         240,
		Purpose:             "rumah pertama",
		RecaptchaDOBScore:   0.9,
		RecaptchaPhoneScore: 0.3,
		ChallengeUsed:       true,
		CreatedAt:           time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestApplicationRepository_NilDB(t *testing.T) {
	repo := NewApplicationRepository(nil)
	ctx := context.Background()

	assert.ErrorIs(t, repo.EnsureSchema(ctx), domain.ErrDatabaseDisabled)
	assert.ErrorIs(t, repo.Create(ctx, sampleApplication()), domain.ErrDatabaseDisabled)
	_, err := repo.GetByID(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrDatabaseDisabled)
}

func TestApplicationRepository_EnsureSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS loan_applications").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, NewApplicationRepository(mock).EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	app := sampleApplication()
	mock.ExpectExec("INSERT INTO loan_applications").
		WithArgs(app.ID, app.SessionID, app.PartnerSlug, app.FullName, app.DateOfBirth, app.Phone, app.Email,
			app.LoanAmount, app.TenorMonths, app.Purpose, app.RecaptchaDOBScore, app.RecaptchaPhoneScore,
			app.ChallengeUsed, app.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewApplicationRepository(mock).Create(context.Background(), app))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_CreateDuplicateSession(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO loan_applications").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err = NewApplicationRepository(mock).Create(context.Background(), sampleApplication())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestApplicationRepository_CreateFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO loan_applications").WillReturnError(errors.New("connection reset"))

	err = NewApplicationRepository(mock).Create(context.Background(), sampleApplication())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidInput)
}

func TestApplicationRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	app := sampleApplication()
	mock.ExpectQuery("SELECT (.+) FROM loan_applications WHERE id").
		WithArgs(app.ID).
		WillReturnRows(pgxmock.NewRows(applicationColumns).AddRow(
			app.ID, app.SessionID, app.PartnerSlug, app.FullName, app.DateOfBirth, app.Phone, app.Email,
			app.LoanAmount, app.TenorMonths, app.Purpose, app.RecaptchaDOBScore, app.RecaptchaPhoneScore,
			app.ChallengeUsed, app.CreatedAt))

	got, err := NewApplicationRepository(mock).GetByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, app, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepository_GetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM loan_applications WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = NewApplicationRepository(mock).GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrApplicationMissing)
}
