package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of *pgxpool.Pool the repository needs
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS loan_applications (
	id                    UUID PRIMARY KEY,
	session_id            TEXT NOT NULL UNIQUE,
	partner_slug          TEXT NOT NULL,
	full_name             TEXT NOT NULL,
	date_of_birth         DATE NOT NULL,
	phone                 TEXT NOT NULL,
	email                 TEXT NOT NULL DEFAULT '',
	loan_amount           BIGINT NOT NULL,
	tenor_months          INTEGER NOT NULL,
	purpose               TEXT NOT NULL DEFAULT '',
	recaptcha_dob_score   DOUBLE PRECISION NOT NULL,
	recaptcha_phone_score DOUBLE PRECISION NOT NULL,
	challenge_used        BOOLEAN NOT NULL DEFAULT FALSE,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const insertApplication = `INSERT INTO loan_applications (
	id, session_id, partner_slug, full_name, date_of_birth, phone, email,
	loan_amount, tenor_months, purpose, recaptcha_dob_score, recaptcha_phone_score,
	challenge_used, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

const selectApplication = `SELECT id, session_id, partner_slug, full_name, date_of_birth, phone, email,
	loan_amount, tenor_months, purpose, recaptcha_dob_score, recaptcha_phone_score,
	challenge_used, created_at
FROM loan_applications WHERE id = $1`

// NewPool opens and pings a pgx pool
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

type ApplicationRepository struct {
	db DB
}

// NewApplicationRepository accepts a nil db; every call then fails with
// domain.ErrDatabaseDisabled.
func NewApplicationRepository(db DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) EnsureSchema(ctx context.Context) error {
	if r.db == nil {
		return domain.ErrDatabaseDisabled
	}
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (r *ApplicationRepository) Create(ctx context.Context, app *domain.LoanApplication) error {
	if r.db == nil {
		return domain.ErrDatabaseDisabled
	}
	_, err := r.db.Exec(ctx, insertApplication,
		app.ID, app.SessionID, app.PartnerSlug, app.FullName, app.DateOfBirth, app.Phone, app.Email,
		app.LoanAmount, app.TenorMonths, app.Purpose, app.RecaptchaDOBScore, app.RecaptchaPhoneScore,
		app.ChallengeUsed, app.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("application already submitted for session: %w", domain.ErrInvalidInput)
		}
		return fmt.Errorf("failed to insert application: %w", err)
	}
	return nil
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*domain.LoanApplication, error) {
	if r.db == nil {
		return nil, domain.ErrDatabaseDisabled
	}
	var app domain.LoanApplication
	err := r.db.QueryRow(ctx, selectApplication, id).Scan(
		&app.ID, &app.SessionID, &app.PartnerSlug, &app.FullName, &app.DateOfBirth, &app.Phone, &app.Email,
		&app.LoanAmount, &app.TenorMonths, &app.Purpose, &app.RecaptchaDOBScore, &app.RecaptchaPhoneScore,
		&app.ChallengeUsed, &app.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrApplicationMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load application: %w", err)
	}
	return &app, nil
}
