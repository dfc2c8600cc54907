package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	dateOfBirthLayout = "2006-01-02"
	maxTenorMonths    = 360
)

type ApplicationService struct {
	sessions domain.SessionStore
	repo     domain.ApplicationRepository
	logger   *zap.Logger
	nowF     func() time.Time
}

func NewApplicationService(sessions domain.SessionStore, repo domain.ApplicationRepository, logger *zap.Logger) *ApplicationService {
	return &ApplicationService{
		sessions: sessions,
		repo:     repo,
		logger:   logger,
		nowF:     time.Now,
	}
}

// Submit stores the application once both screens passed and the form phone
// is the one that passed OTP verification.
func (s *ApplicationService) Submit(ctx context.Context, req *domain.LoanApplicationRequest) (*domain.LoanApplication, error) {
	sess, err := s.sessions.Get(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if !sess.DOBPassed || !sess.PhonePassed || !sess.PhoneVerified {
		return nil, domain.ErrNotVerified
	}
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}
	if phone != sess.Phone {
		return nil, fmt.Errorf("phone differs from verified phone: %w", domain.ErrNotVerified)
	}

	dob, err := validateApplication(req, s.nowF())
	if err != nil {
		return nil, err
	}

	app := &domain.LoanApplication{
		ID:                  uuid.NewString(),
		SessionID:           sess.ID,
		PartnerSlug:         sess.PartnerSlug,
		FullName:            strings.TrimSpace(req.FullName),
		DateOfBirth:         dob,
		Phone:               phone,
		Email:               strings.TrimSpace(req.Email),
		LoanAmount:          req.LoanAmount,
		TenorMonths:         req.TenorMonths,
		Purpose:             strings.TrimSpace(req.Purpose),
		RecaptchaDOBScore:   sess.DOBScore,
		RecaptchaPhoneScore: sess.PhoneScore,
		ChallengeUsed:       sess.ChallengeSucceeded,
		CreatedAt:           s.nowF().UTC(),
	}
	if err := s.repo.Create(ctx, app); err != nil {
		return nil, err
	}

	s.logger.Info("loan application submitted",
		zap.String("application_id", app.ID),
		zap.String("partner", app.PartnerSlug),
		zap.String("phone", logging.MaskPhone(phone)))
	return app, nil
}

func (s *ApplicationService) Get(ctx context.Context, id string) (*domain.LoanApplication, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrApplicationMissing
	}
	return s.repo.GetByID(ctx, id)
}

func validateApplication(req *domain.LoanApplicationRequest, now time.Time) (time.Time, error) {
	if strings.TrimSpace(req.FullName) == "" {
		return time.Time{}, fmt.Errorf("full_name is required: %w", domain.ErrInvalidInput)
	}
	dob, err := time.Parse(dateOfBirthLayout, req.DateOfBirth)
	if err != nil {
		return time.Time{}, fmt.Errorf("date_of_birth must be YYYY-MM-DD: %w", domain.ErrInvalidInput)
	}
	if !dob.Before(now) {
		return time.Time{}, fmt.Errorf("date_of_birth must be in the past: %w", domain.ErrInvalidInput)
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return time.Time{}, fmt.Errorf("email is invalid: %w", domain.ErrInvalidInput)
		}
	}
	if req.LoanAmount <= 0 {
		return time.Time{}, fmt.Errorf("loan_amount must be positive: %w", domain.ErrInvalidInput)
	}
	if req.TenorMonths <= 0 || req.TenorMonths > maxTenorMonths {
		return time.Time{}, fmt.Errorf("tenor_months must be between 1 and %d: %w", maxTenorMonths, domain.ErrInvalidInput)
	}
	return dob, nil
}
