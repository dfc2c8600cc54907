package domain

import (
	"context"
)

// WhatsAppService handles WhatsApp messaging operations
type WhatsAppService interface {
	SendMessage(ctx context.Context, phone, message string) error
	IsConnected() bool
}

// RecaptchaVerifier checks browser-issued reCAPTCHA tokens
type RecaptchaVerifier interface {
	VerifyV3(ctx context.Context, token, action, remoteIP string) (*RecaptchaResult, error)
	VerifyV2(ctx context.Context, token, remoteIP string) (*RecaptchaResult, error)
}

// SessionStore persists verification sessions for their TTL. Update applies
// fn to the current session atomically, so concurrent writers never undo each
// other's changes. fn may run more than once.
type SessionStore interface {
	Get(ctx context.Context, id string) (*VerificationSession, error)
	Save(ctx context.Context, s *VerificationSession) error
	Update(ctx context.Context, id string, fn func(*VerificationSession) error) (*VerificationSession, error)
	Delete(ctx context.Context, id string) error
}

// OTPGateway is the remote OTP API
type OTPGateway interface {
	Send(ctx context.Context, phone string) (*IssuedToken, error)
	Resend(ctx context.Context, token string) error
	Verify(ctx context.Context, token, code string) error
}

// OTPNotifier delivers an issued code to the phone owner
type OTPNotifier interface {
	Notify(ctx context.Context, phone, code string, expiresIn int) error
}

// PartnerRegistry resolves white-label partner context
type PartnerRegistry interface {
	Get(slug string) *Partner
	List() []*Partner
}

// ApplicationRepository stores submitted loan applications
type ApplicationRepository interface {
	Create(ctx context.Context, app *LoanApplication) error
	GetByID(ctx context.Context, id string) (*LoanApplication, error)
}

// ConfigService handles application configuration
type ConfigService interface {
	GetAPIKey() string
	GetHTTPAddr() string
}
