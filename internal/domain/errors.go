package domain

import "errors"

var (
	ErrSessionNotFound    = errors.New("verification session not found")
	ErrUnknownScreen      = errors.New("unknown screen")
	ErrTokenExpired       = errors.New("token expired")
	ErrNetwork            = errors.New("network failure")
	ErrVerificationFailed = errors.New("verification failed")
	ErrResendCooldown     = errors.New("resend cooldown active")
	ErrInvalidCode        = errors.New("code must be 4 digits")
	ErrInvalidPhone       = errors.New("invalid phone number")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotVerified        = errors.New("session not verified")
	ErrDatabaseDisabled   = errors.New("database not available")
	ErrApplicationMissing = errors.New("application not found")
)

// CooldownError carries how long the caller has to wait before resending
type CooldownError struct {
	RetryAfterSeconds int
}

func (e *CooldownError) Error() string {
	return ErrResendCooldown.Error()
}

func (e *CooldownError) Unwrap() error {
	return ErrResendCooldown
}
