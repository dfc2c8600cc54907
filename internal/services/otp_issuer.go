package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	otpCodeLength      = 4
	maxOTPAttempts     = 5
	otpCleanupInterval = 30 * time.Second
)

// ErrTooManyAttempts means the token was burned by repeated wrong codes
var ErrTooManyAttempts = errors.New("too many attempts")

// OTPEntry represents an issued token with its hashed code
type OTPEntry struct {
	Token     string
	Phone     string
	CodeHash  string
	Attempts  int
	ExpiresAt time.Time
	CreatedAt time.Time
}

// OTPIssuer is the OTP backend: it issues tokens, delivers codes through a
// notifier and checks them. State is in memory with auto-expiry.
type OTPIssuer struct {
	otps     map[string]*OTPEntry // key: token
	mutex    sync.RWMutex
	expiry   time.Duration
	notifier domain.OTPNotifier
	logger   *zap.Logger
	nowF     func() time.Time
}

func NewOTPIssuer(expiry time.Duration, notifier domain.OTPNotifier, logger *zap.Logger) *OTPIssuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OTPIssuer{
		otps:     make(map[string]*OTPEntry),
		expiry:   expiry,
		notifier: notifier,
		logger:   logger,
		nowF:     time.Now,
	}
}

// Issue creates a token for phone and sends its code
func (s *OTPIssuer) Issue(ctx context.Context, phone string) (*domain.IssuedToken, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	code, err := generateRandomCode(otpCodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate OTP code: %w", err)
	}

	now := s.nowF()
	entry := &OTPEntry{
		Token:     uuid.New().String(),
		Phone:     phone,
		CodeHash:  hashCode(code),
		ExpiresAt: now.Add(s.expiry),
		CreatedAt: now,
	}

	s.mutex.Lock()
	s.otps[entry.Token] = entry
	s.mutex.Unlock()

	if err := s.deliver(ctx, phone, code); err != nil {
		s.mutex.Lock()
		delete(s.otps, entry.Token)
		s.mutex.Unlock()
		return nil, err
	}

	return &domain.IssuedToken{Token: entry.Token, ExpiresIn: int(s.expiry.Seconds())}, nil
}

// Reissue replaces the code of a live token and sends it again
func (s *OTPIssuer) Reissue(ctx context.Context, token string) error {
	code, err := generateRandomCode(otpCodeLength)
	if err != nil {
		return fmt.Errorf("failed to generate OTP code: %w", err)
	}

	now := s.nowF()
	s.mutex.Lock()
	entry, ok := s.otps[token]
	if !ok || now.After(entry.ExpiresAt) {
		delete(s.otps, token)
		s.mutex.Unlock()
		return domain.ErrTokenExpired
	}
	entry.CodeHash = hashCode(code)
	entry.Attempts = 0
	entry.ExpiresAt = now.Add(s.expiry)
	phone := entry.Phone
	s.mutex.Unlock()

	return s.deliver(ctx, phone, code)
}

// Check validates code for token. A valid code consumes the token.
func (s *OTPIssuer) Check(ctx context.Context, token, code string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, ok := s.otps[token]
	if !ok {
		return domain.ErrTokenExpired
	}
	if s.nowF().After(entry.ExpiresAt) {
		delete(s.otps, token)
		return domain.ErrTokenExpired
	}
	if !codeEqual(code, entry.CodeHash) {
		entry.Attempts++
		if entry.Attempts >= maxOTPAttempts {
			delete(s.otps, token)
			return ErrTooManyAttempts
		}
		return domain.ErrVerificationFailed
	}

	delete(s.otps, token)
	return nil
}

func (s *OTPIssuer) deliver(ctx context.Context, phone, code string) error {
	if s.notifier == nil {
		return nil
	}
	if err := s.notifier.Notify(ctx, phone, code, int(s.expiry.Seconds())); err != nil {
		s.logger.Error("failed to deliver OTP",
			zap.String("phone", logging.MaskPhone(phone)),
			zap.Error(err))
		return fmt.Errorf("%w: deliver otp: %v", domain.ErrNetwork, err)
	}
	return nil
}

// CleanupExpiredOTPs removes all expired tokens from memory
func (s *OTPIssuer) CleanupExpiredOTPs() int {
	now := s.nowF()
	s.mutex.Lock()
	defer s.mutex.Unlock()

	n := 0
	for token, entry := range s.otps {
		if now.After(entry.ExpiresAt) {
			delete(s.otps, token)
			n++
		}
	}
	return n
}

// Run cleans up expired tokens until ctx is done
func (s *OTPIssuer) Run(ctx context.Context) {
	ticker := time.NewTicker(otpCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.CleanupExpiredOTPs(); n > 0 {
				s.logger.Debug("expired OTP tokens removed", zap.Int("count", n))
			}
		}
	}
}

// GetActiveOTPs returns the count of active (non-expired) tokens - for debugging
func (s *OTPIssuer) GetActiveOTPs() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	now := s.nowF()
	count := 0
	for _, entry := range s.otps {
		if now.Before(entry.ExpiresAt) {
			count++
		}
	}
	return count
}

// generateRandomCode generates a random numeric code of specified length
func generateRandomCode(length int) (string, error) {
	const digits = "0123456789"
	code := make([]byte, length)

	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		code[i] = digits[num.Int64()]
	}

	return string(code), nil
}

func hashCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

func codeEqual(code, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(hashCode(code)), []byte(storedHash)) == 1
}
