package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const otpSweepInterval = time.Minute

// otpCacheEntry outlives its token: lastSentAt keeps rate limiting a phone
// after the token was consumed, burned or forgotten.
type otpCacheEntry struct {
	token      string
	lastSentAt time.Time
}

// OTPService drives send/resend/verify against the remote OTP API. It keeps
// the last token per phone so repeated sends for the same phone reuse it.
type OTPService struct {
	gateway  domain.OTPGateway
	cooldown time.Duration
	tokenTTL time.Duration
	logger   *zap.Logger
	nowF     func() time.Time

	mutex  sync.Mutex
	tokens map[string]otpCacheEntry // key: normalized phone
	group  singleflight.Group
}

// NewOTPService builds the controller. tokenTTL is how long the remote keeps a
// token alive after its last delivery; older entries are swept by Run.
func NewOTPService(gateway domain.OTPGateway, cooldown, tokenTTL time.Duration, logger *zap.Logger) *OTPService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OTPService{
		gateway:  gateway,
		cooldown: cooldown,
		tokenTTL: tokenTTL,
		logger:   logger,
		nowF:     time.Now,
		tokens:   make(map[string]otpCacheEntry),
	}
}

// Send requests a code for phone unless a token is already cached
func (s *OTPService) Send(ctx context.Context, phone string) (*domain.OTPStatus, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	if e, ok := s.cached(phone); ok {
		return s.status(phone, e, true), nil
	}

	v, err, _ := s.group.Do("send:"+phone, func() (interface{}, error) {
		if e, ok := s.cached(phone); ok {
			return e, nil
		}
		return s.requestToken(ctx, phone)
	})
	if err != nil {
		return nil, err
	}
	return s.status(phone, v.(otpCacheEntry), false), nil
}

// Resend delivers a new code for the cached token, honoring the cooldown.
// An expired token is replaced by a new one.
func (s *OTPService) Resend(ctx context.Context, phone string) (*domain.OTPStatus, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	e, ok := s.cached(phone)
	if !ok {
		return s.Send(ctx, phone)
	}
	if wait := s.remaining(e); wait > 0 {
		return nil, &domain.CooldownError{RetryAfterSeconds: wait}
	}

	v, err, _ := s.group.Do("resend:"+phone, func() (interface{}, error) {
		err := s.gateway.Resend(ctx, e.token)
		switch {
		case errors.Is(err, domain.ErrTokenExpired):
			s.logger.Info("otp token expired on resend, requesting a new one",
				zap.String("phone", logging.MaskPhone(phone)))
			s.forget(phone, e.token)
			return s.requestToken(ctx, phone)
		case errors.Is(err, domain.ErrResendCooldown):
			return nil, &domain.CooldownError{RetryAfterSeconds: int(math.Ceil(s.cooldown.Seconds()))}
		case err != nil:
			return nil, err
		}

		fresh := otpCacheEntry{token: e.token, lastSentAt: s.nowF()}
		s.mutex.Lock()
		if cur, ok := s.tokens[phone]; ok && cur.token == e.token {
			s.tokens[phone] = fresh
		}
		s.mutex.Unlock()
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return s.status(phone, v.(otpCacheEntry), false), nil
}

// Verify checks a four-digit code. A missing or expired token triggers a new
// send and ErrTokenExpired so the form can prompt for the new code. The new
// send honors the resend cooldown, so a burned token is only replaced once
// the cooldown is over.
func (s *OTPService) Verify(ctx context.Context, phone, code string) error {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return err
	}
	if code, err = ParseCode(code, nil); err != nil {
		return err
	}

	e, ok := s.cached(phone)
	if !ok {
		if _, err := s.Send(ctx, phone); err != nil {
			return err
		}
		return domain.ErrTokenExpired
	}

	_, err, _ = s.group.Do("verify:"+phone+":"+code, func() (interface{}, error) {
		err := s.gateway.Verify(ctx, e.token, code)
		switch {
		case err == nil:
			s.forget(phone, e.token)
			return nil, nil
		case errors.Is(err, domain.ErrTokenExpired):
			s.forget(phone, e.token)
			_, rerr := s.requestToken(ctx, phone)
			var cooldown *domain.CooldownError
			if errors.As(rerr, &cooldown) {
				return nil, rerr
			}
			if rerr != nil {
				s.logger.Warn("failed to request replacement otp token",
					zap.String("phone", logging.MaskPhone(phone)),
					zap.Error(rerr))
			}
			return nil, domain.ErrTokenExpired
		default:
			return nil, err
		}
	})
	if err == nil {
		s.logger.Info("phone verified", zap.String("phone", logging.MaskPhone(phone)))
	}
	return err
}

// Forget drops the cached token for phone. The send time is kept so the
// cooldown still applies to the next send.
func (s *OTPService) Forget(phone string) {
	p, err := NormalizePhone(phone)
	if err != nil {
		return
	}
	s.mutex.Lock()
	if cur, ok := s.tokens[p]; ok {
		cur.token = ""
		s.tokens[p] = cur
	}
	s.mutex.Unlock()
}

// Sweep removes entries whose token and cooldown are both over
func (s *OTPService) Sweep() int {
	maxAge := s.tokenTTL
	if s.cooldown > maxAge {
		maxAge = s.cooldown
	}
	now := s.nowF()
	s.mutex.Lock()
	defer s.mutex.Unlock()

	n := 0
	for phone, e := range s.tokens {
		if now.Sub(e.lastSentAt) > maxAge {
			delete(s.tokens, phone)
			n++
		}
	}
	return n
}

// Run sweeps stale entries until ctx is done
func (s *OTPService) Run(ctx context.Context) {
	ticker := time.NewTicker(otpSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("stale otp entries removed", zap.Int("count", n))
			}
		}
	}
}

// requestToken asks for a new token unless the phone is inside its cooldown.
// The send slot is reserved before the remote call and released on failure.
func (s *OTPService) requestToken(ctx context.Context, phone string) (otpCacheEntry, error) {
	s.mutex.Lock()
	prev, had := s.tokens[phone]
	if had {
		if wait := s.remaining(prev); wait > 0 {
			s.mutex.Unlock()
			return otpCacheEntry{}, &domain.CooldownError{RetryAfterSeconds: wait}
		}
	}
	reserved := otpCacheEntry{lastSentAt: s.nowF()}
	s.tokens[phone] = reserved
	s.mutex.Unlock()

	issued, err := s.gateway.Send(ctx, phone)
	if err != nil {
		s.mutex.Lock()
		if cur, ok := s.tokens[phone]; ok && cur == reserved {
			if had {
				s.tokens[phone] = prev
			} else {
				delete(s.tokens, phone)
			}
		}
		s.mutex.Unlock()
		return otpCacheEntry{}, err
	}
	e := otpCacheEntry{token: issued.Token, lastSentAt: reserved.lastSentAt}
	s.mutex.Lock()
	s.tokens[phone] = e
	s.mutex.Unlock()

	s.logger.Info("otp sent", zap.String("phone", logging.MaskPhone(phone)))
	return e, nil
}

func (s *OTPService) cached(phone string) (otpCacheEntry, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	e, ok := s.tokens[phone]
	if !ok || e.token == "" {
		return otpCacheEntry{}, false
	}
	return e, true
}

// forget clears the token only if the entry still holds it
func (s *OTPService) forget(phone, token string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if cur, ok := s.tokens[phone]; ok && cur.token == token {
		cur.token = ""
		s.tokens[phone] = cur
	}
}

func (s *OTPService) remaining(e otpCacheEntry) int {
	left := s.cooldown - s.nowF().Sub(e.lastSentAt)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}

func (s *OTPService) status(phone string, e otpCacheEntry, reused bool) *domain.OTPStatus {
	st := "sent"
	if reused {
		st = "reused"
	}
	return &domain.OTPStatus{
		Status:      st,
		Phone:       phone,
		Reused:      reused,
		ResendAfter: s.remaining(e),
	}
}
