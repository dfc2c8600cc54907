package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	msgScoreFallback  = "Kami tidak dapat memverifikasi perangkat Anda saat ini. Silakan selesaikan tantangan keamanan untuk melanjutkan."
	msgChallenge      = "Silakan selesaikan tantangan keamanan untuk melanjutkan."
	msgChallengeRetry = "Verifikasi keamanan gagal. Silakan coba lagi."
)

// VerificationService decides, per form screen, whether the invisible v3
// check is enough or the interactive v2 challenge must be shown.
type VerificationService struct {
	store         domain.SessionStore
	recaptcha     domain.RecaptchaVerifier
	partners      domain.PartnerRegistry
	threshold     float64
	fallbackScore float64
	logger        *zap.Logger
	nowF          func() time.Time
}

func NewVerificationService(store domain.SessionStore, recaptcha domain.RecaptchaVerifier, partners domain.PartnerRegistry, threshold, fallbackScore float64, logger *zap.Logger) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationService{
		store:         store,
		recaptcha:     recaptcha,
		partners:      partners,
		threshold:     threshold,
		fallbackScore: fallbackScore,
		logger:        logger,
		nowF:          time.Now,
	}
}

func (s *VerificationService) CreateSession(ctx context.Context, partnerSlug string) (*domain.VerificationSession, error) {
	p := s.partners.Get(partnerSlug)
	now := s.nowF().UTC()
	sess := &domain.VerificationSession{
		ID:          uuid.New().String(),
		PartnerSlug: p.Slug,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.logger.Info("verification session created",
		zap.String("session_id", sess.ID),
		zap.String("partner", sess.PartnerSlug))
	return sess, nil
}

func (s *VerificationService) GetSession(ctx context.Context, id string) (*domain.VerificationSession, error) {
	return s.store.Get(ctx, id)
}

// Threshold returns the score below which the challenge is required for the partner
func (s *VerificationService) Threshold(partnerSlug string) float64 {
	if p := s.partners.Get(partnerSlug); p != nil && p.ScoreThreshold != nil {
		return *p.ScoreThreshold
	}
	return s.threshold
}

// requiresChallenge is the escalation policy. A session whose challenge
// already succeeded is never challenged again.
func requiresChallenge(sess *domain.VerificationSession, screen domain.Screen, score, threshold float64) bool {
	if sess.ChallengeSucceeded || sess.Passed(screen) {
		return false
	}
	return score < threshold
}

// SubmitScore verifies a v3 token for a screen and records the score
func (s *VerificationService) SubmitScore(ctx context.Context, sessionID string, screen domain.Screen, token, remoteIP string) (*domain.ScoreDecision, error) {
	if !screen.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownScreen, screen)
	}
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	threshold := s.Threshold(sess.PartnerSlug)
	decision := &domain.ScoreDecision{
		SessionID: sess.ID,
		Screen:    screen,
		Threshold: threshold,
	}

	res, err := s.recaptcha.VerifyV3(ctx, token, string(screen), remoteIP)
	switch {
	case errors.Is(err, domain.ErrNetwork):
		s.logger.Warn("recaptcha v3 unavailable, using fallback score",
			zap.String("session_id", sess.ID),
			zap.String("screen", string(screen)),
			zap.Error(err))
		decision.Score = s.fallbackScore
		decision.Fallback = true
	case err != nil:
		return nil, err
	default:
		decision.Score = res.Score
		if !res.Success {
			decision.Score = 0
		}
	}

	// decide against the stored session; it may have passed meanwhile
	_, err = s.store.Update(ctx, sess.ID, func(cur *domain.VerificationSession) error {
		cur.RecordScore(screen, decision.Score)
		decision.ChallengeRequired = requiresChallenge(cur, screen, decision.Score, threshold)
		if !decision.ChallengeRequired {
			cur.MarkPassed(screen)
		}
		decision.Passed = cur.Passed(screen)
		cur.UpdatedAt = s.nowF().UTC()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	switch {
	case decision.ChallengeRequired && decision.Fallback:
		decision.Message = msgScoreFallback
	case decision.ChallengeRequired:
		decision.Message = msgChallenge
	}

	s.logger.Info("recaptcha score recorded",
		zap.String("session_id", sess.ID),
		zap.String("screen", string(screen)),
		zap.Float64("score", decision.Score),
		zap.Bool("challenge_required", decision.ChallengeRequired),
		zap.Bool("fallback", decision.Fallback))
	return decision, nil
}

// SubmitChallenge verifies the interactive v2 token for a screen
func (s *VerificationService) SubmitChallenge(ctx context.Context, sessionID string, screen domain.Screen, token, remoteIP string) (*domain.ScoreDecision, error) {
	if !screen.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownScreen, screen)
	}
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !sess.ChallengeSucceeded {
		res, err := s.recaptcha.VerifyV2(ctx, token, remoteIP)
		if err != nil {
			return nil, err
		}
		if !res.Success {
			s.logger.Info("recaptcha v2 challenge failed",
				zap.String("session_id", sess.ID),
				zap.String("screen", string(screen)),
				zap.Strings("error_codes", res.ErrorCodes))
			return nil, fmt.Errorf("%w: %s", domain.ErrVerificationFailed, msgChallengeRetry)
		}
	}

	sess, err = s.store.Update(ctx, sess.ID, func(cur *domain.VerificationSession) error {
		cur.ChallengeSucceeded = true
		cur.MarkPassed(screen)
		cur.UpdatedAt = s.nowF().UTC()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	score := sess.DOBScore
	if screen == domain.ScreenPhone {
		score = sess.PhoneScore
	}
	return &domain.ScoreDecision{
		SessionID: sess.ID,
		Screen:    screen,
		Score:     score,
		Threshold: s.Threshold(sess.PartnerSlug),
		Passed:    true,
	}, nil
}

// MarkPhoneVerified records the phone that passed OTP verification
func (s *VerificationService) MarkPhoneVerified(ctx context.Context, sessionID, phone string) error {
	_, err := s.store.Update(ctx, sessionID, func(cur *domain.VerificationSession) error {
		cur.Phone = phone
		cur.PhoneVerified = true
		cur.UpdatedAt = s.nowF().UTC()
		return nil
	})
	return err
}
