package handlers

import (
	"context"
	"net/http"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type verificationService interface {
	CreateSession(ctx context.Context, partnerSlug string) (*domain.VerificationSession, error)
	GetSession(ctx context.Context, id string) (*domain.VerificationSession, error)
	Threshold(partnerSlug string) float64
	SubmitScore(ctx context.Context, sessionID string, screen domain.Screen, token, remoteIP string) (*domain.ScoreDecision, error)
	SubmitChallenge(ctx context.Context, sessionID string, screen domain.Screen, token, remoteIP string) (*domain.ScoreDecision, error)
	MarkPhoneVerified(ctx context.Context, sessionID, phone string) error
}

type sessionResponse struct {
	Session   *domain.VerificationSession `json:"session"`
	Partner   *domain.Partner             `json:"partner"`
	Threshold float64                     `json:"threshold"`
}

type SessionHandler struct {
	verification verificationService
	partners     domain.PartnerRegistry
	logger       *zap.Logger
}

func NewSessionHandler(verification verificationService, partners domain.PartnerRegistry, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		verification: verification,
		partners:     partners,
		logger:       logger,
	}
}

// CreateSession handles POST /api/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateSessionRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	sess, err := h.verification.CreateSession(r.Context(), req.Partner)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.response(sess))
}

// GetSession handles GET /api/sessions/{id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.verification.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.response(sess))
}

// SubmitScore handles POST /api/sessions/{id}/recaptcha/score
func (h *SessionHandler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var req domain.RecaptchaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	decision, err := h.verification.SubmitScore(r.Context(), mux.Vars(r)["id"], req.Screen, req.Token, clientIP(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// SubmitChallenge handles POST /api/sessions/{id}/recaptcha/challenge
func (h *SessionHandler) SubmitChallenge(w http.ResponseWriter, r *http.Request) {
	var req domain.RecaptchaRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	decision, err := h.verification.SubmitChallenge(r.Context(), mux.Vars(r)["id"], req.Screen, req.Token, clientIP(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (h *SessionHandler) response(sess *domain.VerificationSession) sessionResponse {
	return sessionResponse{
		Session:   sess,
		Partner:   h.partners.Get(sess.PartnerSlug),
		Threshold: h.verification.Threshold(sess.PartnerSlug),
	}
}
