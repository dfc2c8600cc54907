package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/services"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type otpIssuer interface {
	Issue(ctx context.Context, phone string) (*domain.IssuedToken, error)
	Reissue(ctx context.Context, token string) error
	Check(ctx context.Context, token, code string) error
	GetActiveOTPs() int
}

// OTPBackendHandler exposes the token issuer over the API the OTP client speaks
type OTPBackendHandler struct {
	issuer        otpIssuer
	expirySeconds int
	logger        *zap.Logger
}

func NewOTPBackendHandler(issuer otpIssuer, expirySeconds int, logger *zap.Logger) *OTPBackendHandler {
	return &OTPBackendHandler{
		issuer:        issuer,
		expirySeconds: expirySeconds,
		logger:        logger,
	}
}

// IssueToken handles POST /otp-backend/tokens
func (h *OTPBackendHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req domain.IssueTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, http.StatusBadRequest, "invalid_input", err)
		return
	}
	if req.Phone == "" {
		h.fail(w, http.StatusBadRequest, "invalid_phone", domain.ErrInvalidPhone)
		return
	}

	token, err := h.issuer.Issue(r.Context(), req.Phone)
	switch {
	case errors.Is(err, domain.ErrInvalidPhone):
		h.fail(w, http.StatusBadRequest, "invalid_phone", err)
	case err != nil:
		h.logger.Error("failed to issue otp token", zap.Error(err))
		h.fail(w, http.StatusBadGateway, "delivery_failed", err)
	default:
		writeJSON(w, http.StatusCreated, token)
	}
}

// ResendToken handles POST /otp-backend/tokens/{token}/resend
func (h *OTPBackendHandler) ResendToken(w http.ResponseWriter, r *http.Request) {
	err := h.issuer.Reissue(r.Context(), mux.Vars(r)["token"])
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		h.fail(w, http.StatusNotFound, "token_expired", err)
	case err != nil:
		h.logger.Error("failed to resend otp", zap.Error(err))
		h.fail(w, http.StatusBadGateway, "delivery_failed", err)
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":     "resent",
			"expires_in": h.expirySeconds,
		})
	}
}

// VerifyToken handles POST /otp-backend/tokens/{token}/verify
func (h *OTPBackendHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, http.StatusBadRequest, "invalid_input", err)
		return
	}

	err := h.issuer.Check(r.Context(), mux.Vars(r)["token"], req.Code)
	switch {
	case errors.Is(err, domain.ErrVerificationFailed):
		h.fail(w, http.StatusUnprocessableEntity, "invalid_code", err)
	case errors.Is(err, services.ErrTooManyAttempts):
		h.fail(w, http.StatusUnauthorized, "too_many_attempts", err)
	case errors.Is(err, domain.ErrTokenExpired):
		h.fail(w, http.StatusNotFound, "token_expired", err)
	case err != nil:
		h.fail(w, http.StatusInternalServerError, "internal_error", err)
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
	}
}

// Status handles GET /otp-backend/status (for debugging)
func (h *OTPBackendHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "active",
		"active_otps":    h.issuer.GetActiveOTPs(),
		"expiry_seconds": h.expirySeconds,
	})
}

func (h *OTPBackendHandler) fail(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, domain.ErrorResponse{Error: code, Message: err.Error()})
}
