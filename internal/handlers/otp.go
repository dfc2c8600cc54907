package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/logging"
	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/services"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const msgPhoneVerified = "Nomor telepon berhasil diverifikasi."

type otpController interface {
	Send(ctx context.Context, phone string) (*domain.OTPStatus, error)
	Resend(ctx context.Context, phone string) (*domain.OTPStatus, error)
	Verify(ctx context.Context, phone, code string) error
}

// OTPHandler serves the form-facing OTP endpoints. The phone screen of the
// session must have passed reCAPTCHA first.
type OTPHandler struct {
	otp          otpController
	verification verificationService
	logger       *zap.Logger
}

func NewOTPHandler(otp otpController, verification verificationService, logger *zap.Logger) *OTPHandler {
	return &OTPHandler{
		otp:          otp,
		verification: verification,
		logger:       logger,
	}
}

// Send handles POST /api/sessions/{id}/otp/send
func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	h.deliver(w, r, h.otp.Send)
}

// Resend handles POST /api/sessions/{id}/otp/resend
func (h *OTPHandler) Resend(w http.ResponseWriter, r *http.Request) {
	h.deliver(w, r, h.otp.Resend)
}

func (h *OTPHandler) deliver(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (*domain.OTPStatus, error)) {
	var req domain.OTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if _, err := h.phoneScreenPassed(r); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	status, err := op(r.Context(), req.Phone)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Verify handles POST /api/sessions/{id}/otp/verify
func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req domain.OTPVerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	sess, err := h.phoneScreenPassed(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	phone, err := services.NormalizePhone(req.Phone)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	code, err := services.ParseCode(req.Code, req.Digits)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.otp.Verify(r.Context(), phone, code); err != nil {
		if errors.Is(err, domain.ErrVerificationFailed) {
			writeErrorMessage(w, r, h.logger, err, msgWrongCode)
			return
		}
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.verification.MarkPhoneVerified(r.Context(), sess.ID, phone); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info("phone verified",
		zap.String("session_id", sess.ID),
		zap.String("phone", logging.MaskPhone(phone)))

	writeJSON(w, http.StatusOK, domain.OTPVerifyResponse{
		Status:  "verified",
		Phone:   phone,
		Valid:   true,
		Message: msgPhoneVerified,
	})
}

func (h *OTPHandler) phoneScreenPassed(r *http.Request) (*domain.VerificationSession, error) {
	sess, err := h.verification.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return nil, err
	}
	if !sess.PhonePassed {
		return nil, domain.ErrNotVerified
	}
	return sess, nil
}
