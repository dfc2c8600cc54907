package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

const (
	msgSessionNotFound = "Sesi tidak ditemukan atau sudah berakhir. Silakan muat ulang halaman."
	msgTokenExpired    = "Kode OTP sudah kedaluwarsa. Kode baru telah dikirim ke nomor Anda."
	msgNetwork         = "Terjadi gangguan jaringan. Silakan coba beberapa saat lagi."
	msgFailed          = "Verifikasi gagal. Silakan coba lagi."
	msgWrongCode       = "Kode OTP salah. Silakan periksa kembali."
	msgCooldown        = "Tunggu %d detik sebelum mengirim ulang kode."
	msgInvalidCode     = "Kode OTP harus terdiri dari 4 digit angka."
	msgInvalidPhone    = "Nomor telepon tidak valid."
	msgNotVerified     = "Silakan selesaikan verifikasi sebelum melanjutkan."
	msgInternal        = "Terjadi kesalahan pada sistem. Silakan coba lagi."
	msgUnavailable     = "Layanan pengajuan sedang tidak tersedia. Silakan coba beberapa saat lagi."
)

type apiError struct {
	status  int
	code    string
	message string
}

// classify maps a service error onto the HTTP status, error code and user message
func classify(err error) apiError {
	var cooldown *domain.CooldownError
	switch {
	case errors.As(err, &cooldown):
		return apiError{http.StatusTooManyRequests, "resend_cooldown", fmt.Sprintf(msgCooldown, cooldown.RetryAfterSeconds)}
	case errors.Is(err, domain.ErrResendCooldown):
		return apiError{http.StatusTooManyRequests, "resend_cooldown", fmt.Sprintf(msgCooldown, 0)}
	case errors.Is(err, domain.ErrTokenExpired):
		return apiError{http.StatusGone, "token_expired", msgTokenExpired}
	case errors.Is(err, domain.ErrNetwork):
		return apiError{http.StatusBadGateway, "network_error", msgNetwork}
	case errors.Is(err, domain.ErrVerificationFailed):
		return apiError{http.StatusUnprocessableEntity, "verification_failed", msgFailed}
	case errors.Is(err, domain.ErrInvalidCode):
		return apiError{http.StatusBadRequest, "invalid_code", msgInvalidCode}
	case errors.Is(err, domain.ErrInvalidPhone):
		return apiError{http.StatusBadRequest, "invalid_phone", msgInvalidPhone}
	case errors.Is(err, domain.ErrUnknownScreen):
		return apiError{http.StatusBadRequest, "unknown_screen", err.Error()}
	case errors.Is(err, domain.ErrInvalidInput):
		return apiError{http.StatusBadRequest, "invalid_input", err.Error()}
	case errors.Is(err, domain.ErrSessionNotFound):
		return apiError{http.StatusNotFound, "session_not_found", msgSessionNotFound}
	case errors.Is(err, domain.ErrApplicationMissing):
		return apiError{http.StatusNotFound, "application_not_found", err.Error()}
	case errors.Is(err, domain.ErrNotVerified):
		return apiError{http.StatusForbidden, "not_verified", msgNotVerified}
	case errors.Is(err, domain.ErrDatabaseDisabled):
		return apiError{http.StatusServiceUnavailable, "service_unavailable", msgUnavailable}
	}
	return apiError{http.StatusInternalServerError, "internal_error", msgInternal}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError classifies err and writes it. Server-side failures are logged and
// reported to Sentry, except a disabled database which is configuration.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	writeErrorMessage(w, r, logger, err, "")
}

// writeErrorMessage is writeError with the user message replaced when message is set
func writeErrorMessage(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error, message string) {
	e := classify(err)
	if message != "" {
		e.message = message
	}

	var cooldown *domain.CooldownError
	if errors.As(err, &cooldown) {
		w.Header().Set("Retry-After", strconv.Itoa(cooldown.RetryAfterSeconds))
	}

	switch {
	case errors.Is(err, domain.ErrDatabaseDisabled):
		logger.Warn("request needs the database",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
	case e.status >= http.StatusInternalServerError:
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", e.status),
			zap.Error(err))
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.CaptureException(err)
		} else {
			sentry.CaptureException(err)
		}
	}

	writeJSON(w, e.status, domain.ErrorResponse{Error: e.code, Message: e.message})
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", domain.ErrInvalidInput)
	}
	return nil
}

// clientIP prefers the first X-Forwarded-For hop
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
