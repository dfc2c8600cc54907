package handlers

import (
	"net/http"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Handlers groups everything the router serves. OTPBackend is optional.
type Handlers struct {
	Sessions     *SessionHandler
	OTP          *OTPHandler
	Partners     *PartnerHandler
	Applications *ApplicationHandler
	OTPBackend   *OTPBackendHandler
}

// NewRouter wires the public form API, the API-key protected admin routes and,
// when configured, the OTP backend under /otp-backend.
func NewRouter(h Handlers, cfg domain.ConfigService, otpBackendKey string, logger *zap.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(recoverer(logger), requestLogger(logger))

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/partners", h.Partners.ListPartners).Methods(http.MethodGet)
	api.HandleFunc("/partners/{slug}", h.Partners.GetPartner).Methods(http.MethodGet)
	api.HandleFunc("/sessions", h.Sessions.CreateSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", h.Sessions.GetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/recaptcha/score", h.Sessions.SubmitScore).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/recaptcha/challenge", h.Sessions.SubmitChallenge).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/otp/send", h.OTP.Send).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/otp/resend", h.OTP.Resend).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/otp/verify", h.OTP.Verify).Methods(http.MethodPost)
	api.HandleFunc("/applications", h.Applications.Submit).Methods(http.MethodPost)
	api.Handle("/applications/{id}", requireAPIKey(cfg.GetAPIKey())(http.HandlerFunc(h.Applications.Get))).Methods(http.MethodGet)

	if h.OTPBackend != nil {
		RegisterOTPBackend(r.PathPrefix("/otp-backend").Subrouter(), h.OTPBackend, otpBackendKey)
	}

	return r
}

// RegisterOTPBackend mounts the token issuer routes on r behind key
func RegisterOTPBackend(r *mux.Router, h *OTPBackendHandler, key string) {
	r.Use(requireAPIKey(key))
	r.HandleFunc("/tokens", h.IssueToken).Methods(http.MethodPost)
	r.HandleFunc("/tokens/{token}/resend", h.ResendToken).Methods(http.MethodPost)
	r.HandleFunc("/tokens/{token}/verify", h.VerifyToken).Methods(http.MethodPost)
	r.HandleFunc("/status", h.Status).Methods(http.MethodGet)
}
