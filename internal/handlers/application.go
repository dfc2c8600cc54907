package handlers

import (
	"context"
	"net/http"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type applicationService interface {
	Submit(ctx context.Context, req *domain.LoanApplicationRequest) (*domain.LoanApplication, error)
	Get(ctx context.Context, id string) (*domain.LoanApplication, error)
}

type ApplicationHandler struct {
	applications applicationService
	logger       *zap.Logger
}

func NewApplicationHandler(applications applicationService, logger *zap.Logger) *ApplicationHandler {
	return &ApplicationHandler{applications: applications, logger: logger}
}

// Submit handles POST /api/applications
func (h *ApplicationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req domain.LoanApplicationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	app, err := h.applications.Submit(r.Context(), &req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

// Get handles GET /api/applications/{id}
func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	app, err := h.applications.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}
