package handlers

import (
	"net/http"

	"github.com/Kelompok-1-ODP-IT-343/KPR-Form-Verify/internal/domain"
	"github.com/gorilla/mux"
)

type PartnerHandler struct {
	partners domain.PartnerRegistry
}

func NewPartnerHandler(partners domain.PartnerRegistry) *PartnerHandler {
	return &PartnerHandler{partners: partners}
}

// GetPartner handles GET /api/partners/{slug}. Unknown slugs get the default partner.
func (h *PartnerHandler) GetPartner(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.partners.Get(mux.Vars(r)["slug"]))
}

// ListPartners handles GET /api/partners
func (h *PartnerHandler) ListPartners(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.partners.List())
}
