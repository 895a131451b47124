package handlers

import (
	"errors"
	"net/http"

	"github.com/eventeye/server/internal/domain/certificates"
	"github.com/eventeye/server/internal/domain/verification"
)

type VerifyHandler struct {
	Verification *verification.Service
	Env          string
}

func NewVerifyHandler(service *verification.Service, env string) *VerifyHandler {
	return &VerifyHandler{Verification: service, Env: env}
}

type verifyResponse struct {
	Valid       bool                             `json:"valid"`
	Certificate *certificates.VerificationRecord `json:"certificate,omitempty"`
}

// Verify handles GET /verify/{code}. An unknown code is answered with
// {"valid":false} and 404 rather than a problem document.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	record, err := h.Verification.Verify(r.Context(), r.PathValue("code"))
	if err != nil {
		if errors.Is(err, verification.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, verifyResponse{Valid: false})
			return
		}
		writeServiceError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Valid: true, Certificate: &record})
}
