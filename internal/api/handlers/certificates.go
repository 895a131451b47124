package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/eventeye/server/internal/api/middleware"
	"github.com/eventeye/server/internal/audit"
	"github.com/eventeye/server/internal/domain/certificates"
	"github.com/eventeye/server/internal/storage/kv"
)

type CertificatesHandler struct {
	Certificates *certificates.Service
	Audit        *audit.Logger
	Env          string
}

func NewCertificatesHandler(service *certificates.Service, env string) *CertificatesHandler {
	return &CertificatesHandler{Certificates: service, Env: env}
}

type certificateListResponse struct {
	Certificates []certificates.Certificate `json:"certificates"`
}

type generateRequest struct {
	EventID      string                     `json:"eventId"`
	Participants []certificates.Participant `json:"participants"`
}

type generateResponse struct {
	Success    bool                   `json:"success"`
	Generated  int                    `json:"generated"`
	Duplicates int                    `json:"duplicates"`
	Rejected   int                    `json:"rejected"`
	Failed     int                    `json:"failed"`
	Message    string                 `json:"message"`
	Results    []certificates.Outcome `json:"results"`
}

// List handles GET /certificates/{eventId}.
func (h *CertificatesHandler) List(w http.ResponseWriter, r *http.Request) {
	certs, err := h.Certificates.ListByEvent(r.Context(), r.PathValue("eventId"))
	if err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, certificateListResponse{Certificates: certs})
}

// Generate handles POST /generate-certificates. The status reflects the
// batch as a whole: 200 when every participant has a certificate, 207 for a
// mix, 400 when every participant was rejected and 503 when nothing was
// issued because the store failed.
func (h *CertificatesHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err, h.Env)
		return
	}

	result, err := h.Certificates.Issue(r.Context(), req.EventID, req.Participants)
	if err != nil {
		writeServiceError(w, r, err, h.Env)
		return
	}

	status := audit.StatusSuccess
	if !result.Succeeded() {
		status = audit.StatusFailure
	}
	var actor string
	if claims := middleware.Claims(r); claims != nil {
		actor = claims.Subject
	}
	h.Audit.LogFromRequest(r, actor, "certificates.generate", "event", result.EventID, status, map[string]string{
		"issued":     strconv.Itoa(result.Issued),
		"duplicates": strconv.Itoa(result.Duplicates),
		"rejected":   strconv.Itoa(result.Rejected),
		"failed":     strconv.Itoa(result.Failed),
	})

	writeJSON(w, batchStatus(result), generateResponse{
		Success:    result.Succeeded() && result.Failed == 0,
		Generated:  result.Issued,
		Duplicates: result.Duplicates,
		Rejected:   result.Rejected,
		Failed:     result.Failed,
		Message:    batchMessage(result),
		Results:    result.Outcomes,
	})
}

func batchStatus(result certificates.BatchResult) int {
	switch {
	case result.Complete():
		return http.StatusOK
	case result.Succeeded():
		return http.StatusMultiStatus
	case result.Failed == 0:
		return http.StatusBadRequest
	case result.FailedWith(kv.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusMultiStatus
	}
}

func batchMessage(result certificates.BatchResult) string {
	msg := fmt.Sprintf("Generated %d %s", result.Issued, plural(result.Issued, "certificate"))
	if result.Duplicates > 0 {
		msg += fmt.Sprintf(", %d already issued", result.Duplicates)
	}
	if result.Rejected > 0 {
		msg += fmt.Sprintf(", %d rejected", result.Rejected)
	}
	if result.Failed > 0 {
		msg += fmt.Sprintf(", %d failed", result.Failed)
	}
	return msg
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
