package api

import (
	"net/http"

	"spectraconsole/internal/legal"
	"spectraconsole/internal/middleware"
	"spectraconsole/internal/util"
)

type acceptRequest struct {
	AcceptedBy        string `json:"accepted_by"`
	AcceptedDocuments struct {
		EULA    string `json:"eula"`
		AUP     string `json:"aup"`
		Privacy string `json:"privacy"`
	} `json:"accepted_documents"`
	InstallationID string `json:"installation_id"`
}

func (h *Handlers) LegalStatus(w http.ResponseWriter, r *http.Request) {
	gate := h.svc.Gate()
	d := gate.Hooks().ForWebUI(r.Context())
	util.WriteJSON(w, http.StatusOK, map[string]any{
		"legal":              d,
		"required_documents": gate.RequiredDocuments(d.Environment),
	})
}

// LegalAccept records a self-hosted acceptance. Other environments keep
// their acceptance records elsewhere and answer 501.
func (h *Handlers) LegalAccept(w http.ResponseWriter, r *http.Request) {
	rid := middleware.RequestID(r.Context())
	gate := h.svc.Gate()
	if gate.DetectEnvironment() != legal.SelfHosted {
		util.WriteError(w, http.StatusNotImplemented, "unsupported_environment", legal.ErrUnsupportedEnvironment.Error(), rid)
		return
	}
	var req acceptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	docs := legal.Versions{
		legal.EULA:    req.AcceptedDocuments.EULA,
		legal.AUP:     req.AcceptedDocuments.AUP,
		legal.Privacy: req.AcceptedDocuments.Privacy,
	}
	rec, err := gate.RecordSelfHostedAcceptance(r.Context(), legal.AcceptanceInput{
		AcceptedBy:        req.AcceptedBy,
		AcceptedDocuments: docs,
		InstallationID:    req.InstallationID,
	})
	if err != nil {
		h.logger.Error("legal acceptance write failed", "err", err, "request_id", rid)
		util.WriteError(w, http.StatusInternalServerError, "legal_acceptance_write_failed", err.Error(), rid)
		return
	}
	d := gate.Evaluate(r.Context(), legal.EvaluateOptions{Environment: legal.SelfHosted, Record: &rec})
	status, label := http.StatusOK, "accepted"
	if !d.IsCompliant {
		status, label = http.StatusAccepted, "incomplete"
	}
	util.WriteJSON(w, status, map[string]any{
		"status":     label,
		"legal":      d,
		"acceptance": rec,
	})
}
