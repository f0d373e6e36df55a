package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"spectraconsole/internal/armory"
	"spectraconsole/internal/middleware"
	"spectraconsole/internal/orchestrator"
	"spectraconsole/internal/service"
	"spectraconsole/internal/util"
)

const fallbackMode = "ui-local-fallback"

type telemetryEvent struct {
	EventID   string `json:"event_id"`
	Source    string `json:"source"`
	Status    string `json:"status"`
	EventType string `json:"event_type"`
	Actor     string `json:"actor"`
	Target    string `json:"target"`
	Timestamp string `json:"timestamp"`
}

var fallbackEvents = []telemetryEvent{
	{EventID: "evt-001", Source: "nmap", Status: "success", EventType: "nmap_scan_completed", Actor: "scanner-daemon", Target: "10.0.9.0/24", Timestamp: "2026-02-23T18:20:31Z"},
	{EventID: "evt-002", Source: "metasploit", Status: "info", EventType: "metasploit_session_ingested", Actor: "msf-rpc-wrapper", Target: "workspace/redteam-a", Timestamp: "2026-02-23T18:19:02Z"},
	{EventID: "evt-003", Source: "manual", Status: "warning", EventType: "manual_sync_partial", Actor: "operator-local", Target: "metasploit.remote.operator", Timestamp: "2026-02-23T18:16:40Z"},
}

// writeUpstream relays an orchestrator reply. Bodyless statuses get the
// header only.
func writeUpstream(w http.ResponseWriter, up *orchestrator.Response) {
	if up.Status == http.StatusNoContent || up.Status == http.StatusNotModified {
		w.WriteHeader(up.Status)
		return
	}
	util.WriteJSON(w, up.Status, up.Body)
}

func (h *Handlers) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req service.TaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	task, err := h.svc.NormalizeTask(req)
	if err != nil {
		if !writeValidation(w, r, err) {
			util.WriteError(w, http.StatusBadRequest, "bad_request", err.Error(), middleware.RequestID(r.Context()))
		}
		return
	}
	if up := h.orch.Forward(r.Context(), http.MethodPost, "/api/v1/tasks", task); up != nil {
		writeUpstream(w, up)
		return
	}
	util.WriteJSON(w, http.StatusAccepted, map[string]any{
		"task_id":   "mock-" + uuid.NewString(),
		"status":    "queued",
		"tenant_id": task.TenantID,
		"mode":      fallbackMode,
	})
}

func (h *Handlers) ManualSync(w http.ResponseWriter, r *http.Request) {
	var req service.ManualSyncRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := service.ValidateManualSync(req); err != nil {
		if !writeValidation(w, r, err) {
			util.WriteError(w, http.StatusBadRequest, "bad_request", err.Error(), middleware.RequestID(r.Context()))
		}
		return
	}
	if up := h.orch.Forward(r.Context(), http.MethodPost, "/api/v1/integrations/metasploit/manual-sync", req); up != nil {
		writeUpstream(w, up)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{
		"emitted_events":          3,
		"observed_sessions":       1,
		"observed_session_events": 4,
		"mode":                    fallbackMode,
	})
}

type armoryIngestRequest struct {
	ToolName string `json:"tool_name"`
	ImageRef string `json:"image_ref"`
	Mode     string `json:"mode"`
}

func (h *Handlers) ArmoryIngest(w http.ResponseWriter, r *http.Request) {
	var req armoryIngestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mode := strings.TrimSpace(req.Mode)
	if mode == "" {
		mode = armory.ModeDryRun
	}
	if mode != armory.ModeDryRun && mode != armory.ModeIngest {
		util.WriteError(w, http.StatusBadRequest, "invalid_mode", "mode must be dry_run or ingest", middleware.RequestID(r.Context()))
		return
	}
	tool := strings.TrimSpace(req.ToolName)
	if tool == "" {
		tool = "unknown-tool"
	}
	image := strings.TrimSpace(req.ImageRef)
	if image == "" {
		image = "registry.local/unknown:latest"
	}

	var item armory.Item
	if mode == armory.ModeIngest {
		item = h.armory.Ingest(tool, image)
	} else {
		item = h.armory.Preview(tool, image)
	}
	util.WriteJSON(w, http.StatusAccepted, map[string]any{
		"status":           "accepted",
		"mode":             mode,
		"tool_name":        item.ToolName,
		"image_ref":        item.ImageRef,
		"tool_sha256":      item.ToolSHA256,
		"sbom_status":      item.SBOMStatus,
		"vuln_scan_status": item.VulnScanStatus,
		"signature_status": item.SignatureStatus,
	})
}

func (h *Handlers) ArmoryApprove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ToolSHA256 string `json:"tool_sha256"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	approver := "ui-operator"
	if u, ok := middleware.User(r.Context()); ok {
		approver = u.Username
	}
	item, err := h.armory.Approve(req.ToolSHA256, approver)
	switch {
	case errors.Is(err, armory.ErrInvalidDigest):
		util.WriteError(w, http.StatusBadRequest, "invalid_tool_sha256", err.Error(), middleware.RequestID(r.Context()))
		return
	case errors.Is(err, armory.ErrNotFound):
		util.WriteError(w, http.StatusNotFound, "tool_not_found", err.Error(), middleware.RequestID(r.Context()))
		return
	case err != nil:
		util.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error(), middleware.RequestID(r.Context()))
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{"status": "approved", "item": item})
}

func (h *Handlers) ArmoryAuthorized(w http.ResponseWriter, r *http.Request) {
	util.WriteJSON(w, http.StatusOK, map[string]any{"items": h.armory.Authorized()})
}

func (h *Handlers) TelemetryEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	source, status, cursor := q.Get("source"), q.Get("status"), q.Get("cursor")

	upstream := url.Values{}
	if source != "" {
		upstream.Set("source", source)
	}
	if status != "" {
		upstream.Set("status", status)
	}
	if cursor != "" {
		upstream.Set("cursor", cursor)
	}
	upstream.Set("limit", "100")
	if up := h.orch.Forward(r.Context(), http.MethodGet, "/api/v1/telemetry/events?"+upstream.Encode(), nil); up.OK() {
		util.WriteJSON(w, http.StatusOK, up.Body)
		return
	}

	items := make([]telemetryEvent, 0, len(fallbackEvents))
	for _, e := range fallbackEvents {
		if source != "" && e.Source != source {
			continue
		}
		if status != "" && e.Status != status {
			continue
		}
		items = append(items, e)
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{
		"items":       items,
		"next_cursor": nil,
		"mode":        fallbackMode,
	})
}

func (h *Handlers) DefensiveEffectiveness(w http.ResponseWriter, r *http.Request) {
	if up := h.orch.Forward(r.Context(), http.MethodGet, "/api/v1/defensive/effectiveness", nil); up.OK() {
		util.WriteJSON(w, http.StatusOK, up.Body)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{
		"total_events":        240,
		"blocked_events":      101,
		"successful_events":   139,
		"detection_rate":      0.671,
		"prevention_rate":     0.421,
		"feedback_coverage":   0.583,
		"applied_adjustments": 37,
		"mode":                fallbackMode,
	})
}
