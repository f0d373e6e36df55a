package service

import (
	"regexp"
	"strings"
)

var tenantRx = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]{2,127}$`)

type TaskRequest struct {
	Tool       string         `json:"tool"`
	Target     string         `json:"target"`
	Parameters map[string]any `json:"parameters,omitempty"`
	TenantID   string         `json:"tenant_id"`
}

// NormalizeTask fills the default tenant and validates the task fields.
func (s *Service) NormalizeTask(in TaskRequest) (TaskRequest, error) {
	if strings.TrimSpace(in.TenantID) == "" {
		in.TenantID = s.cfg.DefaultTenantID
	}
	in.TenantID = strings.TrimSpace(in.TenantID)
	if in.Tool == "" || len(in.Tool) > 64 {
		return in, invalid("invalid_tool")
	}
	if in.Target == "" || len(in.Target) > 256 {
		return in, invalid("invalid_target")
	}
	if in.TenantID == "" {
		return in, invalid("tenant_id_required")
	}
	if !tenantRx.MatchString(in.TenantID) {
		return in, invalid("invalid_tenant_id")
	}
	return in, nil
}

type ManualSyncRequest struct {
	Actor              string `json:"actor,omitempty"`
	CheckpointOverride string `json:"checkpoint_override,omitempty"`
}

func ValidateManualSync(in ManualSyncRequest) error {
	if len(in.Actor) > 96 {
		return invalid("invalid_actor")
	}
	return nil
}

type RevokeTenantRequest struct {
	TenantID string `json:"tenant_id"`
}

func ValidateRevokeTenant(in RevokeTenantRequest) (RevokeTenantRequest, error) {
	in.TenantID = strings.TrimSpace(in.TenantID)
	if in.TenantID == "" || len(in.TenantID) > 128 {
		return in, invalid("invalid_tenant_id")
	}
	return in, nil
}

type PolicyApplyRequest struct {
	RegoSource string `json:"rego_source"`
}

// ValidatePolicyApply only checks that the Rego source is not trivially
// short; the policy engine compiles it.
func ValidatePolicyApply(in PolicyApplyRequest) error {
	if len(in.RegoSource) < 12 {
		return invalid("invalid_rego_source")
	}
	return nil
}
