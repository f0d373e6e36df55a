// Package armory tracks tool images submitted for approval. Items live in
// memory for the life of the process.
package armory

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound      = errors.New("tool not found")
	ErrInvalidDigest = errors.New("invalid tool digest")
)

const (
	ModeDryRun = "dry_run"
	ModeIngest = "ingest"
)

type Item struct {
	ToolName        string     `json:"tool_name"`
	ImageRef        string     `json:"image_ref"`
	ToolSHA256      string     `json:"tool_sha256"`
	SBOMStatus      string     `json:"sbom_status"`
	VulnScanStatus  string     `json:"vuln_scan_status"`
	SignatureStatus string     `json:"signature_status"`
	Authorized      bool       `json:"authorized"`
	ApprovedBy      string     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type Registry struct {
	mu    sync.Mutex
	items []Item
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{now: func() time.Time { return time.Now().UTC() }}
}

// Digest is "sha256:" followed by the hex SHA-256 of "tool:image".
func Digest(toolName, imageRef string) string {
	sum := sha256.Sum256([]byte(toolName + ":" + imageRef))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Preview builds the item an ingest would store without storing it.
func (r *Registry) Preview(toolName, imageRef string) Item {
	return Item{
		ToolName:        toolName,
		ImageRef:        imageRef,
		ToolSHA256:      Digest(toolName, imageRef),
		SBOMStatus:      "queued",
		VulnScanStatus:  "queued",
		SignatureStatus: "pending_approval",
		CreatedAt:       r.now(),
	}
}

// Ingest stores a pending item, replacing any previous item with the same
// digest.
func (r *Registry) Ingest(toolName, imageRef string) Item {
	item := r.Preview(toolName, imageRef)
	item.SBOMStatus = "completed"
	item.VulnScanStatus = "completed"

	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.items[:0]
	for _, it := range r.items {
		if it.ToolSHA256 != item.ToolSHA256 {
			kept = append(kept, it)
		}
	}
	r.items = append(kept, item)
	return item
}

func (r *Registry) Approve(digest, approver string) (Item, error) {
	digest = strings.TrimSpace(digest)
	if !strings.HasPrefix(digest, "sha256:") {
		return Item{}, ErrInvalidDigest
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ToolSHA256 != digest {
			continue
		}
		at := r.now()
		r.items[i].SignatureStatus = "approved"
		r.items[i].Authorized = true
		r.items[i].ApprovedBy = approver
		r.items[i].ApprovedAt = &at
		return r.items[i], nil
	}
	return Item{}, ErrNotFound
}

func (r *Registry) Authorized() []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Item, 0, len(r.items))
	for _, it := range r.items {
		if it.Authorized {
			out = append(out, it)
		}
	}
	return out
}
