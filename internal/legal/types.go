package legal

import (
	"errors"
	"strings"
	"time"
)

type Environment string

const (
	SelfHosted Environment = "self-hosted"
	Enterprise Environment = "enterprise"
	SaaS       Environment = "saas"
)

// ParseEnvironment reports ok=false for anything other than the three known
// tags. Surrounding whitespace is ignored.
func ParseEnvironment(raw string) (Environment, bool) {
	switch env := Environment(strings.TrimSpace(raw)); env {
	case SelfHosted, Enterprise, SaaS:
		return env, true
	default:
		return "", false
	}
}

type DocumentKey string

const (
	EULA    DocumentKey = "eula"
	AUP     DocumentKey = "aup"
	Privacy DocumentKey = "privacy"
)

// AllDocuments is the canonical iteration order.
var AllDocuments = []DocumentKey{EULA, AUP, Privacy}

func (k DocumentKey) Valid() bool {
	return k == EULA || k == AUP || k == Privacy
}

// Versions maps a document to a version string. A required table always
// carries every key; an accepted snapshot may hold a subset.
type Versions map[DocumentKey]string

func (v Versions) clone() Versions {
	out := make(Versions, len(v))
	for k, val := range v {
		if k.Valid() && val != "" {
			out[k] = val
		}
	}
	return out
}

type AcceptanceRecord struct {
	Environment       Environment `json:"environment"`
	InstallationID    string      `json:"installation_id,omitempty"`
	AcceptedDocuments Versions    `json:"accepted_documents"`
	AcceptedAt        time.Time   `json:"accepted_at"`
	AcceptedBy        string      `json:"accepted_by,omitempty"`
}

const CodeLegalAcceptanceRequired = "LEGAL_ACCEPTANCE_REQUIRED"

// Decision is computed per call and never cached.
type Decision struct {
	Environment          Environment `json:"environment"`
	IsCompliant          bool        `json:"isCompliant"`
	ErrorCode            string      `json:"errorCode,omitempty"`
	Reason               string      `json:"reason,omitempty"`
	RequiredVersions     Versions    `json:"required_versions"`
	AcceptedVersions     Versions    `json:"accepted_versions"`
	RequiresReacceptance bool        `json:"requires_reacceptance"`
}

var (
	ErrLegalAcceptanceRequired = errors.New("legal acceptance required")
	ErrUnsupportedEnvironment  = errors.New("legal acceptance writes are only handled locally for self-hosted mode")
	// ErrAcceptanceLoaderNotImplemented marks environments whose acceptance
	// records live in an external system this process cannot read yet.
	ErrAcceptanceLoaderNotImplemented = errors.New("acceptance loader not implemented for environment")
)

// AcceptanceRequiredError carries the blocking decision. It matches
// ErrLegalAcceptanceRequired under errors.Is.
type AcceptanceRequiredError struct {
	Decision Decision
}

func (e *AcceptanceRequiredError) Error() string {
	if e.Decision.Reason == "" {
		return "legal acceptance is required"
	}
	return e.Decision.Reason
}

func (e *AcceptanceRequiredError) Is(target error) bool {
	return target == ErrLegalAcceptanceRequired
}
