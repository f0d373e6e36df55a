// Package legal decides whether the current deployment has accepted the
// required versions of the EULA, AUP and privacy policy.
package legal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"spectraconsole/internal/audit"
	"spectraconsole/internal/config"
)

const reasonNoRecord = "no acceptance record found"

type Gate struct {
	env              Environment
	requirePerUser   bool
	acceptancePath   string
	requiredVersions Versions
	sink             audit.Sink
	logger           *slog.Logger
	now              func() time.Time

	writeMu sync.Mutex
}

// NewGate builds a gate from the startup config. A nil versions table means
// DefaultVersions.
func NewGate(cfg config.Config, versions Versions, sink audit.Sink, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	if versions == nil {
		versions = DefaultVersions()
	}
	env, ok := ParseEnvironment(cfg.DeploymentEnv)
	if !ok {
		if strings.TrimSpace(cfg.DeploymentEnv) != "" {
			logger.Warn("unknown deployment environment, falling back", "value", cfg.DeploymentEnv, "environment", SelfHosted)
		}
		env = SelfHosted
	}
	return &Gate{
		env:              env,
		requirePerUser:   cfg.EnterpriseRequirePerUserAcceptance,
		acceptancePath:   cfg.LegalAcceptancePath,
		requiredVersions: versions.clone(),
		sink:             sink,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (g *Gate) DetectEnvironment() Environment { return g.env }

func (g *Gate) RequiredVersions() Versions { return g.requiredVersions.clone() }

// RequiredDocuments returns the documents env must have accepted, in
// canonical order. Self-hosted never requires privacy individually.
func (g *Gate) RequiredDocuments(env Environment) []DocumentKey {
	switch {
	case env == SaaS:
		return []DocumentKey{EULA, AUP, Privacy}
	case env == Enterprise && g.requirePerUser:
		return []DocumentKey{EULA, AUP, Privacy}
	default:
		return []DocumentKey{EULA, AUP}
	}
}

type EvaluateOptions struct {
	// Environment defaults to DetectEnvironment.
	Environment Environment
	// Record overrides the stored acceptance record when non-nil.
	Record *AcceptanceRecord
}

func (g *Gate) Evaluate(ctx context.Context, opts EvaluateOptions) Decision {
	env := opts.Environment
	if env == "" {
		env = g.env
	}
	required := g.RequiredDocuments(env)

	record := opts.Record
	var loadErr error
	if record == nil {
		record, loadErr = g.loadAcceptance(env)
	}

	d := Decision{
		Environment:      env,
		RequiredVersions: g.requiredVersions.clone(),
		AcceptedVersions: Versions{},
	}

	if record == nil {
		d.ErrorCode = CodeLegalAcceptanceRequired
		d.Reason = reasonNoRecord
		d.RequiresReacceptance = true
		meta := map[string]string{}
		if loadErr != nil {
			meta["load_error"] = loadErr.Error()
		}
		g.record(ctx, audit.Entry{Event: audit.EventLegalBlocked, Environment: string(env), Reason: d.Reason, Metadata: meta})
		return d
	}

	d.AcceptedVersions = record.AcceptedDocuments.clone()
	var stale []string
	for _, doc := range required {
		if d.AcceptedVersions[doc] != g.requiredVersions[doc] {
			stale = append(stale, string(doc))
		}
	}
	if len(stale) > 0 {
		d.ErrorCode = CodeLegalAcceptanceRequired
		d.Reason = "outdated acceptance for " + strings.Join(stale, ",")
		d.RequiresReacceptance = true
		g.record(ctx, audit.Entry{
			Event:       audit.EventLegalBlocked,
			Environment: string(env),
			Reason:      d.Reason,
			Metadata:    map[string]string{"stale_documents": strings.Join(stale, ",")},
		})
		return d
	}

	d.IsCompliant = true
	g.record(ctx, audit.Entry{
		Event:       audit.EventLegalAllowed,
		Environment: string(env),
		Actor:       record.AcceptedBy,
		Metadata:    map[string]string{"accepted_at": record.AcceptedAt.UTC().Format(time.RFC3339)},
	})
	return d
}

// AssertEnforced returns an *AcceptanceRequiredError when the decision is
// not compliant.
func (g *Gate) AssertEnforced(ctx context.Context, opts EvaluateOptions) error {
	d := g.Evaluate(ctx, opts)
	if !d.IsCompliant {
		return &AcceptanceRequiredError{Decision: d}
	}
	return nil
}

type AcceptanceInput struct {
	AcceptedBy        string
	AcceptedDocuments Versions
	InstallationID    string
}

// RecordSelfHostedAcceptance overwrites the stored record with in. Documents
// accepted earlier but missing from in are not carried over.
func (g *Gate) RecordSelfHostedAcceptance(ctx context.Context, in AcceptanceInput) (AcceptanceRecord, error) {
	installationID := strings.TrimSpace(in.InstallationID)
	if installationID == "" {
		installationID = uuid.NewString()
	}
	rec := AcceptanceRecord{
		Environment:       SelfHosted,
		InstallationID:    installationID,
		AcceptedDocuments: in.AcceptedDocuments.clone(),
		AcceptedAt:        g.now(),
		AcceptedBy:        strings.TrimSpace(in.AcceptedBy),
	}

	g.writeMu.Lock()
	err := writeJSONAtomic(g.acceptancePath, rec, 0o600)
	g.writeMu.Unlock()
	if err != nil {
		return AcceptanceRecord{}, fmt.Errorf("persist legal acceptance: %w", err)
	}

	g.record(ctx, audit.Entry{
		Event:       audit.EventLegalRecorded,
		Environment: string(SelfHosted),
		Actor:       rec.AcceptedBy,
		Metadata:    map[string]string{"installation_id": rec.InstallationID},
		At:          rec.AcceptedAt,
	})
	return rec, nil
}

// Hooks are the named entry points for each caller class. They behave the
// same today.
type Hooks struct {
	ForCLI            func(ctx context.Context) Decision
	ForWebUI          func(ctx context.Context) Decision
	ForAuthMiddleware func(ctx context.Context) Decision
	ForRBAC           func(ctx context.Context) Decision
}

func (g *Gate) Hooks() Hooks {
	detected := func(ctx context.Context) Decision {
		return g.Evaluate(ctx, EvaluateOptions{Environment: g.DetectEnvironment()})
	}
	return Hooks{
		ForCLI:            detected,
		ForWebUI:          detected,
		ForAuthMiddleware: detected,
		ForRBAC:           detected,
	}
}

// LoadSelfHostedAcceptance returns nil without error when nothing usable is
// stored.
func (g *Gate) LoadSelfHostedAcceptance() (*AcceptanceRecord, error) {
	var rec AcceptanceRecord
	if err := readJSONFile(g.acceptancePath, &rec); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if rec.Environment != SelfHosted || rec.AcceptedDocuments == nil {
		return nil, nil
	}
	return &rec, nil
}

func (g *Gate) loadAcceptance(env Environment) (*AcceptanceRecord, error) {
	if env != SelfHosted {
		return nil, fmt.Errorf("%w: %s", ErrAcceptanceLoaderNotImplemented, env)
	}
	rec, err := g.LoadSelfHostedAcceptance()
	if err != nil {
		g.logger.Warn("unreadable legal acceptance record", "path", g.acceptancePath, "err", err)
		return nil, err
	}
	return rec, nil
}

func (g *Gate) record(ctx context.Context, e audit.Entry) {
	if g.sink == nil {
		return
	}
	if e.At.IsZero() {
		e.At = g.now()
	}
	if err := g.sink.Append(ctx, audit.Stamp(e)); err != nil {
		g.logger.Error("legal audit append failed", "event", e.Event, "err", err)
	}
}
