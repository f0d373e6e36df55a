package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"spectraconsole/internal/audit"
	"spectraconsole/internal/legal"
)

func setupEnv(t *testing.T, env string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SPECTRASTRIKE_ENV", env)
	t.Setenv("SPECTRASTRIKE_LEGAL_ACCEPTANCE_PATH", filepath.Join(dir, "legal", "acceptance.json"))
	t.Setenv("SPECTRASTRIKE_LEGAL_VERSIONS_PATH", "")
	t.Setenv("AUDIT_DB_DRIVER", "sqlite")
	t.Setenv("AUDIT_DB_PATH", filepath.Join(dir, "audit.db"))
	t.Setenv("MIGRATIONS_DIR", filepath.Join("..", "..", "migrations"))
	t.Setenv("LOG_LEVEL", "error")
}

func TestStatusAcceptAuditFlow(t *testing.T) {
	setupEnv(t, "self-hosted")
	ctx := context.Background()
	var out, errOut bytes.Buffer

	err := run(ctx, []string{"status"}, &out, &errOut)
	var exit *exitError
	if !errors.As(err, &exit) || exit.ExitCode() != 2 {
		t.Fatalf("expected exit code 2 before acceptance, got %v", err)
	}
	var status struct {
		Legal legal.Decision `json:"legal"`
	}
	if err := json.Unmarshal(out.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Legal.IsCompliant || status.Legal.ErrorCode != legal.CodeLegalAcceptanceRequired {
		t.Fatalf("unexpected decision %+v", status.Legal)
	}

	out.Reset()
	if err := run(ctx, []string{"accept", "--by", "alice", "--current", "--installation-id", "inst-1"}, &out, &errOut); err != nil {
		t.Fatalf("accept: %v", err)
	}
	var accepted struct {
		Acceptance legal.AcceptanceRecord `json:"acceptance"`
		Legal      legal.Decision         `json:"legal"`
	}
	if err := json.Unmarshal(out.Bytes(), &accepted); err != nil {
		t.Fatalf("decode accept: %v", err)
	}
	if accepted.Acceptance.InstallationID != "inst-1" || accepted.Acceptance.AcceptedBy != "alice" || !accepted.Legal.IsCompliant {
		t.Fatalf("unexpected accept output %+v", accepted)
	}

	out.Reset()
	if err := run(ctx, []string{"status"}, &out, &errOut); err != nil {
		t.Fatalf("status after accept: %v", err)
	}

	out.Reset()
	if err := run(ctx, []string{"audit", "--limit", "10"}, &out, &errOut); err != nil {
		t.Fatalf("audit: %v", err)
	}
	events := map[string]int{}
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var e audit.Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("decode audit line %q: %v", sc.Text(), err)
		}
		events[e.Event]++
	}
	if events[audit.EventLegalBlocked] < 1 || events[audit.EventLegalRecorded] != 1 || events[audit.EventLegalAllowed] < 2 {
		t.Fatalf("unexpected audit events %v", events)
	}
}

func TestAcceptOutsideSelfHosted(t *testing.T) {
	setupEnv(t, "enterprise")
	var out, errOut bytes.Buffer
	err := run(context.Background(), []string{"accept", "--by", "alice", "--current"}, &out, &errOut)
	if !errors.Is(err, legal.ErrUnsupportedEnvironment) {
		t.Fatalf("expected unsupported environment, got %v", err)
	}
}

func TestAcceptRequiresActor(t *testing.T) {
	setupEnv(t, "self-hosted")
	var out, errOut bytes.Buffer
	err := run(context.Background(), []string{"accept", "--current"}, &out, &errOut)
	var exit *exitError
	if !errors.As(err, &exit) || exit.ExitCode() != 64 {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestVersionsAndUnknownCommand(t *testing.T) {
	setupEnv(t, "self-hosted")
	var out, errOut bytes.Buffer
	if err := run(context.Background(), []string{"versions"}, &out, &errOut); err != nil {
		t.Fatalf("versions: %v", err)
	}
	var v map[string]string
	if err := json.Unmarshal(out.Bytes(), &v); err != nil || v["eula"] != legal.DefaultVersion {
		t.Fatalf("unexpected versions output %s (%v)", out.String(), err)
	}

	err := run(context.Background(), []string{"frobnicate"}, &out, &errOut)
	var exit *exitError
	if !errors.As(err, &exit) || exit.ExitCode() != 64 {
		t.Fatalf("expected usage error, got %v", err)
	}
	if !strings.Contains(errOut.String(), "Usage: legalctl") {
		t.Fatalf("expected usage on stderr")
	}
}
