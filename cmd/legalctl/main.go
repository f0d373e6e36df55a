// legalctl inspects and records legal acceptance for a SpectraStrike
// console installation.
//
//	legalctl status
//	legalctl versions
//	legalctl accept --by alice --current
//	legalctl audit --limit 20
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"spectraconsole/internal/audit"
	"spectraconsole/internal/config"
	"spectraconsole/internal/legal"
	"spectraconsole/internal/logging"
)

// exitError carries a process exit code out of run.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }
func (e *exitError) ExitCode() int { return e.code }

func main() {
	_ = godotenv.Load(".env.local", ".env")
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			if msg := err.Error(); msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stdout)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.NewWithWriter(cfg, stderr)

	var sink audit.Sink
	var sqlSink *audit.SQLSink
	if args[0] != "versions" {
		sqlSink, err = audit.OpenSQLSink(cfg)
		if err != nil {
			return err
		}
		if sqlSink != nil {
			defer sqlSink.Close()
			sink = sqlSink
		}
	}

	versions, err := legal.LoadVersions(cfg.LegalVersionsPath)
	if err != nil {
		return err
	}
	gate := legal.NewGate(cfg, versions, sink, logger)

	switch args[0] {
	case "status":
		return runStatus(ctx, gate, args[1:], stdout)
	case "versions":
		return writeJSON(stdout, gate.RequiredVersions())
	case "accept":
		return runAccept(ctx, gate, args[1:], stdout)
	case "audit":
		return runAudit(ctx, sqlSink, args[1:], stdout)
	default:
		printUsage(stderr)
		return &exitError{code: 64, msg: fmt.Sprintf("unknown command %q", args[0])}
	}
}

func runStatus(ctx context.Context, gate *legal.Gate, args []string, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("legalctl status", pflag.ContinueOnError)
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	d := gate.Hooks().ForCLI(ctx)
	if err := writeJSON(stdout, map[string]any{
		"legal":              d,
		"required_documents": gate.RequiredDocuments(d.Environment),
	}); err != nil {
		return err
	}
	if !d.IsCompliant {
		return &exitError{code: 2, msg: d.Reason}
	}
	return nil
}

func runAccept(ctx context.Context, gate *legal.Gate, args []string, stdout io.Writer) error {
	var eula, aup, privacy, by, installationID string
	var current bool

	flagSet := pflag.NewFlagSet("legalctl accept", pflag.ContinueOnError)
	flagSet.StringVar(&eula, "eula", "", "accepted EULA version")
	flagSet.StringVar(&aup, "aup", "", "accepted acceptable use policy version")
	flagSet.StringVar(&privacy, "privacy", "", "accepted privacy policy version")
	flagSet.StringVar(&by, "by", "", "name of the accepting operator")
	flagSet.StringVar(&installationID, "installation-id", "", "installation identifier (generated when empty)")
	flagSet.BoolVar(&current, "current", false, "accept every currently required version")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	env := gate.DetectEnvironment()
	if env != legal.SelfHosted {
		return fmt.Errorf("%w: acceptance can only be recorded locally for %s, detected %s", legal.ErrUnsupportedEnvironment, legal.SelfHosted, env)
	}
	if strings.TrimSpace(by) == "" {
		return &exitError{code: 64, msg: "--by is required"}
	}

	docs := legal.Versions{}
	if current {
		docs = gate.RequiredVersions()
	}
	for k, v := range map[legal.DocumentKey]string{legal.EULA: eula, legal.AUP: aup, legal.Privacy: privacy} {
		if v = strings.TrimSpace(v); v != "" {
			docs[k] = v
		}
	}
	if len(docs) == 0 {
		return &exitError{code: 64, msg: "nothing to accept: pass --current or document versions"}
	}

	rec, err := gate.RecordSelfHostedAcceptance(ctx, legal.AcceptanceInput{
		AcceptedBy:        by,
		AcceptedDocuments: docs,
		InstallationID:    installationID,
	})
	if err != nil {
		return err
	}
	d := gate.Hooks().ForCLI(ctx)
	return writeJSON(stdout, map[string]any{"acceptance": rec, "legal": d})
}

func runAudit(ctx context.Context, sink *audit.SQLSink, args []string, stdout io.Writer) error {
	var limit, offset int
	flagSet := pflag.NewFlagSet("legalctl audit", pflag.ContinueOnError)
	flagSet.IntVar(&limit, "limit", 50, "maximum entries to print")
	flagSet.IntVar(&offset, "offset", 0, "entries to skip")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if sink == nil {
		return errors.New("audit store disabled (AUDIT_DB_DRIVER=none)")
	}
	entries, err := sink.List(ctx, limit, offset)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: legalctl <command> [flags]

Commands:
  status     print the legal decision for this installation (exit 2 when blocked)
  versions   print the required document versions
  accept     record a self-hosted acceptance
  audit      list legal audit entries
`)
}
