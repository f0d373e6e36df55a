package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is built once at startup and handed to every component by value.
type Config struct {
	ListenAddr string

	HTTPReadTimeoutSec       int
	HTTPReadHeaderTimeoutSec int
	HTTPWriteTimeoutSec      int
	HTTPIdleTimeoutSec       int
	HTTPShutdownTimeoutSec   int

	LogLevel  string
	LogFormat string

	DeploymentEnv                      string
	EnterpriseRequirePerUserAcceptance bool
	LegalAcceptancePath                string
	LegalVersionsPath                  string

	AllowedOrigins []string
	CookieSecure   bool

	BootstrapUsername string
	BootstrapPassword string
	BootstrapFullName string
	BootstrapEmail    string

	DemoEnabled  bool
	DemoUsername string
	DemoPassword string
	DemoFullName string
	DemoEmail    string

	RegistrationToken string

	OrchestratorBaseURL    string
	OrchestratorTimeoutSec int
	DefaultTenantID        string

	AuditDBDriver string
	AuditDBDSN    string
	AuditDBPath   string
	MigrationsDir string
}

const maxOrchestratorTimeoutSec = 5

func Load() (Config, error) {
	cfg := Config{
		ListenAddr:                         env("LISTEN_ADDR", ":8080"),
		HTTPReadTimeoutSec:                 envInt("HTTP_READ_TIMEOUT_SEC", 10),
		HTTPReadHeaderTimeoutSec:           envInt("HTTP_READ_HEADER_TIMEOUT_SEC", 5),
		HTTPWriteTimeoutSec:                envInt("HTTP_WRITE_TIMEOUT_SEC", 30),
		HTTPIdleTimeoutSec:                 envInt("HTTP_IDLE_TIMEOUT_SEC", 60),
		HTTPShutdownTimeoutSec:             envInt("HTTP_SHUTDOWN_TIMEOUT_SEC", 15),
		LogLevel:                           strings.ToLower(env("LOG_LEVEL", "info")),
		LogFormat:                          strings.ToLower(env("LOG_FORMAT", "json")),
		DeploymentEnv:                      strings.TrimSpace(os.Getenv("SPECTRASTRIKE_ENV")),
		EnterpriseRequirePerUserAcceptance: envBool("SPECTRASTRIKE_ENTERPRISE_REQUIRE_PER_USER_ACCEPTANCE", false),
		LegalAcceptancePath:                env("SPECTRASTRIKE_LEGAL_ACCEPTANCE_PATH", ".spectrastrike/legal/acceptance.json"),
		LegalVersionsPath:                  env("SPECTRASTRIKE_LEGAL_VERSIONS_PATH", ""),
		AllowedOrigins:                     envCSV("UI_ALLOWED_ORIGINS", "https://localhost:18443"),
		CookieSecure:                       envBool("UI_AUTH_COOKIE_SECURE", true),
		BootstrapUsername:                  env("UI_AUTH_BOOTSTRAP_USERNAME", "operator"),
		BootstrapPassword:                  env("UI_AUTH_BOOTSTRAP_PASSWORD", "Operator!ChangeMe123"),
		BootstrapFullName:                  env("UI_AUTH_BOOTSTRAP_FULL_NAME", "Default Operator"),
		BootstrapEmail:                     env("UI_AUTH_BOOTSTRAP_EMAIL", "operator@spectrastrike.local"),
		DemoEnabled:                        envBool("UI_AUTH_ENABLE_DEMO_LOGIN", true),
		DemoUsername:                       env("UI_AUTH_DEMO_USERNAME", "demo_operator"),
		DemoPassword:                       env("UI_AUTH_DEMO_PASSWORD", ""),
		DemoFullName:                       env("UI_AUTH_DEMO_FULL_NAME", "Demo Operator"),
		DemoEmail:                          env("UI_AUTH_DEMO_EMAIL", "demo@spectrastrike.local"),
		RegistrationToken:                  strings.TrimSpace(os.Getenv("UI_AUTH_REGISTRATION_TOKEN")),
		OrchestratorBaseURL:                strings.TrimRight(strings.TrimSpace(os.Getenv("ORCHESTRATOR_API_BASE_URL")), "/"),
		OrchestratorTimeoutSec:             envInt("ORCHESTRATOR_TIMEOUT_SEC", maxOrchestratorTimeoutSec),
		DefaultTenantID:                    strings.TrimSpace(os.Getenv("SPECTRASTRIKE_TENANT_ID")),
		AuditDBDriver:                      strings.ToLower(env("AUDIT_DB_DRIVER", "sqlite")),
		AuditDBDSN:                         env("AUDIT_DB_DSN", ""),
		AuditDBPath:                        env("AUDIT_DB_PATH", "./data/audit.db"),
		MigrationsDir:                      env("MIGRATIONS_DIR", "migrations"),
	}

	if cfg.HTTPReadTimeoutSec <= 0 || cfg.HTTPReadHeaderTimeoutSec <= 0 || cfg.HTTPWriteTimeoutSec <= 0 || cfg.HTTPIdleTimeoutSec <= 0 {
		return Config{}, fmt.Errorf("http timeouts must be positive")
	}
	if cfg.HTTPShutdownTimeoutSec <= 0 {
		return Config{}, fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT_SEC must be positive")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return Config{}, fmt.Errorf("LOG_FORMAT must be one of: json, text")
	}
	if strings.TrimSpace(cfg.LegalAcceptancePath) == "" {
		return Config{}, fmt.Errorf("SPECTRASTRIKE_LEGAL_ACCEPTANCE_PATH must not be empty")
	}
	if len(strings.TrimSpace(cfg.BootstrapUsername)) < 3 {
		return Config{}, fmt.Errorf("UI_AUTH_BOOTSTRAP_USERNAME must be at least 3 characters")
	}
	if len(cfg.BootstrapPassword) < 8 {
		return Config{}, fmt.Errorf("UI_AUTH_BOOTSTRAP_PASSWORD must be at least 8 characters")
	}
	if cfg.DemoPassword != "" && len(cfg.DemoPassword) < 8 {
		return Config{}, fmt.Errorf("UI_AUTH_DEMO_PASSWORD must be at least 8 characters")
	}
	if !cfg.CookieSecure && !isLocalListen(cfg.ListenAddr) {
		return Config{}, fmt.Errorf("UI_AUTH_COOKIE_SECURE=false is allowed only for local listen addresses")
	}
	if cfg.OrchestratorBaseURL != "" {
		u, err := url.Parse(cfg.OrchestratorBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return Config{}, fmt.Errorf("ORCHESTRATOR_API_BASE_URL must be an absolute http(s) URL")
		}
	}
	if cfg.OrchestratorTimeoutSec <= 0 || cfg.OrchestratorTimeoutSec > maxOrchestratorTimeoutSec {
		return Config{}, fmt.Errorf("ORCHESTRATOR_TIMEOUT_SEC must be between 1 and %d", maxOrchestratorTimeoutSec)
	}
	switch cfg.AuditDBDriver {
	case "sqlite":
		if strings.TrimSpace(cfg.AuditDBPath) == "" {
			return Config{}, fmt.Errorf("AUDIT_DB_PATH is required for the sqlite audit store")
		}
	case "mysql", "pgx":
		if strings.TrimSpace(cfg.AuditDBDSN) == "" {
			return Config{}, fmt.Errorf("AUDIT_DB_DSN is required when AUDIT_DB_DRIVER=%s", cfg.AuditDBDriver)
		}
	case "none":
	default:
		return Config{}, fmt.Errorf("AUDIT_DB_DRIVER must be one of: sqlite, mysql, pgx, none")
	}
	return cfg, nil
}

func (c Config) OrchestratorTimeout() time.Duration {
	return time.Duration(c.OrchestratorTimeoutSec) * time.Second
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.HTTPShutdownTimeoutSec) * time.Second
}

func env(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return d
	}
	return b
}

func envCSV(k, d string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		v = d
	}
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isLocalListen(addr string) bool {
	a := strings.ToLower(strings.TrimSpace(addr))
	return strings.Contains(a, "127.0.0.1") || strings.Contains(a, "localhost") || strings.Contains(a, "[::1]") || strings.HasPrefix(a, ":")
}
