package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"spectraconsole/internal/config"
	"spectraconsole/internal/db"
)

// SQLSink writes entries to the legal_audit_log table created by
// migrations/001_legal_audit.sql.
type SQLSink struct {
	db     *sql.DB
	driver string
}

func NewSQLSink(db *sql.DB, driver string) *SQLSink {
	return &SQLSink{db: db, driver: driver}
}

// OpenSQLSink connects the configured audit database and applies the
// migrations. It returns nil when AUDIT_DB_DRIVER is "none".
func OpenSQLSink(cfg config.Config) (*SQLSink, error) {
	if cfg.AuditDBDriver == "none" {
		return nil, nil
	}
	conn, err := db.Open(cfg.AuditDBDriver, cfg.AuditDBDSN, cfg.AuditDBPath)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if err := db.ApplyMigrationsDir(conn, cfg.MigrationsDir); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("audit migrations: %w", err)
	}
	return NewSQLSink(conn, cfg.AuditDBDriver), nil
}

func (s *SQLSink) Close() error {
	return s.db.Close()
}

func (s *SQLSink) Append(ctx context.Context, e Entry) error {
	e = Stamp(e)
	meta := "{}"
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		meta = string(raw)
	}
	q := fmt.Sprintf(
		`INSERT INTO legal_audit_log(id,event,environment,reason,actor,metadata_json,created_at) VALUES(%s)`,
		s.placeholders(7),
	)
	_, err := s.db.ExecContext(ctx, q, e.ID, e.Event, e.Environment, e.Reason, e.Actor, meta, e.At.UTC())
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List returns the newest entries first.
func (s *SQLSink) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	q := fmt.Sprintf(
		`SELECT id,event,environment,reason,actor,metadata_json,created_at FROM legal_audit_log ORDER BY created_at DESC LIMIT %s OFFSET %s`,
		s.ph(1), s.ph(2),
	)
	rows, err := s.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var reason, actor, meta sql.NullString
		if err := rows.Scan(&e.ID, &e.Event, &e.Environment, &reason, &actor, &meta, &e.At); err != nil {
			return nil, err
		}
		e.Reason, e.Actor = reason.String, actor.String
		if meta.Valid && meta.String != "" && meta.String != "{}" {
			if err := json.Unmarshal([]byte(meta.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata %s: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLSink) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLSink) ph(i int) string {
	d := strings.ToLower(s.driver)
	if strings.Contains(d, "pgx") || strings.Contains(d, "postgres") {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

func (s *SQLSink) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = s.ph(i + 1)
	}
	return strings.Join(parts, ",")
}
