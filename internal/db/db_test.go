package db

import (
	"strings"
	"testing"
)

func TestMySQLDSNForcesParseTime(t *testing.T) {
	got, err := mysqlDSN("audit:secret@tcp(db.internal:3306)/console")
	if err != nil {
		t.Fatalf("mysqlDSN: %v", err)
	}
	if !strings.Contains(got, "parseTime=true") || !strings.HasPrefix(got, "audit:secret@tcp(db.internal:3306)/console") {
		t.Fatalf("unexpected dsn %q", got)
	}

	got, err = mysqlDSN("audit:secret@tcp(db.internal:3306)/console?parseTime=false")
	if err != nil || !strings.Contains(got, "parseTime=true") {
		t.Fatalf("expected parseTime to be forced on, got %q (%v)", got, err)
	}

	if _, err := mysqlDSN("audit:secret@tcp(db.internal:3306)console"); err == nil {
		t.Fatalf("expected malformed dsn to be rejected")
	}
}
