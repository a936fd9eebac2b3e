package database

import (
	"context"
	"strings"
	"testing"

	"github.com/prashanttc/tweetAut/pkg/logging"
)

func TestParseURL(t *testing.T) {
	cases := []struct {
		in      string
		dialect Dialect
		dsn     string
		wantErr bool
	}{
		{in: "postgres://u:p@localhost/db?sslmode=disable", dialect: DialectPostgres, dsn: "postgres://u:p@localhost/db?sslmode=disable"},
		{in: "postgresql://localhost/db", dialect: DialectPostgres, dsn: "postgresql://localhost/db"},
		{in: "sqlite://./tweets.db", dialect: DialectSQLite, dsn: "./tweets.db"},
		{in: "sqlite::memory:", dialect: DialectSQLite, dsn: ":memory:"},
		{in: "file:test.db?cache=shared", dialect: DialectSQLite, dsn: "file:test.db?cache=shared"},
		{in: "tweets.db", dialect: DialectSQLite, dsn: "tweets.db"},
		{in: "", wantErr: true},
		{in: "mysql://localhost/db", wantErr: true},
	}
	for _, tc := range cases {
		dialect, dsn, err := ParseURL(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", tc.in, err)
			continue
		}
		if dialect != tc.dialect || dsn != tc.dsn {
			t.Errorf("%q: got (%s, %s), want (%s, %s)", tc.in, dialect, dsn, tc.dialect, tc.dsn)
		}
	}
}

func TestRebind(t *testing.T) {
	q := "INSERT INTO t (a, b) VALUES ($1, $2) ON CONFLICT DO NOTHING -- '$3' literal"
	got := Rebind(DialectSQLite, "SELECT * FROM t WHERE a = $1 AND b = '$9' AND c = $10")
	if got != "SELECT * FROM t WHERE a = ?1 AND b = '$9' AND c = ?10" {
		t.Fatalf("unexpected rebind: %s", got)
	}
	if Rebind(DialectPostgres, q) != q {
		t.Fatal("postgres queries must pass through unchanged")
	}
}

func TestConnectAndMigrateSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := Connect(ctx, Config{URL: "sqlite::memory:"}, logging.NewDiscardLogger())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	if db.Dialect != DialectSQLite {
		t.Fatalf("expected sqlite dialect, got %s", db.Dialect)
	}
	for i := 0; i < 2; i++ {
		if err := Migrate(ctx, db); err != nil {
			t.Fatalf("migrate pass %d: %v", i+1, err)
		}
	}

	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM used_topics").Scan(&n); err != nil {
		t.Fatalf("query: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty table, got %d rows", n)
	}
}

func TestSchemaPerDialect(t *testing.T) {
	for _, d := range []Dialect{DialectPostgres, DialectSQLite} {
		s, err := Schema(d)
		if err != nil {
			t.Fatalf("%s: %v", d, err)
		}
		if !strings.Contains(s, "dedup_key") {
			t.Fatalf("%s schema missing dedup_key", d)
		}
	}
	if _, err := Schema("oracle"); err == nil {
		t.Fatal("expected error for unknown dialect")
	}
}
