package migrations

import (
	"database/sql"
	"errors"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	for _, table := range []string{"key_pairs", "access_log", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s was not created: %v", table, err)
		}
	}
}

func TestCheck_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := Check(db); !errors.Is(err, ErrNoSchema) {
		t.Errorf("Check() error = %v, want ErrNoSchema", err)
	}
}

func TestCheck_AfterMigration(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	if err := Check(db); err != nil {
		t.Errorf("Check() after migration returned error: %v", err)
	}

	current, latest, dirty, err := Status(db)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if current != latest || dirty {
		t.Errorf("Status() = current %d latest %d dirty %v", current, latest, dirty)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("first MigrateUp() failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("second MigrateUp() failed: %v (should be idempotent)", err)
	}
}

func TestSchema_AccessLogIsAppendOnly(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`INSERT INTO access_log (id, document_id, actor_id, action, created_at)
		VALUES ('e-1', 'doc-1', 'coe', 'upload', datetime('now'))`)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	tests := []struct {
		name string
		stmt string
	}{
		{name: "update", stmt: "UPDATE access_log SET actor_id = 'mallory' WHERE id = 'e-1'"},
		{name: "delete", stmt: "DELETE FROM access_log WHERE id = 'e-1'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.Exec(tt.stmt)
			if err == nil || !strings.Contains(err.Error(), "append-only") {
				t.Errorf("%s error = %v, want append-only abort", tt.name, err)
			}
		})
	}
}

func TestSchema_AccessLogRejectsUnknownAction(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`INSERT INTO access_log (id, document_id, actor_id, action, created_at)
		VALUES ('e-1', 'doc-1', 'coe', 'delete', datetime('now'))`)
	if err == nil {
		t.Error("insert with unknown action succeeded, want CHECK violation")
	}
}

func TestSchema_KeyPairVersionUnique(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	insert := `INSERT INTO key_pairs (user_id, version, public_key, wrapped_private_key, salt, created_at)
		VALUES ('coe', 1, x'00', x'00', zeroblob(32), datetime('now'))`
	if _, err := db.Exec(insert); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if _, err := db.Exec(insert); err == nil {
		t.Error("duplicate (user_id, version) insert succeeded")
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
