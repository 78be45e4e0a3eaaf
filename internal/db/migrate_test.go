package db

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestMigrateCreatesAllTables(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, table := range []string{"users", "frames", "pixels", "pixel_history", "snapshots", "quota_states", "frame_permissions"} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}
}

func TestMigratePixelCoordinateIndexIsUnique(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	if !conn.Migrator().HasIndex("pixels", "idx_pixels_frame_coord") {
		t.Fatalf("pixels missing coordinate index")
	}

	if errExec := conn.Exec(
		"INSERT INTO pixels (frame_id, x, y, color, contributor, placed_at, seq) VALUES (1, 5, 5, 4278190080, 'a', '2026-01-01', 1)",
	).Error; errExec != nil {
		t.Fatalf("insert pixel: %v", errExec)
	}
	errDup := conn.Exec(
		"INSERT INTO pixels (frame_id, x, y, color, contributor, placed_at, seq) VALUES (1, 5, 5, 4278190080, 'b', '2026-01-02', 2)",
	).Error
	if errDup == nil {
		t.Fatalf("duplicate coordinate insert should violate unique index")
	}
}

func TestDetectDialectFromDSN(t *testing.T) {
	cases := []struct {
		dsn  string
		want string
	}{
		{"postgres://u:p@localhost/db", DialectPostgres},
		{"host=localhost user=pf dbname=pixelframe", DialectPostgres},
		{"pixelframe.db", DialectSQLite},
		{"file:pixelframe.db?mode=memory", DialectSQLite},
		{"sqlite://data/pixelframe.db", DialectSQLite},
	}
	for _, tc := range cases {
		got, errDetect := detectDialectFromDSN(tc.dsn)
		if errDetect != nil {
			t.Fatalf("detect %q: %v", tc.dsn, errDetect)
		}
		if got != tc.want {
			t.Fatalf("detect %q = %s, want %s", tc.dsn, got, tc.want)
		}
	}
}
