package db

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/trainer/internal/models"
	"gorm.io/gorm"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		host     string
		port     int
		database string
		contains []string
	}{
		{
			name:     "default local",
			user:     "root",
			host:     "127.0.0.1",
			port:     3306,
			database: "trainer",
			contains: []string{"root@tcp(127.0.0.1:3306)/trainer", "parseTime=true"},
		},
		{
			name:     "custom host and port",
			user:     "trainer",
			host:     "10.0.0.5",
			port:     3307,
			database: "trainer_prod",
			contains: []string{"trainer@tcp(10.0.0.5:3307)/trainer_prod"},
		},
		{
			name:     "ipv6 host",
			user:     "root",
			host:     "::1",
			port:     3306,
			database: "trainer",
			contains: []string{"tcp([::1]:3306)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.user, tt.host, tt.port, tt.database)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("DSN() = %q, want to contain %q", got, want)
				}
			}
		})
	}
}

func TestConnect_Error(t *testing.T) {
	// Port 1 is unlikely to have a MySQL server; expect connection error.
	_, err := Connect("root", "127.0.0.1", 1, "nonexistent")
	if err == nil {
		t.Fatal("expected error connecting to invalid port")
	}
	if !strings.Contains(err.Error(), "db: connect to") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db: connect to")
	}
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	_, err := OpenSQLite("")
	if err == nil {
		t.Fatal("expected error for empty path")
	}
	if !strings.Contains(err.Error(), "path is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "path is required")
	}
}

func TestOpenSQLite_FileAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trainer.db")
	gdb, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	if !gdb.Migrator().HasTable(&models.KVItem{}) {
		t.Error("kv_items table not created")
	}

	// Migration is idempotent.
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("second AutoMigrate: %v", err)
	}
}

func TestAutoMigrate_NilDB(t *testing.T) {
	if err := AutoMigrate(nil); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestAllModels_Count(t *testing.T) {
	models := AllModels()
	if len(models) != 1 {
		t.Errorf("AllModels() returned %d models, want 1", len(models))
	}
}

func TestConnect_Signature(t *testing.T) {
	var fn func(string, string, int, string) (*gorm.DB, error) = Connect
	if fn == nil {
		t.Fatal("Connect function is nil")
	}
}
