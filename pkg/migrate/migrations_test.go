package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paperhouse/warehouse-backend/pkg/migrate"
)

func TestMigrationDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("migration dir failed validation: %v", err)
	}
}

func TestMaterialsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_materials_and_movements.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS materials",
		"CREATE TABLE IF NOT EXISTS stock_movements",
		"CHECK (quantity >= 0)",
		"REFERENCES warehouses(id)",
		"DROP TABLE IF EXISTS stock_movements",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestInvoicesMigrationEnforcesOnePerOrder(t *testing.T) {
	content := readMigration(t, "*_create_orders_and_invoices.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE TABLE IF NOT EXISTS invoices",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_invoices_order_id ON invoices (order_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_order_number",
		"ON DELETE CASCADE",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOutboxMigrationIndexesUnpublished(t *testing.T) {
	content := readMigration(t, "*_create_outbox_events.sql")

	if !strings.Contains(content, "WHERE published_at IS NULL") {
		t.Error("expected partial index on unpublished events")
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matches %q", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
