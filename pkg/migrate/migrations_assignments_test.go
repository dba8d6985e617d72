package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAssignmentsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_assignments.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no assignments migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS restaurant_assignments",
		"ux_restaurant_assignments_one_accepted",
		"WHERE status = 'accepted'",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		"CHECK (distance_km >= 0)",
		"DROP TABLE IF EXISTS restaurant_assignments",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestSyncQueueMigrationContainsIndexes(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_sync_queue.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no sync queue migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS sync_queue_entries",
		"ix_sync_queue_pending",
		"WHERE status = 'pending'",
		"ix_sync_queue_resource",
		"DROP TABLE IF EXISTS sync_queue_entries",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
