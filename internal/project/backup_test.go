package project

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExportAndImportHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports", "history.json")

	runs := []Run{NewRun(sampleResult()), NewRun(sampleResult())}
	if err := ExportHistory(path, runs); err != nil {
		t.Fatalf("ExportHistory failed: %v", err)
	}

	backup, err := ImportHistory(path)
	if err != nil {
		t.Fatalf("ImportHistory failed: %v", err)
	}

	if backup.Version != BackupVersion {
		t.Errorf("expected version %s, got %s", BackupVersion, backup.Version)
	}
	if backup.CreatedAt == "" {
		t.Error("expected non-empty CreatedAt")
	}
	if len(backup.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(backup.Runs))
	}
	if backup.Runs[0].ID != runs[0].ID {
		t.Errorf("expected ID %s, got %s", runs[0].ID, backup.Runs[0].ID)
	}
	if !backup.Runs[0].CreatedAt.Equal(runs[0].CreatedAt) {
		t.Errorf("created_at changed: %s vs %s", backup.Runs[0].CreatedAt, runs[0].CreatedAt)
	}
}

func TestExportHistoryEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")

	if err := ExportHistory(path, nil); err != nil {
		t.Fatalf("ExportHistory failed: %v", err)
	}
	backup, err := ImportHistory(path)
	if err != nil {
		t.Fatalf("ImportHistory failed: %v", err)
	}
	if backup.Runs == nil || len(backup.Runs) != 0 {
		t.Errorf("expected empty, non-nil runs, got %v", backup.Runs)
	}
}

func TestImportHistoryMissingFile(t *testing.T) {
	if _, err := ImportHistory(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestImportHistoryInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ImportHistory(bad); err == nil {
		t.Error("expected error for invalid JSON")
	}

	noVersion := filepath.Join(dir, "noversion.json")
	if err := os.WriteFile(noVersion, []byte(`{"runs": []}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ImportHistory(noVersion); err == nil {
		t.Error("expected error for missing version")
	}
}
