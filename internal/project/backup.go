package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// BackupVersion is written to every history backup.
const BackupVersion = "1.0.0"

// HistoryBackup is the top-level structure of a history export.
type HistoryBackup struct {
	Version   string `json:"version"`
	CreatedAt string `json:"created_at"`
	Runs      []Run  `json:"runs"`
}

// ExportHistory writes runs to a single JSON file at the specified path.
func ExportHistory(exportPath string, runs []Run) error {
	if runs == nil {
		runs = []Run{}
	}
	backup := HistoryBackup{
		Version:   BackupVersion,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Runs:      runs,
	}
	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	dir := filepath.Dir(exportPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	if err := os.WriteFile(exportPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	return nil
}

// ImportHistory reads a history backup written by ExportHistory.
func ImportHistory(importPath string) (HistoryBackup, error) {
	data, err := os.ReadFile(importPath)
	if err != nil {
		return HistoryBackup{}, fmt.Errorf("failed to read history file: %w", err)
	}
	var backup HistoryBackup
	if err := json.Unmarshal(data, &backup); err != nil {
		return HistoryBackup{}, fmt.Errorf("failed to parse history file: %w", err)
	}
	if backup.Version == "" {
		return HistoryBackup{}, fmt.Errorf("invalid history file: missing version field")
	}
	if backup.Runs == nil {
		backup.Runs = []Run{}
	}
	return backup, nil
}
