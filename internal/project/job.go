// Package project persists user data: saved jobs, the run history database
// and JSON backups of that history.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/piwi3910/CutYield/internal/model"
)

// SaveJob persists a Job to the given path as JSON.
// It creates any missing parent directories automatically.
func SaveJob(path string, job model.Job) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create job directory: %w", err)
	}
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadJob reads a Job from the given path and validates it, so a loaded job
// can go straight to the optimizer.
func LoadJob(path string) (model.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Job{}, fmt.Errorf("failed to read job file: %w", err)
	}
	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return model.Job{}, fmt.Errorf("failed to parse job file: %w", err)
	}
	if job.Pieces == nil {
		job.Pieces = []model.PieceSpec{}
	}
	if err := job.Validate(); err != nil {
		return model.Job{}, fmt.Errorf("invalid job %s: %w", filepath.Base(path), err)
	}
	return job, nil
}
