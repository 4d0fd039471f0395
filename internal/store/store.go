// Package store persists workflow project state as YAML files.
//
// Each project is a single file <dir>/<project-id>.yaml holding the original
// requirement and the latest result for every completed stage. Only those
// two fields are persisted: the current stage and status are derived on
// resume, never stored, so a partially written run can never diverge from
// its result set.
//
// Writes are atomic (temp file + rename) so a reader resuming mid-write
// always observes a consistent record.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"agentflow/internal/engine"
)

// record is the on-disk shape of one project. Stage results are kept as an
// ordered list for stable, diff-friendly files.
type record struct {
	Requirement string               `yaml:"requirement"`
	Stages      []engine.StageResult `yaml:"stages"`
}

// FileStore implements [engine.ProjectStore] on a directory of YAML files.
//
// Use [NewFileStore] to create one. The directory is created on first save.
type FileStore struct {
	dir string
}

// NewFileStore creates a [FileStore] rooted at the given directory.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Load reads a project's requirement and stage results.
//
// Returns [engine.ErrNotFound] when no file exists for the project.
func (s *FileStore) Load(projectID string) (string, map[int]engine.StageResult, error) {
	path, err := s.path(projectID)
	if err != nil {
		return "", nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("%w: %s", engine.ErrNotFound, projectID)
		}
		return "", nil, fmt.Errorf("failed to read project %s: %w", projectID, err)
	}

	var rec record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return "", nil, fmt.Errorf("failed to parse project %s: %w", projectID, err)
	}

	results := make(map[int]engine.StageResult, len(rec.Stages))
	for _, result := range rec.Stages {
		results[result.Stage] = result
	}
	return rec.Requirement, results, nil
}

// Save persists a project's requirement and stage results, replacing any
// previous record. Save is idempotent and last-write-wins per stage key.
func (s *FileStore) Save(projectID, requirement string, results map[int]engine.StageResult) error {
	path, err := s.path(projectID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	positions := make([]int, 0, len(results))
	for position := range results {
		positions = append(positions, position)
	}
	sort.Ints(positions)

	rec := record{Requirement: requirement}
	for _, position := range positions {
		rec.Stages = append(rec.Stages, results[position])
	}

	data, err := yaml.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("failed to marshal project %s: %w", projectID, err)
	}

	// Write to a temp file then rename so readers never see a torn record.
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write project %s: %w", projectID, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write project %s: %w", projectID, err)
	}
	return nil
}

// path maps a project id to its file, rejecting ids that would escape the
// store directory.
func (s *FileStore) path(projectID string) (string, error) {
	if projectID == "" || strings.ContainsAny(projectID, `/\`) || projectID != filepath.Base(projectID) {
		return "", fmt.Errorf("invalid project id: %q", projectID)
	}
	return filepath.Join(s.dir, projectID+".yaml"), nil
}
