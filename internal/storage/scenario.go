package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwebster45206/map-engine/pkg/scenario"
	"github.com/jwebster45206/map-engine/pkg/storage"
)

func (r *RedisStorage) scenariosDir() string {
	return filepath.Join(r.dataDir, "scenarios")
}

// ListScenarios maps scenario names to filenames. Files that fail to
// decode are logged and skipped.
func (r *RedisStorage) ListScenarios(ctx context.Context) (map[string]string, error) {
	scenarios := make(map[string]string)

	err := filepath.WalkDir(r.scenariosDir(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := scenario.FormatOf(path); !ok {
			return nil
		}

		s, err := scenario.LoadFile(path, false)
		if err != nil {
			r.logger.Warn("Failed to load scenario file", "path", path, "error", err)
			return nil
		}
		scenarios[s.Name] = filepath.Base(path)
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to walk scenarios directory", "error", err)
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	return scenarios, nil
}

// GetScenario loads a scenario by filename from DATA_DIR/scenarios.
func (r *RedisStorage) GetScenario(ctx context.Context, filename string) (*scenario.Scenario, error) {
	if filename == "" || strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		return nil, fmt.Errorf("%w: invalid filename %q", storage.ErrScenarioNotFound, filename)
	}
	path := filepath.Join(r.scenariosDir(), filename)
	r.logger.Debug("Loading scenario", "filename", filename, "full_path", path)

	s, err := scenario.LoadFile(path, false)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", storage.ErrScenarioNotFound, filename)
		}
		return nil, fmt.Errorf("failed to load scenario: %w", err)
	}
	return s, nil
}
