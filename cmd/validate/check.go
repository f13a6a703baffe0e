package main

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jwebster45206/map-engine/pkg/scenario"
)

var validFilenameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)

// checkFile loads and validates one scenario file.
func checkFile(path string, strict bool) (*scenario.Scenario, error) {
	baseName := filepath.Base(path)
	if _, ok := scenario.FormatOf(baseName); !ok {
		return nil, fmt.Errorf("scenario file must have a .json, .yaml or .yml extension: %s", baseName)
	}
	name := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	if !isValidScenarioFilename(name) {
		return nil, fmt.Errorf("scenario filename '%s' must be lowercase snake_case (e.g., forest_trail.json, not forest-trail.json or ForestTrail.json)", baseName)
	}

	s, err := scenario.LoadFile(path, strict)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validation errors in %s: %w", baseName, err)
	}
	return s, nil
}

func isValidScenarioFilename(name string) bool {
	// Allow 'x.' prefix for experimental scenarios
	name = strings.TrimPrefix(name, "x.")
	return validFilenameRegex.MatchString(name)
}
