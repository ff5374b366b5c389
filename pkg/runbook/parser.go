package runbook

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// LoadFile parses a single YAML file and returns a validated Runbook.
func LoadFile(path string) (*Runbook, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, NewParseError(path, fmt.Sprintf("cannot read file: %v", err))
	}

	// Reject non-mapping top-level documents before decoding into the
	// struct, which would silently accept scalars.
	var probe map[string]any
	if err := yaml.Unmarshal(raw, &probe); err != nil {
		return nil, NewParseError(path, fmt.Sprintf("invalid YAML: %v", err))
	}
	if probe == nil {
		return nil, NewParseError(path, "top-level value must be a YAML mapping")
	}

	var rb Runbook
	if err := yaml.Unmarshal(raw, &rb); err != nil {
		return nil, NewParseError(path, fmt.Sprintf("invalid YAML: %v", err))
	}
	if err := rb.validate(); err != nil {
		return nil, NewParseError(path, err.Error())
	}

	rb.SourcePath = path
	return &rb, nil
}

// LoadDirectory loads all *.yaml and *.yml files from a directory. Files
// that fail to parse are skipped with a logged warning; the caller receives
// only the successfully parsed runbooks.
func LoadDirectory(dir string) ([]*Runbook, error) {
	paths, err := ListRunbooks(dir)
	if err != nil {
		return nil, err
	}

	var runbooks []*Runbook
	for _, path := range paths {
		rb, err := LoadFile(path)
		if err != nil {
			var parseErr *ParseError
			if errors.As(err, &parseErr) {
				slog.Warn("skipping runbook", "file", filepath.Base(path), "reason", parseErr.Reason)
				continue
			}
			return nil, err
		}
		runbooks = append(runbooks, rb)
	}
	return runbooks, nil
}

// ListRunbooks returns the YAML file paths in a directory without parsing
// them. Sorted *.yaml first, then sorted *.yml.
func ListRunbooks(dir string) ([]string, error) {
	yamls, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("listing runbooks in %s: %w", dir, err)
	}
	ymls, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("listing runbooks in %s: %w", dir, err)
	}
	sort.Strings(yamls)
	sort.Strings(ymls)
	return append(yamls, ymls...), nil
}
