// Package config holds the run configuration: the file
// match glob, the extra-field patterns, and the delivery
// settings. Configuration problems are fatal and are
// surfaced here, before any file is scanned.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	json "github.com/goccy/go-json"
	"github.com/goccy/go-yaml"

	"github.com/byte4ever/autoupdater/updater/pattern"
)

// DefaultFileMatch selects compose files anywhere in the
// tree.
const DefaultFileMatch = "**/docker-compose.y*ml"

// DefaultBranchPrefix prefixes digest-named delivery
// branches.
const DefaultBranchPrefix = "autoupdater/"

// DefaultPRTitle is the fasttemplate used for PR titles.
// Available variables: {count}, {files}.
const DefaultPRTitle = "Update {count} container image(s)"

// Config is the full run configuration. It is assembled
// once per run and consumed read-only.
type Config struct {
	// FileMatch is the glob selecting candidate files,
	// relative to the working tree root. Supports "**".
	FileMatch string `yaml:"file_match"`

	// ExtraFields maps additional field names to image
	// reference templates with one "?" placeholder.
	ExtraFields map[string]string `yaml:"extra_fields"`

	// DryRun computes and reports the plan without
	// touching files, branches, or PRs.
	DryRun bool `yaml:"dry_run"`

	// Parallelism bounds concurrent registry lookups.
	Parallelism int `yaml:"parallelism"`

	// BranchPrefix prefixes the delivery branch name.
	BranchPrefix string `yaml:"branch_prefix"`

	// PrimaryBranch is the PR base branch.
	PrimaryBranch string `yaml:"primary_branch"`

	// PRTitle is the pull request title template.
	PRTitle string `yaml:"pr_title"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		FileMatch:     DefaultFileMatch,
		BranchPrefix:  DefaultBranchPrefix,
		PrimaryBranch: "main",
		PRTitle:       DefaultPRTitle,
	}
}

// Load reads a YAML configuration file and overlays it on
// the defaults. A missing file is not an error: the
// defaults are returned unchanged.
func Load(path string) (Config, error) {
	const errCtx = "loading config file"

	cfg := Default()

	data, err := os.ReadFile(path) //nolint:gosec // path from CLI flag
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}

	if err != nil {
		return Config{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf(
			"%s: %s: %w", errCtx, path, err,
		)
	}

	return cfg, nil
}

// ParseExtraFieldsJSON decodes the extra-fields mapping
// from its JSON CLI/action input form.
func ParseExtraFieldsJSON(
	raw string,
) (map[string]string, error) {
	const errCtx = "parsing extra fields json"

	if raw == "" {
		return nil, nil
	}

	var fields map[string]string
	if err := json.Unmarshal(
		[]byte(raw), &fields,
	); err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return fields, nil
}

// Patterns returns the active pattern set: the built-in
// image pattern followed by the validated extra-field
// patterns in deterministic order.
func (c Config) Patterns() ([]pattern.Pattern, error) {
	const errCtx = "building pattern set"

	extra, err := pattern.ParseExtraFields(
		c.ExtraFields,
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return append(
		[]pattern.Pattern{pattern.Builtin()}, extra...,
	), nil
}

// Validate checks the parts of the configuration that
// must fail the run before any scanning begins.
func (c Config) Validate() error {
	const errCtx = "validating configuration"

	if !doublestar.ValidatePattern(c.FileMatch) {
		return fmt.Errorf(
			"%s: malformed file match glob %q",
			errCtx, c.FileMatch,
		)
	}

	if _, err := c.Patterns(); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// MatchFiles expands the glob against root and returns
// the matching file paths, sorted, relative to root.
func MatchFiles(
	root string,
	glob string,
) ([]string, error) {
	const errCtx = "matching files"

	matches, err := doublestar.Glob(
		os.DirFS(root),
		glob,
		doublestar.WithFilesOnly(),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: glob %q: %w", errCtx, glob, err,
		)
	}

	sort.Strings(matches)

	return matches, nil
}
