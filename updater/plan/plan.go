// Package plan holds the change plan produced by one
// run: every proposed image bump, its serialized form for
// CI outputs, the human-readable report, and the digest
// that names the delivery branch.
package plan

import (
	"crypto/sha1" //nolint:gosec // digest names branches, not security
	"encoding/hex"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/byte4ever/autoupdater/updater/scan"
)

// Entry is one proposed change. It exists only when an
// actual update was found: NewTag always differs from the
// reference's current tag.
type Entry struct {
	// Reference is the originating image occurrence.
	Reference scan.Reference

	// NewTag is the tag chosen by the selector.
	NewTag string

	// NewRawValue is the reference's raw value with the
	// current tag replaced by NewTag. Only the captured
	// field value changes, never the template text
	// around it.
	NewRawValue string
}

// Plan is the ordered set of proposed changes for one
// run: file scan order first, line order within a file.
// An empty plan is a valid "nothing to update" result.
type Plan struct {
	Entries []Entry
}

// wireEntry is the serialized form consumed by CI steps
// and PR tooling.
type wireEntry struct {
	File  string `json:"file"`
	Field string `json:"field"`
	Line  int    `json:"line"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// Empty reports whether the plan proposes no changes.
func (p Plan) Empty() bool {
	return len(p.Entries) == 0
}

// Files returns the distinct files touched by the plan,
// in first-seen order.
func (p Plan) Files() []string {
	seen := make(map[string]struct{})

	var files []string

	for _, entry := range p.Entries {
		file := entry.Reference.File
		if _, ok := seen[file]; ok {
			continue
		}

		seen[file] = struct{}{}
		files = append(files, file)
	}

	return files
}

// ForFile returns the plan entries of one file, in plan
// order.
func (p Plan) ForFile(file string) []Entry {
	var entries []Entry

	for _, entry := range p.Entries {
		if entry.Reference.File == file {
			entries = append(entries, entry)
		}
	}

	return entries
}

// JSON serializes the plan as a list of
// {file, field, line, old, new} objects.
func (p Plan) JSON() ([]byte, error) {
	const errCtx = "serializing plan"

	wire := make([]wireEntry, 0, len(p.Entries))

	for _, entry := range p.Entries {
		wire = append(wire, wireEntry{
			File:  entry.Reference.File,
			Field: entry.Reference.Field,
			Line:  entry.Reference.Line,
			Old:   entry.Reference.RawValue,
			New:   entry.NewRawValue,
		})
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return data, nil
}

// BumpLine renders one entry as a report bullet.
func (e Entry) BumpLine() string {
	return fmt.Sprintf(
		"* bump %s from %s to %s",
		e.Reference.Repository,
		e.Reference.CurrentTag,
		e.NewTag,
	)
}

// Report renders the plan as a human-readable list
// grouped by file.
func (p Plan) Report() string {
	var sb strings.Builder

	for _, file := range p.Files() {
		sb.WriteString("== ")
		sb.WriteString(file)
		sb.WriteByte('\n')

		for _, entry := range p.ForFile(file) {
			sb.WriteString(entry.BumpLine())
			sb.WriteByte('\n')
		}
	}

	return sb.String()
}

// Digest returns the SHA1 hex digest of the plan's bump
// lines. Two runs proposing the same bumps share a
// digest, which keeps branch names stable across reruns.
func (p Plan) Digest() string {
	var sb strings.Builder

	for _, entry := range p.Entries {
		sb.WriteString(entry.BumpLine())
	}

	sum := sha1.Sum([]byte(sb.String())) //nolint:gosec // see import note

	return hex.EncodeToString(sum[:])
}

// DigestLength is the hex length of a plan digest, used
// to recognise digest-named branches during cleanup.
const DigestLength = 40

// BranchName returns the delivery branch name for this
// plan: the prefix followed by the plan digest.
func (p Plan) BranchName(prefix string) string {
	return prefix + p.Digest()
}
