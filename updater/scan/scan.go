// Package scan locates container image references in raw
// manifest text. It works line by line on the original
// text rather than a parsed YAML tree so that anchors,
// comments, and duplicate keys survive untouched and the
// edit plan can point at exact lines.
package scan

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/byte4ever/autoupdater/updater/pattern"
)

// DisableMarker opts a reference out of updates. It can
// appear as a trailing comment on the reference line or
// as a comment line directly above it.
const DisableMarker = "autoupdater: disable"

// Reference is one image occurrence found in one file.
// It is uniquely identified by (File, Line, Field).
type Reference struct {
	// File is the path of the scanned file.
	File string

	// Line is the 1-based line number of the match.
	Line int

	// Field is the matched pattern's field name.
	Field string

	// RawValue is the captured text between the field
	// marker and line end, stripped of quotes, anchor,
	// and trailing comment.
	RawValue string

	// Repository is the image name without tag, derived
	// by expanding the pattern template.
	Repository string

	// CurrentTag is the tag after the last colon of the
	// expanded reference.
	CurrentTag string
}

// anchorRE matches a leading YAML anchor token such as
// "&web " so that "image: &web nginx:1.25" captures the
// reference, not the anchor.
var anchorRE = regexp.MustCompile(`^&[a-zA-Z0-9_-]+\s+`)

// Extractor scans file text for references matching a
// fixed set of patterns. Patterns are evaluated in order
// and the first match per line wins.
type Extractor struct {
	patterns []pattern.Pattern
	matchers []*regexp.Regexp
}

// NewExtractor compiles line matchers for the given
// patterns. The caller is responsible for putting the
// built-in image pattern first.
func NewExtractor(
	patterns []pattern.Pattern,
) *Extractor {
	matchers := make(
		[]*regexp.Regexp, 0, len(patterns),
	)

	for _, pat := range patterns {
		matchers = append(
			matchers,
			regexp.MustCompile(
				`^\s*`+
					regexp.QuoteMeta(pat.Field)+
					`:\s+(\S.*)$`,
			),
		)
	}

	return &Extractor{
		patterns: patterns,
		matchers: matchers,
	}
}

// Extract returns the references found in text, in line
// order. Lines matching no pattern are ignored. A line
// can yield at most one reference.
func (e *Extractor) Extract(
	path string,
	text string,
) []Reference {
	var refs []Reference

	disableNext := false

	for num, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if isDisableComment(trimmed) {
			disableNext = true

			continue
		}

		ref, matched, disabled := e.extractLine(
			path, num+1, line,
		)
		if !matched {
			continue
		}

		if disabled || disableNext {
			slog.Info(
				"image with autoupdate disabled",
				"file", path,
				"line", num+1,
			)

			disableNext = false

			continue
		}

		disableNext = false

		if ref != nil {
			refs = append(refs, *ref)
		}
	}

	return refs
}

// extractLine matches one line against the pattern set.
// matched reports whether any pattern claimed the line;
// disabled reports an inline disable marker. ref is nil
// when the line matched but did not yield a usable
// reference (no tag, unsupported registry).
func (e *Extractor) extractLine(
	path string,
	num int,
	line string,
) (ref *Reference, matched bool, disabled bool) {
	for idx, matcher := range e.matchers {
		m := matcher.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		value, disabled := cleanValue(m[1])
		if value == "" {
			return nil, true, disabled
		}

		pat := e.patterns[idx]

		return e.buildReference(
			path, num, pat, value,
		), true, disabled
	}

	return nil, false, false
}

// buildReference expands the captured value through the
// pattern template and splits it into repository and tag.
// Returns nil for references this tool cannot update.
func (e *Extractor) buildReference(
	path string,
	num int,
	pat pattern.Pattern,
	value string,
) *Reference {
	full := pat.Expand(value)

	repo, tag, ok := pattern.SplitReference(full)
	if !ok {
		slog.Info(
			"image reference without tag",
			"file", path,
			"line", num,
			"image", full,
		)

		return nil
	}

	if unsupportedRegistry(repo) {
		slog.Info(
			"image using non-supported registry",
			"file", path,
			"line", num,
			"image", repo,
		)

		return nil
	}

	return &Reference{
		File:       path,
		Line:       num,
		Field:      pat.Field,
		RawValue:   value,
		Repository: repo,
		CurrentTag: tag,
	}
}

// cleanValue strips a YAML anchor token, a trailing
// comment, and surrounding quotes from a captured value.
// disabled reports whether the trailing comment carried
// the disable marker.
func cleanValue(
	value string,
) (cleaned string, disabled bool) {
	value = anchorRE.ReplaceAllString(value, "")

	if idx := commentIndex(value); idx >= 0 {
		comment := value[idx:]
		value = value[:idx]

		disabled = strings.Contains(
			comment, DisableMarker,
		)
	}

	value = strings.TrimSpace(value)
	value = strings.Trim(value, `"'`)

	return value, disabled
}

// commentIndex returns the offset of a trailing comment
// ("#" preceded by whitespace) or -1.
func commentIndex(value string) int {
	for idx := 0; idx < len(value); idx++ {
		if value[idx] != '#' {
			continue
		}

		if idx == 0 {
			return 0
		}

		if value[idx-1] == ' ' ||
			value[idx-1] == '\t' {
			return idx - 1
		}
	}

	return -1
}

// unsupportedRegistry reports whether the repository
// names an explicit registry host other than Docker Hub.
// Mirrors the moby heuristic: with more than one path
// component, a first component containing "." or ":" or
// equal to "localhost" is a registry host.
func unsupportedRegistry(repo string) bool {
	if strings.Count(repo, "/") <= 1 {
		return false
	}

	first, _, _ := strings.Cut(repo, "/")

	return strings.ContainsAny(first, ".:") ||
		first == "localhost"
}

// isDisableComment reports whether a trimmed line is a
// standalone disable marker comment.
func isDisableComment(trimmed string) bool {
	if !strings.HasPrefix(trimmed, "#") {
		return false
	}

	return strings.Contains(trimmed, DisableMarker)
}

// String renders the reference for logs.
func (r Reference) String() string {
	return fmt.Sprintf(
		"%s:%d %s=%s:%s",
		r.File, r.Line, r.Field,
		r.Repository, r.CurrentTag,
	)
}
