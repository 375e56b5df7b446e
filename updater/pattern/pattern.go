// Package pattern describes how image version fields are
// recognised in manifest text. A Pattern binds a field
// name to a template that maps the captured field value
// onto a full repository:tag image reference.
package pattern

import (
	"fmt"
	"sort"
	"strings"
)

// Placeholder marks the substitution point inside a
// template. A valid template contains it exactly once.
const Placeholder = "?"

// BuiltinField is the field name matched by the built-in
// pattern present in every run.
const BuiltinField = "image"

// Pattern binds a manifest field name to an image
// reference template.
type Pattern struct {
	// Field is the manifest key to match (e.g. "image"
	// or a custom key like "portainer_version").
	Field string

	// Template builds the full repository:tag reference
	// from the captured field value. It contains exactly
	// one Placeholder. The built-in pattern uses the
	// identity template "?": the captured value already
	// is the full reference.
	Template string
}

// New validates the field/template pair and returns a
// Pattern. The template must contain the placeholder
// exactly once; anything else is a configuration error.
func New(field string, template string) (Pattern, error) {
	const errCtx = "creating image pattern"

	if field == "" {
		return Pattern{}, fmt.Errorf(
			"%s: field name must not be empty", errCtx,
		)
	}

	switch strings.Count(template, Placeholder) {
	case 0:
		return Pattern{}, fmt.Errorf(
			"%s: field %q: template %q has no %q placeholder",
			errCtx, field, template, Placeholder,
		)
	case 1:
		return Pattern{
			Field:    field,
			Template: template,
		}, nil
	default:
		return Pattern{}, fmt.Errorf(
			"%s: field %q: template %q has more than one %q placeholder",
			errCtx, field, template, Placeholder,
		)
	}
}

// Builtin returns the always-active pattern for plain
// "image:" lines.
func Builtin() Pattern {
	return Pattern{
		Field:    BuiltinField,
		Template: Placeholder,
	}
}

// ParseExtraFields converts an extra-fields mapping
// (field name to template) into validated patterns. The
// result is sorted by field name so the active pattern
// order is deterministic regardless of map iteration.
func ParseExtraFields(
	fields map[string]string,
) ([]Pattern, error) {
	const errCtx = "parsing extra fields"

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}

	sort.Strings(names)

	patterns := make([]Pattern, 0, len(names))

	for _, name := range names {
		pat, err := New(name, fields[name])
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		patterns = append(patterns, pat)
	}

	return patterns, nil
}

// Expand substitutes raw for the placeholder and returns
// the full image reference.
func (p Pattern) Expand(raw string) string {
	return strings.Replace(
		p.Template, Placeholder, raw, 1,
	)
}

// Invert recovers the raw field value from a full image
// reference by stripping the template's literal prefix
// and suffix around the placeholder. Returns false when
// full does not fit the template.
func (p Pattern) Invert(full string) (string, bool) {
	idx := strings.Index(p.Template, Placeholder)
	if idx < 0 {
		return "", false
	}

	prefix := p.Template[:idx]
	suffix := p.Template[idx+len(Placeholder):]

	if len(full) < len(prefix)+len(suffix) {
		return "", false
	}

	if !strings.HasPrefix(full, prefix) ||
		!strings.HasSuffix(full, suffix) {
		return "", false
	}

	return full[len(prefix) : len(full)-len(suffix)], true
}

// SplitReference splits a full image reference into
// repository and tag at the last colon, so a
// registry-host:port prefix stays inside the repository.
// Returns false when the reference carries no tag.
func SplitReference(
	full string,
) (string, string, bool) {
	idx := strings.LastIndex(full, ":")
	if idx < 0 {
		return "", "", false
	}

	tag := full[idx+1:]
	if tag == "" || strings.Contains(tag, "/") {
		// A colon inside a host:port prefix with no
		// tag after it is not a tag separator.
		return "", "", false
	}

	return full[:idx], tag, true
}
