package apply

import (
	"fmt"
	"strings"

	"github.com/byte4ever/autoupdater/updater/plan"
)

// Rewrite applies the entries' edits to text: on each
// entry's line, the first occurrence of the old raw value
// is replaced with the new one. The file is expected to
// be unchanged since the scan; a missing line or value
// means the plan is stale and is reported as an error.
func Rewrite(
	text string,
	entries []plan.Entry,
) (string, error) {
	const errCtx = "rewriting manifest text"

	lines := strings.Split(text, "\n")

	for _, entry := range entries {
		idx := entry.Reference.Line - 1
		if idx < 0 || idx >= len(lines) {
			return "", fmt.Errorf(
				"%s: line %d out of range",
				errCtx, entry.Reference.Line,
			)
		}

		line := lines[idx]
		if !strings.Contains(
			line, entry.Reference.RawValue,
		) {
			return "", fmt.Errorf(
				"%s: line %d no longer contains %q",
				errCtx,
				entry.Reference.Line,
				entry.Reference.RawValue,
			)
		}

		lines[idx] = strings.Replace(
			line,
			entry.Reference.RawValue,
			entry.NewRawValue,
			1,
		)
	}

	return strings.Join(lines, "\n"), nil
}
