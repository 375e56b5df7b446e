package plan

import "strings"

// Commit messages embed the bump list between markers so
// a later run can recognise an already-applied plan on an
// existing branch.
const (
	bumpsBegin = "--- autoupdater bumps begin ---"
	bumpsEnd   = "--- autoupdater bumps end ---"
)

// CommitMessage renders the commit message for an applied
// plan: the title, then the bump list between markers.
func (p Plan) CommitMessage(title string) string {
	var sb strings.Builder

	sb.WriteString(title)
	sb.WriteString("\n\n")
	sb.WriteString(bumpsBegin)
	sb.WriteByte('\n')

	for _, entry := range p.Entries {
		sb.WriteString(entry.BumpLine())
		sb.WriteByte('\n')
	}

	sb.WriteString(bumpsEnd)
	sb.WriteByte('\n')

	return sb.String()
}

// ExtractBumps returns the bump lines embedded in a
// commit message, or nil when the markers are absent or
// unbalanced.
func ExtractBumps(msg string) []string {
	var bumps []string

	betweenMarkers := false

	for _, line := range strings.Split(msg, "\n") {
		switch line {
		case bumpsBegin:
			betweenMarkers = true
		case bumpsEnd:
			return bumps
		default:
			if betweenMarkers {
				bumps = append(bumps, line)
			}
		}
	}

	return nil
}
