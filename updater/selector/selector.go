// Package selector decides whether a newer image tag
// should replace the current one. The policy is
// deliberately conservative: a candidate must share the
// current tag's shape (same decoration, same number of
// numeric segments) and be strictly newer numerically.
// This is not semantic versioning; pre-release and build
// metadata precedence rules do not apply.
package selector

import (
	"regexp"
	"strconv"
	"strings"
)

// tagRE decomposes a tag into a non-numeric prefix, a
// numeric body of dot- or dash-separated segments, and a
// non-numeric suffix. Tags without a numeric body (e.g.
// "latest", "stable") do not match and are never
// updated.
var tagRE = regexp.MustCompile(
	`^(.*?)(\d+(?:[.-]\d+)*)(.*)$`,
)

// shape is the structural signature of a tag.
type shape struct {
	prefix   string
	suffix   string
	segments []int
}

// decompose splits a tag into its shape. Returns false
// for tags without a numeric body.
func decompose(tag string) (shape, bool) {
	m := tagRE.FindStringSubmatch(tag)
	if m == nil {
		return shape{}, false
	}

	return shape{
		prefix:   m[1],
		suffix:   m[3],
		segments: parseSegments(m[2]),
	}, true
}

// parseSegments converts a numeric body like "1.2-3"
// into its integer segments.
func parseSegments(body string) []int {
	parts := strings.FieldsFunc(
		body,
		func(r rune) bool {
			return r == '.' || r == '-'
		},
	)

	segments := make([]int, 0, len(parts))

	for _, part := range parts {
		// The body regexp only admits digits, so the
		// conversion cannot fail.
		val, _ := strconv.Atoi(part)
		segments = append(segments, val)
	}

	return segments
}

// compareSegments orders two segment lists position by
// position, numerically. Missing trailing segments count
// as zero. Returns -1, 0, or 1.
func compareSegments(a []int, b []int) int {
	size := len(a)
	if len(b) > size {
		size = len(b)
	}

	for idx := 0; idx < size; idx++ {
		av, bv := 0, 0

		if idx < len(a) {
			av = a[idx]
		}

		if idx < len(b) {
			bv = b[idx]
		}

		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	}

	return 0
}

// Select returns the best strictly-newer tag among
// available, or false when no update applies. Candidates
// must carry the same prefix and suffix decoration as
// current and the same number of numeric segments; ties
// are not an improvement.
func Select(
	current string,
	available []string,
) (string, bool) {
	cur, ok := decompose(current)
	if !ok {
		return "", false
	}

	candidateRE := regexp.MustCompile(
		`^` +
			regexp.QuoteMeta(cur.prefix) +
			`(\d+(?:[.-]\d+)*)` +
			regexp.QuoteMeta(cur.suffix) +
			`$`,
	)

	var (
		best         string
		bestSegments []int
	)

	for _, tag := range available {
		if tag == current {
			continue
		}

		m := candidateRE.FindStringSubmatch(tag)
		if m == nil {
			continue
		}

		segments := parseSegments(m[1])
		if len(segments) != len(cur.segments) {
			continue
		}

		if compareSegments(
			segments, cur.segments,
		) <= 0 {
			continue
		}

		if best == "" || compareSegments(
			segments, bestSegments,
		) > 0 {
			best = tag
			bestSegments = segments
		}
	}

	if best == "" {
		return "", false
	}

	return best, true
}
