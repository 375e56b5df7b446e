package pattern_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/autoupdater/updater/pattern"
)

func TestNew_valid(t *testing.T) {
	t.Parallel()

	pat, err := pattern.New(
		"portainer_version",
		"portainer/portainer-ce:?-alpine",
	)

	require.NoError(t, err)
	assert.Equal(t, "portainer_version", pat.Field)
}

func TestNew_no_placeholder(t *testing.T) {
	t.Parallel()

	_, err := pattern.New(
		"portainer_version",
		"portainer/portainer-ce:latest",
	)

	assert.ErrorContains(t, err, "portainer_version")
	assert.ErrorContains(t, err, "no \"?\" placeholder")
}

func TestNew_multiple_placeholders(t *testing.T) {
	t.Parallel()

	_, err := pattern.New("app", "org/app:?-?")

	assert.ErrorContains(t, err, "more than one")
}

func TestNew_empty_field(t *testing.T) {
	t.Parallel()

	_, err := pattern.New("", "?")

	assert.ErrorContains(t, err, "field name")
}

func TestParseExtraFields_sorted(t *testing.T) {
	t.Parallel()

	pats, err := pattern.ParseExtraFields(
		map[string]string{
			"zulu_version":  "org/zulu:?",
			"alpha_version": "org/alpha:?",
		},
	)

	require.NoError(t, err)
	require.Len(t, pats, 2)
	assert.Equal(t, "alpha_version", pats[0].Field)
	assert.Equal(t, "zulu_version", pats[1].Field)
}

func TestParseExtraFields_invalid_template(t *testing.T) {
	t.Parallel()

	_, err := pattern.ParseExtraFields(
		map[string]string{"bad_field": "no-placeholder"},
	)

	assert.ErrorContains(t, err, "bad_field")
}

func TestExpand(t *testing.T) {
	t.Parallel()

	pat, err := pattern.New(
		"portainer_version",
		"portainer/portainer-ce:?-alpine",
	)
	require.NoError(t, err)

	full := pat.Expand("2.21.0")

	assert.Equal(
		t, "portainer/portainer-ce:2.21.0-alpine", full,
	)
}

func TestExpand_identity(t *testing.T) {
	t.Parallel()

	full := pattern.Builtin().Expand("nginx:1.25")

	assert.Equal(t, "nginx:1.25", full)
}

func TestInvert(t *testing.T) {
	t.Parallel()

	pat, err := pattern.New(
		"portainer_version",
		"portainer/portainer-ce:?-alpine",
	)
	require.NoError(t, err)

	raw, ok := pat.Invert(
		"portainer/portainer-ce:2.22.0-alpine",
	)

	require.True(t, ok)
	assert.Equal(t, "2.22.0", raw)
}

func TestInvert_mismatch(t *testing.T) {
	t.Parallel()

	pat, err := pattern.New(
		"portainer_version",
		"portainer/portainer-ce:?-alpine",
	)
	require.NoError(t, err)

	_, ok := pat.Invert("other/image:2.22.0-alpine")

	assert.False(t, ok)
}

func TestInvert_identity(t *testing.T) {
	t.Parallel()

	raw, ok := pattern.Builtin().Invert("nginx:1.26")

	require.True(t, ok)
	assert.Equal(t, "nginx:1.26", raw)
}

func TestSplitReference(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		full     string
		wantRepo string
		wantTag  string
		wantOK   bool
	}{
		{
			name:     "plain",
			full:     "nginx:1.25",
			wantRepo: "nginx",
			wantTag:  "1.25",
			wantOK:   true,
		},
		{
			name:     "namespaced",
			full:     "portainer/portainer-ce:2.21.0-alpine",
			wantRepo: "portainer/portainer-ce",
			wantTag:  "2.21.0-alpine",
			wantOK:   true,
		},
		{
			name:     "host_port_prefix",
			full:     "localhost:5000/org/app:1.2.3",
			wantRepo: "localhost:5000/org/app",
			wantTag:  "1.2.3",
			wantOK:   true,
		},
		{
			name:   "no_tag",
			full:   "nginx",
			wantOK: false,
		},
		{
			name:   "host_port_without_tag",
			full:   "localhost:5000/org/app",
			wantOK: false,
		},
		{
			name:   "trailing_colon",
			full:   "nginx:",
			wantOK: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			repo, tag, ok := pattern.SplitReference(
				tc.full,
			)

			assert.Equal(t, tc.wantOK, ok)

			if tc.wantOK {
				assert.Equal(t, tc.wantRepo, repo)
				assert.Equal(t, tc.wantTag, tag)
			}
		})
	}
}
