package selector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/byte4ever/autoupdater/updater/selector"
)

func TestSelect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		current   string
		available []string
		want      string
		wantOK    bool
	}{
		{
			name:      "simple_upgrade",
			current:   "1.25",
			available: []string{"1.24", "1.26", "1.25"},
			want:      "1.26",
			wantOK:    true,
		},
		{
			name:      "numeric_not_lexicographic",
			current:   "1.9",
			available: []string{"1.10", "1.2"},
			want:      "1.10",
			wantOK:    true,
		},
		{
			name:      "suffix_mismatch_rejected",
			current:   "1.2.0-alpine",
			available: []string{"1.3.0"},
			wantOK:    false,
		},
		{
			name:      "suffix_match_accepted",
			current:   "1.2.0-alpine",
			available: []string{"1.3.0-alpine"},
			want:      "1.3.0-alpine",
			wantOK:    true,
		},
		{
			name:      "undecorated_ignores_decorated",
			current:   "1.2.0",
			available: []string{"1.3.0-alpine", "1.2.1"},
			want:      "1.2.1",
			wantOK:    true,
		},
		{
			name:    "segment_count_mismatch",
			current: "1.2",
			available: []string{
				"1.3.0", "2.0.0", "1.4",
			},
			want:   "1.4",
			wantOK: true,
		},
		{
			name:      "prefix_preserved",
			current:   "v2",
			available: []string{"v3", "3", "v2"},
			want:      "v3",
			wantOK:    true,
		},
		{
			name:      "non_numeric_current",
			current:   "latest",
			available: []string{"v2", "v3"},
			wantOK:    false,
		},
		{
			name:      "no_candidates",
			current:   "1.2.3",
			available: nil,
			wantOK:    false,
		},
		{
			name:      "only_older",
			current:   "2.0.0",
			available: []string{"1.9.9", "1.0.0"},
			wantOK:    false,
		},
		{
			name:      "current_only",
			current:   "1.2.3",
			available: []string{"1.2.3"},
			wantOK:    false,
		},
		{
			name:      "dash_separated_body",
			current:   "2023-10-01",
			available: []string{"2024-01-15", "2022-01-01"},
			want:      "2024-01-15",
			wantOK:    true,
		},
		{
			name:    "picks_greatest",
			current: "1.0.0",
			available: []string{
				"1.0.1", "1.2.0", "1.1.9",
			},
			want:   "1.2.0",
			wantOK: true,
		},
		{
			name:      "equal_value_is_no_improvement",
			current:   "1.2",
			available: []string{"01.2"},
			wantOK:    false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, ok := selector.Select(
				tc.current, tc.available,
			)

			assert.Equal(t, tc.wantOK, ok)

			if tc.wantOK {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

// A freshly selected tag must not be selected again on
// the next run: selection is strictly increasing, which
// makes plans idempotent.
func TestSelect_idempotent(t *testing.T) {
	t.Parallel()

	available := []string{
		"1.2.0-alpine", "1.3.0-alpine", "1.4.0-alpine",
	}

	got, ok := selector.Select("1.2.0-alpine", available)
	assert.True(t, ok)
	assert.Equal(t, "1.4.0-alpine", got)

	_, ok = selector.Select(got, available)
	assert.False(t, ok)
}
