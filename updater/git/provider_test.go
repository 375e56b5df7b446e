package git_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/autoupdater/updater/git"
)

func TestGitProviderFunc_delegates(t *testing.T) {
	t.Parallel()

	var gotBody string

	pv := git.GitProviderFunc(func(
		_ context.Context,
		from string,
		to string,
		title string,
		body string,
	) error {
		assert.Equal(t, "feature", from)
		assert.Equal(t, "main", to)
		assert.Equal(t, "title", title)

		gotBody = body

		return nil
	})

	err := pv.CreatePR(
		context.Background(),
		"feature", "main", "title", "body",
	)

	require.NoError(t, err)
	assert.Equal(t, "body", gotBody)
}

func TestGitProviderFunc_empty_body_uses_title(
	t *testing.T,
) {
	t.Parallel()

	var gotBody string

	pv := git.GitProviderFunc(func(
		_ context.Context,
		_ string,
		_ string,
		_ string,
		body string,
	) error {
		gotBody = body

		return nil
	})

	err := pv.CreatePR(
		context.Background(),
		"feature", "main", "title", "",
	)

	require.NoError(t, err)
	assert.Equal(t, "title", gotBody)
}
