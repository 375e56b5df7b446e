package hub_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byte4ever/autoupdater/updater/registry/hub"
)

// newRegistry starts a fake auth+registry server. The
// tags map keys are normalized repository names.
func newRegistry(
	tb testing.TB,
	tags map[string][]string,
) *httptest.Server {
	tb.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc(
		"/token",
		func(w http.ResponseWriter, r *http.Request) {
			scope := r.URL.Query().Get("scope")
			if scope == "" {
				w.WriteHeader(http.StatusBadRequest)

				return
			}

			fmt.Fprint(w, `{"token":"test-token"}`)
		},
	)

	mux.HandleFunc(
		"/v2/",
		func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") !=
				"Bearer test-token" {
				w.WriteHeader(http.StatusUnauthorized)

				return
			}

			repo := r.URL.Path
			repo = repo[len("/v2/") : len(repo)-len("/tags/list")]

			repoTags, ok := tags[repo]
			if !ok {
				w.WriteHeader(http.StatusNotFound)

				return
			}

			fmt.Fprintf(
				w,
				`{"name":%q,"tags":[`, repo,
			)

			for idx, tag := range repoTags {
				if idx > 0 {
					fmt.Fprint(w, ",")
				}

				fmt.Fprintf(w, "%q", tag)
			}

			fmt.Fprint(w, `]}`)
		},
	)

	srv := httptest.NewServer(mux)
	tb.Cleanup(srv.Close)

	return srv
}

func newClient(srv *httptest.Server) *hub.Client {
	return hub.NewClient(hub.Config{
		AuthURL:     srv.URL + "/token",
		RegistryURL: srv.URL,
		RetryMax:    1,
	})
}

func TestListTags(t *testing.T) {
	t.Parallel()

	srv := newRegistry(t, map[string][]string{
		"org/app": {"1.0.0", "1.1.0", "latest"},
	})

	tags, err := newClient(srv).ListTags(
		context.Background(), "org/app",
	)

	require.NoError(t, err)
	assert.Equal(
		t, []string{"1.0.0", "1.1.0", "latest"}, tags,
	)
}

func TestListTags_official_image_namespace(
	t *testing.T,
) {
	t.Parallel()

	srv := newRegistry(t, map[string][]string{
		"library/nginx": {"1.25", "1.26"},
	})

	tags, err := newClient(srv).ListTags(
		context.Background(), "nginx",
	)

	require.NoError(t, err)
	assert.Equal(t, []string{"1.25", "1.26"}, tags)
}

func TestListTags_not_found(t *testing.T) {
	t.Parallel()

	srv := newRegistry(t, nil)

	_, err := newClient(srv).ListTags(
		context.Background(), "org/missing",
	)

	assert.ErrorContains(t, err, "status 404")
}

func TestListTags_pagination(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()

	mux.HandleFunc(
		"/token",
		func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"token":"test-token"}`)
		},
	)

	mux.HandleFunc(
		"/v2/org/app/tags/list",
		func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("last") == "" {
				w.Header().Set(
					"Link",
					`</v2/org/app/tags/list?last=1.1.0&n=2>; rel="next"`,
				)
				fmt.Fprint(
					w,
					`{"name":"org/app","tags":["1.0.0","1.1.0"]}`,
				)

				return
			}

			fmt.Fprint(
				w,
				`{"name":"org/app","tags":["1.2.0"]}`,
			)
		},
	)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	tags, err := newClient(srv).ListTags(
		context.Background(), "org/app",
	)

	require.NoError(t, err)
	assert.Equal(
		t,
		[]string{"1.0.0", "1.1.0", "1.2.0"},
		tags,
	)
}

func TestNormalizeRepository(t *testing.T) {
	t.Parallel()

	assert.Equal(
		t,
		"library/nginx",
		hub.NormalizeRepository("nginx"),
	)
	assert.Equal(
		t,
		"org/app",
		hub.NormalizeRepository("org/app"),
	)
}
