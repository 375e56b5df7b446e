// Package hub implements the registry client for Docker
// Hub. It performs the token dance against the auth
// endpoint, then lists tags through the v2 API, following
// Link-header pagination.
package hub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	defaultAuthURL     = "https://auth.docker.io/token"
	defaultRegistryURL = "https://index.docker.io"
	defaultService     = "registry.docker.io"
	defaultTimeout     = 30 * time.Second
	defaultRetryMax    = 3
)

// Config holds the settings for a Docker Hub registry
// client. The zero value targets the public Docker Hub.
type Config struct {
	// AuthURL is the token endpoint. Defaults to the
	// public Docker Hub auth service.
	AuthURL string

	// RegistryURL is the v2 API base URL. Defaults to
	// the public Docker Hub index.
	RegistryURL string

	// Service is the token audience. Defaults to
	// "registry.docker.io".
	Service string

	// Timeout bounds every registry call. Defaults to
	// 30 seconds.
	Timeout time.Duration

	// RetryMax is the number of HTTP retries. Defaults
	// to 3.
	RetryMax int
}

// Client lists tags from a Docker-Hub-compatible
// registry.
//
// Pattern: Strategy -- implements registry.Client.
type Client struct {
	http        *retryablehttp.Client
	authURL     string
	registryURL string
	service     string
}

// tokenResponse mirrors the auth endpoint's JSON body.
type tokenResponse struct {
	Token string `json:"token"`
}

// tagsResponse mirrors the v2 tags/list JSON body.
type tagsResponse struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// NewClient applies defaults to cfg and returns a ready
// Client.
func NewClient(cfg Config) *Client {
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}

	if cfg.RegistryURL == "" {
		cfg.RegistryURL = defaultRegistryURL
	}

	if cfg.Service == "" {
		cfg.Service = defaultService
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	if cfg.RetryMax <= 0 {
		cfg.RetryMax = defaultRetryMax
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil

	return &Client{
		http:        rc,
		authURL:     cfg.AuthURL,
		registryURL: cfg.RegistryURL,
		service:     cfg.Service,
	}
}

// NormalizeRepository prepends the "library/" namespace
// for official images referenced without one.
func NormalizeRepository(repository string) string {
	if strings.Contains(repository, "/") {
		return repository
	}

	return "library/" + repository
}

// ListTags returns all tags of repository, following
// pagination until the registry reports no further page.
func (c *Client) ListTags(
	ctx context.Context,
	repository string,
) ([]string, error) {
	const errCtx = "listing registry tags"

	repo := NormalizeRepository(repository)

	token, err := c.fetchToken(ctx, repo)
	if err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, repo, err,
		)
	}

	pageURL := fmt.Sprintf(
		"%s/v2/%s/tags/list", c.registryURL, repo,
	)

	var tags []string

	for pageURL != "" {
		pageTags, next, err := c.fetchPage(
			ctx, pageURL, token,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %s: %w", errCtx, repo, err,
			)
		}

		tags = append(tags, pageTags...)
		pageURL = next
	}

	return tags, nil
}

// fetchToken obtains a pull-scoped bearer token for the
// repository.
func (c *Client) fetchToken(
	ctx context.Context,
	repository string,
) (string, error) {
	const errCtx = "fetching auth token"

	query := url.Values{}
	query.Set("service", c.service)
	query.Set(
		"scope",
		"repository:"+repository+":pull",
	)

	body, _, err := c.get(
		ctx, c.authURL+"?"+query.Encode(), "",
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf(
			"%s: parse json: %w", errCtx, err,
		)
	}

	if tr.Token == "" {
		return "", fmt.Errorf(
			"%s: empty token", errCtx,
		)
	}

	return tr.Token, nil
}

// fetchPage retrieves one tags/list page and returns the
// tags plus the absolute URL of the next page, if any.
func (c *Client) fetchPage(
	ctx context.Context,
	pageURL string,
	token string,
) ([]string, string, error) {
	const errCtx = "fetching tags page"

	body, header, err := c.get(ctx, pageURL, token)
	if err != nil {
		return nil, "", fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	var tr tagsResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, "", fmt.Errorf(
			"%s: parse json: %w", errCtx, err,
		)
	}

	next, err := nextPageURL(
		pageURL, header.Get("Link"),
	)
	if err != nil {
		return nil, "", fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return tr.Tags, next, nil
}

// get performs a GET request with the optional bearer
// token and returns the response body and headers. Any
// non-2xx status is an error.
func (c *Client) get(
	ctx context.Context,
	rawURL string,
	token string,
) ([]byte, http.Header, error) {
	const errCtx = "registry request"

	req, err := retryablehttp.NewRequestWithContext(
		ctx, http.MethodGet, rawURL, nil,
	)
	if err != nil {
		return nil, nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if token != "" {
		req.Header.Set(
			"Authorization", "Bearer "+token,
		)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf(
			"%s: read body: %w", errCtx, err,
		)
	}

	if resp.StatusCode < http.StatusOK ||
		resp.StatusCode >= http.StatusMultipleChoices {
		return nil, nil, fmt.Errorf(
			"%s: unexpected status %d",
			errCtx, resp.StatusCode,
		)
	}

	return body, resp.Header, nil
}

// nextPageURL resolves the Link header's next page
// against the current page URL. Returns empty string
// when there is no next page.
func nextPageURL(
	pageURL string,
	link string,
) (string, error) {
	const errCtx = "resolving next page"

	if link == "" ||
		!strings.Contains(link, `rel="next"`) {
		return "", nil
	}

	start := strings.Index(link, "<")
	end := strings.Index(link, ">")

	if start < 0 || end < 0 || end <= start {
		return "", fmt.Errorf(
			"%s: malformed link header %q",
			errCtx, link,
		)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	next, err := url.Parse(link[start+1 : end])
	if err != nil {
		return "", fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return base.ResolveReference(next).String(), nil
}
