// Package github creates pull requests for applied
// update plans on GitHub.
package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v68/github"
)

// Config holds the settings needed to create a GitHub
// pull request provider.
type Config struct {
	// Repo is the repository in "owner/name" form, as
	// provided by GITHUB_REPOSITORY.
	Repo string

	// AccessToken is the token used for
	// authentication, typically the workflow token.
	AccessToken string

	// EnterpriseHost is an optional GitHub Enterprise
	// hostname. Leave empty for github.com.
	EnterpriseHost string
}

// Provider creates pull requests on GitHub.
//
// Pattern: Strategy -- implements git.GitProvider.
type Provider struct {
	client *gh.Client
	owner  string
	repo   string
}

// NewProvider validates cfg and returns a Provider
// ready to create pull requests.
func NewProvider(cfg Config) (*Provider, error) {
	const errCtx = "creating github provider"

	owner, repo, ok := strings.Cut(cfg.Repo, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf(
			"%s: repo must be owner/name, got %q",
			errCtx, cfg.Repo,
		)
	}

	if cfg.AccessToken == "" {
		return nil, fmt.Errorf(
			"%s: access token must be set", errCtx,
		)
	}

	client := gh.NewClient(nil).
		WithAuthToken(cfg.AccessToken)

	if cfg.EnterpriseHost != "" {
		baseURL := "https://" +
			cfg.EnterpriseHost + "/api/v3/"
		uploadURL := "https://" +
			cfg.EnterpriseHost + "/api/uploads/"

		var err error

		client, err = client.WithEnterpriseURLs(
			baseURL, uploadURL,
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: enterprise urls: %w",
				errCtx, err,
			)
		}
	}

	return &Provider{
		client: client,
		owner:  owner,
		repo:   repo,
	}, nil
}

// CreatePR creates a pull request from branch "from"
// into branch "to". If a PR already exists for this
// head/base pair (HTTP 422) it is reused and no error is
// returned.
func (p *Provider) CreatePR(
	ctx context.Context,
	from string,
	to string,
	title string,
	body string,
) error {
	const errCtx = "creating github pull request"

	created, resp, err := p.client.PullRequests.Create(
		ctx, p.owner, p.repo,
		&gh.NewPullRequest{
			Title: &title,
			Head:  &from,
			Base:  &to,
			Body:  &body,
		},
	)
	if err == nil {
		slog.Info(
			"created pull request",
			"url", created.GetHTMLURL(),
		)

		return nil
	}

	if resp != nil &&
		resp.StatusCode ==
			http.StatusUnprocessableEntity {
		slog.Info(
			"reusing existing pull request",
			"head", from,
		)

		return nil
	}

	logResponseBody("github", resp)

	return fmt.Errorf("%s: %w", errCtx, err)
}

// logResponseBody surfaces the platform's error payload
// for debugging failed PR creation.
func logResponseBody(
	platform string,
	resp *gh.Response,
) {
	if resp == nil || resp.Body == nil {
		return
	}

	defer resp.Body.Close() //nolint:errcheck

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Warn(
			"cannot read response body",
			"platform", platform,
			"error", err,
		)

		return
	}

	slog.Warn(
		"platform response",
		"platform", platform,
		"body", string(rb),
	)
}
