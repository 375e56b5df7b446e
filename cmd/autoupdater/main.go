// Command autoupdater scans a working tree's compose and
// manifest files for container image references, checks
// Docker Hub for newer tags, and either reports the
// resulting update plan (dry run) or applies it and opens
// a pull request.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/byte4ever/autoupdater/updater/apply"
	"github.com/byte4ever/autoupdater/updater/config"
	"github.com/byte4ever/autoupdater/updater/git"
	"github.com/byte4ever/autoupdater/updater/git/github"
	"github.com/byte4ever/autoupdater/updater/git/gitlab"
	"github.com/byte4ever/autoupdater/updater/plan"
	"github.com/byte4ever/autoupdater/updater/planner"
	"github.com/byte4ever/autoupdater/updater/registry/hub"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // CLI flag setup is inherently long
func run() error {
	const errCtx = "running autoupdater"

	// Inputs follow the GitHub Action convention: every
	// flag falls back to its INPUT_* environment
	// variable, then to the config file.
	token := flag.String(
		"token", "",
		"Access token for PR creation "+
			"(env INPUT_TOKEN)",
	)
	repoName := flag.String(
		"repo", "",
		"Repository being updated, owner/name "+
			"(env GITHUB_REPOSITORY)",
	)
	fileMatch := flag.String(
		"file-match", "",
		"Glob selecting manifest files "+
			"(env INPUT_FILE-MATCH)",
	)
	extraFields := flag.String(
		"extra-fields", "",
		"Extra field-to-template mapping as JSON "+
			"(env INPUT_EXTRA-FIELDS)",
	)
	dry := flag.Bool(
		"dry", false,
		"Compute and report the plan without "+
			"applying it (env INPUT_DRY)",
	)
	configPath := flag.String(
		"config", ".autoupdater.yaml",
		"Optional YAML config file",
	)
	root := flag.String(
		"root", ".",
		"Working tree root to scan",
	)
	parallelism := flag.Int(
		"parallelism", 0,
		"Concurrent registry lookups (0 = sequential)",
	)
	branchPrefix := flag.String(
		"branch-prefix", "",
		"Prefix for delivery branch names",
	)
	primaryBranch := flag.String(
		"primary-branch", "",
		"Base branch for pull requests",
	)
	prTitle := flag.String(
		"pr-title", "",
		"Pull request title template",
	)

	// Git provider selection.
	gitServer := flag.String(
		"git-server", "github",
		"Git hosting platform: github or gitlab",
	)
	ghEnterprise := flag.String(
		"github-enterprise-host", "",
		"GitHub Enterprise hostname",
	)
	glHost := flag.String(
		"gitlab-host", "",
		"GitLab instance URL",
	)

	flag.Parse()

	setFlags := make(map[string]bool)

	flag.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	cfg.FileMatch = pick(
		setFlags["file-match"], *fileMatch,
		os.Getenv("INPUT_FILE-MATCH"),
		cfg.FileMatch,
	)
	cfg.BranchPrefix = pick(
		setFlags["branch-prefix"], *branchPrefix,
		"", cfg.BranchPrefix,
	)
	cfg.PrimaryBranch = pick(
		setFlags["primary-branch"], *primaryBranch,
		"", cfg.PrimaryBranch,
	)
	cfg.PRTitle = pick(
		setFlags["pr-title"], *prTitle,
		"", cfg.PRTitle,
	)

	if setFlags["parallelism"] {
		cfg.Parallelism = *parallelism
	}

	if setFlags["dry"] {
		cfg.DryRun = *dry
	} else if os.Getenv("INPUT_DRY") == "true" {
		cfg.DryRun = true
	}

	rawFields := pick(
		setFlags["extra-fields"], *extraFields,
		os.Getenv("INPUT_EXTRA-FIELDS"), "",
	)
	if rawFields != "" {
		fields, err := config.ParseExtraFieldsJSON(
			rawFields,
		)
		if err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}

		cfg.ExtraFields = fields
	}

	// Configuration errors are fatal before any
	// scanning begins.
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	pl, err := buildPlan(
		context.Background(), cfg, *root,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if !pl.Empty() {
		data, err := pl.JSON()
		if err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}

		if err := writeActionOutput(
			"plan", string(data),
		); err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}
	}

	fmt.Print(pl.Report())

	if cfg.DryRun {
		slog.Info(
			"dry run: skipping apply",
			"entries", len(pl.Entries),
		)

		return nil
	}

	if err := applyPlan(
		context.Background(),
		cfg,
		pl,
		deliveryFlags{
			root: *root,
			token: pick(
				setFlags["token"], *token,
				os.Getenv("INPUT_TOKEN"), "",
			),
			repo: pick(
				setFlags["repo"], *repoName,
				os.Getenv("GITHUB_REPOSITORY"), "",
			),
			gitServer:    *gitServer,
			ghEnterprise: *ghEnterprise,
			glHost:       *glHost,
		},
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// pick resolves a setting with flag > env > fallback
// precedence.
func pick(
	flagSet bool,
	flagVal string,
	envVal string,
	fallback string,
) string {
	switch {
	case flagSet:
		return flagVal
	case envVal != "":
		return envVal
	default:
		return fallback
	}
}

// buildPlan scans the working tree and resolves the
// update plan against Docker Hub.
func buildPlan(
	ctx context.Context,
	cfg config.Config,
	root string,
) (plan.Plan, error) {
	const errCtx = "building update plan"

	files, err := config.MatchFiles(root, cfg.FileMatch)
	if err != nil {
		return plan.Plan{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	slog.Info(
		"scanning files",
		"glob", cfg.FileMatch,
		"count", len(files),
	)

	patterns, err := cfg.Patterns()
	if err != nil {
		return plan.Plan{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	builder := &planner.Builder{
		Registry: hub.NewClient(hub.Config{}),
		Patterns: patterns,
		ReadFile: func(path string) (string, error) {
			data, err := os.ReadFile(
				filepath.Join(root, path),
			)
			if err != nil {
				return "", err
			}

			return string(data), nil
		},
		Parallelism: cfg.Parallelism,
	}

	pl, err := builder.Build(ctx, files)
	if err != nil {
		return plan.Plan{}, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return pl, nil
}

// deliveryFlags carries the provider settings resolved
// from the command line and environment.
type deliveryFlags struct {
	root         string
	token        string
	repo         string
	gitServer    string
	ghEnterprise string
	glHost       string
}

func applyPlan(
	ctx context.Context,
	cfg config.Config,
	pl plan.Plan,
	flags deliveryFlags,
) error {
	const errCtx = "applying update plan"

	provider, err := newGitProvider(flags)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	// Action runners mount the workspace under a
	// different owner than the container user.
	if os.Getenv("GITHUB_OUTPUT") != "" {
		abs, err := filepath.Abs(flags.root)
		if err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}

		if err := git.MarkSafeDirectory(
			ctx, abs,
		); err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}
	}

	repo, err := git.Open(ctx, flags.root)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := repo.SetupIdentity(
		ctx, "Updater", "updater@devnull.localhost",
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	applier := &apply.Applier{
		Repo:          repo,
		Provider:      provider,
		BranchPrefix:  cfg.BranchPrefix,
		PrimaryBranch: cfg.PrimaryBranch,
		TitleTemplate: cfg.PRTitle,
		ReadFile: func(path string) (string, error) {
			data, err := os.ReadFile(
				filepath.Join(flags.root, path),
			)
			if err != nil {
				return "", err
			}

			return string(data), nil
		},
		WriteFile: func(path, text string) error {
			return os.WriteFile(
				filepath.Join(flags.root, path),
				[]byte(text),
				0o644,
			)
		},
	}

	if err := applier.Apply(ctx, pl); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// Pattern: Factory -- picks the PR provider matching the
// configured git server.
func newGitProvider(
	flags deliveryFlags,
) (git.GitProvider, error) {
	const errCtx = "creating git provider"

	switch flags.gitServer {
	case "github":
		provider, err := github.NewProvider(
			github.Config{
				Repo:           flags.repo,
				AccessToken:    flags.token,
				EnterpriseHost: flags.ghEnterprise,
			},
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return provider, nil

	case "gitlab":
		provider, err := gitlab.NewProvider(
			gitlab.Config{
				Host:        flags.glHost,
				Repo:        flags.repo,
				AccessToken: flags.token,
			},
		)
		if err != nil {
			return nil, fmt.Errorf(
				"%s: %w", errCtx, err,
			)
		}

		return provider, nil

	default:
		return nil, fmt.Errorf(
			"%s: unknown git server %q",
			errCtx, flags.gitServer,
		)
	}
}

// writeActionOutput publishes a step output. Outside of
// an Action run the pair is printed to stdout instead.
func writeActionOutput(name, value string) error {
	const errCtx = "writing action output"

	path := os.Getenv("GITHUB_OUTPUT")
	if path == "" {
		fmt.Printf("%s=%s\n", name, value)

		return nil
	}

	f, err := os.OpenFile(
		path,
		os.O_APPEND|os.O_CREATE|os.O_WRONLY,
		0o644,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	defer f.Close() //nolint:errcheck // append-only file

	if _, err := fmt.Fprintf(
		f, "%s=%s\n", name, value,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}
