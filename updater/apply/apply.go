// Package apply turns a computed plan into repository
// changes: it rewrites the affected lines, commits them
// on a digest-named branch, pushes, and opens a pull
// request. The plan itself is never recomputed here.
package apply

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/valyala/fasttemplate"

	"github.com/byte4ever/autoupdater/updater/git"
	"github.com/byte4ever/autoupdater/updater/plan"
)

// Repository is the subset of git operations the applier
// needs. *git.Repo implements it.
type Repository interface {
	BaseRevision(ctx context.Context) (string, error)
	RemoteBranches(
		ctx context.Context,
	) ([]string, error)
	SwitchToNewBranch(
		ctx context.Context,
		branch string,
	) error
	Checkout(ctx context.Context, rev string) error
	CommitAll(
		ctx context.Context,
		message string,
	) (bool, error)
	Push(ctx context.Context, branch string) error
	DeleteRemoteBranch(
		ctx context.Context,
		branch string,
	) error
}

// Applier applies a non-empty plan to the working tree
// and delivers it as a pull request.
type Applier struct {
	// Repo is the working tree to modify.
	Repo Repository

	// Provider opens the pull request.
	Provider git.GitProvider

	// BranchPrefix prefixes the digest-named delivery
	// branch.
	BranchPrefix string

	// PrimaryBranch is the PR base branch.
	PrimaryBranch string

	// TitleTemplate is a fasttemplate with {count} and
	// {files} variables.
	TitleTemplate string

	// ReadFile and WriteFile default to os.ReadFile and
	// os.WriteFile.
	ReadFile  func(path string) (string, error)
	WriteFile func(path string, text string) error
}

// Apply rewrites the plan's files, commits them on the
// delivery branch, pushes, opens the PR, restores the
// base revision, and cleans up stale delivery branches.
// An empty plan is a successful no-op. A branch that
// already exists for this exact plan is reused: nothing
// is rewritten or pushed again.
func (a *Applier) Apply(
	ctx context.Context,
	pl plan.Plan,
) error {
	const errCtx = "applying update plan"

	if pl.Empty() {
		slog.Info("nothing to update")

		return nil
	}

	branch := pl.BranchName(a.BranchPrefix)

	branches, err := a.Repo.RemoteBranches(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if contains(branches, branch) {
		slog.Info(
			"branch for this plan already exists, "+
				"skipping",
			"branch", branch,
		)

		a.cleanupStale(ctx, branches, branch)

		return nil
	}

	base, err := a.Repo.BaseRevision(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := a.Repo.SwitchToNewBranch(
		ctx, branch,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := a.deliver(ctx, pl, branch); err != nil {
		a.restore(ctx, base)

		return fmt.Errorf("%s: %w", errCtx, err)
	}

	a.restore(ctx, base)
	a.cleanupStale(ctx, branches, branch)

	return nil
}

// deliver performs the file edits, commit, push, and PR
// creation on the already-checked-out delivery branch.
func (a *Applier) deliver(
	ctx context.Context,
	pl plan.Plan,
	branch string,
) error {
	const errCtx = "delivering plan"

	if err := a.rewriteFiles(pl); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	title := a.renderTitle(pl)

	committed, err := a.Repo.CommitAll(
		ctx, pl.CommitMessage(title),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if !committed {
		slog.Warn(
			"plan produced no file changes, " +
				"skipping delivery",
		)

		return nil
	}

	if err := a.Repo.Push(ctx, branch); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if err := a.Provider.CreatePR(
		ctx,
		branch,
		a.PrimaryBranch,
		title,
		pl.Report(),
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// rewriteFiles applies the plan's line edits file by
// file.
func (a *Applier) rewriteFiles(pl plan.Plan) error {
	const errCtx = "rewriting files"

	readFile := a.ReadFile
	if readFile == nil {
		readFile = func(path string) (string, error) {
			data, err := os.ReadFile(path) //nolint:gosec // plan paths come from the scan
			if err != nil {
				return "", err
			}

			return string(data), nil
		}
	}

	writeFile := a.WriteFile
	if writeFile == nil {
		writeFile = func(
			path string,
			text string,
		) error {
			//nolint:gosec // manifests are world-readable
			return os.WriteFile(
				path, []byte(text), 0o644,
			)
		}
	}

	for _, file := range pl.Files() {
		text, err := readFile(file)
		if err != nil {
			return fmt.Errorf(
				"%s: %s: %w", errCtx, file, err,
			)
		}

		updated, err := Rewrite(
			text, pl.ForFile(file),
		)
		if err != nil {
			return fmt.Errorf(
				"%s: %s: %w", errCtx, file, err,
			)
		}

		if err := writeFile(file, updated); err != nil {
			return fmt.Errorf(
				"%s: %s: %w", errCtx, file, err,
			)
		}
	}

	return nil
}

// renderTitle expands the title template with plan
// variables.
func (a *Applier) renderTitle(pl plan.Plan) string {
	return fasttemplate.ExecuteStringStd(
		a.TitleTemplate,
		"{", "}",
		map[string]any{
			"count": fmt.Sprint(len(pl.Entries)),
			"files": strings.Join(pl.Files(), ", "),
		},
	)
}

// restore moves the working tree back to the base
// revision. Failures are logged, not propagated: the
// delivery outcome matters more than the final checkout
// state of a throwaway CI workspace.
func (a *Applier) restore(
	ctx context.Context,
	base string,
) {
	if err := a.Repo.Checkout(ctx, base); err != nil {
		slog.Error(
			"failed to restore base revision",
			"revision", base,
			"error", err,
		)
	}
}

// cleanupStale deletes delivery branches from previous
// runs: branches carrying the configured prefix and a
// digest-length name that is not the branch to keep.
func (a *Applier) cleanupStale(
	ctx context.Context,
	branches []string,
	keep string,
) {
	wantLen := len(a.BranchPrefix) + plan.DigestLength

	for _, branch := range branches {
		if branch == keep ||
			len(branch) != wantLen ||
			!strings.HasPrefix(
				branch, a.BranchPrefix,
			) {
			continue
		}

		slog.Warn(
			"cleaning up stale delivery branch",
			"branch", branch,
		)

		if err := a.Repo.DeleteRemoteBranch(
			ctx, branch,
		); err != nil {
			slog.Error(
				"failed to delete stale branch",
				"branch", branch,
				"error", err,
			)
		}
	}
}

// contains reports whether list holds item.
func contains(list []string, item string) bool {
	for _, entry := range list {
		if entry == item {
			return true
		}
	}

	return false
}
