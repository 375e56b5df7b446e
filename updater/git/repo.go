// Package git wraps the git CLI operations this tool
// needs on the CI working tree, plus the pull request
// provider abstraction.
package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/byte4ever/autoupdater/updater/exec"
)

// Repo is an existing local working tree, typically the
// CI checkout the tool runs inside. The tool never
// clones; it operates in place and restores the base
// revision when done.
type Repo struct {
	// Dir is the filesystem location of the working
	// tree.
	Dir string

	// RemoteName is the name of the upstream remote.
	RemoteName string
}

// Open verifies dir is a git working tree and returns a
// Repo bound to it.
func Open(
	ctx context.Context,
	dir string,
) (*Repo, error) {
	const errCtx = "opening repository"

	if _, err := exec.Ex(
		ctx, dir, "git", "rev-parse", "--git-dir",
	); err != nil {
		return nil, fmt.Errorf(
			"%s: %s: %w", errCtx, dir, err,
		)
	}

	return &Repo{
		Dir:        dir,
		RemoteName: "origin",
	}, nil
}

// MarkSafeDirectory registers dir as a safe git
// directory. Needed when the working tree is a container
// mount owned by another user, as in GitHub Action
// containers.
func MarkSafeDirectory(
	ctx context.Context,
	dir string,
) error {
	const errCtx = "marking safe directory"

	if _, err := exec.Ex(
		ctx, "", "git",
		"config", "--global", "--add",
		"safe.directory", dir,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// SetupIdentity configures the commit author for this
// working tree.
func (r *Repo) SetupIdentity(
	ctx context.Context,
	name string,
	email string,
) error {
	const errCtx = "setting git identity"

	if _, err := exec.Ex(
		ctx, r.Dir, "git",
		"config", "user.name", name,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if _, err := exec.Ex(
		ctx, r.Dir, "git",
		"config", "user.email", email,
	); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// BaseRevision returns the SHA of HEAD.
func (r *Repo) BaseRevision(
	ctx context.Context,
) (string, error) {
	const errCtx = "reading base revision"

	out, err := exec.Ex(
		ctx, r.Dir, "git", "rev-parse", "HEAD",
	)
	if err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return strings.TrimSpace(out), nil
}

// RemoteBranches fetches and returns the names of all
// branches known locally or on the remote, without the
// remotes/<remote>/ prefix.
func (r *Repo) RemoteBranches(
	ctx context.Context,
) ([]string, error) {
	const errCtx = "listing remote branches"

	if _, err := exec.Ex(
		ctx, r.Dir, "git", "fetch", r.RemoteName,
	); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	out, err := exec.Ex(
		ctx, r.Dir, "git",
		"branch", "-a", "--format=%(refname:short)",
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	var branches []string

	for _, line := range strings.Split(out, "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}

		name = strings.TrimPrefix(
			name, r.RemoteName+"/",
		)

		branches = append(branches, name)
	}

	return branches, nil
}

// SwitchToNewBranch creates branch at HEAD and checks it
// out.
func (r *Repo) SwitchToNewBranch(
	ctx context.Context,
	branch string,
) error {
	const errCtx = "switching to new branch"

	if _, err := exec.Ex(
		ctx, r.Dir, "git", "checkout", "-b", branch,
	); err != nil {
		return fmt.Errorf(
			"%s: %s: %w", errCtx, branch, err,
		)
	}

	return nil
}

// Checkout moves the working tree to the given revision
// or branch.
func (r *Repo) Checkout(
	ctx context.Context,
	rev string,
) error {
	const errCtx = "checking out revision"

	if _, err := exec.Ex(
		ctx, r.Dir, "git", "checkout", rev,
	); err != nil {
		return fmt.Errorf(
			"%s: %s: %w", errCtx, rev, err,
		)
	}

	return nil
}

// CommitAll stages every change and commits with the
// given message. Returns false without committing when
// the tree is clean.
func (r *Repo) CommitAll(
	ctx context.Context,
	message string,
) (bool, error) {
	const errCtx = "committing changes"

	if _, err := exec.Ex(
		ctx, r.Dir, "git", "add", "-A",
	); err != nil {
		return false, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	status, err := exec.Ex(
		ctx, r.Dir, "git", "status", "--porcelain",
	)
	if err != nil {
		return false, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	if strings.TrimSpace(status) == "" {
		return false, nil
	}

	if _, err := exec.Ex(
		ctx, r.Dir, "git", "commit", "-m", message,
	); err != nil {
		return false, fmt.Errorf(
			"%s: %w", errCtx, err,
		)
	}

	return true, nil
}

// Push pushes branch to the remote.
func (r *Repo) Push(
	ctx context.Context,
	branch string,
) error {
	const errCtx = "pushing branch"

	if _, err := exec.Ex(
		ctx, r.Dir, "git",
		"push", r.RemoteName, branch,
	); err != nil {
		return fmt.Errorf(
			"%s: %s: %w", errCtx, branch, err,
		)
	}

	return nil
}

// DeleteRemoteBranch removes branch from the remote.
func (r *Repo) DeleteRemoteBranch(
	ctx context.Context,
	branch string,
) error {
	const errCtx = "deleting remote branch"

	if _, err := exec.Ex(
		ctx, r.Dir, "git",
		"push", r.RemoteName, ":"+branch,
	); err != nil {
		return fmt.Errorf(
			"%s: %s: %w", errCtx, branch, err,
		)
	}

	return nil
}
