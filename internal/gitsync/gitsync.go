// Package gitsync implements content synchronization against a git remote:
// clone when absent, fetch-and-hard-reset when present. The reset makes the
// operation convergent — any partially completed prior sync is repaired by
// simply running Sync again.
package gitsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"dt-go/internal/dt"
)

// GitSyncer implements dt.Syncer using go-git, so no git binary is required
// on the target machine.
type GitSyncer struct {
	auth   transport.AuthMethod
	logger dt.Logger
	priv   dt.Privilege
}

// New creates a GitSyncer. Authentication is probed from the environment
// (SSH keys, then token variables); public HTTPS remotes need none.
func New(logger dt.Logger, priv dt.Privilege) *GitSyncer {
	return &GitSyncer{
		auth:   probeAuth(),
		logger: logger,
		priv:   priv,
	}
}

// Sync brings targetDir to the remote head of the branch.
func (g *GitSyncer) Sync(ctx context.Context, spec dt.SyncSpec) (*dt.SyncResult, error) {
	repo, err := git.PlainOpen(spec.TargetDir)
	if err != nil {
		if !errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("opening repository at %s: %w", spec.TargetDir, err)
		}
		return g.cloneFresh(ctx, spec)
	}

	remoteHash, err := g.fetchRemoteHead(ctx, repo, spec.Branch)
	if err != nil {
		return nil, err
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("reading local head: %w", err)
	}

	if head.Hash() == remoteHash {
		return &dt.SyncResult{
			Outcome:  dt.SyncUpToDate,
			Revision: remoteHash.String(),
		}, nil
	}

	// Only the reset mutates the working tree; the fetch above ran without
	// any elevated capability.
	err = g.priv.Mutate("reset", func() error {
		wt, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("opening worktree: %w", err)
		}
		if err := wt.Reset(&git.ResetOptions{Mode: git.HardReset, Commit: remoteHash}); err != nil {
			return fmt.Errorf("hard reset to %s: %w", remoteHash, err)
		}
		return g.updateSubmodules(wt)
	})
	if err != nil {
		return nil, err
	}

	g.logger.Info("reset to remote head", "old", head.Hash().String(), "new", remoteHash.String())
	return &dt.SyncResult{
		Outcome:       dt.SyncUpdated,
		Revision:      remoteHash.String(),
		OldRevision:   head.Hash().String(),
		CommitSummary: g.commitSummary(repo, remoteHash),
	}, nil
}

// Check fetches and compares heads without touching the working tree.
func (g *GitSyncer) Check(ctx context.Context, spec dt.SyncSpec) (*dt.CheckResult, error) {
	repo, err := git.PlainOpen(spec.TargetDir)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%s: %w", spec.TargetDir, dt.ErrNotInstalled)
		}
		return nil, fmt.Errorf("opening repository at %s: %w", spec.TargetDir, err)
	}

	remoteHash, err := g.fetchRemoteHead(ctx, repo, spec.Branch)
	if err != nil {
		return nil, err
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("reading local head: %w", err)
	}

	res := &dt.CheckResult{
		UpToDate:       head.Hash() == remoteHash,
		LocalRevision:  head.Hash().String(),
		RemoteRevision: remoteHash.String(),
	}
	if !res.UpToDate {
		res.CommitSummary = g.commitSummary(repo, remoteHash)
	}
	return res, nil
}

// Head returns the current local revision.
func (g *GitSyncer) Head(targetDir string) (string, error) {
	repo, err := git.PlainOpen(targetDir)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return "", fmt.Errorf("%s: %w", targetDir, dt.ErrNotInstalled)
		}
		return "", fmt.Errorf("opening repository at %s: %w", targetDir, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("reading local head: %w", err)
	}
	return head.Hash().String(), nil
}

// Remove deletes the installation directory. It refuses to delete a
// directory that holds no tracked repository, so a mistyped path cannot
// wipe unrelated data.
func (g *GitSyncer) Remove(_ context.Context, targetDir string) error {
	if _, err := git.PlainOpen(targetDir); err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return fmt.Errorf("%s: %w", targetDir, dt.ErrNotInstalled)
		}
		return fmt.Errorf("opening repository at %s: %w", targetDir, err)
	}
	if err := os.RemoveAll(targetDir); err != nil {
		return fmt.Errorf("removing %s: %w", targetDir, err)
	}
	return nil
}

// cloneFresh performs a full clone of the branch, including submodules.
// A failed clone leaves the target absent — never half-cloned.
func (g *GitSyncer) cloneFresh(ctx context.Context, spec dt.SyncSpec) (*dt.SyncResult, error) {
	repo, err := git.PlainCloneContext(ctx, spec.TargetDir, false, &git.CloneOptions{
		URL:               spec.URL,
		Auth:              g.auth,
		ReferenceName:     plumbing.NewBranchReferenceName(spec.Branch),
		SingleBranch:      true,
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	})
	if err != nil {
		if rmErr := os.RemoveAll(spec.TargetDir); rmErr != nil {
			g.logger.Warn("cleaning up failed clone", "dir", spec.TargetDir, "error", rmErr)
		}
		return nil, fmt.Errorf("cloning %s (branch %s): %w", spec.URL, spec.Branch, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("reading head after clone: %w", err)
	}

	g.logger.Info("cloned", "url", spec.URL, "branch", spec.Branch, "revision", head.Hash().String())
	return &dt.SyncResult{
		Outcome:       dt.SyncFresh,
		Revision:      head.Hash().String(),
		CommitSummary: g.commitSummary(repo, head.Hash()),
	}, nil
}

// fetchRemoteHead fetches the branch from origin and returns its hash.
func (g *GitSyncer) fetchRemoteHead(ctx context.Context, repo *git.Repository, branch string) (plumbing.Hash, error) {
	refspec := gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", branch, branch))
	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{refspec},
		Auth:       g.auth,
		Force:      true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return plumbing.ZeroHash, fmt.Errorf("fetching %s: %w", branch, err)
	}

	ref, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolving origin/%s: %w", branch, err)
	}
	return ref.Hash(), nil
}

// updateSubmodules syncs nested content modules after a reset.
func (g *GitSyncer) updateSubmodules(wt *git.Worktree) error {
	subs, err := wt.Submodules()
	if err != nil {
		return fmt.Errorf("listing submodules: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}
	err = subs.Update(&git.SubmoduleUpdateOptions{
		Init:              true,
		Auth:              g.auth,
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	})
	if err != nil {
		return fmt.Errorf("updating submodules: %w", err)
	}
	return nil
}

// commitSummary returns the first line of the commit message, or "" when the
// object cannot be read.
func (g *GitSyncer) commitSummary(repo *git.Repository, hash plumbing.Hash) string {
	commit, err := repo.CommitObject(hash)
	if err != nil {
		return ""
	}
	summary, _, _ := strings.Cut(commit.Message, "\n")
	return strings.TrimSpace(summary)
}

// Compile-time check that GitSyncer implements dt.Syncer.
var _ dt.Syncer = (*GitSyncer)(nil)
