package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const commitMessage = "sync: update gitter activity export"

// GitDestination writes JSONL data to a file in a git repo, commits, and
// pushes to origin when the repo has one.
type GitDestination struct {
	repo   string // path to the local clone
	file   string // file path within the repo
	branch string // branch to commit and push to
	now    func() time.Time
}

// NewGitDestination creates a git destination. repo is the path to an
// existing local repository.
func NewGitDestination(repo, file, branch string) *GitDestination {
	return &GitDestination{
		repo:   repo,
		file:   file,
		branch: branch,
		now:    time.Now,
	}
}

func (d *GitDestination) String() string {
	return "git:" + d.repo + "/" + d.file + "@" + d.branch
}

// Write writes data to the configured file and commits it. Identical content
// produces no commit.
func (d *GitDestination) Write(ctx context.Context, data []byte) error {
	repo, err := git.PlainOpen(d.repo)
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}

	branchRef := plumbing.NewBranchReferenceName(d.branch)
	if err := d.checkout(repo, wt, branchRef); err != nil {
		return fmt.Errorf("git checkout: %w", err)
	}

	_, originErr := repo.Remote("origin")
	hasOrigin := originErr == nil

	// Pull latest to minimize conflicts. Errors are ignored since the remote
	// might not have the branch yet.
	if hasOrigin {
		_ = wt.PullContext(ctx, &git.PullOptions{
			RemoteName:    "origin",
			ReferenceName: branchRef,
			SingleBranch:  true,
		})
	}

	filePath := filepath.Join(d.repo, d.file)
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	rel := filepath.ToSlash(d.file)
	if _, err := wt.Add(rel); err != nil {
		return fmt.Errorf("git add: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("git status: %w", err)
	}
	if fs, ok := status[rel]; !ok || fs.Staging == git.Unmodified {
		return nil
	}

	_, err = wt.Commit(commitMessage, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "gitterbridge",
			Email: "gitterbridge@localhost",
			When:  d.now(),
		},
	})
	if err != nil {
		return fmt.Errorf("git commit: %w", err)
	}

	if !hasOrigin {
		return nil
	}
	refSpec := config.RefSpec(branchRef.String() + ":" + branchRef.String())
	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{refSpec},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("git push: %w", err)
	}
	return nil
}

// checkout switches the worktree to branchRef, creating it from HEAD when it
// does not exist. In a repository without commits HEAD is pointed at the
// branch so the first commit creates it.
func (d *GitDestination) checkout(repo *git.Repository, wt *git.Worktree, branchRef plumbing.ReferenceName) error {
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, branchRef))
	}
	if err != nil {
		return err
	}
	if head.Name() == branchRef {
		return nil
	}

	err = wt.Checkout(&git.CheckoutOptions{Branch: branchRef, Keep: true})
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		err = wt.Checkout(&git.CheckoutOptions{Branch: branchRef, Create: true, Keep: true})
	}
	return err
}
