package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// GitOps handles git operations on the catalog repository.
type GitOps struct {
	repo     *git.Repository
	worktree *git.Worktree
	token    string
}

// OpenRepo opens the git repository containing the catalog.
func OpenRepo(path, token string) (*GitOps, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("opening repo: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}

	return &GitOps{repo: repo, worktree: wt, token: token}, nil
}

// CreateBranch creates and checks out a new branch at HEAD. Branch names
// are timestamped, so an existing ref means a stale run or clock skew
// and is refused rather than overwritten.
func (g *GitOps) CreateBranch(name string) error {
	branchRef := plumbing.NewBranchReferenceName(name)
	if _, err := g.repo.Reference(branchRef, false); err == nil {
		return fmt.Errorf("branch %s already exists", name)
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return fmt.Errorf("checking branch ref: %w", err)
	}

	headRef, err := g.repo.Head()
	if err != nil {
		return fmt.Errorf("getting HEAD: %w", err)
	}

	ref := plumbing.NewHashReference(branchRef, headRef.Hash())
	if err := g.repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("creating branch ref: %w", err)
	}

	return g.worktree.Checkout(&git.CheckoutOptions{
		Branch: branchRef,
	})
}

// AddAll stages all changes.
func (g *GitOps) AddAll() error {
	_, err := g.worktree.Add(".")
	return err
}

// Commit creates a commit with the given message. A clean worktree is an
// error: the pipeline only reaches this step after writing the catalog,
// so nothing staged means the write went somewhere unexpected.
func (g *GitOps) Commit(message string) error {
	status, err := g.worktree.Status()
	if err != nil {
		return fmt.Errorf("checking worktree status: %w", err)
	}
	if status.IsClean() {
		return errors.New("nothing to commit")
	}

	_, err = g.worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "curator",
			Email: "curator@everstack.dev",
			When:  time.Now(),
		},
	})
	return err
}

// Push pushes one branch to origin. The refspec is scoped to that branch
// and never forced, so a sync run cannot clobber unrelated refs.
func (g *GitOps) Push(branch string) error {
	spec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	return g.repo.Push(&git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{spec},
		Auth: &githttp.BasicAuth{
			Username: "x-access-token",
			Password: g.token,
		},
	})
}
