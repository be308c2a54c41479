package provider

import (
	"fmt"

	git "github.com/go-git/go-git/v5"

	"github.com/balaji-balu/fusion-deploy/internal/runcontext"
)

// headContext reads the checked out branch and commit of the repository
// containing dir. A detached HEAD yields an empty ref name.
func headContext(dir string) (runcontext.CIContext, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return runcontext.CIContext{}, fmt.Errorf("open repo at %s: %w", dir, err)
	}
	head, err := repo.Head()
	if err != nil {
		return runcontext.CIContext{}, fmt.Errorf("resolve HEAD: %w", err)
	}

	ctx := runcontext.CIContext{SHA: head.Hash().String()}
	if head.Name().IsBranch() || head.Name().IsTag() {
		ctx.RefName = head.Name().Short()
	}
	return ctx, nil
}
