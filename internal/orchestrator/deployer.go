package orchestrator

import (
	"context"
	"time"

	"github.com/balaji-balu/fusion-deploy/internal/pagebuilder"
)

// Deployer is the part of the page builder API a run needs.
// *pagebuilder.Client satisfies it.
type Deployer interface {
	ListVersions(ctx context.Context) ([]pagebuilder.Version, error)
	Upload(ctx context.Context, bundleName, artifactPath string) error
	Deploy(ctx context.Context, bundleName, pagebuilderVersion string) error
	Terminate(ctx context.Context, v pagebuilder.Version) (int, error)
	Promote(ctx context.Context, v pagebuilder.Version) error
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
