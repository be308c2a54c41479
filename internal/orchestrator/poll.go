package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/balaji-balu/fusion-deploy/internal/pagebuilder"
)

var ErrPollTimeout = errors.New("new version did not appear")

// PollForNewVersion queries the running versions until the newest one is no
// longer previousLatest. It makes at most RetryCount+1 queries with
// RetryDelay seconds between them. A failed query ends the loop with that
// error instead of being counted as "not yet".
func (o *Orchestrator) PollForNewVersion(ctx context.Context, previousLatest pagebuilder.Version) (pagebuilder.Version, error) {
	remaining := o.rc.RetryCount
	for remaining >= 0 {
		versions, err := o.client.ListVersions(ctx)
		o.metrics.ObservePollQuery()
		if err != nil {
			return "", fmt.Errorf("fetch versions while waiting for deploy: %w", err)
		}
		o.core().Debug("New versions: " + toJSON(versions))

		if n := len(versions); n > 0 && versions[n-1] != previousLatest {
			return versions[n-1], nil
		}

		if err := o.sleep(ctx, o.rc.PollDelay()); err != nil {
			return "", fmt.Errorf("wait for new version: %w", err)
		}
		remaining--
	}
	return "", ErrPollTimeout
}
