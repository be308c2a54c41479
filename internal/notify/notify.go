package notify

import (
	"context"
	"fmt"

	"github.com/balaji-balu/fusion-deploy/internal/orchestrator"
)

// Notifier reports a finished run to an outside system.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, sum *orchestrator.Summary) error
}

// Dispatch sends sum to every notifier. A failing notifier is reported
// through warn and does not stop the others.
func Dispatch(ctx context.Context, sum *orchestrator.Summary, warn func(string), notifiers ...Notifier) int {
	failed := 0
	for _, n := range notifiers {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, sum); err != nil {
			failed++
			warn(fmt.Sprintf("Unable to notify %s: %v", n.Name(), err))
		}
	}
	return failed
}

// describe is the one line used by every notifier.
func describe(sum *orchestrator.Summary) string {
	switch {
	case sum.Outcome == orchestrator.OutcomeFailed:
		return fmt.Sprintf("Bundle %s failed: %s", sum.BundleName, sum.Error)
	case sum.Promoted:
		return fmt.Sprintf("Bundle %s running and promoted as version %s", sum.BundleName, sum.Newest)
	case sum.Deployed:
		return fmt.Sprintf("Bundle %s running as version %s", sum.BundleName, sum.Newest)
	default:
		return fmt.Sprintf("Bundle %s uploaded", sum.BundleName)
	}
}
