package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/balaji-balu/fusion-deploy/internal/pagebuilder"
)

const errNoOldestVersion = "Unable to detect the oldest version"

// TerminationAttempt is the outcome of one terminate request.
type TerminationAttempt struct {
	Attempt   int       `json:"attempt" yaml:"attempt"`
	Success   bool      `json:"success" yaml:"success"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Status    int       `json:"status,omitempty" yaml:"status,omitempty"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// TerminationResult records every attempt made to retire one version.
type TerminationResult struct {
	Version    pagebuilder.Version  `json:"version" yaml:"version"`
	Success    bool                 `json:"success" yaml:"success"`
	Attempts   []TerminationAttempt `json:"attempts" yaml:"attempts"`
	FinalError string               `json:"finalError,omitempty" yaml:"finalError,omitempty"`
}

// TerminateOldest tries to terminate target up to TerminateRetryCount times.
// Failures are logged as warnings and reported in the result only; the
// caller carries on with the deployment either way.
func (o *Orchestrator) TerminateOldest(ctx context.Context, target pagebuilder.Version) TerminationResult {
	result := TerminationResult{Version: target, Attempts: []TerminationAttempt{}}

	if target == "" {
		o.core().Warning(errNoOldestVersion)
		result.FinalError = errNoOldestVersion
		return result
	}

	maxAttempts, delay := o.rc.EffectiveTerminateRetry()
	span := trace.SpanFromContext(ctx)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		o.core().Debug(fmt.Sprintf("Attempt %d/%d: Terminating version %s", attempt, maxAttempts, target))

		status, err := o.client.Terminate(ctx, target)
		o.metrics.ObserveTerminateAttempt(err == nil)
		span.AddEvent("terminate attempt", trace.WithAttributes(
			attribute.Int("attempt", attempt),
			attribute.Int("status", status),
			attribute.Bool("success", err == nil),
		))

		if err == nil {
			result.Attempts = append(result.Attempts, TerminationAttempt{
				Attempt:   attempt,
				Success:   true,
				Timestamp: o.now().UTC(),
				Status:    status,
			})
			o.core().Info(fmt.Sprintf("Successfully terminated version %s on attempt %d", target, attempt))
			result.Success = true
			return result
		}

		result.Attempts = append(result.Attempts, TerminationAttempt{
			Attempt:   attempt,
			Timestamp: o.now().UTC(),
			Status:    status,
			Error:     err.Error(),
		})
		o.core().Warning(fmt.Sprintf("Attempt %d/%d failed to terminate version %s: %v", attempt, maxAttempts, target, err))

		if attempt == maxAttempts {
			result.FinalError = err.Error()
			o.core().Warning(fmt.Sprintf(
				"Failed to terminate version %s after %d attempts. Proceeding with deployment. Error: %v",
				target, maxAttempts, err))
			break
		}

		o.core().Debug(fmt.Sprintf("Waiting %d seconds before retry...", int(delay.Seconds())))
		if serr := o.sleep(ctx, delay); serr != nil {
			result.FinalError = serr.Error()
			o.core().Warning(fmt.Sprintf("Stopped terminating version %s: %v", target, serr))
			break
		}
	}

	return result
}
