package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/balaji-balu/fusion-deploy/internal/metrics"
	"github.com/balaji-balu/fusion-deploy/internal/pagebuilder"
	"github.com/balaji-balu/fusion-deploy/internal/runcontext"
	"github.com/balaji-balu/fusion-deploy/internal/validation"
)

const tracerName = "github.com/balaji-balu/fusion-deploy/internal/orchestrator"

var ErrNoVersions = errors.New("no running versions reported")

// Orchestrator drives one deployment run against the page builder service.
// It is not safe for concurrent use and Run may be called once.
type Orchestrator struct {
	rc      *runcontext.RunContext
	client  Deployer
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	sleep   Sleeper
	now     func() time.Time
	machine *fsm.FSM
}

type Option func(*Orchestrator)

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) { o.sleep = s }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(rc *runcontext.RunContext, client Deployer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		rc:     rc,
		client: client,
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
		sleep:  sleepContext,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.machine = newMachine(o.logger)
	return o
}

// State is the current stage of the run.
func (o *Orchestrator) State() string {
	return o.machine.Current()
}

// Run validates the context, uploads the bundle and, when enabled, deploys,
// retires the oldest version, waits for the new one and promotes it. Fatal
// conditions are reported through SetFailed and returned as *RunError.
func (o *Orchestrator) Run(ctx context.Context) (sum *Summary, err error) {
	rc := o.rc
	sum = &Summary{
		RunID:      uuid.NewString(),
		Provider:   rc.Provider,
		OrgID:      rc.OrgID,
		BundleName: rc.BundleName,
		Ref:        rc.Context.RefName,
		SHA:        rc.Context.SHA,
		StartedAt:  o.now().UTC(),
	}

	ctx, span := o.tracer.Start(ctx, "deploy.run", trace.WithAttributes(
		attribute.String("run.id", sum.RunID),
		attribute.String("bundle.name", rc.BundleName),
		attribute.Bool("deploy", rc.ShouldDeploy),
		attribute.Bool("promote", rc.ShouldPromote),
	))

	defer func() {
		sum.FinishedAt = o.now().UTC()
		sum.State = o.machine.Current()
		sum.Outcome = OutcomeSucceeded
		if err != nil {
			sum.Outcome = OutcomeFailed
			sum.Error = err.Error()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		o.metrics.ObserveRun(string(sum.Outcome))
		span.End()
		o.core().Debug("Finished.")
	}()

	o.logger.Info("starting run",
		zap.String("run_id", sum.RunID),
		zap.String("bundle", rc.BundleName),
		zap.Duration("worst_case_retry_budget", rc.WorstCaseBudget()))
	o.core().Debug(fmt.Sprintf("Retry loops may wait up to %s in total.", rc.WorstCaseBudget()))

	if err := validation.Validate(rc); err != nil {
		return sum, o.fail(ctx, validationMessage(err), err)
	}
	o.transition(ctx, EventValidate)

	current, err := o.client.ListVersions(ctx)
	if err == nil && len(current) == 0 {
		err = ErrNoVersions
	}
	if err != nil {
		return sum, o.fail(ctx, "Unable to determine current versions.", err)
	}
	o.core().Debug("currentVersions " + toJSON(current))

	// Both references come from this one snapshot; lists fetched later are
	// only compared against them.
	oldestVersion := current[0]
	latestVersion := current[len(current)-1]
	sum.RunningVersions = len(current)
	sum.Oldest = oldestVersion
	sum.Baseline = latestVersion

	err = o.phase(ctx, "upload", func(ctx context.Context) error {
		return o.client.Upload(ctx, rc.BundleName, rc.Artifact)
	})
	if err != nil {
		return sum, o.fail(ctx, fmt.Sprintf("Unable to upload bundle %s: %v", rc.BundleName, err), err)
	}
	o.core().Info(fmt.Sprintf("Uploaded bundle %s", rc.BundleName))
	o.transition(ctx, EventUpload)

	if !rc.ShouldDeploy {
		o.core().Info("Deploy is disabled; the bundle was uploaded only.")
		o.transition(ctx, EventFinish)
		return sum, nil
	}

	err = o.phase(ctx, "deploy", func(ctx context.Context) error {
		return o.client.Deploy(ctx, rc.BundleName, rc.PagebuilderVersion)
	})
	if err != nil {
		return sum, o.fail(ctx, fmt.Sprintf("Unable to deploy bundle %s: %v", rc.BundleName, err), err)
	}
	sum.Deployed = true
	o.core().Info(fmt.Sprintf("Deployed bundle %s with PageBuilder %s", rc.BundleName, rc.PagebuilderVersion))
	o.transition(ctx, EventDeploy)

	if len(current) > rc.MinimumRunningVersions {
		var res TerminationResult
		_ = o.phase(ctx, "terminate", func(ctx context.Context) error {
			res = o.TerminateOldest(ctx, oldestVersion)
			return nil
		})
		sum.Termination = &res
		o.core().Debug("terminateOldestVersionResults " + toJSON(res))
		if res.Success {
			o.transition(ctx, EventTerminate)
		}
	} else {
		o.core().Debug(fmt.Sprintf(
			"Not terminating %s: %d running versions does not exceed the minimum of %d.",
			oldestVersion, len(current), rc.MinimumRunningVersions))
	}

	var newest pagebuilder.Version
	err = o.phase(ctx, "poll", func(ctx context.Context) error {
		var perr error
		newest, perr = o.PollForNewVersion(ctx, latestVersion)
		return perr
	})
	if errors.Is(err, ErrPollTimeout) {
		return sum, o.fail(ctx, fmt.Sprintf(
			"We retried %d times with %d seconds between retries. Unfortunately, the new version does not appear to have deployed successfully. Please check logs, and contact support if this problem continues.\n\nYou may wish to retry this action again, but with debugging enabled.",
			rc.RetryCount, rc.RetryDelay), err)
	}
	if err != nil {
		return sum, o.fail(ctx, fmt.Sprintf("Unable to confirm the new version: %v", err), err)
	}

	if err := rc.SetNewestVersion(newest); err != nil {
		return sum, o.fail(ctx, fmt.Sprintf("Unable to record the new version %s: %v", newest, err), err)
	}
	sum.Newest = newest
	o.core().Info(fmt.Sprintf("New version %s is running", newest))
	o.transition(ctx, EventConfirm)

	if rc.ShouldPromote {
		err = o.phase(ctx, "promote", func(ctx context.Context) error {
			return o.client.Promote(ctx, rc.NewestVersion())
		})
		if err != nil {
			return sum, o.fail(ctx, fmt.Sprintf("Unable to promote version %s: %v", rc.NewestVersion(), err), err)
		}
		sum.Promoted = true
		o.core().Info(fmt.Sprintf("Promoted version %s", rc.NewestVersion()))
		o.transition(ctx, EventPromote)
	}

	o.transition(ctx, EventFinish)
	return sum, nil
}

func (o *Orchestrator) phase(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, "deploy."+name)
	defer span.End()

	start := o.now()
	err := fn(ctx)
	o.metrics.ObservePhase(name, o.now().Sub(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (o *Orchestrator) fail(ctx context.Context, msg string, cause error) error {
	o.logger.Error("run failed", zap.String("state", o.machine.Current()), zap.Error(cause))
	o.core().SetFailed(msg)
	o.transition(ctx, EventFail)
	return &RunError{Message: msg, Err: cause}
}

func (o *Orchestrator) transition(ctx context.Context, event string) {
	if err := o.machine.Event(ctx, event); err != nil {
		o.logger.Warn("state transition rejected",
			zap.String("event", event),
			zap.String("state", o.machine.Current()),
			zap.Error(err))
	}
}

func (o *Orchestrator) core() runcontext.Core {
	if o.rc.Core == nil {
		return loggerCore{o.logger}
	}
	return o.rc.Core
}

func validationMessage(err error) string {
	if errors.Is(err, validation.ErrPromoteWithoutDeploy) {
		return "If `promote` is true, `deploy` must also be true."
	}
	return err.Error()
}

type loggerCore struct{ l *zap.Logger }

func (c loggerCore) Debug(msg string)     { c.l.Debug(msg) }
func (c loggerCore) Info(msg string)      { c.l.Info(msg) }
func (c loggerCore) Warning(msg string)   { c.l.Warn(msg) }
func (c loggerCore) SetFailed(msg string) { c.l.Error(msg) }
