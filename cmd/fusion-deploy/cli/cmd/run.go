package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/balaji-balu/fusion-deploy/internal/artifact"
	"github.com/balaji-balu/fusion-deploy/internal/journal"
	"github.com/balaji-balu/fusion-deploy/internal/metrics"
	"github.com/balaji-balu/fusion-deploy/internal/notify"
	"github.com/balaji-balu/fusion-deploy/internal/orchestrator"
	"github.com/balaji-balu/fusion-deploy/internal/provider"
	"github.com/balaji-balu/fusion-deploy/internal/runcontext"
	"github.com/balaji-balu/fusion-deploy/internal/telemetry"
	"github.com/balaji-balu/fusion-deploy/internal/validation"
)

const afterRunTimeout = 30 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Upload, deploy, rotate and promote a bundle",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		tOpts := telemetry.Options{
			ServiceName:  "fusion-deploy",
			Version:      version,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			Insecure:     cfg.Telemetry.OTLPInsecure,
		}
		if cfg.Telemetry.Stdout {
			tOpts.Stdout = os.Stderr
		}
		shutdown, err := telemetry.Setup(ctx, tOpts)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				log.Warn("trace shutdown failed", zap.Error(err))
			}
		}()

		p, rc, client, err := setup(cmd)
		if err != nil {
			return err
		}

		if err := resolveArtifact(ctx, p, rc); err != nil {
			return err
		}

		m := metrics.New("run")
		o := orchestrator.New(rc, client,
			orchestrator.WithLogger(log.Named("orchestrator")),
			orchestrator.WithMetrics(m))
		sum, runErr := o.Run(ctx)

		// Reporting must not be cut short by the signal that ended the run.
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), afterRunTimeout)
		defer cancel()
		afterRun(actx, p, rc, sum, m)

		if runErr != nil || p.Failed() {
			log.Debug("run failed", zap.Error(runErr))
			return errRunFailed
		}
		return nil
	},
}

func init() {
	addInputFlags(runCmd)
}

// resolveArtifact pulls oci:// artifacts once the inputs are known to be
// valid, so an invalid run makes no network calls at all.
func resolveArtifact(ctx context.Context, p provider.Provider, rc *runcontext.RunContext) error {
	if !strings.HasPrefix(rc.Artifact, artifact.Scheme) || validation.Validate(rc) != nil {
		return nil
	}
	dir, err := os.MkdirTemp("", "fusion-artifact-")
	if err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	r := &artifact.Resolver{
		WorkDir:   dir,
		Username:  cfg.Input("registry-username"),
		Password:  cfg.Input("registry-password"),
		PlainHTTP: cfg.Input("registry-plain-http") == "true",
		Logger:    log.Named("artifact"),
	}
	path, err := r.Resolve(ctx, rc.Artifact)
	if err != nil {
		p.SetFailed(fmt.Sprintf("Unable to fetch artifact %s: %v", rc.Artifact, err))
		return errRunFailed
	}
	p.Debug(fmt.Sprintf("Pulled %s to %s", rc.Artifact, path))
	rc.Artifact = path
	return nil
}

// afterRun records and announces the run. Nothing here changes its outcome.
func afterRun(ctx context.Context, p provider.Provider, rc *runcontext.RunContext, sum *orchestrator.Summary, m *metrics.Metrics) {
	if sum == nil {
		return
	}

	if rc.Journal != "" {
		if err := saveToJournal(rc.Journal, sum); err != nil {
			p.Warning(fmt.Sprintf("Unable to record the run in %s: %v", rc.Journal, err))
		}
	}

	var notifiers []notify.Notifier
	if rc.GitHubToken != "" {
		repo := os.Getenv("GITHUB_REPOSITORY")
		var opts []notify.GitHubOption
		if api := os.Getenv("GITHUB_API_URL"); api != "" {
			opts = append(opts, notify.WithAPIURL(api))
		}
		if server, id := os.Getenv("GITHUB_SERVER_URL"), os.Getenv("GITHUB_RUN_ID"); server != "" && id != "" {
			opts = append(opts, notify.WithTargetURL(fmt.Sprintf("%s/%s/actions/runs/%s", server, repo, id)))
		}
		gh, err := notify.NewGitHubStatus(ctx, rc.GitHubToken, repo, opts...)
		if err != nil {
			p.Warning(fmt.Sprintf("Unable to set up the GitHub commit status: %v", err))
		} else {
			notifiers = append(notifiers, gh)
		}
	}
	if rc.NATSURL != "" {
		nc, err := notify.DialNATS(rc.NATSURL)
		if err != nil {
			p.Warning(fmt.Sprintf("Unable to connect to NATS: %v", err))
		} else {
			defer nc.Close()
			notifiers = append(notifiers, nc)
		}
	}
	notify.Dispatch(ctx, sum, p.Warning, notifiers...)

	if url := cfg.Metrics.PushgatewayURL; url != "" {
		grouping := map[string]string{"org": rc.OrgID, "provider": rc.Provider}
		if err := m.Push(ctx, url, cfg.Metrics.Job, grouping); err != nil {
			log.Warn("metrics push failed", zap.Error(err))
		}
	}
}

func saveToJournal(path string, sum *orchestrator.Summary) error {
	store, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(sum)
}
