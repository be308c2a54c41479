package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/balaji-balu/fusion-deploy/internal/pagebuilder"
	"github.com/balaji-balu/fusion-deploy/internal/provider"
	"github.com/balaji-balu/fusion-deploy/internal/runcontext"
)

// addInputFlags registers the deployment inputs. They are all strings with
// empty defaults so an unset flag never hides a CI input or a default.
func addInputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("api-key", "", "page builder API key")
	f.String("org-id", "", "organisation id")
	f.String("api-hostname", "", "API hostname, for example api.sandbox.example.arcpublishing.com")
	f.String("bundle-prefix", "", "bundle name prefix (default \"bundle\")")
	f.String("pagebuilder-version", "", "page builder version to deploy with (default \"latest\")")
	f.String("artifact", "", "bundle zip path or oci://registry/repo:tag (default \"dist/fusion-bundle.zip\")")
	f.String("retry-count", "", "times to re-check for the new version (default 10)")
	f.String("retry-delay", "", "seconds between checks for the new version (default 5)")
	f.String("minimum-running-versions", "", "never terminate below this many running versions (default 7)")
	f.String("terminate-retry-count", "", "attempts to terminate the oldest version (default 3)")
	f.String("terminate-retry-delay", "", "seconds between termination attempts (default 10)")
	f.String("deploy", "", "deploy the uploaded bundle: true or false")
	f.String("promote", "", "promote the new version: true or false")
	f.String("journal", "", "bbolt file to record the run in")
	f.String("github-token", "", "token used to set a commit status")
	f.String("nats-url", "", "NATS server to publish the run event to")
	f.String("base-url", "", "override https://<api-hostname>, for example a local sandbox")
	f.String("registry-username", "", "username for oci:// artifacts")
	f.String("registry-password", "", "password or token for oci:// artifacts")
	f.Bool("registry-plain-http", false, "pull oci:// artifacts over plain HTTP")
}

func newProvider(cmd *cobra.Command) (provider.Provider, error) {
	return provider.ByName(cfg.Input("provider"), provider.Options{
		Stdout:   cmd.OutOrStdout(),
		Stderr:   cmd.ErrOrStderr(),
		Fallback: cfg,
		Verbose:  cfg.Verbose,
	})
}

// setup builds the provider, the run context and a client for it. Input
// errors are reported through the provider.
func setup(cmd *cobra.Command) (provider.Provider, *runcontext.RunContext, *pagebuilder.Client, error) {
	p, err := newProvider(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Debug("using provider", zap.String("provider", p.Name()))

	rc, err := p.CreateRunContext()
	if err != nil {
		p.SetFailed(err.Error())
		p.Debug("Finished.")
		return p, nil, nil, errRunFailed
	}

	opts := []pagebuilder.Option{
		pagebuilder.WithLogger(log.Named("pagebuilder")),
		pagebuilder.WithUserAgent(fmt.Sprintf("fusion-deploy/%s (%s)", version, p.Name())),
	}
	if u := cfg.Input("base-url"); u != "" {
		opts = append(opts, pagebuilder.WithBaseURL(u))
	}
	return p, rc, pagebuilder.NewClient(rc.APIHostname, rc.APIKey, opts...), nil
}
