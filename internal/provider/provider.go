package provider

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/balaji-balu/fusion-deploy/internal/runcontext"
)

// Provider is the CI system the tool runs under. It supplies the inputs and
// commit context and renders log lines the way that system expects them.
type Provider interface {
	runcontext.Core

	Name() string
	// GetInput returns the named input, or "" when it is not set anywhere.
	// Names use the provider's own convention ("api-key" or "apiKey").
	GetInput(name string) string
	// Failed reports whether SetFailed has been called.
	Failed() bool
	GetContext() runcontext.CIContext
	CreateRunContext() (*runcontext.RunContext, error)
}

// InputSource supplies inputs that are missing from the CI environment.
// Names passed to it are always dashed ("api-key").
type InputSource interface {
	Input(name string) string
}

type Options struct {
	Stdout   io.Writer
	Stderr   io.Writer
	Fallback InputSource
	Getenv   func(string) string
	Now      func() time.Time
	// RepoDir is searched for a git repository when the CI context lacks
	// a ref or sha.
	RepoDir string
	Verbose bool
}

func (o Options) withDefaults() Options {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.Getenv == nil {
		o.Getenv = os.Getenv
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.RepoDir == "" {
		o.RepoDir = "."
	}
	return o
}

// Detect picks the provider from the environment: GITHUB_ACTIONS, TF_BUILD
// and GITLAB_CI are checked in that order. Anything else falls back to the
// GitHub provider with a warning.
func Detect(opts Options) Provider {
	opts = opts.withDefaults()
	switch {
	case opts.Getenv("GITHUB_ACTIONS") != "":
		return NewGitHub(opts)
	case opts.Getenv("TF_BUILD") != "":
		return NewAzure(opts)
	case opts.Getenv("GITLAB_CI") != "":
		return NewGitLab(opts)
	}
	p := NewGitHub(opts)
	p.Warning("Unable to detect the CI provider. Falling back to GitHub Actions conventions.")
	return p
}

// ByName returns the provider called name ("github", "azure", "gitlab").
func ByName(name string, opts Options) (Provider, error) {
	opts = opts.withDefaults()
	switch strings.ToLower(name) {
	case "", "auto":
		return Detect(opts), nil
	case NameGitHub:
		return NewGitHub(opts), nil
	case NameAzure:
		return NewAzure(opts), nil
	case NameGitLab:
		return NewGitLab(opts), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// base holds what the three providers share.
type base struct {
	opts   Options
	failed atomic.Bool
}

func (b *base) getenv(key string) string {
	return strings.TrimSpace(b.opts.Getenv(key))
}

func (b *base) fallback(dashed string) string {
	if b.opts.Fallback == nil {
		return ""
	}
	return b.opts.Fallback.Input(dashed)
}

func (b *base) Failed() bool {
	return b.failed.Load()
}

// inputNames is the provider's spelling of each input.
type inputNames struct {
	APIKey                 string
	OrgID                  string
	APIHostname            string
	BundlePrefix           string
	PagebuilderVersion     string
	Artifact               string
	RetryCount             string
	RetryDelay             string
	MinimumRunningVersions string
	TerminateRetryCount    string
	TerminateRetryDelay    string
	Deploy                 string
	Promote                string
	Journal                string
	GitHubToken            string
	NATSURL                string
}

var dashedNames = inputNames{
	APIKey:                 "api-key",
	OrgID:                  "org-id",
	APIHostname:            "api-hostname",
	BundlePrefix:           "bundle-prefix",
	PagebuilderVersion:     "pagebuilder-version",
	Artifact:               "artifact",
	RetryCount:             "retry-count",
	RetryDelay:             "retry-delay",
	MinimumRunningVersions: "minimum-running-versions",
	TerminateRetryCount:    "terminate-retry-count",
	TerminateRetryDelay:    "terminate-retry-delay",
	Deploy:                 "deploy",
	Promote:                "promote",
	Journal:                "journal",
	GitHubToken:            "github-token",
	NATSURL:                "nats-url",
}

// buildRunContext reads every input through p and applies the defaults.
// enabled decides how the deploy and promote switches are read.
func buildRunContext(p Provider, b *base, names inputNames, enabled func(string) bool) (*runcontext.RunContext, error) {
	rc := &runcontext.RunContext{
		Provider:           p.Name(),
		Context:            p.GetContext(),
		OrgID:              p.GetInput(names.OrgID),
		APIKey:             p.GetInput(names.APIKey),
		APIHostname:        p.GetInput(names.APIHostname),
		BundlePrefix:       orDefault(p.GetInput(names.BundlePrefix), runcontext.DefaultBundlePrefix),
		PagebuilderVersion: orDefault(p.GetInput(names.PagebuilderVersion), runcontext.DefaultPagebuilderVersion),
		Artifact:           orDefault(p.GetInput(names.Artifact), runcontext.DefaultArtifact),
		ShouldDeploy:       enabled(p.GetInput(names.Deploy)),
		ShouldPromote:      enabled(p.GetInput(names.Promote)),
		Journal:            p.GetInput(names.Journal),
		GitHubToken:        p.GetInput(names.GitHubToken),
		NATSURL:            p.GetInput(names.NATSURL),
		Core:               p,
	}

	ints := []struct {
		name string
		def  int
		dst  *int
	}{
		{names.RetryCount, runcontext.DefaultRetryCount, &rc.RetryCount},
		{names.RetryDelay, runcontext.DefaultRetryDelay, &rc.RetryDelay},
		{names.MinimumRunningVersions, runcontext.DefaultMinimumRunningVersions, &rc.MinimumRunningVersions},
	}
	for _, in := range ints {
		n, err := intInput(p.GetInput(in.name), in.def)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", in.name, err)
		}
		*in.dst = n
	}

	// Termination is best effort, so a bad budget falls back to the defaults.
	lenient := []struct {
		name string
		def  int
		dst  *int
	}{
		{names.TerminateRetryCount, runcontext.DefaultTerminateRetryCount, &rc.TerminateRetryCount},
		{names.TerminateRetryDelay, runcontext.DefaultTerminateRetryDelay, &rc.TerminateRetryDelay},
	}
	for _, in := range lenient {
		n, err := intInput(p.GetInput(in.name), in.def)
		if err != nil {
			p.Warning(fmt.Sprintf("Input %s: %v, using %d.", in.name, err, in.def))
			n = in.def
		}
		*in.dst = n
	}

	if rc.Context.RefName == "" || rc.Context.SHA == "" {
		head, err := headContext(b.opts.RepoDir)
		if err != nil {
			p.Debug(fmt.Sprintf("Unable to read the commit from git: %v", err))
		} else {
			if rc.Context.RefName == "" {
				rc.Context.RefName = head.RefName
			}
			if rc.Context.SHA == "" {
				rc.Context.SHA = head.SHA
			}
		}
	}

	rc.BundleName = runcontext.BuildBundleName(rc.BundlePrefix, b.opts.Now(), rc.Context)
	return rc, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intInput(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%q is not a whole number", v)
	}
	return n, nil
}

// onlyTrue enables a switch only when it is exactly "true".
func onlyTrue(v string) bool { return v == "true" }

// unlessFalse enables a switch unless it is exactly "false".
func unlessFalse(v string) bool { return v != "false" }
