package runcontext

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/balaji-balu/fusion-deploy/internal/pagebuilder"
)

const (
	DefaultBundlePrefix           = "bundle"
	DefaultPagebuilderVersion     = "latest"
	DefaultArtifact               = "dist/fusion-bundle.zip"
	DefaultRetryCount             = 10
	DefaultRetryDelay             = 5
	DefaultMinimumRunningVersions = 7
	DefaultTerminateRetryCount    = 3
	DefaultTerminateRetryDelay    = 10
)

var ErrNewestVersionSet = errors.New("newest version already recorded")

// Core is the logging and failure surface of the CI system running us.
// SetFailed marks the run as failed without stopping the process.
type Core interface {
	Debug(msg string)
	Info(msg string)
	Warning(msg string)
	SetFailed(msg string)
}

// CIContext is the commit the pipeline was triggered for.
type CIContext struct {
	RefName string `json:"ref_name"`
	SHA     string `json:"sha"`
}

// RunContext carries the settings of one invocation. Everything except the
// newest version is fixed once the provider has built it.
type RunContext struct {
	Provider string
	Context  CIContext

	OrgID              string
	APIKey             string
	APIHostname        string
	BundlePrefix       string
	BundleName         string
	PagebuilderVersion string
	Artifact           string

	RetryCount             int
	RetryDelay             int
	MinimumRunningVersions int
	TerminateRetryCount    int
	TerminateRetryDelay    int

	ShouldDeploy  bool
	ShouldPromote bool

	Journal     string
	GitHubToken string
	NATSURL     string

	Core Core

	newestVersion pagebuilder.Version
	newestSet     bool
}

// BuildBundleName joins prefix, timestamp, ref and sha into the bundle name.
func BuildBundleName(prefix string, now time.Time, ci CIContext) string {
	if prefix == "" {
		prefix = DefaultBundlePrefix
	}
	return strings.Join([]string{
		prefix,
		strconv.FormatInt(now.UnixMilli(), 10),
		ci.RefName,
		ci.SHA,
	}, "-")
}

func (rc *RunContext) NewestVersion() pagebuilder.Version {
	return rc.newestVersion
}

// SetNewestVersion records the confirmed new version. It may be called once.
func (rc *RunContext) SetNewestVersion(v pagebuilder.Version) error {
	if rc.newestSet {
		return ErrNewestVersionSet
	}
	rc.newestVersion = v
	rc.newestSet = true
	return nil
}

// EffectiveTerminateRetry returns the terminate attempt budget and delay,
// falling back to the defaults for unset or invalid values.
func (rc *RunContext) EffectiveTerminateRetry() (attempts int, delay time.Duration) {
	attempts = rc.TerminateRetryCount
	if attempts <= 0 {
		attempts = DefaultTerminateRetryCount
	}
	secs := rc.TerminateRetryDelay
	if secs <= 0 {
		secs = DefaultTerminateRetryDelay
	}
	return attempts, time.Duration(secs) * time.Second
}

func (rc *RunContext) PollDelay() time.Duration {
	return time.Duration(rc.RetryDelay) * time.Second
}

// WorstCaseBudget is the longest the retry loops can sleep in one run,
// network time excluded.
func (rc *RunContext) WorstCaseBudget() time.Duration {
	attempts, delay := rc.EffectiveTerminateRetry()
	// The poller sleeps after its last query too.
	poll := time.Duration(rc.RetryCount+1) * rc.PollDelay()
	term := time.Duration(attempts-1) * delay
	return poll + term
}
