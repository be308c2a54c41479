package orchestrator

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/balaji-balu/fusion-deploy/internal/pagebuilder"
	"github.com/balaji-balu/fusion-deploy/internal/runcontext"
)

func versions(vs ...string) []pagebuilder.Version {
	out := make([]pagebuilder.Version, len(vs))
	for i, v := range vs {
		out[i] = pagebuilder.Version(v)
	}
	return out
}

func seq(from, to int) []pagebuilder.Version {
	out := []pagebuilder.Version{}
	for i := from; i <= to; i++ {
		out = append(out, pagebuilder.Version(strconv.Itoa(i)))
	}
	return out
}

// fakeDeployer replays scripted version lists. The last list repeats once
// the script runs out.
type fakeDeployer struct {
	mu sync.Mutex

	lists    [][]pagebuilder.Version
	listErrs map[int]error

	uploadErr     error
	deployErr     error
	promoteErr    error
	terminateErrs []error

	listCalls  int
	uploads    []string
	deploys    []string
	terminated []pagebuilder.Version
	promoted   []pagebuilder.Version
	calls      []string
}

func (f *fakeDeployer) ListVersions(_ context.Context) ([]pagebuilder.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.listCalls
	f.listCalls++
	f.calls = append(f.calls, "list")
	if err, ok := f.listErrs[idx]; ok {
		return nil, err
	}
	if len(f.lists) == 0 {
		return nil, nil
	}
	if idx >= len(f.lists) {
		idx = len(f.lists) - 1
	}
	return append([]pagebuilder.Version(nil), f.lists[idx]...), nil
}

func (f *fakeDeployer) Upload(_ context.Context, bundleName, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "upload")
	f.uploads = append(f.uploads, bundleName)
	return f.uploadErr
}

func (f *fakeDeployer) Deploy(_ context.Context, bundleName, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "deploy")
	f.deploys = append(f.deploys, bundleName)
	return f.deployErr
}

func (f *fakeDeployer) Terminate(_ context.Context, v pagebuilder.Version) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.terminated)
	f.calls = append(f.calls, "terminate")
	f.terminated = append(f.terminated, v)
	if idx < len(f.terminateErrs) && f.terminateErrs[idx] != nil {
		return 500, f.terminateErrs[idx]
	}
	return 202, nil
}

func (f *fakeDeployer) Promote(_ context.Context, v pagebuilder.Version) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "promote")
	f.promoted = append(f.promoted, v)
	return f.promoteErr
}

type recordingCore struct {
	debug    []string
	info     []string
	warnings []string
	failures []string
}

func (c *recordingCore) Debug(msg string)     { c.debug = append(c.debug, msg) }
func (c *recordingCore) Info(msg string)      { c.info = append(c.info, msg) }
func (c *recordingCore) Warning(msg string)   { c.warnings = append(c.warnings, msg) }
func (c *recordingCore) SetFailed(msg string) { c.failures = append(c.failures, msg) }

type sleepRecorder struct {
	slept []time.Duration
	err   error
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	return s.err
}

func testContext(core runcontext.Core) *runcontext.RunContext {
	return &runcontext.RunContext{
		Provider:               "github",
		Context:                runcontext.CIContext{RefName: "main", SHA: "abc123"},
		OrgID:                  "acme",
		APIKey:                 "key",
		APIHostname:            "api.sandbox.acme.example.com",
		BundleName:             "bundle-1-main-abc123",
		PagebuilderVersion:     "latest",
		Artifact:               "dist/fusion-bundle.zip",
		RetryCount:             3,
		RetryDelay:             5,
		MinimumRunningVersions: 7,
		TerminateRetryCount:    3,
		TerminateRetryDelay:    10,
		ShouldDeploy:           true,
		ShouldPromote:          true,
		Core:                   core,
	}
}

func newTestOrchestrator(rc *runcontext.RunContext, d Deployer, s *sleepRecorder) *Orchestrator {
	return New(rc, d, WithSleeper(s.sleep))
}
