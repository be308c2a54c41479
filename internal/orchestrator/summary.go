package orchestrator

import (
	"encoding/json"
	"time"

	"github.com/balaji-balu/fusion-deploy/internal/pagebuilder"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Summary describes what one run did. It is written to the journal and sent
// to the notifiers once the run has finished.
type Summary struct {
	RunID      string `json:"runId" yaml:"runId"`
	Provider   string `json:"provider" yaml:"provider"`
	OrgID      string `json:"orgId" yaml:"orgId"`
	BundleName string `json:"bundleName" yaml:"bundleName"`
	Ref        string `json:"ref" yaml:"ref"`
	SHA        string `json:"sha" yaml:"sha"`

	RunningVersions int                 `json:"runningVersions" yaml:"runningVersions"`
	Oldest          pagebuilder.Version `json:"oldest,omitempty" yaml:"oldest,omitempty"`
	Baseline        pagebuilder.Version `json:"baseline,omitempty" yaml:"baseline,omitempty"`
	Newest          pagebuilder.Version `json:"newest,omitempty" yaml:"newest,omitempty"`
	Deployed        bool                `json:"deployed" yaml:"deployed"`
	Promoted        bool                `json:"promoted" yaml:"promoted"`

	Termination *TerminationResult `json:"termination,omitempty" yaml:"termination,omitempty"`

	State      string    `json:"state" yaml:"state"`
	Outcome    Outcome   `json:"outcome" yaml:"outcome"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time `json:"finishedAt" yaml:"finishedAt"`
}

func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// RunError is returned by Run for every fatal condition. Message is the
// text reported to the CI system.
type RunError struct {
	Message string
	Err     error
}

func (e *RunError) Error() string { return e.Message }

func (e *RunError) Unwrap() error { return e.Err }

func toJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(b)
}
