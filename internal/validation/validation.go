// Package validation checks a run context before anything is sent to the
// deployment service.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/balaji-balu/fusion-deploy/internal/runcontext"
)

const (
	MinRunningVersionsFloor   = 1
	MinRunningVersionsCeiling = 10
)

var (
	ErrMissingInput         = errors.New("missing required input")
	ErrMinimumVersions      = errors.New("invalid minimum running versions")
	ErrHostname             = errors.New("invalid api hostname")
	ErrPagebuilderVersion   = errors.New("invalid pagebuilder version")
	ErrPromoteWithoutDeploy = errors.New("if `promote` is true, `deploy` must also be true")
)

// Validate runs every check in order and returns the first failure.
func Validate(rc *runcontext.RunContext) error {
	checks := []func(*runcontext.RunContext) error{
		VerifyRequired,
		VerifyMinimumRunningVersions,
		VerifyHost,
		VerifyPagebuilderVersion,
		VerifyFlags,
	}
	for _, check := range checks {
		if err := check(rc); err != nil {
			return err
		}
	}
	return nil
}

func VerifyRequired(rc *runcontext.RunContext) error {
	missing := []string{}
	if rc.OrgID == "" {
		missing = append(missing, "org-id")
	}
	if rc.APIKey == "" {
		missing = append(missing, "api-key")
	}
	if rc.APIHostname == "" {
		missing = append(missing, "api-hostname")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingInput, strings.Join(missing, ", "))
	}
	return nil
}

func VerifyMinimumRunningVersions(rc *runcontext.RunContext) error {
	n := rc.MinimumRunningVersions
	if n < MinRunningVersionsFloor || n > MinRunningVersionsCeiling {
		return fmt.Errorf("%w: %d must be between %d and %d",
			ErrMinimumVersions, n, MinRunningVersionsFloor, MinRunningVersionsCeiling)
	}
	return nil
}

// VerifyHost accepts a bare hostname of the form api.<org-env>.<domain>.
func VerifyHost(rc *runcontext.RunContext) error {
	h := rc.APIHostname
	switch {
	case strings.Contains(h, "://"):
		return fmt.Errorf("%w: %q must not include a scheme", ErrHostname, h)
	case strings.ContainsAny(h, "/:?# "):
		return fmt.Errorf("%w: %q must be a bare hostname", ErrHostname, h)
	case !strings.HasPrefix(h, "api."):
		return fmt.Errorf("%w: %q must start with \"api.\"", ErrHostname, h)
	case strings.Count(h, ".") < 2:
		return fmt.Errorf("%w: %q is not a fully qualified hostname", ErrHostname, h)
	}
	return nil
}

// VerifyPagebuilderVersion accepts "latest" or a semantic version.
func VerifyPagebuilderVersion(rc *runcontext.RunContext) error {
	v := rc.PagebuilderVersion
	if v == runcontext.DefaultPagebuilderVersion {
		return nil
	}
	if _, err := semver.StrictNewVersion(strings.TrimPrefix(v, "v")); err != nil {
		return fmt.Errorf("%w: %q must be \"latest\" or a semantic version: %v",
			ErrPagebuilderVersion, v, err)
	}
	return nil
}

func VerifyFlags(rc *runcontext.RunContext) error {
	if rc.ShouldPromote && !rc.ShouldDeploy {
		return ErrPromoteWithoutDeploy
	}
	return nil
}
