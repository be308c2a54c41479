package pagebuilder

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Version identifies one deployed instance of a bundle on the hosting service.
type Version string

func (v Version) String() string { return string(v) }

// latestAlias is the moving alias the service reports next to real versions.
const latestAlias = "$LATEST"

type servicesResponse struct {
	Lambdas []lambda `json:"lambdas"`
}

type lambda struct {
	Version      string `json:"Version"`
	FunctionName string `json:"FunctionName,omitempty"`
	LastModified string `json:"LastModified,omitempty"`
}

// orderVersions drops aliases and blanks and returns the remaining versions
// oldest first. Numeric versions sort numerically; anything else keeps the
// order the service reported it in, after the numeric ones.
func orderVersions(lambdas []lambda) []Version {
	out := make([]Version, 0, len(lambdas))
	for _, l := range lambdas {
		v := strings.TrimSpace(l.Version)
		if v == "" || v == latestAlias {
			continue
		}
		out = append(out, Version(v))
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, aErr := strconv.Atoi(string(out[i]))
		b, bErr := strconv.Atoi(string(out[j]))
		switch {
		case aErr == nil && bErr == nil:
			return a < b
		case aErr == nil:
			return true
		default:
			return false
		}
	})
	return out
}

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}
