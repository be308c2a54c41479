package sandbox

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixture is the starting state and failure script of a sandbox.
type Fixture struct {
	APIKey   string   `yaml:"apiKey"`
	Versions []string `yaml:"versions"`

	// DeployDelay is how many version listings still show the old fleet
	// after a deploy has been accepted.
	DeployDelay int `yaml:"deployDelay"`

	// TerminateFailures fails that many terminate calls before one succeeds.
	TerminateFailures int `yaml:"terminateFailures"`

	FailUpload  bool `yaml:"failUpload"`
	FailDeploy  bool `yaml:"failDeploy"`
	FailPromote bool `yaml:"failPromote"`
	// NeverDeploy accepts deploys but never starts the new version.
	NeverDeploy bool `yaml:"neverDeploy"`
}

func DefaultFixture() Fixture {
	return Fixture{Versions: []string{"1", "2", "3", "4", "5", "6", "7", "8"}}
}

func LoadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("failed to read fixture file: %w", err)
	}

	f := DefaultFixture()
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("failed to parse fixture file: %w", err)
	}
	return f, nil
}
