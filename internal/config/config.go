package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix       = "FUSION"
	DefaultFileName = "fusion-deploy"
)

// Config is the tool's own configuration. Deployment inputs are not part of
// it; they are looked up by name through Input so that every CI provider
// can fall back to the same flags, FUSION_* variables and config file.
type Config struct {
	Env     string `mapstructure:"env"`
	Verbose bool   `mapstructure:"verbose"`
	LogFile string `mapstructure:"log-file"`

	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`

	v *viper.Viper
}

type TelemetryConfig struct {
	Stdout       bool   `mapstructure:"stdout"`
	OTLPEndpoint string `mapstructure:"otlp-endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp-insecure"`
}

type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway-url"`
	Job            string `mapstructure:"job"`
}

type SandboxConfig struct {
	Listen      string `mapstructure:"listen"`
	Fixture     string `mapstructure:"fixture"`
	DeployDelay int    `mapstructure:"deploy-delay"`
}

// flagKeys maps flag names onto nested config keys. Flags not listed here
// bind to the key of the same name.
var flagKeys = map[string]string{
	"trace-stdout":    "telemetry.stdout",
	"otlp-endpoint":   "telemetry.otlp-endpoint",
	"otlp-insecure":   "telemetry.otlp-insecure",
	"pushgateway-url": "metrics.pushgateway-url",
	"listen":          "sandbox.listen",
	"fixture":         "sandbox.fixture",
	"deploy-delay":    "sandbox.deploy-delay",
}

// Load reads the optional YAML file at path (or ./fusion-deploy.yaml when
// path is empty), overlays FUSION_ prefixed environment variables
// (FUSION_API_KEY, FUSION_TELEMETRY_OTLP_ENDPOINT) and finally any flag in
// flags that was set on the command line.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key, ok := flagKeys[f.Name]
			if !ok {
				key = f.Name
			}
			if err := v.BindPFlag(key, f); err != nil {
				bindErr = errors.Join(bindErr, fmt.Errorf("binding flag %s: %w", f.Name, err))
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName(DefaultFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

// Input returns the value configured for a deployment input such as
// "api-key", or "" when none is set.
func (c *Config) Input(name string) string {
	if c == nil || c.v == nil {
		return ""
	}
	return strings.TrimSpace(c.v.GetString(name))
}

// FileUsed is the config file that was read, if any.
func (c *Config) FileUsed() string {
	if c == nil || c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("verbose", false)

	v.SetDefault("log-file", "")

	v.SetDefault("telemetry.stdout", false)
	v.SetDefault("telemetry.otlp-endpoint", "")
	v.SetDefault("telemetry.otlp-insecure", true)

	v.SetDefault("metrics.pushgateway-url", "")
	v.SetDefault("metrics.job", "fusion-deploy")

	v.SetDefault("sandbox.listen", "127.0.0.1:8089")
	v.SetDefault("sandbox.fixture", "")
	v.SetDefault("sandbox.deploy-delay", 0)
}
