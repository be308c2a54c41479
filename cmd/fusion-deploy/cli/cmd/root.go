package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/balaji-balu/fusion-deploy/internal/config"
	"github.com/balaji-balu/fusion-deploy/internal/logger"
)

// version is set at build time with -ldflags "-X .../cmd.version=...".
var version = "dev"

// errRunFailed means the failure has already been reported through the CI
// provider; only the exit code is left to set.
var errRunFailed = errors.New("run failed")

var (
	cfgFile string
	cfg     *config.Config
	log     = zap.NewNop()
	rootCmd = &cobra.Command{
		Use:   "fusion-deploy",
		Short: "Deploy Fusion bundles to the page builder service from CI",
		Long: `fusion-deploy uploads a bundle, deploys it as a new running version, retires
the oldest version once the fleet is above its floor, waits for the new
version to come up and optionally promotes it. Inputs are read the way the
CI system running it provides them (GitHub Actions, Azure Pipelines, GitLab
CI) and fall back to flags, FUSION_* variables and fusion-deploy.yaml.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initRuntime,
		PersistentPostRun: func(*cobra.Command, []string) { _ = log.Sync() },
	}
)

func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	if !errors.Is(err, errRunFailed) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(1)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./fusion-deploy.yaml)")
	pf.BoolP("verbose", "v", false, "enable verbose logging")
	pf.String("env", "development", "logger flavour: development or production")
	pf.String("log-file", "", "also write diagnostic logs to this file")
	pf.String("provider", "auto", "CI provider: auto, github, azure or gitlab")
	pf.Bool("trace-stdout", false, "print trace spans to stderr")
	pf.String("otlp-endpoint", "", "OTLP gRPC collector host:port")
	pf.Bool("otlp-insecure", true, "connect to the OTLP collector without TLS")
	pf.String("pushgateway-url", "", "Prometheus Pushgateway to push run metrics to")

	rootCmd.AddCommand(runCmd, versionsCmd, terminateCmd, historyCmd, sandboxCmd, versionCmd)
}

func initRuntime(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	log, err = logger.New(cfg.Env, cfg.Verbose, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	zap.RedirectStdLog(log)

	if f := cfg.FileUsed(); f != "" {
		log.Debug("using config file", zap.String("path", f))
	}
	return nil
}
