package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/balaji-balu/fusion-deploy/internal/sandbox"
)

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Serve a fake page builder API for rehearsing runs",
	Long: `Serves the page builder deployment API from memory. Point a run at it with
--base-url http://<listen> to rehearse uploads, delayed deploys, failing
terminations and promotion without touching a real environment.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fixture := sandbox.DefaultFixture()
		if cfg.Sandbox.Fixture != "" {
			var err error
			if fixture, err = sandbox.LoadFixture(cfg.Sandbox.Fixture); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("deploy-delay") || cfg.Sandbox.DeployDelay > 0 {
			fixture.DeployDelay = cfg.Sandbox.DeployDelay
		}

		if !cfg.Verbose {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := &http.Server{
			Addr:              cfg.Sandbox.Listen,
			Handler:           sandbox.New(fixture, log.Named("sandbox")).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("sandbox listening", zap.String("addr", srv.Addr), zap.Strings("versions", fixture.Versions))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	},
}

func init() {
	sandboxCmd.Flags().String("listen", "127.0.0.1:8089", "address to serve on")
	sandboxCmd.Flags().String("fixture", "", "YAML file with the starting versions and failure script")
	sandboxCmd.Flags().Int("deploy-delay", 0, "listings that still show the old fleet after a deploy")
}
