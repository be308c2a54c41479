package cmd

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balaji-balu/fusion-deploy/internal/sandbox"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	_, err := rootCmd.ExecuteC()
	return out.String(), err
}

func TestRunAndHistoryAgainstSandbox(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sb := sandbox.New(sandbox.Fixture{APIKey: "secret", Versions: []string{"1", "2", "3", "4", "5", "6", "7", "8"}}, nil)
	srv := httptest.NewServer(sb.Router())
	defer srv.Close()

	dir := t.TempDir()
	t.Chdir(dir)
	artifactPath := filepath.Join(dir, "bundle.zip")
	require.NoError(t, os.WriteFile(artifactPath, []byte("PK"), 0o600))
	journalPath := filepath.Join(dir, "runs.db")
	t.Setenv("GITHUB_REF_NAME", "main")
	t.Setenv("GITHUB_SHA", "abc123")

	out, err := execute(t, "run",
		"--provider=github",
		"--api-key=secret",
		"--org-id=acme",
		"--api-hostname=api.sandbox.acme.example.com",
		"--base-url="+srv.URL,
		"--artifact="+artifactPath,
		"--retry-delay=0",
		"--deploy=true",
		"--promote=true",
		"--journal="+journalPath,
	)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Promoted version 9")
	assert.Contains(t, out, "::debug::Finished.")
	assert.NotContains(t, out, "::error::")

	snap := sb.Snapshot()
	assert.Equal(t, "9", snap.Promoted)
	assert.Equal(t, []int{2, 3, 4, 5, 6, 7, 8, 9}, snap.Versions)

	out, err = execute(t, "history", "--journal="+journalPath, "--output=yaml")
	require.NoError(t, err, out)
	assert.Contains(t, out, "outcome: succeeded")
	assert.Regexp(t, `newest: "?9"?`, out)
}

func TestRun_PromoteWithoutDeployFails(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := execute(t, "run",
		"--provider=github",
		"--api-key=secret",
		"--org-id=acme",
		"--api-hostname=api.sandbox.acme.example.com",
		"--base-url=http://127.0.0.1:1",
		"--deploy=false",
		"--promote=true",
		"--journal=",
	)
	assert.ErrorIs(t, err, errRunFailed)
	assert.Contains(t, out, "::error::If `promote` is true, `deploy` must also be true.")
}

func TestRun_InvalidInputStillFinishes(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Cleanup(func() { _ = runCmd.Flags().Set("retry-count", "") })

	out, err := execute(t, "run",
		"--provider=github",
		"--api-key=secret",
		"--org-id=acme",
		"--api-hostname=api.sandbox.acme.example.com",
		"--base-url=http://127.0.0.1:1",
		"--retry-count=ten",
		"--journal=",
	)
	assert.ErrorIs(t, err, errRunFailed)
	assert.Contains(t, out, `::error::input retry-count: "ten" is not a whole number`)
	assert.True(t, strings.HasSuffix(out, "::debug::Finished.\n"), out)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "fusion-deploy dev\n", out)
}
