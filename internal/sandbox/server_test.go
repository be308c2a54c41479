package sandbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balaji-balu/fusion-deploy/internal/pagebuilder"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func startSandbox(t *testing.T, f Fixture) (*Server, *pagebuilder.Client) {
	t.Helper()
	s := New(f, nil)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	client := pagebuilder.NewClient("api.sandbox.example.com", f.APIKey, pagebuilder.WithBaseURL(srv.URL))
	return s, client
}

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.zip")
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04"), 0o600))
	return path
}

func TestSandbox_ListHidesAlias(t *testing.T) {
	_, client := startSandbox(t, Fixture{Versions: []string{"3", "1", "2"}})

	got, err := client.ListVersions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []pagebuilder.Version{"1", "2", "3"}, got)
}

func TestSandbox_Auth(t *testing.T) {
	s := New(Fixture{APIKey: "secret"}, nil)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	wrong := pagebuilder.NewClient("api.x.example.com", "nope", pagebuilder.WithBaseURL(srv.URL))
	_, err := wrong.ListVersions(context.Background())
	var se *pagebuilder.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSandbox_DeployAppearsAfterDelay(t *testing.T) {
	ctx := context.Background()
	s, client := startSandbox(t, Fixture{Versions: []string{"1", "2"}, DeployDelay: 2})

	require.NoError(t, client.Upload(ctx, "bundle-a", writeArtifact(t)))
	require.NoError(t, client.Deploy(ctx, "bundle-a", "latest"))

	for i := 0; i < 2; i++ {
		got, err := client.ListVersions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []pagebuilder.Version{"1", "2"}, got)
	}
	got, err := client.ListVersions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []pagebuilder.Version{"1", "2", "3"}, got)
	assert.Equal(t, []string{"bundle-a"}, s.Snapshot().Bundles)
}

func TestSandbox_DeployUnknownBundle(t *testing.T) {
	_, client := startSandbox(t, DefaultFixture())

	err := client.Deploy(context.Background(), "never-uploaded", "latest")
	var se *pagebuilder.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestSandbox_TerminateFailuresThenSuccess(t *testing.T) {
	ctx := context.Background()
	s, client := startSandbox(t, Fixture{Versions: []string{"1", "2"}, TerminateFailures: 2})

	for i := 0; i < 2; i++ {
		status, err := client.Terminate(ctx, "1")
		assert.Error(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, status)
	}
	status, err := client.Terminate(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, status)

	// Terminating a version that is already gone still succeeds.
	_, err = client.Terminate(ctx, "1")
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, []int{2}, snap.Versions)
	assert.Equal(t, 4, snap.TerminateCalls)
}

func TestSandbox_Promote(t *testing.T) {
	ctx := context.Background()
	s, client := startSandbox(t, Fixture{Versions: []string{"1", "2"}})

	require.NoError(t, client.Promote(ctx, "2"))
	assert.Equal(t, "2", s.Snapshot().Promoted)

	err := client.Promote(ctx, "9")
	var se *pagebuilder.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestSandbox_InjectedFailures(t *testing.T) {
	ctx := context.Background()
	_, client := startSandbox(t, Fixture{Versions: []string{"1"}, FailUpload: true, FailPromote: true})

	assert.Error(t, client.Upload(ctx, "b", writeArtifact(t)))
	assert.Error(t, client.Promote(ctx, "1"))
}
