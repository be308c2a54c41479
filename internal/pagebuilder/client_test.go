package pagebuilder

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient("api.example.test", "secret", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestListVersions_OrdersOldestFirst(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/deployments/fusion/services", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = io.WriteString(w, `{"lambdas":[{"Version":"12"},{"Version":"$LATEST"},{"Version":"9"},{"Version":""},{"Version":"10"}]}`)
	})

	got, err := c.ListVersions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Version{"9", "10", "12"}, got)
}

func TestListVersions_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `not json`)
	})

	_, err := c.ListVersions(context.Background())
	assert.Error(t, err)
}

func TestUpload_SendsMultipartBundle(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "fusion-bundle.zip")
	require.NoError(t, os.WriteFile(artifact, []byte("zip-bytes"), 0o644))

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/deployments/fusion/bundles", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "bundle-1-main-abc", r.FormValue("name"))

		f, hdr, err := r.FormFile("bundle")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "fusion-bundle.zip", hdr.Filename)
		assert.Equal(t, "zip-bytes", string(body))
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, c.Upload(context.Background(), "bundle-1-main-abc", artifact))
}

func TestUpload_MissingArtifact(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	err := c.Upload(context.Background(), "b", filepath.Join(t.TempDir(), "missing.zip"))
	assert.Error(t, err)
}

func TestDeploy_QueryParameters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/deployments/fusion/services", r.URL.Path)
		assert.Equal(t, "bundle-1-main-abc", r.URL.Query().Get("bundle"))
		assert.Equal(t, "latest", r.URL.Query().Get("version"))
	})

	require.NoError(t, c.Deploy(context.Background(), "bundle-1-main-abc", "latest"))
}

func TestTerminate_ReturnsStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"accepted", http.StatusAccepted, false},
		{"server error", http.StatusInternalServerError, true},
		{"not found", http.StatusNotFound, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/deployments/fusion/services/7/terminate", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, "body")
			})

			status, err := c.Terminate(context.Background(), "7")
			assert.Equal(t, tt.status, status)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "terminate", se.Op)
			assert.Equal(t, "body", se.Body)
		})
	}
}

func TestTerminate_TransportError(t *testing.T) {
	c := NewClient("unused", "k", WithBaseURL("http://127.0.0.1:1"))

	status, err := c.Terminate(context.Background(), "7")
	assert.Error(t, err)
	assert.Zero(t, status)
}

func TestPromote(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/deployments/fusion/services/13/promote", r.URL.Path)
	})

	require.NoError(t, c.Promote(context.Background(), "13"))
}
