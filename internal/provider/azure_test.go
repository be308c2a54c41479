package provider

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAzure_GetInput(t *testing.T) {
	var out, errOut bytes.Buffer
	opts := testOptions(t, env{
		"INPUT_APIKEY":       "agent-form",
		"INPUT_API_HOSTNAME": "snake-form",
	}, &out, &errOut)
	opts.Fallback = inputs{"org-id": "from-config"}
	a := NewAzure(opts)

	assert.Equal(t, "agent-form", a.GetInput("apiKey"))
	assert.Equal(t, "snake-form", a.GetInput("apiHostname"))
	assert.Equal(t, "from-config", a.GetInput("orgId"))
	assert.Empty(t, a.GetInput("bundlePrefix"))
}

func TestAzure_Output(t *testing.T) {
	var out, errOut bytes.Buffer
	a := NewAzure(testOptions(t, env{}, &out, &errOut))

	a.Debug("50%")
	a.Info("plain line")
	a.Warning("careful\nnow")
	a.SetFailed("broken")

	assert.Equal(t,
		"##[debug]50%AZP25\n"+
			"plain line\n"+
			"##vso[task.logissue type=warning]careful%0Anow\n"+
			"##vso[task.logissue type=error]broken\n"+
			"##vso[task.complete result=Failed;]broken\n",
		out.String())
	assert.True(t, a.Failed())
}

func TestAzure_Context(t *testing.T) {
	tests := []struct {
		branch string
		want   string
	}{
		{"refs/heads/main", "main"},
		{"refs/tags/v1.0.0", "v1.0.0"},
		{"refs/pull/12/merge", "refs/pull/12/merge"},
	}
	for _, tt := range tests {
		var out, errOut bytes.Buffer
		a := NewAzure(testOptions(t, env{"BUILD_SOURCEBRANCH": tt.branch, "BUILD_SOURCEVERSION": "cafe"}, &out, &errOut))
		ctx := a.GetContext()
		assert.Equal(t, tt.want, ctx.RefName)
		assert.Equal(t, "cafe", ctx.SHA)
	}
}

func TestAzure_CreateRunContext(t *testing.T) {
	var out, errOut bytes.Buffer
	a := NewAzure(testOptions(t, env{
		"INPUT_ORGID":               "acme",
		"INPUT_TERMINATERETRYCOUNT": "5",
		"INPUT_PROMOTE":             "false",
		"BUILD_SOURCEBRANCH":        "refs/heads/release",
		"BUILD_SOURCEVERSION":       "f00d",
	}, &out, &errOut))

	rc, err := a.CreateRunContext()
	require.NoError(t, err)
	assert.Equal(t, NameAzure, rc.Provider)
	assert.Equal(t, "acme", rc.OrgID)
	assert.Equal(t, 5, rc.TerminateRetryCount)
	assert.True(t, rc.ShouldDeploy)
	assert.False(t, rc.ShouldPromote)
	assert.Equal(t, "bundle-1700000000000-release-f00d", rc.BundleName)
}

func TestSnake(t *testing.T) {
	assert.Equal(t, "minimum-running-versions", snake("minimumRunningVersions", '-'))
	assert.Equal(t, "api_key", snake("apiKey", '_'))
	assert.Equal(t, "artifact", snake("artifact", '-'))
}
