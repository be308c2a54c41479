package runcontext

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildBundleName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	ci := CIContext{RefName: "main", SHA: "abc123"}

	assert.Equal(t, "web-1700000000123-main-abc123", BuildBundleName("web", now, ci))
	assert.Equal(t, "bundle-1700000000123-main-abc123", BuildBundleName("", now, ci))
}

func TestSetNewestVersion_WriteOnce(t *testing.T) {
	rc := &RunContext{}
	assert.Empty(t, rc.NewestVersion())

	require.NoError(t, rc.SetNewestVersion("14"))
	assert.ErrorIs(t, rc.SetNewestVersion("15"), ErrNewestVersionSet)
	assert.Equal(t, "14", rc.NewestVersion().String())
}

func TestEffectiveTerminateRetry(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		delay     int
		wantCount int
		wantDelay time.Duration
	}{
		{"configured", 5, 2, 5, 2 * time.Second},
		{"unset", 0, 0, 3, 10 * time.Second},
		{"negative", -1, -4, 3, 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := &RunContext{TerminateRetryCount: tt.count, TerminateRetryDelay: tt.delay}
			n, d := rc.EffectiveTerminateRetry()
			assert.Equal(t, tt.wantCount, n)
			assert.Equal(t, tt.wantDelay, d)
		})
	}
}

func TestWorstCaseBudget(t *testing.T) {
	rc := &RunContext{RetryCount: 10, RetryDelay: 5, TerminateRetryCount: 3, TerminateRetryDelay: 10}
	assert.Equal(t, 75*time.Second, rc.WorstCaseBudget())

	rc = &RunContext{RetryCount: 0, RetryDelay: 5}
	assert.Equal(t, 25*time.Second, rc.WorstCaseBudget())
}
