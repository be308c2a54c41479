package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balaji-balu/fusion-deploy/internal/orchestrator"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := openTemp(t)
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sum := &orchestrator.Summary{
		RunID:      "run-1",
		BundleName: "bundle-1-main-abc",
		Oldest:     "1",
		Baseline:   "8",
		Newest:     "9",
		Deployed:   true,
		Termination: &orchestrator.TerminationResult{
			Version:    "1",
			FinalError: "still serving traffic",
			Attempts: []orchestrator.TerminationAttempt{
				{Attempt: 1, Status: 500, Error: "still serving traffic", Timestamp: started},
			},
		},
		State:      orchestrator.StateDone,
		Outcome:    orchestrator.OutcomeSucceeded,
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
	}
	require.NoError(t, s.Save(sum))

	got, err := s.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, sum, got)
	assert.Equal(t, time.Minute, got.Duration())
}

func TestGet_Missing(t *testing.T) {
	s := openTemp(t)
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSave_RequiresRunID(t *testing.T) {
	s := openTemp(t)
	assert.Error(t, s.Save(&orchestrator.Summary{}))
	assert.Error(t, s.Save(nil))
}

func TestList_NewestFirst(t *testing.T) {
	s := openTemp(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"b", "c", "a"} {
		require.NoError(t, s.Save(&orchestrator.Summary{RunID: id, StartedAt: base.Add(time.Duration(i) * time.Hour)}))
	}

	all, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "c", "b"}, []string{all[0].RunID, all[1].RunID, all[2].RunID})

	two, err := s.List(2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
	assert.Equal(t, "a", two[0].RunID)
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(&orchestrator.Summary{RunID: "persisted"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "persisted", runs[0].RunID)
}
