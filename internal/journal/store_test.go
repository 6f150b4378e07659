package journal_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunonalves/sysprov/internal/journal"
)

func newTestStore(t *testing.T) *journal.Store {
	t.Helper()
	s := journal.NewStore(filepath.Join(t.TempDir(), "journal.json"))
	require.NoError(t, s.Ensure())
	return s
}

func TestAppendAssignsIDAndTime(t *testing.T) {
	s := newTestStore(t)

	run, err := s.Append(journal.Run{
		Actor:  "root",
		Target: journal.Target{Kind: journal.TargetGroup, Name: "devs"},
		Entries: []journal.Entry{
			{Login: "alice", Generated: true, KeyAdded: true},
			{Login: "mallory", Error: "user not found"},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.StartedAt.IsZero())
	assert.Equal(t, 1, run.Failed())
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)

	first, err := s.Append(journal.Run{Target: journal.Target{Kind: journal.TargetUser, Name: "alice"}})
	require.NoError(t, err)
	second, err := s.Append(journal.Run{Target: journal.Target{Kind: journal.TargetUser, Name: "bob"}})
	require.NoError(t, err)

	runs, err := s.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)
}

func TestGet(t *testing.T) {
	s := newTestStore(t)

	run, err := s.Append(journal.Run{Target: journal.Target{Kind: journal.TargetUser, Name: "alice"}})
	require.NoError(t, err)

	got, err := s.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Target.Name)

	_, err = s.Get("nosuch")
	assert.ErrorIs(t, err, journal.ErrRunNotFound)
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Append(journal.Run{
		StartedAt: time.Now().UTC().Add(-60 * 24 * time.Hour),
		Target:    journal.Target{Kind: journal.TargetUser, Name: "old"},
	})
	require.NoError(t, err)
	_, err = s.Append(journal.Run{Target: journal.Target{Kind: journal.TargetUser, Name: "new"}})
	require.NoError(t, err)

	require.NoError(t, s.Prune(30))
	runs, err := s.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "new", runs[0].Target.Name)

	// Zero retention keeps everything.
	require.NoError(t, s.Prune(0))
	runs, err = s.List()
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
