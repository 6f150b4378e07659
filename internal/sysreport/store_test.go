package sysreport_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunonalves/sysprov/internal/sysreport"
)

func sampleAt(ts time.Time, cpu float64) sysreport.Sample {
	return sysreport.Sample{
		Timestamp: ts,
		Metrics:   sysreport.Metrics{Timestamp: ts, CPUUsage: cpu},
	}
}

func TestStoreAppendAndReload(t *testing.T) {
	dir := t.TempDir()
	s := sysreport.NewStore(dir)
	require.NoError(t, s.Ensure())

	now := time.Now().UTC()
	require.NoError(t, s.Append(sampleAt(now.Add(-2*time.Minute), 10), 7))
	require.NoError(t, s.Append(sampleAt(now.Add(-time.Minute), 20), 7))
	require.NoError(t, s.Append(sampleAt(now, 30), 7))

	// A fresh store over the same directory sees the same samples.
	s2 := sysreport.NewStore(dir)
	require.NoError(t, s2.Load())
	samples := s2.List(time.Time{})
	require.Len(t, samples, 3)
	assert.Equal(t, float64(10), samples[0].Metrics.CPUUsage)
	assert.Equal(t, float64(30), samples[2].Metrics.CPUUsage)

	latest := s2.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, float64(30), latest.Metrics.CPUUsage)
}

func TestStoreListSince(t *testing.T) {
	s := sysreport.NewStore(t.TempDir())
	require.NoError(t, s.Ensure())

	now := time.Now().UTC()
	require.NoError(t, s.Append(sampleAt(now.Add(-time.Hour), 1), 7))
	require.NoError(t, s.Append(sampleAt(now, 2), 7))

	got := s.List(now.Add(-time.Minute))
	require.Len(t, got, 1)
	assert.Equal(t, float64(2), got[0].Metrics.CPUUsage)
}

func TestStorePruneRemovesOldDailyFiles(t *testing.T) {
	dir := t.TempDir()
	s := sysreport.NewStore(dir)
	require.NoError(t, s.Ensure())

	old := time.Now().UTC().Add(-30 * 24 * time.Hour)
	require.NoError(t, s.Append(sampleAt(old, 1), 0))
	require.NoError(t, s.Append(sampleAt(time.Now().UTC(), 2), 0))

	require.NoError(t, s.Prune(7))
	samples := s.List(time.Time{})
	require.Len(t, samples, 1)
	assert.Equal(t, float64(2), samples[0].Metrics.CPUUsage)

	// The old day's file is gone from disk too.
	ents, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range ents {
		assert.NotEqual(t, old.Format("2006-01-02")+".yaml", e.Name())
	}
}

func TestStoreDailyFileNaming(t *testing.T) {
	dir := t.TempDir()
	s := sysreport.NewStore(dir)
	require.NoError(t, s.Ensure())

	ts := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Append(sampleAt(ts, 5), 0))

	_, err := os.Stat(filepath.Join(dir, "2026-08-20.yaml"))
	assert.NoError(t, err)
}
