package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerPartitionInvariant(t *testing.T) {
	l := NewLedger(3)

	l.Fail("a.com", FailureRecord{Retries: 1, LastError: "timeout"})
	assert.Equal(t, 1, l.FailedCount())

	// Late success removes the failure record.
	l.Complete("a.com")
	assert.True(t, l.IsCompleted("a.com"))
	assert.Equal(t, 0, l.FailedCount())

	// A completed domain can never re-enter failed.
	l.Fail("a.com", FailureRecord{Retries: 2})
	assert.Equal(t, 0, l.FailedCount())
	assert.True(t, l.IsCompleted("a.com"))
}

func TestCheckpointRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	l := NewLedger(10)
	l.Complete("done.com")
	l.Complete("also-done.com")
	l.Fail("broken.com", FailureRecord{Retries: 2, LastError: "net::ERR_CONNECTION_REFUSED"})
	require.NoError(t, l.Checkpoint(path))

	restored, err := LoadLedger(path, 10)
	require.NoError(t, err)
	assert.True(t, restored.IsCompleted("done.com"))
	assert.True(t, restored.IsCompleted("also-done.com"))
	assert.False(t, restored.IsCompleted("broken.com"))

	rec, ok := restored.FailureFor("broken.com")
	require.True(t, ok)
	assert.Equal(t, 2, rec.Retries)
	assert.Equal(t, "net::ERR_CONNECTION_REFUSED", rec.LastError)
	assert.Equal(t, 10, restored.Total())
}

func TestLoadLedgerMissingFileIsFreshStart(t *testing.T) {
	l, err := LoadLedger(filepath.Join(t.TempDir(), "nope.json"), 5)
	require.NoError(t, err)
	assert.Equal(t, 0, l.CompletedCount())
	assert.Equal(t, 5, l.Total())
}

func TestLoadLedgerMalformedFileIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o644))

	_, err := LoadLedger(path, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed checkpoint")
}

func TestCheckpointLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.json")

	l := NewLedger(1)
	l.Complete("x.com")
	require.NoError(t, l.Checkpoint(path))
	require.NoError(t, l.Checkpoint(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must be renamed away")
	assert.Equal(t, "checkpoint.json", entries[0].Name())
}

func TestCheckpointCarriesElapsedForward(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	l := NewLedger(1)
	l.priorElapsed = 90e9 // 90s from an earlier run
	require.NoError(t, l.Checkpoint(path))

	restored, err := LoadLedger(path, 1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, restored.Elapsed().Seconds(), 90.0)
}
