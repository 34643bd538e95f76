package batch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minghsuy/pixel-detector-v2/pkg/scan"
)

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "results"))
	require.NoError(t, err)

	outcome := scan.Outcome{
		Domain:     "clinic.co.uk",
		URLScanned: "https://www.clinic.co.uk/",
		Timestamp:  time.Now().UTC(),
		Success:    true,
	}
	require.NoError(t, store.WriteOutcome(outcome))

	// Deterministic, filesystem-safe file name.
	_, err = os.Stat(filepath.Join(dir, "results", "clinic_co_uk.json"))
	require.NoError(t, err)
	assert.True(t, store.HasOutcome("clinic.co.uk"))

	loaded, err := store.LoadOutcome("clinic.co.uk")
	require.NoError(t, err)
	assert.Equal(t, outcome.URLScanned, loaded.URLScanned)
	assert.True(t, loaded.Success)
}

func TestStoreRetryReplacesOutcome(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.WriteOutcome(scan.Outcome{Domain: "x.com", Success: false, Error: "timeout"}))
	require.NoError(t, store.WriteOutcome(scan.Outcome{Domain: "x.com", Success: true}))

	loaded, err := store.LoadOutcome("x.com")
	require.NoError(t, err)
	assert.True(t, loaded.Success)
	assert.Empty(t, loaded.Error)
}
