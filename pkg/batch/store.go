package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/minghsuy/pixel-detector-v2/pkg/domain"
	"github.com/minghsuy/pixel-detector-v2/pkg/scan"
)

// Store persists one JSON result file per domain. File names derive
// deterministically from the domain so concurrent writers for different
// domains never collide, and a retry simply replaces the previous file.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating results directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(name string) string {
	key := domain.Domain{Name: name}.FileKey()
	return filepath.Join(s.dir, key+".json")
}

// WriteOutcome persists an outcome atomically. Called before the ledger
// is updated so a crash in between loses no result.
func (s *Store) WriteOutcome(o scan.Outcome) error {
	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(s.path(o.Domain), data)
}

// LoadOutcome reads the persisted result for a domain, if any.
func (s *Store) LoadOutcome(name string) (scan.Outcome, error) {
	var o scan.Outcome
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(data, &o); err != nil {
		return o, fmt.Errorf("malformed result file for %s: %w", name, err)
	}
	return o, nil
}

// HasOutcome reports whether a result file exists for the domain.
func (s *Store) HasOutcome(name string) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}
