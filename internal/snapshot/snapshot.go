package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"entitymigrate/internal/schema"
)

var snapshotPattern = regexp.MustCompile(`^\d{4}_\d{2}_\d{2}_\d{6}\.json$`)

const idTimeLayout = "2006_01_02_150405"

// Store persists schema catalogs frozen at a point in time. Snapshots are
// never mutated or deleted; the baseline for the next diff is always the one
// with the greatest identifier.
type Store struct {
	base string
}

func New(base string) *Store { return &Store{base: base} }

// EnsureBase makes sure the snapshots root exists.
func (s *Store) EnsureBase() error {
	return os.MkdirAll(s.base, 0o755)
}

// Save freezes the catalog under a timestamp identifier and returns it.
func (s *Store) Save(cat schema.Catalog, now time.Time) (string, error) {
	id := now.UTC().Format(idTimeLayout)
	path := filepath.Join(s.base, id+".json")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("snapshot %s already exists", id)
	}
	data, err := cat.Marshal()
	if err != nil {
		return "", fmt.Errorf("serialize snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return id, nil
}

// List returns snapshot identifiers, oldest first.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !snapshotPattern.MatchString(e.Name()) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Latest loads the current baseline. ok is false when no snapshot exists yet.
func (s *Store) Latest() (cat schema.Catalog, id string, ok bool, err error) {
	ids, err := s.List()
	if err != nil || len(ids) == 0 {
		return schema.Catalog{}, "", false, err
	}
	id = ids[len(ids)-1]
	data, err := os.ReadFile(filepath.Join(s.base, id+".json"))
	if err != nil {
		return schema.Catalog{}, "", false, fmt.Errorf("read snapshot %s: %w", id, err)
	}
	cat, err = schema.UnmarshalCatalog(data)
	if err != nil {
		return schema.Catalog{}, "", false, fmt.Errorf("snapshot %s: %w", id, err)
	}
	return cat, id, true, nil
}
