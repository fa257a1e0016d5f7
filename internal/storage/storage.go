package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// versionPattern matches migration unit directory names. The timestamp prefix
// makes lexical order equal chronological order.
var versionPattern = regexp.MustCompile(`^\d{4}_\d{2}_\d{2}_\d{6}_[a-z0-9_]+$`)

const versionTimeLayout = "2006_01_02_150405"

// Unit describes one reversible migration artifact stored on disk: a
// directory named by its version holding forward.sql, rollback.sql and a
// manifest.
type Unit struct {
	Version   string    `json:"version"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Checksum  string    `json:"checksum"`
}

// Store manages migration units under a single root directory.
type Store struct {
	base string
}

func New(base string) *Store { return &Store{base: base} }

// EnsureBase makes sure the migrations root exists.
func (s *Store) EnsureBase() error {
	return os.MkdirAll(s.base, 0o755)
}

// CreateUnit materializes a new unit with a timestamp-prefixed version. The
// rollback script is required: every unit must be reversible.
func (s *Store) CreateUnit(name, forwardSQL, rollbackSQL string, now time.Time) (Unit, error) {
	name = safeName(name)
	if name == "" {
		return Unit{}, fmt.Errorf("migration name is required")
	}
	if strings.TrimSpace(forwardSQL) == "" {
		return Unit{}, fmt.Errorf("forward script is empty")
	}
	if strings.TrimSpace(rollbackSQL) == "" {
		return Unit{}, fmt.Errorf("rollback script is empty")
	}

	version := now.UTC().Format(versionTimeLayout) + "_" + name
	if !versionPattern.MatchString(version) {
		return Unit{}, fmt.Errorf("invalid migration name %q", name)
	}
	dir := filepath.Join(s.base, version)
	if _, err := os.Stat(dir); err == nil {
		return Unit{}, fmt.Errorf("migration %s already exists", version)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Unit{}, err
	}

	if err := os.WriteFile(filepath.Join(dir, "forward.sql"), []byte(forwardSQL), 0o644); err != nil {
		return Unit{}, fmt.Errorf("write forward script: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "rollback.sql"), []byte(rollbackSQL), 0o644); err != nil {
		return Unit{}, fmt.Errorf("write rollback script: %w", err)
	}

	unit := Unit{
		Version:   version,
		Name:      name,
		CreatedAt: now.UTC(),
		Checksum:  computeChecksum([]byte(forwardSQL), []byte(rollbackSQL)),
	}
	if err := writeJSON(filepath.Join(dir, "manifest.json"), unit); err != nil {
		return Unit{}, err
	}
	return unit, nil
}

// List returns all units in version order (chronological by construction).
func (s *Store) List() ([]Unit, error) {
	entries, err := os.ReadDir(s.base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var units []Unit
	for _, e := range entries {
		if !e.IsDir() || !versionPattern.MatchString(e.Name()) {
			continue
		}
		unit, err := s.Load(e.Name())
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Version < units[j].Version })
	return units, nil
}

// Versions returns unit versions in chronological order.
func (s *Store) Versions() ([]string, error) {
	units, err := s.List()
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(units))
	for _, u := range units {
		versions = append(versions, u.Version)
	}
	return versions, nil
}

// Load reads a unit's manifest.
func (s *Store) Load(version string) (Unit, error) {
	data, err := os.ReadFile(filepath.Join(s.base, version, "manifest.json"))
	if err != nil {
		return Unit{}, fmt.Errorf("read manifest for %s: %w", version, err)
	}
	var unit Unit
	if err := json.Unmarshal(data, &unit); err != nil {
		return Unit{}, fmt.Errorf("parse manifest for %s: %w", version, err)
	}
	return unit, nil
}

// LoadScripts reads a unit's forward and rollback scripts.
func (s *Store) LoadScripts(version string) (forward, rollback string, err error) {
	dir := filepath.Join(s.base, version)
	fwd, err := os.ReadFile(filepath.Join(dir, "forward.sql"))
	if err != nil {
		return "", "", fmt.Errorf("read forward script for %s: %w", version, err)
	}
	rb, err := os.ReadFile(filepath.Join(dir, "rollback.sql"))
	if err != nil {
		return "", "", fmt.Errorf("read rollback script for %s: %w", version, err)
	}
	return string(fwd), string(rb), nil
}

func safeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}

func computeChecksum(blobs ...[]byte) string {
	h := sha256.New()
	for _, b := range blobs {
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
