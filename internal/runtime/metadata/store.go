package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrNoRecord reports that an instance directory has no sidecar yet.
var ErrNoRecord = errors.New("no metadata record")

// Store reads and writes sidecar records under a data directory laid out as
// one subdirectory per instance.
type Store struct {
	dataDir string
}

// NewStore returns a store rooted at dataDir.
func NewStore(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

// Path returns the sidecar path for an instance name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dataDir, name, FileName)
}

// Load reads the record for name. A missing file returns ErrNoRecord.
func (s *Store) Load(name string) (*Record, error) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoRecord
		}
		return nil, fmt.Errorf("failed to read metadata for %s: %w", name, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse metadata for %s: %w", name, err)
	}
	if rec.Name == "" {
		rec.Name = name
	}
	return &rec, nil
}

// Save writes the record atomically (temp file then rename) so a crash never
// leaves a half-written sidecar.
func (s *Store) Save(name string, rec *Record) error {
	if rec.Name == "" {
		rec.Name = name
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.CustomID == "" {
		rec.CustomID = uuid.NewString()
	}

	dir := filepath.Join(s.dataDir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create instance directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	tmp := s.Path(name) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	if err := os.Rename(tmp, s.Path(name)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to commit metadata: %w", err)
	}
	return nil
}

// Update loads the record for name (an empty record when none exists),
// applies fn and saves the result.
func (s *Store) Update(name string, fn func(*Record)) (*Record, error) {
	rec, err := s.Load(name)
	if errors.Is(err, ErrNoRecord) {
		rec = &Record{Name: name}
	} else if err != nil {
		return nil, err
	}

	fn(rec)
	if err := s.Save(name, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Rename rewrites the record under its new name, appending the old name to
// the previous-names history. The caller is responsible for having renamed
// the directory itself first.
func (s *Store) Rename(oldName, newName string) (*Record, error) {
	rec, err := s.Load(newName)
	if errors.Is(err, ErrNoRecord) {
		rec = &Record{Name: newName}
	} else if err != nil {
		return nil, err
	}

	rec.Name = newName
	rec.PreviousNames = append(rec.PreviousNames, oldName)
	if err := s.Save(newName, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Merge combines stored env overrides with newly supplied ones. Incoming
// keys win on collision; existing keys absent from incoming are preserved.
// Both inputs are left untouched.
func Merge(existing, incoming map[string]string) map[string]string {
	merged := make(map[string]string, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}
