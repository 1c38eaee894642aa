package catalog

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store abstracts snapshot persistence so the pipeline can be tested
// without touching disk.
type Store interface {
	// Load reads the full snapshot. A load failure is fatal for a sync
	// run; there is nothing safe to diff against.
	Load() (Snapshot, error)
	// Save persists the full snapshot. Entries are serialized before any
	// file is touched so a marshaling problem cannot leave a partial write.
	Save(Snapshot) error
}

// FileStore persists one YAML file per entry under
// <base>/providers/<provider>/entries/<id>.yaml, alongside version.txt
// and manifest.yaml.
type FileStore struct {
	basePath string
}

// NewFileStore creates a store rooted at basePath.
func NewFileStore(basePath string) *FileStore {
	return &FileStore{basePath: basePath}
}

// BasePath returns the catalog root directory.
func (s *FileStore) BasePath() string { return s.basePath }

// Load reads every entry file in the catalog. Unknown YAML fields are
// rejected rather than silently dropped, so schema drift is caught at
// load time instead of surviving a round-trip.
func (s *FileStore) Load() (Snapshot, error) {
	providersDir := filepath.Join(s.basePath, "providers")
	dirs, err := os.ReadDir(providersDir)
	if err != nil {
		return nil, fmt.Errorf("reading providers dir: %w", err)
	}

	snap := make(Snapshot)
	for _, dir := range dirs {
		if !dir.IsDir() {
			continue
		}
		provider := dir.Name()
		entriesDir := filepath.Join(providersDir, provider, "entries")
		files, err := os.ReadDir(entriesDir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading entries dir for %s: %w", provider, err)
		}

		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".yaml") {
				continue
			}
			path := filepath.Join(entriesDir, f.Name())
			entry, err := loadEntry(path)
			if err != nil {
				return nil, fmt.Errorf("loading %s: %w", path, err)
			}
			if entry.ID+".yaml" != f.Name() {
				return nil, fmt.Errorf("loading %s: filename does not match entry id %q", path, entry.ID)
			}
			snap[entry.Key()] = entry
		}
	}

	return snap, nil
}

func loadEntry(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var e Entry
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&e); err != nil {
		return nil, fmt.Errorf("parsing entry: %w", err)
	}
	return &e, nil
}

// Save writes every entry in the snapshot. All entries are marshaled
// up front; each file then goes through a temp-file rename so a crashed
// write never leaves a truncated entry behind. Files for entries no
// longer in the snapshot are left alone; removal is signaled by the
// deprecated flag, not by deleting history.
func (s *FileStore) Save(snap Snapshot) error {
	type pending struct {
		path string
		data []byte
	}

	keys := make([]Key, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Provider != keys[j].Provider {
			return keys[i].Provider < keys[j].Provider
		}
		return keys[i].ID < keys[j].ID
	})

	writes := make([]pending, 0, len(keys))
	for _, k := range keys {
		entry := snap[k]
		out := entry.Clone()
		if out.SchemaVersion == "" {
			out.SchemaVersion = SchemaVersion
		}
		data, err := yaml.Marshal(out)
		if err != nil {
			return fmt.Errorf("marshaling entry %s/%s: %w", k.Provider, k.ID, err)
		}
		dir := filepath.Join(s.basePath, "providers", k.Provider, "entries")
		writes = append(writes, pending{path: filepath.Join(dir, k.ID+".yaml"), data: data})
	}

	for _, w := range writes {
		if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
			return fmt.Errorf("creating entries dir: %w", err)
		}
		tmp := w.path + ".tmp"
		if err := os.WriteFile(tmp, w.data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", w.path, err)
		}
		if err := os.Rename(tmp, w.path); err != nil {
			return fmt.Errorf("renaming %s: %w", w.path, err)
		}
	}

	return nil
}

// Version reads version.txt from the catalog root.
func (s *FileStore) Version() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.basePath, "version.txt"))
	if err != nil {
		return "", fmt.Errorf("reading version.txt: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// BumpVersion increments the catalog semver: MINOR when entries were
// added, PATCH for updates only.
func (s *FileStore) BumpVersion(hasNew bool) (string, error) {
	version, err := s.Version()
	if err != nil {
		return "", err
	}
	next, err := bumpSemver(version, hasNew)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.basePath, "version.txt")
	if err := os.WriteFile(path, []byte(next+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("writing version.txt: %w", err)
	}
	return next, nil
}

func bumpSemver(version string, hasNew bool) (string, error) {
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid semver: %s", version)
	}

	var major, minor, patch int
	if _, err := fmt.Sscanf(version, "%d.%d.%d", &major, &minor, &patch); err != nil {
		return "", fmt.Errorf("invalid semver: %s", version)
	}

	if hasNew {
		minor++
		patch = 0
	} else {
		patch++
	}

	return fmt.Sprintf("%d.%d.%d", major, minor, patch), nil
}
