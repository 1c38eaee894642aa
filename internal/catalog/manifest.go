package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestProvider describes one provider's files in the manifest.
type ManifestProvider struct {
	Name       string   `yaml:"name"`
	Entries    []string `yaml:"entries"`
	Deprecated int      `yaml:"deprecated,omitempty"`
}

// ManifestStats holds aggregate counts.
type ManifestStats struct {
	TotalProviders int `yaml:"total_providers"`
	TotalEntries   int `yaml:"total_entries"`
	Deprecated     int `yaml:"deprecated"`
}

// Manifest is the manifest.yaml index written after every catalog save.
type Manifest struct {
	Version       string             `yaml:"version"`
	GeneratedAt   string             `yaml:"generated_at"`
	SchemaVersion string             `yaml:"schema_version"`
	Providers     []ManifestProvider `yaml:"providers"`
	Stats         ManifestStats      `yaml:"stats"`
}

// GenerateManifest rebuilds manifest.yaml from the catalog on disk so
// downstream consumers can discover entries without scanning directories.
func (s *FileStore) GenerateManifest(now time.Time) error {
	version, err := s.Version()
	if err != nil {
		return err
	}

	snap, err := s.Load()
	if err != nil {
		return err
	}

	byProvider := make(map[string]*ManifestProvider)
	stats := ManifestStats{TotalEntries: len(snap)}
	for key, entry := range snap {
		mp, ok := byProvider[key.Provider]
		if !ok {
			mp = &ManifestProvider{Name: key.Provider}
			byProvider[key.Provider] = mp
		}
		mp.Entries = append(mp.Entries, filepath.Join("providers", key.Provider, "entries", key.ID+".yaml"))
		if entry.Deprecated {
			mp.Deprecated++
			stats.Deprecated++
		}
	}

	providers := make([]ManifestProvider, 0, len(byProvider))
	for _, mp := range byProvider {
		sort.Strings(mp.Entries)
		providers = append(providers, *mp)
	}
	sort.Slice(providers, func(i, j int) bool {
		return providers[i].Name < providers[j].Name
	})
	stats.TotalProviders = len(providers)

	manifest := Manifest{
		Version:       version,
		GeneratedAt:   now.UTC().Format(time.RFC3339),
		SchemaVersion: SchemaVersion,
		Providers:     providers,
		Stats:         stats,
	}

	data, err := yaml.Marshal(&manifest)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	header := strings.Join([]string{
		"# Catalog Manifest",
		"# Auto-generated - DO NOT EDIT MANUALLY",
		"# Run: curator sync to regenerate",
		"", "",
	}, "\n")

	return os.WriteFile(filepath.Join(s.basePath, "manifest.yaml"), []byte(header+string(data)), 0o644)
}
