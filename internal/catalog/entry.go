package catalog

// SchemaVersion is stamped into every persisted entry file so future
// field additions can be migrated.
const SchemaVersion = "1.0"

// Cost tiers.
const (
	TierBudget   = "budget"
	TierBalanced = "balanced"
	TierPremium  = "premium"
)

// Speed tiers.
const (
	SpeedFast     = "fast"
	SpeedBalanced = "balanced"
	SpeedThorough = "thorough"
)

// CostTiers is the closed set of valid cost_tier values.
var CostTiers = map[string]bool{
	TierBudget:   true,
	TierBalanced: true,
	TierPremium:  true,
}

// SpeedTiers is the closed set of valid speed_tier values.
var SpeedTiers = map[string]bool{
	SpeedFast:     true,
	SpeedBalanced: true,
	SpeedThorough: true,
}

// Capabilities is the closed capability taxonomy. Entries carrying a tag
// outside this set fail validation.
var Capabilities = map[string]bool{
	"chat":              true,
	"completions":       true,
	"embeddings":        true,
	"function_calling":  true,
	"vision":            true,
	"streaming":         true,
	"fine_tuning":       true,
	"extended_thinking": true,
	"computer_use":      true,
	"reasoning":         true,
	"coding":            true,
	"rerank":            true,
}

// Entry represents one external offering's metadata, persisted as a single
// YAML file keyed by (provider, id).
type Entry struct {
	SchemaVersion string `yaml:"schema_version"`
	ID            string `yaml:"id"`
	Provider      string `yaml:"provider"`
	DisplayName   string `yaml:"display_name"`

	// WireID is the exact identifier a client must send to the provider.
	// It can differ from ID and changing it requires a client-visible
	// migration window, so the differ tracks it separately.
	WireID  string `yaml:"wire_id"`
	DocsURL string `yaml:"docs_url"`

	// InputCapacity is the context window in tokens. OutputCapacity of
	// zero means "same as input".
	InputCapacity  int `yaml:"input_capacity"`
	OutputCapacity int `yaml:"output_capacity,omitempty"`

	Pricing      *Pricing `yaml:"pricing,omitempty"`
	Capabilities []string `yaml:"capabilities"`
	CostTier     string   `yaml:"cost_tier"`
	SpeedTier    string   `yaml:"speed_tier"`

	ReleaseDate     string `yaml:"release_date,omitempty"`
	KnowledgeCutoff string `yaml:"knowledge_cutoff,omitempty"`
	LastVerified    string `yaml:"last_verified,omitempty"`

	// Deprecated entries stay in the catalog; a provider no longer
	// reporting an entry flags it rather than deleting history.
	Deprecated   bool   `yaml:"deprecated,omitempty"`
	DeprecatedAt string `yaml:"deprecated_at,omitempty"`
}

// Pricing holds per-million-token prices in catalog currency. The cache
// fields are optional because most providers do not publish them.
type Pricing struct {
	InputPer1M      float64  `yaml:"input_per_1m"`
	OutputPer1M     float64  `yaml:"output_per_1m"`
	CacheWritePer1M *float64 `yaml:"cache_write_per_1m,omitempty"`
	CacheReadPer1M  *float64 `yaml:"cache_read_per_1m,omitempty"`
}

// Equal reports whether two pricing blocks carry identical values,
// treating nil and an absent optional field consistently.
func (p *Pricing) Equal(o *Pricing) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.InputPer1M != o.InputPer1M || p.OutputPer1M != o.OutputPer1M {
		return false
	}
	return floatPtrEqual(p.CacheWritePer1M, o.CacheWritePer1M) &&
		floatPtrEqual(p.CacheReadPer1M, o.CacheReadPer1M)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Clone returns a deep copy of the pricing block.
func (p *Pricing) Clone() *Pricing {
	if p == nil {
		return nil
	}
	c := *p
	if p.CacheWritePer1M != nil {
		v := *p.CacheWritePer1M
		c.CacheWritePer1M = &v
	}
	if p.CacheReadPer1M != nil {
		v := *p.CacheReadPer1M
		c.CacheReadPer1M = &v
	}
	return &c
}

// Key identifies an entry within a snapshot. Keying on the provider as
// well avoids cross-provider ID collisions at the snapshot level.
type Key struct {
	Provider string
	ID       string
}

// Snapshot is a complete mapping of all known entries at a point in time.
type Snapshot map[Key]*Entry

// Key returns the snapshot key for this entry.
func (e *Entry) Key() Key {
	return Key{Provider: e.Provider, ID: e.ID}
}

// EffectiveOutputCapacity resolves the "absent means same as input" rule.
func (e *Entry) EffectiveOutputCapacity() int {
	if e.OutputCapacity > 0 {
		return e.OutputCapacity
	}
	return e.InputCapacity
}

// Clone returns a deep copy of the entry. Entries are replaced wholesale,
// never mutated in place, so pipeline stages copy before modifying.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Pricing = e.Pricing.Clone()
	if e.Capabilities != nil {
		c.Capabilities = make([]string, len(e.Capabilities))
		copy(c.Capabilities, e.Capabilities)
	}
	return &c
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	c := make(Snapshot, len(s))
	for k, e := range s {
		c[k] = e.Clone()
	}
	return c
}
