// Package diff computes the classified difference between two catalog
// snapshots. Detection is pure: no I/O, no clock, and byte-for-byte
// reproducible ordering for a given pair of snapshots.
package diff

import "github.com/everstacklabs/curator/internal/catalog"

// Kind classifies a detected difference.
type Kind string

const (
	KindAdded             Kind = "added"
	KindRemoved           Kind = "removed"
	KindPricingChanged    Kind = "pricing_changed"
	KindCapabilityChanged Kind = "capability_changed"
	KindIdentifierChanged Kind = "identifier_changed"
	KindMetadataChanged   Kind = "metadata_changed"
)

// kindRank fixes a total order over kinds so report ordering is
// deterministic regardless of map iteration.
var kindRank = map[Kind]int{
	KindAdded:             0,
	KindRemoved:           1,
	KindPricingChanged:    2,
	KindCapabilityChanged: 3,
	KindIdentifierChanged: 4,
	KindMetadataChanged:   5,
}

// FieldChange records a single metadata field difference.
type FieldChange struct {
	Field    string
	OldValue any
	NewValue any
}

// Record is one detected difference. Only the sub-values that changed are
// carried, so changelogs stay reviewable; the full entries ride along for
// the pipeline's write set.
type Record struct {
	Kind     Kind
	EntryID  string
	Provider string

	// Entry is the whole new entry for added and changed kinds, and the
	// whole old entry for removed.
	Entry *catalog.Entry

	// Pricing before/after, both populated for pricing_changed so
	// reviewers see every price dimension together.
	PricingBefore *catalog.Pricing
	PricingAfter  *catalog.Pricing

	// Capability symmetric difference for capability_changed. At least
	// one side is non-empty.
	AddedCapabilities   []string
	RemovedCapabilities []string

	// Wire identifiers for identifier_changed.
	IdentifierBefore string
	IdentifierAfter  string

	// Aggregated field diffs for metadata_changed.
	Fields []FieldChange
}

// Report is the ordered, classified set of differences between two
// snapshots.
type Report struct {
	Records []Record
}

// HasChanges reports whether the diff found anything.
func (r *Report) HasChanges() bool { return len(r.Records) > 0 }

// TotalChanges returns the number of records.
func (r *Report) TotalChanges() int { return len(r.Records) }

// Added returns the records for newly appearing entries.
func (r *Report) Added() []Record { return r.byKind(KindAdded) }

// Removed returns the deprecation-candidate records: entries the provider
// no longer reports. They are flagged, never deleted.
func (r *Report) Removed() []Record { return r.byKind(KindRemoved) }

func (r *Report) byKind(k Kind) []Record {
	var out []Record
	for _, rec := range r.Records {
		if rec.Kind == k {
			out = append(out, rec)
		}
	}
	return out
}

// ChangedEntries returns, keyed by snapshot key, the fetched entry behind
// every record except removals. These are the entries that must pass
// validation before they can be written.
func (r *Report) ChangedEntries() map[catalog.Key]*catalog.Entry {
	out := make(map[catalog.Key]*catalog.Entry)
	for _, rec := range r.Records {
		if rec.Kind == KindRemoved {
			continue
		}
		out[catalog.Key{Provider: rec.Provider, ID: rec.EntryID}] = rec.Entry
	}
	return out
}
