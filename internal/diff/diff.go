package diff

import (
	"sort"

	"github.com/everstacklabs/curator/internal/catalog"
)

// Detect compares the current snapshot against a freshly fetched one and
// returns every classified difference. Pure and deterministic: identical
// inputs always produce an identically ordered report.
func Detect(current, fetched catalog.Snapshot) *Report {
	report := &Report{}

	for key, entry := range fetched {
		cur, exists := current[key]
		if !exists {
			report.Records = append(report.Records, Record{
				Kind:     KindAdded,
				EntryID:  key.ID,
				Provider: key.Provider,
				Entry:    entry,
			})
			continue
		}
		report.Records = append(report.Records, compareEntry(key, cur, entry)...)
	}

	for key, entry := range current {
		if _, exists := fetched[key]; exists {
			continue
		}
		// Already-deprecated entries are expected to be absent from the
		// fetch; re-flagging them every run would make reports noisy.
		if entry.Deprecated {
			continue
		}
		report.Records = append(report.Records, Record{
			Kind:     KindRemoved,
			EntryID:  key.ID,
			Provider: key.Provider,
			Entry:    entry,
		})
	}

	// Keys are composite, so two providers can legally report the same
	// entry ID in one run; the provider tie-break keeps ordering stable
	// across map iteration order.
	sort.Slice(report.Records, func(i, j int) bool {
		a, b := report.Records[i], report.Records[j]
		if a.EntryID != b.EntryID {
			return a.EntryID < b.EntryID
		}
		if kindRank[a.Kind] != kindRank[b.Kind] {
			return kindRank[a.Kind] < kindRank[b.Kind]
		}
		return a.Provider < b.Provider
	})

	return report
}

// compareEntry produces at most one record per kind for an entry present
// in both snapshots: prices are reported as a single record carrying the
// whole pricing block, capabilities as one symmetric set difference, the
// wire identifier on its own (identifier changes need a client migration
// window), and everything else folded into one metadata record.
func compareEntry(key catalog.Key, cur, next *catalog.Entry) []Record {
	var records []Record

	if !cur.Pricing.Equal(next.Pricing) {
		records = append(records, Record{
			Kind:          KindPricingChanged,
			EntryID:       key.ID,
			Provider:      key.Provider,
			Entry:         next,
			PricingBefore: cur.Pricing.Clone(),
			PricingAfter:  next.Pricing.Clone(),
		})
	}

	added, removed := capabilityDiff(cur.Capabilities, next.Capabilities)
	if len(added) > 0 || len(removed) > 0 {
		records = append(records, Record{
			Kind:                KindCapabilityChanged,
			EntryID:             key.ID,
			Provider:            key.Provider,
			Entry:               next,
			AddedCapabilities:   added,
			RemovedCapabilities: removed,
		})
	}

	if cur.WireID != next.WireID {
		records = append(records, Record{
			Kind:             KindIdentifierChanged,
			EntryID:          key.ID,
			Provider:         key.Provider,
			Entry:            next,
			IdentifierBefore: cur.WireID,
			IdentifierAfter:  next.WireID,
		})
	}

	if fields := metadataChanges(cur, next); len(fields) > 0 {
		records = append(records, Record{
			Kind:     KindMetadataChanged,
			EntryID:  key.ID,
			Provider: key.Provider,
			Entry:    next,
			Fields:   fields,
		})
	}

	return records
}

// capabilityDiff computes the symmetric set difference, both sides
// sorted. Order within the slices never affects the outcome.
func capabilityDiff(current, next []string) (added, removed []string) {
	curSet := make(map[string]bool, len(current))
	for _, c := range current {
		curSet[c] = true
	}
	nextSet := make(map[string]bool, len(next))
	for _, c := range next {
		nextSet[c] = true
	}

	for c := range nextSet {
		if !curSet[c] {
			added = append(added, c)
		}
	}
	for c := range curSet {
		if !nextSet[c] {
			removed = append(removed, c)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func metadataChanges(cur, next *catalog.Entry) []FieldChange {
	var fields []FieldChange

	if cur.DisplayName != next.DisplayName {
		fields = append(fields, FieldChange{"display_name", cur.DisplayName, next.DisplayName})
	}
	if cur.InputCapacity != next.InputCapacity {
		fields = append(fields, FieldChange{"input_capacity", cur.InputCapacity, next.InputCapacity})
	}
	if cur.OutputCapacity != next.OutputCapacity {
		fields = append(fields, FieldChange{"output_capacity", cur.OutputCapacity, next.OutputCapacity})
	}
	if cur.KnowledgeCutoff != next.KnowledgeCutoff {
		fields = append(fields, FieldChange{"knowledge_cutoff", cur.KnowledgeCutoff, next.KnowledgeCutoff})
	}
	if cur.ReleaseDate != next.ReleaseDate {
		fields = append(fields, FieldChange{"release_date", cur.ReleaseDate, next.ReleaseDate})
	}
	if cur.DocsURL != next.DocsURL {
		fields = append(fields, FieldChange{"docs_url", cur.DocsURL, next.DocsURL})
	}
	if cur.CostTier != next.CostTier {
		fields = append(fields, FieldChange{"cost_tier", cur.CostTier, next.CostTier})
	}
	if cur.SpeedTier != next.SpeedTier {
		fields = append(fields, FieldChange{"speed_tier", cur.SpeedTier, next.SpeedTier})
	}
	// A deprecated entry the provider reports again is back in service.
	// Fetched entries never carry the flag, so this only fires in the
	// resurrection direction and the write clears it.
	if cur.Deprecated && !next.Deprecated {
		fields = append(fields, FieldChange{"deprecated", true, false})
	}

	return fields
}
