package diff

import (
	"fmt"
	"strings"

	"github.com/everstacklabs/curator/internal/catalog"
)

// Summary returns a one-line overview of the report.
func (r *Report) Summary() string {
	if !r.HasChanges() {
		return "No changes detected"
	}

	counts := make(map[Kind]int)
	for _, rec := range r.Records {
		counts[rec.Kind]++
	}

	var parts []string
	for _, k := range []Kind{KindAdded, KindRemoved, KindPricingChanged,
		KindCapabilityChanged, KindIdentifierChanged, KindMetadataChanged} {
		if n := counts[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, k))
		}
	}
	return fmt.Sprintf("%d changes: %s", r.TotalChanges(), strings.Join(parts, ", "))
}

// RenderChangelog renders the report as a markdown changelog suitable for
// a review request body. Entries present in unapplied failed validation;
// their records stay in the changelog but are marked so reviewers know
// the change was not written.
func (r *Report) RenderChangelog(unapplied map[catalog.Key]bool) string {
	var b strings.Builder

	b.WriteString("## Catalog changes\n\n")
	b.WriteString(r.Summary() + "\n")

	for _, rec := range r.Records {
		b.WriteString("\n")
		marker := ""
		if unapplied[catalog.Key{Provider: rec.Provider, ID: rec.EntryID}] && rec.Kind != KindRemoved {
			marker = " ⚠️ NOT APPLIED (failed validation)"
		}
		fmt.Fprintf(&b, "### `%s/%s` — %s%s\n", rec.Provider, rec.EntryID, rec.Kind, marker)

		switch rec.Kind {
		case KindAdded:
			renderEntrySummary(&b, rec.Entry)
		case KindRemoved:
			b.WriteString("- no longer reported by provider; flagged as deprecation candidate\n")
		case KindPricingChanged:
			renderPricing(&b, rec.PricingBefore, rec.PricingAfter)
		case KindCapabilityChanged:
			if len(rec.AddedCapabilities) > 0 {
				fmt.Fprintf(&b, "- capabilities added: %s\n", strings.Join(rec.AddedCapabilities, ", "))
			}
			if len(rec.RemovedCapabilities) > 0 {
				fmt.Fprintf(&b, "- capabilities removed: %s\n", strings.Join(rec.RemovedCapabilities, ", "))
			}
		case KindIdentifierChanged:
			fmt.Fprintf(&b, "- wire identifier: `%s` → `%s` (client migration required)\n",
				rec.IdentifierBefore, rec.IdentifierAfter)
		case KindMetadataChanged:
			for _, f := range rec.Fields {
				fmt.Fprintf(&b, "- %s: %v → %v\n", f.Field, f.OldValue, f.NewValue)
			}
		}
	}

	return b.String()
}

func renderEntrySummary(b *strings.Builder, e *catalog.Entry) {
	fmt.Fprintf(b, "- display name: %s\n", e.DisplayName)
	fmt.Fprintf(b, "- wire identifier: `%s`\n", e.WireID)
	fmt.Fprintf(b, "- capacity: %d in / %d out\n", e.InputCapacity, e.EffectiveOutputCapacity())
	if e.Pricing != nil {
		fmt.Fprintf(b, "- pricing: $%.2f in / $%.2f out per 1M\n",
			e.Pricing.InputPer1M, e.Pricing.OutputPer1M)
	}
	if len(e.Capabilities) > 0 {
		fmt.Fprintf(b, "- capabilities: %s\n", strings.Join(e.Capabilities, ", "))
	}
	fmt.Fprintf(b, "- tiers: %s cost, %s speed\n", e.CostTier, e.SpeedTier)
}

func renderPricing(b *strings.Builder, before, after *catalog.Pricing) {
	fmt.Fprintf(b, "- input: %s → %s\n", priceStr(before, pIn), priceStr(after, pIn))
	fmt.Fprintf(b, "- output: %s → %s\n", priceStr(before, pOut), priceStr(after, pOut))
	if hasCacheWrite(before) || hasCacheWrite(after) {
		fmt.Fprintf(b, "- cache write: %s → %s\n", priceStr(before, pCacheW), priceStr(after, pCacheW))
	}
	if hasCacheRead(before) || hasCacheRead(after) {
		fmt.Fprintf(b, "- cache read: %s → %s\n", priceStr(before, pCacheR), priceStr(after, pCacheR))
	}
}

type priceField int

const (
	pIn priceField = iota
	pOut
	pCacheW
	pCacheR
)

func hasCacheWrite(p *catalog.Pricing) bool { return p != nil && p.CacheWritePer1M != nil }
func hasCacheRead(p *catalog.Pricing) bool  { return p != nil && p.CacheReadPer1M != nil }

func priceStr(p *catalog.Pricing, f priceField) string {
	if p == nil {
		return "(none)"
	}
	switch f {
	case pIn:
		return fmt.Sprintf("$%.2f", p.InputPer1M)
	case pOut:
		return fmt.Sprintf("$%.2f", p.OutputPer1M)
	case pCacheW:
		if p.CacheWritePer1M == nil {
			return "(none)"
		}
		return fmt.Sprintf("$%.2f", *p.CacheWritePer1M)
	case pCacheR:
		if p.CacheReadPer1M == nil {
			return "(none)"
		}
		return fmt.Sprintf("$%.2f", *p.CacheReadPer1M)
	}
	return "(none)"
}
