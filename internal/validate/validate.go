// Package validate decides whether fetched catalog entries are safe to
// merge. Every check runs independently; errors block an entry from the
// write set, warnings are surfaced but never block.
package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/everstacklabs/curator/internal/catalog"
)

// Capacity and price bounds. Values outside the capacity range are always
// errors, with no gray zone. Prices above the ceiling are unusual but not
// impossible, so they only warn.
const (
	MinCapacity = 1_000
	MaxCapacity = 10_000_000

	MaxPricePer1M = 1000.0

	MinReleaseYear = 2020
)

// Result is the validation outcome for a single fetched entry.
type Result struct {
	EntryID  string
	Provider string
	Errors   []string
	Warnings []string
}

// IsValid reports whether the entry can join the write set.
func (r *Result) IsValid() bool { return len(r.Errors) == 0 }

func (r *Result) errorf(field, format string, args ...any) {
	r.Errors = append(r.Errors, field+": "+fmt.Sprintf(format, args...))
}

func (r *Result) warnf(field, format string, args ...any) {
	r.Warnings = append(r.Warnings, field+": "+fmt.Sprintf(format, args...))
}

// entryIDRe enforces lowercase hyphen-separated IDs like claude-haiku-4-5.
var entryIDRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Entry checks a single fetched entry against the domain rules. It never
// fails on malformed input; problems surface as errors in the result. It
// is deterministic for a fixed "now", which callers must supply so the
// year bound does not depend on an implicit clock.
func Entry(e *catalog.Entry, now time.Time) *Result {
	r := &Result{EntryID: e.ID, Provider: e.Provider}

	// Required fields.
	if e.ID == "" {
		r.errorf("id", "required field is empty")
	} else if !entryIDRe.MatchString(e.ID) {
		r.errorf("id", "%q is not lowercase hyphen-separated", e.ID)
	}
	if e.Provider == "" {
		r.errorf("provider", "required field is empty")
	}
	if e.WireID == "" {
		r.errorf("wire_id", "required field is empty")
	}
	if e.DocsURL == "" {
		r.errorf("docs_url", "required field is empty")
	}

	// Capacity bounds.
	if e.InputCapacity <= 0 {
		r.errorf("input_capacity", "required field is missing or non-positive")
	} else if e.InputCapacity < MinCapacity || e.InputCapacity > MaxCapacity {
		r.errorf("input_capacity", "value %d outside expected range [%d, %d]",
			e.InputCapacity, MinCapacity, MaxCapacity)
	}
	if e.OutputCapacity > 0 && e.InputCapacity > 0 && e.OutputCapacity > e.InputCapacity {
		r.errorf("output_capacity", "value %d exceeds input_capacity %d",
			e.OutputCapacity, e.InputCapacity)
	}

	validatePricing(r, e.Pricing)

	// Capability taxonomy is closed; an unknown tag is bad data, not a
	// new feature.
	for _, tag := range e.Capabilities {
		if !catalog.Capabilities[tag] {
			r.errorf("capabilities", "unknown capability %q", tag)
		}
	}

	if e.CostTier != "" && !catalog.CostTiers[e.CostTier] {
		r.errorf("cost_tier", "unknown tier %q, expected one of: budget, balanced, premium", e.CostTier)
	} else if e.CostTier == "" {
		r.errorf("cost_tier", "required field is empty")
	}
	if e.SpeedTier != "" && !catalog.SpeedTiers[e.SpeedTier] {
		r.errorf("speed_tier", "unknown tier %q, expected one of: fast, balanced, thorough", e.SpeedTier)
	} else if e.SpeedTier == "" {
		r.errorf("speed_tier", "required field is empty")
	}

	// Temporal sanity.
	if e.ReleaseDate != "" {
		year, ok := releaseYear(e.ReleaseDate)
		maxYear := now.Year() + 2
		if !ok {
			r.errorf("release_date", "cannot parse a year from %q", e.ReleaseDate)
		} else if year < MinReleaseYear || year > maxYear {
			r.errorf("release_date", "year %d outside expected range [%d, %d]",
				year, MinReleaseYear, maxYear)
		}
	}

	return r
}

func validatePricing(r *Result, p *catalog.Pricing) {
	if p == nil {
		r.warnf("pricing", "no pricing data")
		return
	}

	checkPrice(r, "pricing.input_per_1m", p.InputPer1M)
	checkPrice(r, "pricing.output_per_1m", p.OutputPer1M)
	if p.CacheWritePer1M != nil {
		checkPrice(r, "pricing.cache_write_per_1m", *p.CacheWritePer1M)
	}
	if p.CacheReadPer1M != nil {
		checkPrice(r, "pricing.cache_read_per_1m", *p.CacheReadPer1M)
	}

	// Output tokens cheaper than input is unusual but not invalid.
	if p.OutputPer1M > 0 && p.InputPer1M > 0 && p.OutputPer1M < p.InputPer1M {
		r.warnf("pricing.output_per_1m", "output price %.4f below input price %.4f",
			p.OutputPer1M, p.InputPer1M)
	}
}

func checkPrice(r *Result, field string, v float64) {
	if v < 0 {
		r.errorf(field, "price %.4f is negative", v)
	} else if v > MaxPricePer1M {
		r.warnf(field, "price %.4f above expected ceiling %.0f", v, MaxPricePer1M)
	}
}

// releaseYear extracts a four-digit year from a date string such as
// "2025", "2025-06" or "2025-06-14".
func releaseYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 4 {
		return 0, false
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil {
		return 0, false
	}
	if len(s) > 4 && s[4] != '-' {
		return 0, false
	}
	return year, true
}

// Snapshot validates every entry in a snapshot, ordered by (provider, id)
// for stable output. Used by the validate subcommand as a CI gate.
func Snapshot(snap catalog.Snapshot, now time.Time) []*Result {
	keys := make([]catalog.Key, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Provider != keys[j].Provider {
			return keys[i].Provider < keys[j].Provider
		}
		return keys[i].ID < keys[j].ID
	})

	results := make([]*Result, 0, len(keys))
	for _, k := range keys {
		results = append(results, Entry(snap[k], now))
	}
	return results
}

// HasErrors reports whether any result carries a blocking error.
func HasErrors(results []*Result) bool {
	for _, r := range results {
		if !r.IsValid() {
			return true
		}
	}
	return false
}

// Format renders validation results for terminal display.
func Format(results []*Result) string {
	var errs, warns []string
	for _, r := range results {
		for _, e := range r.Errors {
			errs = append(errs, fmt.Sprintf("  [ERROR] %s: %s", r.EntryID, e))
		}
		for _, w := range r.Warnings {
			warns = append(warns, fmt.Sprintf("  [WARN] %s: %s", r.EntryID, w))
		}
	}

	if len(errs) == 0 && len(warns) == 0 {
		return "Validation passed: no issues found."
	}

	var b strings.Builder
	if len(errs) > 0 {
		fmt.Fprintf(&b, "Errors (%d):\n%s\n", len(errs), strings.Join(errs, "\n"))
	}
	if len(warns) > 0 {
		fmt.Fprintf(&b, "Warnings (%d):\n%s\n", len(warns), strings.Join(warns, "\n"))
	}
	return b.String()
}
