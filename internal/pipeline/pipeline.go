// Package pipeline drives a sync run end to end: fetch every provider,
// diff against the on-disk catalog, validate, write, and open a review
// request. The run is modeled as a state machine so each stage's output
// is explicit and cancellation only happens between stages.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/everstacklabs/curator/internal/cache"
	"github.com/everstacklabs/curator/internal/catalog"
	"github.com/everstacklabs/curator/internal/config"
	"github.com/everstacklabs/curator/internal/diff"
	"github.com/everstacklabs/curator/internal/fetch"
	"github.com/everstacklabs/curator/internal/httpclient"
	"github.com/everstacklabs/curator/internal/validate"
)

// Exit codes for the CLI.
const (
	ExitSuccess     = 0
	ExitChanges     = 2 // changes detected (diff mode)
	ExitFetchFailed = 4 // every provider fetch failed
)

// State names one stage of a run.
type State string

const (
	StateFetching   State = "fetching"
	StateLoading    State = "loading"
	StateDetecting  State = "detecting"
	StateValidating State = "validating"
	StateDeciding   State = "deciding"
	StateWriting    State = "writing"
	StateRequesting State = "requesting"
	StateIdle       State = "idle"
	StateDone       State = "done"
	StateRejected   State = "rejected"
)

// Outcome is the terminal result of a run.
type Outcome string

const (
	OutcomeNoChanges    Outcome = "no_changes"
	OutcomeApplied      Outcome = "changes_applied"
	OutcomeRejected     Outcome = "changes_rejected"
	OutcomePartialFetch Outcome = "partial_fetch_failure"
)

// Decision is the terminal output of a run. It always carries the full
// report and validation results so operators never have to re-run just
// to see why nothing happened.
type Decision struct {
	Outcome         Outcome
	Report          *diff.Report
	Validation      []*validate.Result
	Unapplied       map[catalog.Key]bool
	FailedProviders []string
	DryRun          bool
	PRNumber        int
	PRDraft         bool
	PRError         error // review request failed after a successful write
}

// PRCreator opens a review request for an applied change set.
type PRCreator interface {
	RequestReview(ctx context.Context, report *diff.Report, results []*validate.Result,
		unapplied map[catalog.Key]bool, draft bool) (int, error)
}

// Pipeline orchestrates the full sync workflow.
type Pipeline struct {
	cfg    *config.Config
	store  catalog.Store
	pr     PRCreator
	now    func() time.Time
	lookup func(string) (fetch.Fetcher, error)

	state State
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithPRCreator sets the review-request collaborator.
func WithPRCreator(pr PRCreator) Option {
	return func(p *Pipeline) { p.pr = pr }
}

// WithFetcherLookup overrides how provider names resolve to fetchers.
// The default is the process-global registry.
func WithFetcherLookup(lookup func(string) (fetch.Fetcher, error)) Option {
	return func(p *Pipeline) { p.lookup = lookup }
}

// New creates a Pipeline over the given store.
func New(cfg *config.Config, store catalog.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		store:  store,
		now:    time.Now,
		lookup: fetch.Get,
		state:  StateFetching,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State reports the stage the last run reached.
func (p *Pipeline) State() State { return p.state }

type fetchResult struct {
	provider string
	entries  []*catalog.Entry
	err      error
}

// Run executes the state machine. The returned error is non-nil only
// for fatal conditions (load or write failure); every other result is
// expressed through the Decision.
func (p *Pipeline) Run(ctx context.Context) (*Decision, error) {
	// Fetching
	p.state = StateFetching
	fetched, failed := p.fetchAll(ctx)

	decision := &Decision{
		FailedProviders: failed,
		DryRun:          p.cfg.DryRun,
		Unapplied:       make(map[catalog.Key]bool),
	}

	succeeded := p.succeededProviders(failed)
	if len(succeeded) == 0 {
		p.state = StateRejected
		decision.Outcome = OutcomePartialFetch
		decision.Report = &diff.Report{}
		return decision, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Loading. Failure is fatal: there is nothing safe to diff against.
	p.state = StateLoading
	current, err := p.store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	slog.Info("catalog loaded", "entries", len(current))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Detecting. The current snapshot is narrowed to providers that
	// fetched successfully so a provider outage never looks like a
	// mass removal.
	p.state = StateDetecting
	report := diff.Detect(filterProviders(current, succeeded), fetched)
	decision.Report = report

	if !report.HasChanges() {
		p.state = StateIdle
		decision.Outcome = OutcomeNoChanges
		return decision, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Validating. Removed entries are being dropped, not added, so
	// only the changed-or-new entries get validated.
	p.state = StateValidating
	now := p.now()
	dupes := duplicateProviders(fetched)
	changed := report.ChangedEntries()
	for key, entry := range changed {
		result := validate.Entry(entry, now)
		if provs := dupes[key.ID]; len(provs) > 1 {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"id: %q reported by multiple providers: %s", key.ID, strings.Join(provs, ", ")))
		}
		decision.Validation = append(decision.Validation, result)
		if !result.IsValid() {
			decision.Unapplied[key] = true
		}
	}
	sortResults(decision.Validation)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Deciding
	p.state = StateDeciding
	writeSet := make(catalog.Snapshot)
	for key, entry := range changed {
		if !decision.Unapplied[key] {
			writeSet[key] = entry
		}
	}
	if len(writeSet) == 0 && len(report.Removed()) == 0 {
		p.state = StateRejected
		decision.Outcome = OutcomeRejected
		return decision, nil
	}
	decision.Outcome = OutcomeApplied
	decision.PRDraft = assessRisk(report)

	if p.cfg.DryRun {
		slog.Info("dry run, skipping write and review request",
			"changes", report.TotalChanges(), "unapplied", len(decision.Unapplied))
		return decision, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Writing. Failure is fatal; the save is all-or-nothing for the
	// computed write set.
	p.state = StateWriting
	if err := p.write(current, report, writeSet, now); err != nil {
		return nil, fmt.Errorf("writing catalog: %w", err)
	}

	// Requesting. The write is the source of truth; a failure here is
	// surfaced but never rolls the write back.
	if p.pr != nil && !p.cfg.NoPR {
		p.state = StateRequesting
		prNum, err := p.pr.RequestReview(ctx, report, decision.Validation, decision.Unapplied, decision.PRDraft)
		if err != nil {
			slog.Warn("review request failed", "error", err)
			decision.PRError = err
		} else {
			decision.PRNumber = prNum
		}
	}

	p.state = StateDone
	return decision, nil
}

// fetchAll invokes every configured fetcher concurrently and merges the
// results into one snapshot. Merge order is fixed by sorting on provider
// name so completion order never affects output.
func (p *Pipeline) fetchAll(ctx context.Context) (catalog.Snapshot, []string) {
	client := p.newHTTPClient()

	results := make([]fetchResult, len(p.cfg.Providers))
	var wg sync.WaitGroup
	for i, name := range p.cfg.Providers {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			results[i] = p.fetchOne(ctx, name, client)
		}(i, name)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].provider < results[j].provider })

	fetched := make(catalog.Snapshot)
	var failed []string
	for _, r := range results {
		if r.err != nil {
			slog.Error("provider fetch failed", "provider", r.provider, "error", r.err)
			failed = append(failed, r.provider)
			continue
		}
		for _, e := range r.entries {
			fetched[e.Key()] = e
		}
		slog.Info("provider fetched", "provider", r.provider, "entries", len(r.entries))
	}
	return fetched, failed
}

func (p *Pipeline) fetchOne(ctx context.Context, name string, client *httpclient.Client) fetchResult {
	f, err := p.lookup(name)
	if err != nil {
		return fetchResult{provider: name, err: &fetch.Failure{Provider: name, Err: err}}
	}

	if c, ok := f.(interface {
		Configure(apiKey, baseURL string, client *httpclient.Client)
	}); ok {
		pc, err := p.cfg.Provider(name)
		if err != nil {
			return fetchResult{provider: name, err: &fetch.Failure{Provider: name, Err: err}}
		}
		c.Configure(pc.APIKey, pc.BaseURL, client)
	}

	fctx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeoutDuration())
	defer cancel()

	entries, err := f.Fetch(fctx)
	if err != nil {
		return fetchResult{provider: name, err: &fetch.Failure{Provider: name, Err: err}}
	}

	// A fetch far below the provider's known floor is treated as a
	// truncated response, not a real shrink.
	if hc, ok := f.(fetch.HealthChecker); ok && len(entries) < hc.MinExpectedEntries() {
		return fetchResult{provider: name, err: &fetch.Failure{
			Provider: name,
			Err:      fmt.Errorf("got %d entries, expected at least %d", len(entries), hc.MinExpectedEntries()),
		}}
	}

	return fetchResult{provider: name, entries: entries}
}

func (p *Pipeline) newHTTPClient() *httpclient.Client {
	opts := []httpclient.Option{
		httpclient.WithRateLimit(p.cfg.RateLimitRPS),
	}
	if p.cfg.NoCache {
		opts = append(opts, httpclient.WithNoCache())
	} else if fc, err := cache.New(p.cfg.CacheDir, p.cfg.CacheTTLDuration()); err == nil {
		opts = append(opts, httpclient.WithCache(fc))
	}
	return httpclient.New(opts...)
}

func (p *Pipeline) succeededProviders(failed []string) []string {
	failedSet := make(map[string]bool, len(failed))
	for _, f := range failed {
		failedSet[f] = true
	}
	var ok []string
	for _, name := range p.cfg.Providers {
		if !failedSet[name] {
			ok = append(ok, name)
		}
	}
	return ok
}

// write merges the write set into the current snapshot and persists it.
// Removed entries are marked deprecated, never deleted.
func (p *Pipeline) write(current catalog.Snapshot, report *diff.Report, writeSet catalog.Snapshot, now time.Time) error {
	merged := current.Clone()
	today := now.UTC().Format("2006-01-02")

	for key, entry := range writeSet {
		e := entry.Clone()
		e.SchemaVersion = catalog.SchemaVersion
		e.LastVerified = today
		merged[key] = e
	}

	for _, rec := range report.Records {
		if rec.Kind != diff.KindRemoved {
			continue
		}
		key := catalog.Key{Provider: rec.Provider, ID: rec.EntryID}
		if e, ok := merged[key]; ok && !e.Deprecated {
			e.Deprecated = true
			e.DeprecatedAt = today
		}
	}

	if err := p.store.Save(merged); err != nil {
		return err
	}

	fs, ok := p.store.(*catalog.FileStore)
	if !ok {
		return nil
	}
	if _, err := fs.BumpVersion(len(report.Added()) > 0); err != nil {
		return fmt.Errorf("bumping version: %w", err)
	}
	if err := fs.GenerateManifest(now); err != nil {
		return fmt.Errorf("generating manifest: %w", err)
	}
	return nil
}

// assessRisk decides whether the review request should open as a draft.
func assessRisk(report *diff.Report) bool {
	if report.TotalChanges() > 25 {
		return true
	}
	if len(report.Removed()) > 3 {
		return true
	}
	for _, rec := range report.Records {
		if rec.Kind != diff.KindPricingChanged || rec.PricingBefore == nil || rec.PricingAfter == nil {
			continue
		}
		if bigDelta(rec.PricingBefore.InputPer1M, rec.PricingAfter.InputPer1M) ||
			bigDelta(rec.PricingBefore.OutputPer1M, rec.PricingAfter.OutputPer1M) {
			return true
		}
	}
	return false
}

func bigDelta(before, after float64) bool {
	if before <= 0 {
		return false
	}
	delta := (after - before) / before
	return delta > 0.35 || delta < -0.35
}

// duplicateProviders maps each entry ID to the sorted providers that
// reported it. IDs are catalog-wide unique; a collision across providers
// blocks every colliding entry.
func duplicateProviders(fetched catalog.Snapshot) map[string][]string {
	byID := make(map[string][]string)
	for key := range fetched {
		byID[key.ID] = append(byID[key.ID], key.Provider)
	}
	for id, provs := range byID {
		sort.Strings(provs)
		byID[id] = provs
	}
	return byID
}

func filterProviders(snap catalog.Snapshot, providers []string) catalog.Snapshot {
	keep := make(map[string]bool, len(providers))
	for _, name := range providers {
		keep[name] = true
	}
	out := make(catalog.Snapshot)
	for key, e := range snap {
		if keep[key.Provider] {
			out[key] = e
		}
	}
	return out
}

func sortResults(results []*validate.Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Provider != results[j].Provider {
			return results[i].Provider < results[j].Provider
		}
		return results[i].EntryID < results[j].EntryID
	})
}
