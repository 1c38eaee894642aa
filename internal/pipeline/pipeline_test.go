package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/everstacklabs/curator/internal/catalog"
	"github.com/everstacklabs/curator/internal/config"
	"github.com/everstacklabs/curator/internal/diff"
	"github.com/everstacklabs/curator/internal/fetch"
	"github.com/everstacklabs/curator/internal/validate"
)

var testNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	snap    catalog.Snapshot
	loadErr error
	saveErr error
	saved   catalog.Snapshot
}

func (s *fakeStore) Load() (catalog.Snapshot, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.snap.Clone(), nil
}

func (s *fakeStore) Save(snap catalog.Snapshot) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = snap
	return nil
}

type stubFetcher struct {
	name    string
	entries []*catalog.Entry
	err     error
}

func (f *stubFetcher) Name() string { return f.name }

func (f *stubFetcher) Fetch(ctx context.Context) ([]*catalog.Entry, error) {
	return f.entries, f.err
}

type fakePR struct {
	called bool
	draft  bool
	err    error
}

func (p *fakePR) RequestReview(ctx context.Context, report *diff.Report, results []*validate.Result,
	unapplied map[catalog.Key]bool, draft bool) (int, error) {
	p.called = true
	p.draft = draft
	if p.err != nil {
		return 0, p.err
	}
	return 42, nil
}

func testConfig(providers ...string) *config.Config {
	return &config.Config{
		Providers:    providers,
		NoCache:      true,
		RateLimitRPS: 100,
		CacheTTL:     "1h",
		FetchTimeout: "10s",
	}
}

func testEntry(provider, id string) *catalog.Entry {
	return &catalog.Entry{
		ID:            id,
		Provider:      provider,
		DisplayName:   "Test Model",
		WireID:        id,
		DocsURL:       "https://example.com/docs",
		InputCapacity: 200_000,
		Pricing:       &catalog.Pricing{InputPer1M: 3.0, OutputPer1M: 15.0},
		Capabilities:  []string{"chat", "streaming"},
		CostTier:      catalog.TierBalanced,
		SpeedTier:     catalog.SpeedBalanced,
		ReleaseDate:   "2025-05-14",
	}
}

func snapshotOf(entries ...*catalog.Entry) catalog.Snapshot {
	s := make(catalog.Snapshot)
	for _, e := range entries {
		s[e.Key()] = e
	}
	return s
}

// newPipeline builds a Pipeline whose fetcher lookup resolves against the
// given stubs only, keeping tests independent of the global registry.
func newPipeline(cfg *config.Config, store catalog.Store, pr PRCreator, fetchers ...fetch.Fetcher) *Pipeline {
	byName := make(map[string]fetch.Fetcher, len(fetchers))
	for _, f := range fetchers {
		byName[f.Name()] = f
	}
	opts := []Option{
		WithClock(func() time.Time { return testNow }),
		WithFetcherLookup(func(name string) (fetch.Fetcher, error) {
			f, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("unknown provider %q", name)
			}
			return f, nil
		}),
	}
	if pr != nil {
		opts = append(opts, WithPRCreator(pr))
	}
	return New(cfg, store, opts...)
}

func TestNoChangesIsTerminalWithoutIO(t *testing.T) {
	store := &fakeStore{snap: snapshotOf(testEntry("anthropic", "claude-sonnet-4"))}
	pr := &fakePR{}

	p := newPipeline(testConfig("anthropic"), store, pr,
		&stubFetcher{name: "anthropic", entries: []*catalog.Entry{
			testEntry("anthropic", "claude-sonnet-4"),
		}})
	decision, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if decision.Outcome != OutcomeNoChanges {
		t.Errorf("expected no_changes, got %s", decision.Outcome)
	}
	if p.State() != StateIdle {
		t.Errorf("expected idle state, got %s", p.State())
	}
	if store.saved != nil {
		t.Error("no_changes must not write")
	}
	if pr.called {
		t.Error("no_changes must not open a review request")
	}
}

func TestCleanUpdateApplied(t *testing.T) {
	sonnet := testEntry("anthropic", "sonnet")
	sonnet.Pricing = &catalog.Pricing{InputPer1M: 2.0, OutputPer1M: 10.0}
	opus := testEntry("anthropic", "opus")

	store := &fakeStore{snap: snapshotOf(testEntry("anthropic", "sonnet"))}
	pr := &fakePR{}

	p := newPipeline(testConfig("anthropic"), store, pr,
		&stubFetcher{name: "anthropic", entries: []*catalog.Entry{sonnet, opus}})
	decision, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if decision.Outcome != OutcomeApplied {
		t.Fatalf("expected changes_applied, got %s", decision.Outcome)
	}
	if decision.Report.TotalChanges() != 2 {
		t.Errorf("expected 2 records, got %d", decision.Report.TotalChanges())
	}

	if store.saved == nil {
		t.Fatal("expected a write")
	}
	got := store.saved[catalog.Key{Provider: "anthropic", ID: "sonnet"}]
	if got == nil || got.Pricing.InputPer1M != 2.0 {
		t.Errorf("sonnet price not updated: %+v", got)
	}
	if got.LastVerified != "2026-09-01" {
		t.Errorf("expected last_verified stamp, got %q", got.LastVerified)
	}
	if got.SchemaVersion != catalog.SchemaVersion {
		t.Errorf("expected schema_version stamp, got %q", got.SchemaVersion)
	}
	if store.saved[catalog.Key{Provider: "anthropic", ID: "opus"}] == nil {
		t.Error("opus missing from saved snapshot")
	}
	if !pr.called {
		t.Error("expected a review request")
	}
	if decision.PRNumber != 42 {
		t.Errorf("expected PR number 42, got %d", decision.PRNumber)
	}
}

func TestInvalidEntryExcludedAndRunRejected(t *testing.T) {
	haiku := testEntry("anthropic", "haiku")
	haiku.Pricing = &catalog.Pricing{InputPer1M: -1, OutputPer1M: 5.0}

	store := &fakeStore{snap: snapshotOf(testEntry("anthropic", "haiku"))}
	pr := &fakePR{}

	p := newPipeline(testConfig("anthropic"), store, pr,
		&stubFetcher{name: "anthropic", entries: []*catalog.Entry{haiku}})
	decision, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if decision.Outcome != OutcomeRejected {
		t.Fatalf("expected changes_rejected, got %s", decision.Outcome)
	}
	if decision.Report.TotalChanges() != 1 || decision.Report.Records[0].Kind != diff.KindPricingChanged {
		t.Errorf("record should survive rejection: %+v", decision.Report.Records)
	}
	if !decision.Unapplied[catalog.Key{Provider: "anthropic", ID: "haiku"}] {
		t.Error("haiku should be marked unapplied")
	}
	if store.saved != nil {
		t.Error("rejected run must not write")
	}
	if pr.called {
		t.Error("rejected run must not open a review request")
	}
}

func TestFetchFailureIsolated(t *testing.T) {
	// Anthropic has current entries; its outage must not flag them removed.
	store := &fakeStore{snap: snapshotOf(testEntry("anthropic", "claude-sonnet-4"))}

	p := newPipeline(testConfig("anthropic", "openai"), store, nil,
		&stubFetcher{name: "anthropic", err: errors.New("boom")},
		&stubFetcher{name: "openai", entries: []*catalog.Entry{
			testEntry("openai", "gpt-4o"),
		}})
	decision, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(decision.FailedProviders) != 1 || decision.FailedProviders[0] != "anthropic" {
		t.Errorf("expected failed_providers=[anthropic], got %v", decision.FailedProviders)
	}
	if decision.Outcome != OutcomeApplied {
		t.Fatalf("expected changes_applied, got %s", decision.Outcome)
	}
	for _, rec := range decision.Report.Records {
		if rec.Kind == diff.KindRemoved {
			t.Errorf("provider outage produced a removed record: %+v", rec)
		}
	}
	if store.saved[catalog.Key{Provider: "openai", ID: "gpt-4o"}] == nil {
		t.Error("openai entry should still flow through")
	}
	if store.saved[catalog.Key{Provider: "anthropic", ID: "claude-sonnet-4"}] == nil {
		t.Error("failed provider's existing entries must survive the save")
	}
}

func TestAllFetchesFailed(t *testing.T) {
	store := &fakeStore{snap: snapshotOf()}

	p := newPipeline(testConfig("anthropic", "openai"), store, nil,
		&stubFetcher{name: "anthropic", err: errors.New("boom")},
		&stubFetcher{name: "openai", err: errors.New("bust")})
	decision, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if decision.Outcome != OutcomePartialFetch {
		t.Errorf("expected partial_fetch_failure, got %s", decision.Outcome)
	}
	if p.State() != StateRejected {
		t.Errorf("expected rejected state, got %s", p.State())
	}
	if len(decision.FailedProviders) != 2 {
		t.Errorf("expected 2 failed providers, got %v", decision.FailedProviders)
	}
}

func TestUnknownProviderCountsAsFailure(t *testing.T) {
	store := &fakeStore{snap: snapshotOf()}

	p := newPipeline(testConfig("nonexistent"), store, nil)
	decision, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if decision.Outcome != OutcomePartialFetch {
		t.Errorf("expected partial_fetch_failure, got %s", decision.Outcome)
	}
}

func TestDryRunStopsBeforeWriting(t *testing.T) {
	store := &fakeStore{snap: snapshotOf()}
	pr := &fakePR{}

	cfg := testConfig("anthropic")
	cfg.DryRun = true
	p := newPipeline(cfg, store, pr,
		&stubFetcher{name: "anthropic", entries: []*catalog.Entry{
			testEntry("anthropic", "claude-opus-4"),
		}})
	decision, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if decision.Outcome != OutcomeApplied {
		t.Errorf("dry run should still report the computed outcome, got %s", decision.Outcome)
	}
	if !decision.DryRun {
		t.Error("decision should carry the dry_run flag")
	}
	if store.saved != nil {
		t.Error("dry run must not write")
	}
	if pr.called {
		t.Error("dry run must not open a review request")
	}
}

func TestRemovedEntryMarkedDeprecatedNotDeleted(t *testing.T) {
	store := &fakeStore{snap: snapshotOf(
		testEntry("anthropic", "claude-sonnet-4"),
		testEntry("anthropic", "claude-2"),
	)}

	p := newPipeline(testConfig("anthropic"), store, nil,
		&stubFetcher{name: "anthropic", entries: []*catalog.Entry{
			testEntry("anthropic", "claude-sonnet-4"),
		}})
	decision, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if decision.Outcome != OutcomeApplied {
		t.Fatalf("expected changes_applied, got %s", decision.Outcome)
	}
	old := store.saved[catalog.Key{Provider: "anthropic", ID: "claude-2"}]
	if old == nil {
		t.Fatal("removed entry must stay in the snapshot")
	}
	if !old.Deprecated || old.DeprecatedAt != "2026-09-01" {
		t.Errorf("expected deprecation flag with date, got %+v", old)
	}
}

func TestResurrectedEntrySavedActive(t *testing.T) {
	dead := testEntry("anthropic", "claude-2")
	dead.Deprecated = true
	dead.DeprecatedAt = "2026-01-15"
	store := &fakeStore{snap: snapshotOf(dead)}

	p := newPipeline(testConfig("anthropic"), store, nil,
		&stubFetcher{name: "anthropic", entries: []*catalog.Entry{
			testEntry("anthropic", "claude-2"),
		}})
	decision, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if decision.Outcome != OutcomeApplied {
		t.Fatalf("expected changes_applied, got %s", decision.Outcome)
	}
	got := store.saved[catalog.Key{Provider: "anthropic", ID: "claude-2"}]
	if got == nil {
		t.Fatal("resurrected entry missing from saved snapshot")
	}
	if got.Deprecated || got.DeprecatedAt != "" {
		t.Errorf("reappearing entry should come back active, got %+v", got)
	}
}

func TestReviewRequestFailureDoesNotRollBack(t *testing.T) {
	store := &fakeStore{snap: snapshotOf()}
	pr := &fakePR{err: errors.New("github down")}

	p := newPipeline(testConfig("anthropic"), store, pr,
		&stubFetcher{name: "anthropic", entries: []*catalog.Entry{
			testEntry("anthropic", "claude-opus-4"),
		}})
	decision, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if decision.Outcome != OutcomeApplied {
		t.Errorf("expected changes_applied, got %s", decision.Outcome)
	}
	if store.saved == nil {
		t.Error("write should have happened before the request failed")
	}
	if decision.PRError == nil {
		t.Error("decision should surface the review request failure")
	}
}

func TestNoPRSkipsReviewRequest(t *testing.T) {
	store := &fakeStore{snap: snapshotOf()}
	pr := &fakePR{}

	cfg := testConfig("anthropic")
	cfg.NoPR = true
	p := newPipeline(cfg, store, pr,
		&stubFetcher{name: "anthropic", entries: []*catalog.Entry{
			testEntry("anthropic", "claude-opus-4"),
		}})
	decision, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if decision.Outcome != OutcomeApplied {
		t.Fatalf("expected changes_applied, got %s", decision.Outcome)
	}
	if store.saved == nil {
		t.Error("no-pr mode should still write")
	}
	if pr.called {
		t.Error("no-pr mode must skip the review request")
	}
}

func TestLoadFailureIsFatal(t *testing.T) {
	store := &fakeStore{loadErr: errors.New("corrupt catalog")}

	p := newPipeline(testConfig("anthropic"), store, nil,
		&stubFetcher{name: "anthropic", entries: []*catalog.Entry{
			testEntry("anthropic", "claude-opus-4"),
		}})
	if _, err := p.Run(context.Background()); err == nil {
		t.Fatal("expected a fatal error on load failure")
	}
}

func TestIdempotence(t *testing.T) {
	opus := testEntry("anthropic", "claude-opus-4")
	store := &fakeStore{snap: snapshotOf()}

	p := newPipeline(testConfig("anthropic"), store, nil,
		&stubFetcher{name: "anthropic", entries: []*catalog.Entry{opus}})
	first, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first.Outcome != OutcomeApplied {
		t.Fatalf("expected changes_applied, got %s", first.Outcome)
	}

	// Second run against the just-written snapshot sees nothing new.
	store.snap = store.saved
	store.saved = nil
	second, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second.Outcome != OutcomeNoChanges {
		t.Errorf("expected no_changes on rerun, got %s", second.Outcome)
	}
}

func TestRiskGateDraftsLargeChangeSets(t *testing.T) {
	var entries []*catalog.Entry
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j",
		"k", "l", "m", "n", "o", "p", "q", "r", "s", "t",
		"u", "v", "w", "x", "y", "z"}
	for _, id := range ids {
		entries = append(entries, testEntry("anthropic", "model-"+id))
	}
	store := &fakeStore{snap: snapshotOf()}
	pr := &fakePR{}

	p := newPipeline(testConfig("anthropic"), store, pr,
		&stubFetcher{name: "anthropic", entries: entries})
	decision, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !decision.PRDraft {
		t.Error("26 changes should open a draft review request")
	}
	if !pr.draft {
		t.Error("draft flag not passed through to the creator")
	}
}

func TestRiskGateDraftsBigPriceSwings(t *testing.T) {
	next := testEntry("anthropic", "claude-sonnet-4")
	next.Pricing = &catalog.Pricing{InputPer1M: 9.0, OutputPer1M: 15.0}

	store := &fakeStore{snap: snapshotOf(testEntry("anthropic", "claude-sonnet-4"))}

	p := newPipeline(testConfig("anthropic"), store, nil,
		&stubFetcher{name: "anthropic", entries: []*catalog.Entry{next}})
	decision, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !decision.PRDraft {
		t.Error("a tripled input price should open a draft review request")
	}
}

func TestDuplicateIDAcrossProvidersBlocked(t *testing.T) {
	store := &fakeStore{snap: snapshotOf()}

	p := newPipeline(testConfig("anthropic", "openai"), store, nil,
		&stubFetcher{name: "anthropic", entries: []*catalog.Entry{
			testEntry("anthropic", "shared-name"),
		}},
		&stubFetcher{name: "openai", entries: []*catalog.Entry{
			testEntry("openai", "shared-name"),
		}})
	decision, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if decision.Outcome != OutcomeRejected {
		t.Fatalf("expected changes_rejected, got %s", decision.Outcome)
	}
	if !decision.Unapplied[catalog.Key{Provider: "anthropic", ID: "shared-name"}] ||
		!decision.Unapplied[catalog.Key{Provider: "openai", ID: "shared-name"}] {
		t.Errorf("both colliding entries should be unapplied, got %v", decision.Unapplied)
	}
	if store.saved != nil {
		t.Error("colliding entries must not be written")
	}
}

type shortFetcher struct {
	stubFetcher
}

func (f *shortFetcher) HealthCheck(ctx context.Context) error { return nil }
func (f *shortFetcher) MinExpectedEntries() int               { return 3 }

func TestTruncatedFetchTreatedAsFailure(t *testing.T) {
	store := &fakeStore{snap: snapshotOf()}

	p := newPipeline(testConfig("anthropic"), store, nil,
		&shortFetcher{stubFetcher{name: "anthropic", entries: []*catalog.Entry{
			testEntry("anthropic", "claude-opus-4"),
		}}})
	decision, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if decision.Outcome != OutcomePartialFetch {
		t.Errorf("expected partial_fetch_failure for a truncated fetch, got %s", decision.Outcome)
	}
}
