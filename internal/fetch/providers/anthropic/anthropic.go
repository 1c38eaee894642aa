package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/everstacklabs/curator/internal/catalog"
	"github.com/everstacklabs/curator/internal/fetch"
	"github.com/everstacklabs/curator/internal/httpclient"
)

const docsURL = "https://docs.anthropic.com/en/docs/about-claude/models"

func init() {
	fetch.Register(&Anthropic{})
}

// Anthropic fetches entries from the Anthropic models API. Pricing and
// capacity are not exposed by the API and come from a static table keyed
// on the model family.
type Anthropic struct {
	apiKey  string
	baseURL string
	client  *httpclient.Client
}

func (a *Anthropic) Name() string { return "anthropic" }

// Configure sets up the fetcher with API credentials and HTTP client.
func (a *Anthropic) Configure(apiKey, baseURL string, client *httpclient.Client) {
	a.apiKey = apiKey
	a.baseURL = baseURL
	a.client = client
}

// HealthCheck performs a lightweight GET against the models endpoint.
func (a *Anthropic) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := a.client.Get(ctx, a.baseURL+"/models?limit=1", a.headers())
	return err
}

// MinExpectedEntries returns the minimum entry count for Anthropic.
func (a *Anthropic) MinExpectedEntries() int { return 3 }

func (a *Anthropic) headers() map[string]string {
	return map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": "2023-06-01",
	}
}

// Anthropic /v1/models response types.
type modelsResponse struct {
	Data    []apiModel `json:"data"`
	HasMore bool       `json:"has_more"`
	LastID  string     `json:"last_id"`
}

type apiModel struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	CreatedAt   string `json:"created_at"`
	Type        string `json:"type"`
}

func (a *Anthropic) Fetch(ctx context.Context) ([]*catalog.Entry, error) {
	var apiModels []apiModel
	afterID := ""

	for {
		url := a.baseURL + "/models?limit=1000"
		if afterID != "" {
			url += "&after_id=" + afterID
		}

		resp, err := a.client.Get(ctx, url, a.headers())
		if err != nil {
			return nil, err
		}

		var page modelsResponse
		if err := json.Unmarshal(resp.Body, &page); err != nil {
			return nil, fmt.Errorf("parsing models response: %w", err)
		}
		apiModels = append(apiModels, page.Data...)

		if !page.HasMore {
			break
		}
		afterID = page.LastID
	}

	var entries []*catalog.Entry
	for _, am := range apiModels {
		if e := a.toEntry(am); e != nil {
			entries = append(entries, e)
		}
	}

	slog.Info("anthropic fetch complete", "api_models", len(apiModels), "entries", len(entries))
	return entries, nil
}

// datedSnapshotRe matches dated snapshot IDs like claude-sonnet-4-20250514
// but not base aliases like claude-sonnet-4-0.
var datedSnapshotRe = regexp.MustCompile(`-\d{8}$`)

// toEntry converts an API model to a catalog entry. Returns nil for
// models that do not belong in the catalog (dated snapshots).
func (a *Anthropic) toEntry(am apiModel) *catalog.Entry {
	if datedSnapshotRe.MatchString(am.ID) {
		return nil
	}

	displayName := am.DisplayName
	if displayName == "" {
		displayName = titleFromID(am.ID)
	}

	spec := specFor(am.ID)

	return &catalog.Entry{
		ID:             strings.ToLower(am.ID),
		Provider:       "anthropic",
		DisplayName:    displayName,
		WireID:         am.ID,
		DocsURL:        docsURL,
		InputCapacity:  spec.inputCapacity,
		OutputCapacity: spec.outputCapacity,
		Pricing:        spec.pricing.Clone(),
		Capabilities:   spec.capabilities,
		CostTier:       spec.costTier,
		SpeedTier:      spec.speedTier,
		ReleaseDate:    releaseDate(am.CreatedAt),
	}
}

func titleFromID(id string) string {
	parts := strings.Split(id, "-")
	for i, p := range parts {
		if len(p) > 0 {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

func releaseDate(createdAt string) string {
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		return t.Format("2006-01-02")
	}
	return ""
}

// modelSpec carries the metadata the API does not expose.
type modelSpec struct {
	inputCapacity  int
	outputCapacity int
	pricing        *catalog.Pricing
	capabilities   []string
	costTier       string
	speedTier      string
}

func specFor(id string) modelSpec {
	caps := []string{"chat", "function_calling", "vision", "streaming", "extended_thinking"}

	switch {
	case strings.Contains(id, "opus"):
		return modelSpec{
			inputCapacity:  200_000,
			outputCapacity: 128_000,
			pricing:        pricing(15.0, 75.0, 18.75, 1.50),
			capabilities:   caps,
			costTier:       catalog.TierPremium,
			speedTier:      catalog.SpeedThorough,
		}
	case strings.Contains(id, "haiku"):
		return modelSpec{
			inputCapacity:  200_000,
			outputCapacity: 64_000,
			pricing:        pricing(1.0, 5.0, 1.25, 0.10),
			capabilities:   caps,
			costTier:       catalog.TierBudget,
			speedTier:      catalog.SpeedFast,
		}
	default: // sonnet and anything new defaults to the balanced tier
		return modelSpec{
			inputCapacity:  200_000,
			outputCapacity: 64_000,
			pricing:        pricing(3.0, 15.0, 3.75, 0.30),
			capabilities:   caps,
			costTier:       catalog.TierBalanced,
			speedTier:      catalog.SpeedBalanced,
		}
	}
}

func pricing(in, out, cacheWrite, cacheRead float64) *catalog.Pricing {
	return &catalog.Pricing{
		InputPer1M:      in,
		OutputPer1M:     out,
		CacheWritePer1M: &cacheWrite,
		CacheReadPer1M:  &cacheRead,
	}
}
