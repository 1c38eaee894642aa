package mistral

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/everstacklabs/curator/internal/catalog"
	"github.com/everstacklabs/curator/internal/fetch"
	"github.com/everstacklabs/curator/internal/httpclient"
)

const docsURL = "https://docs.mistral.ai/getting-started/models/"

func init() {
	fetch.Register(&Mistral{})
}

// Mistral fetches entries from the Mistral AI models API. Unlike the
// other providers, the API reports context length and capability flags
// per model; pricing still comes from the docs pricing page.
type Mistral struct {
	apiKey  string
	baseURL string
	client  *httpclient.Client
}

func (m *Mistral) Name() string { return "mistral" }

// Configure sets up the fetcher with API credentials and HTTP client.
func (m *Mistral) Configure(apiKey, baseURL string, client *httpclient.Client) {
	m.apiKey = apiKey
	m.baseURL = baseURL
	m.client = client
}

// HealthCheck performs a lightweight GET against the models endpoint.
func (m *Mistral) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := m.client.Get(ctx, m.baseURL+"/models", m.headers())
	return err
}

// MinExpectedEntries returns the minimum entry count for Mistral.
func (m *Mistral) MinExpectedEntries() int { return 3 }

func (m *Mistral) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + m.apiKey}
}

type modelsResponse struct {
	Data []apiModel `json:"data"`
}

type apiCapabilities struct {
	CompletionChat  bool `json:"completion_chat"`
	CompletionFIM   bool `json:"completion_fim"`
	FunctionCalling bool `json:"function_calling"`
	FineTuning      bool `json:"fine_tuning"`
	Vision          bool `json:"vision"`
}

type apiModel struct {
	ID               string          `json:"id"`
	Created          int64           `json:"created"`
	Name             string          `json:"name"`
	MaxContextLength int             `json:"max_context_length"`
	Aliases          []string        `json:"aliases"`
	Capabilities     apiCapabilities `json:"capabilities"`
	Type             string          `json:"type"`
	Deprecation      *string         `json:"deprecation"`
}

func (m *Mistral) Fetch(ctx context.Context) ([]*catalog.Entry, error) {
	resp, err := m.client.Get(ctx, m.baseURL+"/models", m.headers())
	if err != nil {
		return nil, err
	}

	var listing modelsResponse
	if err := json.Unmarshal(resp.Body, &listing); err != nil {
		return nil, fmt.Errorf("parsing models response: %w", err)
	}

	prices, err := m.fetchPricing(ctx)
	if err != nil {
		// Pricing page scrape is best effort; entries without pricing
		// surface as validation warnings rather than a fetch failure.
		slog.Warn("mistral pricing scrape failed", "error", err)
		prices = nil
	}

	var entries []*catalog.Entry
	for _, am := range listing.Data {
		if e := m.toEntry(am, prices); e != nil {
			entries = append(entries, e)
		}
	}

	slog.Info("mistral fetch complete", "api_models", len(listing.Data), "entries", len(entries))
	return entries, nil
}

func shouldSkip(am apiModel) bool {
	if am.Type == "fine-tuned" {
		return true
	}
	if am.Deprecation != nil {
		return true
	}
	// Dated release IDs like mistral-large-2411 are aliases of the base ID.
	if datedReleaseRe.MatchString(am.ID) {
		return true
	}
	return false
}

func (m *Mistral) toEntry(am apiModel, prices map[string]*catalog.Pricing) *catalog.Entry {
	if shouldSkip(am) {
		return nil
	}

	displayName := am.Name
	if displayName == "" {
		displayName = titleFromID(am.ID)
	}

	return &catalog.Entry{
		ID:             strings.ToLower(am.ID),
		Provider:       "mistral",
		DisplayName:    displayName,
		WireID:         am.ID,
		DocsURL:        docsURL,
		InputCapacity:  am.MaxContextLength,
		OutputCapacity: maxCompletionFor(am.MaxContextLength),
		Pricing:        priceFor(am.ID, prices),
		Capabilities:   buildCapabilities(am.Capabilities),
		CostTier:       costTierFor(am.ID),
		SpeedTier:      speedTierFor(am.ID),
		ReleaseDate:    time.Unix(am.Created, 0).UTC().Format("2006-01-02"),
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

func buildCapabilities(caps apiCapabilities) []string {
	var result []string
	if caps.CompletionChat {
		result = append(result, "chat", "streaming")
	}
	if caps.FunctionCalling {
		result = append(result, "function_calling")
	}
	if caps.Vision {
		result = append(result, "vision")
	}
	if caps.FineTuning {
		result = append(result, "fine_tuning")
	}
	if caps.CompletionFIM {
		result = append(result, "coding")
	}
	return result
}

// Mistral does not expose max output tokens; use tier defaults.
func maxCompletionFor(contextLength int) int {
	switch {
	case contextLength >= 128_000:
		return 16_384
	case contextLength >= 32_000:
		return 8_192
	default:
		return 4_096
	}
}

func costTierFor(id string) string {
	switch {
	case strings.HasPrefix(id, "mistral-large"), strings.HasPrefix(id, "pixtral-large"):
		return catalog.TierPremium
	case strings.HasPrefix(id, "ministral"), strings.HasPrefix(id, "mistral-tiny"),
		strings.HasPrefix(id, "open-mistral"):
		return catalog.TierBudget
	default:
		return catalog.TierBalanced
	}
}

func speedTierFor(id string) string {
	switch {
	case strings.HasPrefix(id, "mistral-large"), strings.HasPrefix(id, "pixtral-large"):
		return catalog.SpeedThorough
	case strings.HasPrefix(id, "ministral"), strings.HasPrefix(id, "mistral-tiny"):
		return catalog.SpeedFast
	default:
		return catalog.SpeedBalanced
	}
}
