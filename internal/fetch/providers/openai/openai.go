package openai

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

const docsURL = "https://platform.openai.com/docs/models"

func init() {
	fetch.Register(&OpenAI{})
}

// OpenAI fetches entries from the OpenAI models API. The listing carries
// no pricing or capacity, so those come from a static family table.
type OpenAI struct {
	apiKey  string
	baseURL string
	client  *httpclient.Client
}

func (o *OpenAI) Name() string { return "openai" }

// Configure sets up the fetcher with API credentials and HTTP client.
func (o *OpenAI) Configure(apiKey, baseURL string, client *httpclient.Client) {
	o.apiKey = apiKey
	o.baseURL = baseURL
	o.client = client
}

// HealthCheck performs a lightweight GET against the models endpoint.
func (o *OpenAI) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := o.client.Get(ctx, o.baseURL+"/models", o.headers())
	return err
}

// MinExpectedEntries returns the minimum entry count for OpenAI.
func (o *OpenAI) MinExpectedEntries() int { return 3 }

func (o *OpenAI) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + o.apiKey}
}

type modelsResponse struct {
	Data []apiModel `json:"data"`
}

type apiModel struct {
	ID      string `json:"id"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

func (o *OpenAI) Fetch(ctx context.Context) ([]*catalog.Entry, error) {
	resp, err := o.client.Get(ctx, o.baseURL+"/models", o.headers())
	if err != nil {
		return nil, err
	}

	var listing modelsResponse
	if err := json.Unmarshal(resp.Body, &listing); err != nil {
		return nil, fmt.Errorf("parsing models response: %w", err)
	}

	var entries []*catalog.Entry
	for _, am := range listing.Data {
		if e := o.toEntry(am); e != nil {
			entries = append(entries, e)
		}
	}

	slog.Info("openai fetch complete", "api_models", len(listing.Data), "entries", len(entries))
	return entries, nil
}

// datedSnapshotRe matches dated IDs like gpt-4o-2024-05-13.
var datedSnapshotRe = regexp.MustCompile(`-\d{4}-\d{2}-\d{2}$`)

// toEntry converts one listing row. Returns nil for rows that do not
// belong in the catalog: fine-tunes, dated snapshots, and auxiliary
// models (tts, whisper, dall-e, moderation).
func (o *OpenAI) toEntry(am apiModel) *catalog.Entry {
	id := am.ID
	if strings.HasPrefix(id, "ft:") || datedSnapshotRe.MatchString(id) {
		return nil
	}
	spec, ok := specFor(id)
	if !ok {
		return nil
	}

	return &catalog.Entry{
		ID:             strings.ToLower(id),
		Provider:       "openai",
		DisplayName:    titleFromID(id),
		WireID:         id,
		DocsURL:        docsURL,
		InputCapacity:  spec.inputCapacity,
		OutputCapacity: spec.outputCapacity,
		Pricing:        spec.pricing.Clone(),
		Capabilities:   append([]string(nil), spec.capabilities...),
		CostTier:       spec.costTier,
		SpeedTier:      spec.speedTier,
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

type modelSpec struct {
	inputCapacity  int
	outputCapacity int
	pricing        *catalog.Pricing
	capabilities   []string
	costTier       string
	speedTier      string
}

// specFor returns static metadata for families the catalog tracks.
// Unknown families are skipped rather than guessed at.
func specFor(id string) (modelSpec, bool) {
	chatCaps := []string{"chat", "function_calling", "vision", "streaming"}

	switch {
	case strings.HasPrefix(id, "gpt-5"), strings.HasPrefix(id, "gpt-4.1"):
		return modelSpec{
			inputCapacity:  400_000,
			outputCapacity: 128_000,
			pricing:        &catalog.Pricing{InputPer1M: 2.50, OutputPer1M: 10.0},
			capabilities:   append(chatCaps, "reasoning"),
			costTier:       catalog.TierBalanced,
			speedTier:      catalog.SpeedBalanced,
		}, true
	case strings.HasPrefix(id, "gpt-4o-mini"):
		return modelSpec{
			inputCapacity:  128_000,
			outputCapacity: 16_384,
			pricing:        &catalog.Pricing{InputPer1M: 0.15, OutputPer1M: 0.60},
			capabilities:   chatCaps,
			costTier:       catalog.TierBudget,
			speedTier:      catalog.SpeedFast,
		}, true
	case strings.HasPrefix(id, "gpt-4o"):
		return modelSpec{
			inputCapacity:  128_000,
			outputCapacity: 16_384,
			pricing:        &catalog.Pricing{InputPer1M: 2.50, OutputPer1M: 10.0},
			capabilities:   chatCaps,
			costTier:       catalog.TierBalanced,
			speedTier:      catalog.SpeedBalanced,
		}, true
	case strings.HasPrefix(id, "o3"), strings.HasPrefix(id, "o4"):
		return modelSpec{
			inputCapacity:  200_000,
			outputCapacity: 100_000,
			pricing:        &catalog.Pricing{InputPer1M: 10.0, OutputPer1M: 40.0},
			capabilities:   []string{"chat", "function_calling", "streaming", "reasoning"},
			costTier:       catalog.TierPremium,
			speedTier:      catalog.SpeedThorough,
		}, true
	case strings.HasPrefix(id, "text-embedding"):
		return modelSpec{
			inputCapacity:  8_192,
			pricing:        &catalog.Pricing{InputPer1M: 0.02, OutputPer1M: 0},
			capabilities:   []string{"embeddings"},
			costTier:       catalog.TierBudget,
			speedTier:      catalog.SpeedFast,
		}, true
	default:
		return modelSpec{}, false
	}
}
