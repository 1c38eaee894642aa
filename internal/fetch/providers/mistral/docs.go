package mistral

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/everstacklabs/curator/internal/catalog"
	"github.com/everstacklabs/curator/internal/htmlutil"
)

const pricingURL = "https://mistral.ai/technology/#pricing"

// datedReleaseRe matches versioned release IDs like mistral-large-2411.
var datedReleaseRe = regexp.MustCompile(`-\d{4}$`)

// fetchPricing scrapes the Mistral pricing table. The table lists one
// row per model with input and output dollar prices per million tokens.
func (m *Mistral) fetchPricing(ctx context.Context) (map[string]*catalog.Pricing, error) {
	doc, err := htmlutil.Fetch(ctx, m.client, pricingURL)
	if err != nil {
		return nil, err
	}

	rows := htmlutil.TableRows(doc, "table")
	if len(rows) == 0 {
		return nil, fmt.Errorf("no pricing table found at %s", pricingURL)
	}

	prices := make(map[string]*catalog.Pricing)
	for _, row := range rows {
		model := rowModel(row)
		if model == "" {
			continue
		}
		in, okIn := htmlutil.ParsePricePer1M(rowField(row, "input"))
		out, okOut := htmlutil.ParsePricePer1M(rowField(row, "output"))
		if !okIn || !okOut {
			continue
		}
		prices[normalizeModelName(model)] = &catalog.Pricing{
			InputPer1M:  in,
			OutputPer1M: out,
		}
	}

	slog.Info("mistral pricing scraped", "rows", len(rows), "priced_models", len(prices))
	return prices, nil
}

func rowModel(row map[string]string) string {
	for _, key := range []string{"model", "models", "api name"} {
		if v, ok := row[key]; ok {
			return v
		}
	}
	return ""
}

func rowField(row map[string]string, want string) string {
	for key, v := range row {
		if strings.Contains(key, want) {
			return v
		}
	}
	return ""
}

// normalizeModelName maps a display name like "Mistral Large 24.11" to
// the API ID shape used as the lookup key.
func normalizeModelName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "-")
	return datedReleaseRe.ReplaceAllString(name, "")
}

// priceFor looks up pricing by progressively shortening the model ID, so
// mistral-large-latest matches a table row keyed mistral-large.
func priceFor(id string, prices map[string]*catalog.Pricing) *catalog.Pricing {
	if prices == nil {
		return nil
	}
	key := strings.ToLower(id)
	key = strings.TrimSuffix(key, "-latest")
	for key != "" {
		if p, ok := prices[key]; ok {
			return p.Clone()
		}
		i := strings.LastIndex(key, "-")
		if i < 0 {
			return nil
		}
		key = key[:i]
	}
	return nil
}
