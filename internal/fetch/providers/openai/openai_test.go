package openai

import (
	"testing"

	"github.com/everstacklabs/curator/internal/catalog"
)

func TestToEntryFilters(t *testing.T) {
	o := &OpenAI{}

	tests := []struct {
		id   string
		kept bool
	}{
		{"gpt-4o", true},
		{"gpt-4o-mini", true},
		{"o3-mini", true},
		{"text-embedding-3-small", true},
		{"gpt-4o-2024-05-13", false},
		{"ft:gpt-4o:acme:custom", false},
		{"whisper-1", false},
		{"dall-e-3", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			e := o.toEntry(apiModel{ID: tt.id, Created: 1715558400})
			if (e != nil) != tt.kept {
				t.Errorf("toEntry(%q) kept=%v, want %v", tt.id, e != nil, tt.kept)
			}
		})
	}
}

func TestSpecForFamilies(t *testing.T) {
	tests := []struct {
		id       string
		costTier string
		caps     int
	}{
		{"gpt-4o-mini", catalog.TierBudget, 4},
		{"gpt-4o", catalog.TierBalanced, 4},
		{"o3", catalog.TierPremium, 4},
		{"gpt-5", catalog.TierBalanced, 5},
		{"text-embedding-3-large", catalog.TierBudget, 1},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			spec, ok := specFor(tt.id)
			if !ok {
				t.Fatalf("specFor(%q) not found", tt.id)
			}
			if spec.costTier != tt.costTier {
				t.Errorf("costTier = %q, want %q", spec.costTier, tt.costTier)
			}
			if len(spec.capabilities) != tt.caps {
				t.Errorf("capabilities = %v, want %d tags", spec.capabilities, tt.caps)
			}
		})
	}
}

func TestMiniMatchedBeforeBaseFamily(t *testing.T) {
	spec, ok := specFor("gpt-4o-mini-audio-preview")
	if !ok {
		t.Fatal("expected a spec")
	}
	if spec.costTier != catalog.TierBudget {
		t.Errorf("mini variant should hit the budget tier, got %q", spec.costTier)
	}
}

func TestEntriesOfSameFamilyDoNotAlias(t *testing.T) {
	o := &OpenAI{}
	a := o.toEntry(apiModel{ID: "gpt-4o", Created: 1715558400})
	b := o.toEntry(apiModel{ID: "gpt-4o-audio-preview", Created: 1715558400})
	if a == nil || b == nil {
		t.Fatal("expected entries for both gpt-4o variants")
	}
	if a.Pricing == b.Pricing {
		t.Error("entries share a pricing struct")
	}

	a.Pricing.InputPer1M = 99.0
	if b.Pricing.InputPer1M == 99.0 {
		t.Error("mutating one entry's pricing leaked into a sibling")
	}
	a.Capabilities[0] = "mutated"
	if b.Capabilities[0] == "mutated" {
		t.Error("mutating one entry's capabilities leaked into a sibling")
	}
}

func TestEmbeddingEntryValidCapacity(t *testing.T) {
	o := &OpenAI{}
	e := o.toEntry(apiModel{ID: "text-embedding-3-small", Created: 1715558400})
	if e == nil {
		t.Fatal("expected an entry")
	}
	if e.InputCapacity != 8_192 {
		t.Errorf("input capacity = %d", e.InputCapacity)
	}
	if e.OutputCapacity != 0 {
		t.Errorf("embeddings should leave output capacity unset, got %d", e.OutputCapacity)
	}
}
