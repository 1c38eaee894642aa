package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestTableRowsWithThead(t *testing.T) {
	doc := docFrom(t, `
		<table>
			<thead><tr><th>Model</th><th>Input</th><th>Output</th></tr></thead>
			<tbody>
				<tr><td>mistral-large</td><td>$2.00 / 1M tokens</td><td>$6.00 / 1M tokens</td></tr>
				<tr><td>codestral</td><td>$0.30 / 1M tokens</td><td>$0.90 / 1M tokens</td></tr>
			</tbody>
		</table>`)

	rows := TableRows(doc, "table")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["model"] != "mistral-large" {
		t.Errorf("row 0 model = %q", rows[0]["model"])
	}
	if rows[1]["input"] != "$0.30 / 1M tokens" {
		t.Errorf("row 1 input = %q", rows[1]["input"])
	}
}

func TestTableRowsHeaderRowFallback(t *testing.T) {
	doc := docFrom(t, `
		<table>
			<tr><th>Model</th><th>Price</th></tr>
			<tr><td>pixtral</td><td>$2.00</td></tr>
		</table>`)

	rows := TableRows(doc, "table")
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0]["price"] != "$2.00" {
		t.Errorf("price = %q", rows[0]["price"])
	}
}

func TestTableRowsNoTable(t *testing.T) {
	doc := docFrom(t, `<p>no tables here</p>`)
	if rows := TableRows(doc, "table"); rows != nil {
		t.Errorf("expected nil, got %v", rows)
	}
}

func TestParsePricePer1M(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$2.50 / 1M tokens", 2.50, true},
		{"$15.00 / 1M", 15.0, true},
		{"$1,000.00 / 1M tokens", 1000.0, true},
		{"$0.15", 0.15, true},
		{"$0.50 / 1K tokens", 500.0, true},
		{"—", 0, false},
		{"N/A", 0, false},
		{"", 0, false},
		{"free", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParsePricePer1M(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParsePricePer1M(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseCapacity(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"128k", 128_000, true},
		{"32K tokens", 32_000, true},
		{"1M", 1_000_000, true},
		{"131072", 131_072, true},
		{"200,000", 200_000, true},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseCapacity(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseCapacity(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}
