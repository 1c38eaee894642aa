// Package htmlutil holds the scraping helpers for providers whose
// pricing lives only on documentation pages, not in an API.
package htmlutil

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TableRows extracts table rows as header→value maps from the first table
// matching the given CSS selector. The first row (or <thead>) is used as headers.
func TableRows(doc *goquery.Document, selector string) []map[string]string {
	var rows []map[string]string

	table := doc.Find(selector).First()
	if table.Length() == 0 {
		return nil
	}

	var headers []string
	thead := table.Find("thead tr").First()
	if thead.Length() > 0 {
		thead.Find("th").Each(func(_ int, s *goquery.Selection) {
			headers = append(headers, normalizeHeader(s.Text()))
		})
	}

	bodyRows := table.Find("tbody tr")
	if bodyRows.Length() == 0 {
		bodyRows = table.Find("tr")
	}

	// No <thead>: the first row is the header. The parser wraps bare
	// <tr> elements in an implicit <tbody>, so this covers both shapes.
	if len(headers) == 0 {
		if bodyRows.Length() < 2 {
			return nil
		}
		bodyRows.First().Find("th, td").Each(func(_ int, s *goquery.Selection) {
			headers = append(headers, normalizeHeader(s.Text()))
		})
		bodyRows = bodyRows.Slice(1, bodyRows.Length())
	}

	if len(headers) == 0 {
		return nil
	}

	bodyRows.Each(func(_ int, row *goquery.Selection) {
		m := make(map[string]string, len(headers))
		row.Find("td").Each(func(i int, cell *goquery.Selection) {
			if i < len(headers) {
				m[headers[i]] = strings.TrimSpace(cell.Text())
			}
		})
		if len(m) > 0 {
			rows = append(rows, m)
		}
	})

	return rows
}

// TextOf returns the trimmed text of the first element matching the selector.
func TextOf(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

// priceRe matches patterns like "$0.150", "$2.50 / 1M tokens", "$15.00 / 1M".
var priceRe = regexp.MustCompile(`\$\s*([\d,.]+)`)

// ParsePricePer1M parses a price string like "$2.50 / 1M tokens" into a
// per-million-token dollar amount. Prices quoted per 1K tokens are scaled
// up. Returns (0, false) when the cell holds no price.
func ParsePricePer1M(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "—" || s == "-" || s == "N/A" {
		return 0, false
	}

	matches := priceRe.FindStringSubmatch(s)
	if len(matches) < 2 {
		return 0, false
	}

	numStr := strings.ReplaceAll(matches[1], ",", "")
	val, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, false
	}

	lower := strings.ToLower(s)
	if strings.Contains(lower, "1k") || strings.Contains(lower, "thousand") {
		val = val * 1000.0
	}

	return val, true
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// parseCapacity reads capacity strings like "128k", "32k tokens", or
// "131072" into a token count.
var capacityRe = regexp.MustCompile(`([\d,.]+)\s*([kKmM]?)`)

// ParseCapacity parses a context-window cell into a token count.
func ParseCapacity(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	matches := capacityRe.FindStringSubmatch(s)
	if len(matches) < 2 {
		return 0, false
	}
	numStr := strings.ReplaceAll(matches[1], ",", "")
	val, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(matches[2]) {
	case "k":
		val *= 1_000
	case "m":
		val *= 1_000_000
	}
	return int(val), true
}
