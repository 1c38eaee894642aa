package htmlutil

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/everstacklabs/curator/internal/httpclient"
)

// Fetch retrieves url through the shared HTTP client (so docs pages get
// the same caching and rate limiting as API calls) and parses the body
// as HTML.
func Fetch(ctx context.Context, client *httpclient.Client, url string) (*goquery.Document, error) {
	resp, err := client.Get(ctx, url, map[string]string{"Accept": "text/html"})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML from %s: %w", url, err)
	}

	return doc, nil
}
