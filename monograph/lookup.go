// Package monograph fills the enrichment of products that were not in the
// previous snapshot, one product page lookup per drug code.
package monograph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/giygas/dpd-api/dpdparser/entities"
	"golang.org/x/net/html"
)

// ErrIncompletePage is returned when the product page lacks one of the
// enrichment fields.
var ErrIncompletePage = errors.New("incomplete product page")

// Lookup fetches the enrichment of one drug code.
type Lookup interface {
	Lookup(ctx context.Context, drugCode string) (entities.Enrichment, error)
}

// HTTPLookup scrapes the public product information page.
type HTTPLookup struct {
	baseURL string
	client  *http.Client
}

// NewHTTPLookup returns a lookup against baseURL, the product information
// page without its query string.
func NewHTTPLookup(baseURL string, timeout time.Duration) *HTTPLookup {
	return &HTTPLookup{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (l *HTTPLookup) pageURL(drugCode string) (string, error) {
	u, err := url.Parse(l.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid monograph URL %q: %w", l.baseURL, err)
	}
	q := u.Query()
	q.Set("lang", "eng")
	q.Set("code", drugCode)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (l *HTTPLookup) Lookup(ctx context.Context, drugCode string) (entities.Enrichment, error) {
	pageURL, err := l.pageURL(drugCode)
	if err != nil {
		return entities.Enrichment{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return entities.Enrichment{}, fmt.Errorf("failed to build request for %s: %w", drugCode, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return entities.Enrichment{}, fmt.Errorf("failed to fetch product page %s: %w", drugCode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return entities.Enrichment{}, fmt.Errorf("product page %s returned status %d", drugCode, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return entities.Enrichment{}, fmt.Errorf("failed to parse product page %s: %w", drugCode, err)
	}

	return parsePage(doc)
}

// parsePage reads the enrichment out of the rows of a product page. Every
// field must be present and the monograph date must be YYYY-MM-DD.
func parsePage(doc *html.Node) (entities.Enrichment, error) {
	fields := make(map[string]string)
	var monograph, monographDate, marketDate string
	var haveMonograph, haveDate, haveMarketDate bool

	for _, row := range findAll(doc, func(n *html.Node) bool {
		return n.Data == "div" && hasClass(n, "row")
	}) {
		text := strings.ReplaceAll(textContent(row), "See footnote", "")

		if key, value, ok := strings.Cut(text, ":"); ok {
			key = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), " ", "_"))
			value, _, _ = strings.Cut(value, ":")
			fields[key] = strings.TrimSpace(value)
		}

		if strings.Contains(text, "Product Monograph") {
			if a := findFirst(row, func(n *html.Node) bool { return n.Data == "a" }); a != nil {
				if href, ok := attr(a, "href"); ok {
					monograph, haveMonograph = href, true
				}
			}
			if p := findFirst(row, isValueCell); p != nil {
				if span := findFirst(p, func(n *html.Node) bool { return n.Data == "span" }); span != nil {
					monographDate, haveDate = textContent(span), true
				}
			}
		}

		if strings.Contains(text, "Original market date") {
			if p := findFirst(row, isValueCell); p != nil {
				marketDate, haveMarketDate = textContent(p), true
			}
		}
	}

	status, haveStatus := fields["current_status"]
	switch {
	case !haveStatus:
		return entities.Enrichment{}, fmt.Errorf("%w: current status", ErrIncompletePage)
	case !haveMonograph:
		return entities.Enrichment{}, fmt.Errorf("%w: product monograph link", ErrIncompletePage)
	case !haveDate:
		return entities.Enrichment{}, fmt.Errorf("%w: monograph date", ErrIncompletePage)
	case !haveMarketDate:
		return entities.Enrichment{}, fmt.Errorf("%w: original market date", ErrIncompletePage)
	}

	parsed, err := entities.ParseMonographDate(monographDate)
	if err != nil {
		return entities.Enrichment{}, err
	}

	return entities.Enrichment{
		CurrentStatus:         status,
		ProductMonograph:      monograph,
		MonographDate:         monographDate,
		MonographDateParsable: parsed,
		OriginalMarketDate:    marketDate,
	}, nil
}

func isValueCell(n *html.Node) bool {
	return n.Data == "p" && hasClass(n, "col-sm-8")
}

func hasClass(n *html.Node, class string) bool {
	v, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && match(c) {
			return c
		}
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

// textContent joins the trimmed text nodes below n with no separator.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(strings.TrimSpace(n.Data))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
