// Package source talks to the upstream publisher: it detects new releases of
// the extract and downloads the archive.
package source

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/giygas/dpd-api/logging"
	"golang.org/x/net/html"
)

// Project is the key of the extract in the source state table.
const Project = "dpd"

var datePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// StateStore keeps the last update date a project was built from.
type StateStore interface {
	SourceLastUpdate(ctx context.Context, project string) (string, error)
	SetSourceLastUpdate(ctx context.Context, project, lastUpdate string) error
}

// Change describes the upstream state compared to the stored one.
type Change struct {
	Latest   string
	Previous string
	Changed  bool
}

// Watcher reads the last update date off the publisher's index page.
type Watcher struct {
	indexURL string
	client   *http.Client
	state    StateStore
}

func NewWatcher(indexURL string, state StateStore) *Watcher {
	return &Watcher{
		indexURL: indexURL,
		client:   &http.Client{Timeout: 30 * time.Second},
		state:    state,
	}
}

// LatestUpdate returns the most recent date listed in the body rows of the
// bordered table on the index page.
func (w *Watcher) LatestUpdate(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.indexURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build index request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch index page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("index page returned status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse index page: %w", err)
	}

	table := findElement(doc, func(n *html.Node) bool {
		return n.Data == "table" && hasClass(n, "table-bordered")
	})
	if table == nil {
		return "", fmt.Errorf("index page has no release table")
	}

	latest := ""
	rows := collectElements(table, "tr")
	for _, tr := range rows[min(1, len(rows)):] {
		for _, td := range collectElements(tr, "td") {
			for _, date := range datePattern.FindAllString(textOf(td), -1) {
				if date > latest {
					latest = date
				}
			}
		}
	}
	if latest == "" {
		return "", fmt.Errorf("index page lists no release date")
	}
	return latest, nil
}

// Check compares the published date with the stored one.
func (w *Watcher) Check(ctx context.Context) (Change, error) {
	latest, err := w.LatestUpdate(ctx)
	if err != nil {
		return Change{}, err
	}
	previous, err := w.state.SourceLastUpdate(ctx, Project)
	if err != nil {
		return Change{}, err
	}

	change := Change{Latest: latest, Previous: previous, Changed: latest != previous}
	if change.Changed {
		logging.Info("New extract release detected", "latest", latest, "previous", previous)
	} else {
		logging.Info("No new extract release", "latest", latest)
	}
	return change, nil
}

// Commit stores latest as the date the current data was built from.
func (w *Watcher) Commit(ctx context.Context, latest string) error {
	return w.state.SetSourceLastUpdate(ctx, Project, latest)
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func findElement(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, match); found != nil {
			return found
		}
	}
	return nil
}

func collectElements(root *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == tag {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(root)
	return out
}

func textOf(n *html.Node) string {
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
