package research

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"CrewPublisher/internal/config"
	"CrewPublisher/internal/domain"
	"CrewPublisher/internal/ports"
)

// ToolName is the name agents use to request web search results.
const ToolName = "web_search"

// WebSearch scrapes an HTML search results page and returns the top references.
type WebSearch struct {
	client *http.Client
	cfg    config.ResearchConfig
	logger *slog.Logger
}

var _ ports.Tool = (*WebSearch)(nil)

// NewWebSearch wires an HTTP client; MaxResults defaults to 5.
func NewWebSearch(cfg config.ResearchConfig, client *http.Client, logger *slog.Logger) *WebSearch {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if cfg.QueryParam == "" {
		cfg.QueryParam = "q"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	return &WebSearch{client: client, cfg: cfg, logger: logger}
}

// Name identifies the tool inside the crew registry.
func (w *WebSearch) Name() string {
	return ToolName
}

// Run searches for the crew's topic and renders the references as a Markdown list.
func (w *WebSearch) Run(ctx context.Context, inputs map[string]string) (string, error) {
	topic := strings.TrimSpace(inputs["topic"])
	if topic == "" {
		return "", fmt.Errorf("web search: empty topic")
	}

	pageURL, err := buildSearchURL(w.cfg.SearchURL, w.cfg.QueryParam, topic)
	if err != nil {
		return "", err
	}

	doc, err := w.fetchDocument(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("web search %q: %w", topic, err)
	}

	refs := w.extractReferences(doc, doc.Url)
	if w.logger != nil {
		w.logger.Debug("web search done", "topic", topic, "references", len(refs))
	}
	return FormatReferences(refs), nil
}

func (w *WebSearch) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "CrewPublisher/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	doc.Url = resp.Request.URL

	return doc, nil
}

func (w *WebSearch) extractReferences(doc *goquery.Document, base *url.URL) []domain.Reference {
	var refs []domain.Reference
	seen := map[string]struct{}{}

	doc.Find(w.cfg.ResultSelector).EachWithBreak(func(_ int, result *goquery.Selection) bool {
		ref, ok := parseResult(result, w.cfg.TitleSelector, w.cfg.SnippetSelector, base)
		if !ok {
			return true
		}
		if _, dup := seen[ref.URL]; dup {
			return true
		}
		seen[ref.URL] = struct{}{}
		refs = append(refs, ref)
		return len(refs) < w.cfg.MaxResults
	})

	return refs
}

func parseResult(result *goquery.Selection, titleSelector, snippetSelector string, base *url.URL) (domain.Reference, bool) {
	link := result.Find(titleSelector).First()
	title := strings.Join(strings.Fields(link.Text()), " ")
	href, _ := link.Attr("href")
	if title == "" || href == "" {
		return domain.Reference{}, false
	}

	snippet := strings.Join(strings.Fields(result.Find(snippetSelector).First().Text()), " ")

	return domain.Reference{
		Title:   title,
		URL:     resolveLink(href, base),
		Snippet: snippet,
	}, true
}

// resolveLink makes href absolute and unwraps redirect links carrying the target in "uddg".
func resolveLink(href string, base *url.URL) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base != nil {
		parsed = base.ResolveReference(parsed)
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	return parsed.String()
}

// FormatReferences renders references as a numbered Markdown list.
func FormatReferences(refs []domain.Reference) string {
	if len(refs) == 0 {
		return "No web references found."
	}

	var b strings.Builder
	for i, ref := range refs {
		fmt.Fprintf(&b, "%d. [%s](%s)", i+1, ref.Title, ref.URL)
		if ref.Snippet != "" {
			fmt.Fprintf(&b, " - %s", ref.Snippet)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func buildSearchURL(base, param, query string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("web search: search url is not configured")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid search url %s: %w", base, err)
	}

	values := parsed.Query()
	values.Set(param, query)
	parsed.RawQuery = values.Encode()
	return parsed.String(), nil
}
