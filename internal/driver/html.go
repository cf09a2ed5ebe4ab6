package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	rowSelector  = "[id^='dgrid_0-row-']"
	nextSelector = `button[aria-label="Ir a la siguiente página"], a[rel="next"]`
)

// HTMLPageOpener opens search sessions over server-rendered HTML.
type HTMLPageOpener struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// Ensure HTMLPageOpener implements PageOpener.
var _ PageOpener = (*HTMLPageOpener)(nil)

// NewHTMLPageOpener creates an opener for the search page at rawURL.
func NewHTMLPageOpener(rawURL string, client *http.Client, logger *slog.Logger) *HTMLPageOpener {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTMLPageOpener{url: rawURL, client: client, logger: logger}
}

// Open loads the search page.
func (o *HTMLPageOpener) Open(ctx context.Context) (Page, error) {
	base, err := url.Parse(o.url)
	if err != nil {
		return nil, fmt.Errorf("parse search url: %w", err)
	}
	p := &htmlPage{client: o.client, logger: o.logger, values: url.Values{}}
	if err := p.load(ctx, base); err != nil {
		return nil, err
	}
	return p, nil
}

// htmlPage keeps the current document and the selections made on its form.
// Every navigation replaces the document.
type htmlPage struct {
	client *http.Client
	logger *slog.Logger
	loc    *url.URL
	doc    *goquery.Document
	values url.Values
}

func (p *htmlPage) load(ctx context.Context, u *url.URL) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("search page request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("search page fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp, "search page")
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("search page parse: %w", err)
	}
	p.doc = doc
	p.loc = resp.Request.URL
	p.logger.Debug("search page loaded", "url", p.loc.String(), "rows", doc.Find(rowSelector).Length())
	return nil
}

func (p *htmlPage) control(name string) *goquery.Selection {
	return p.doc.Find(fmt.Sprintf("select[name=%q]", name)).First()
}

func (p *htmlPage) Options(_ context.Context, control string) ([]string, error) {
	sel := p.control(control)
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%s: %w", control, ErrControlNotFound)
	}
	var out []string
	sel.Find("option").Each(func(_ int, o *goquery.Selection) {
		if label := strings.TrimSpace(o.Text()); label != "" {
			out = append(out, label)
		}
	})
	return out, nil
}

func (p *htmlPage) SelectOption(_ context.Context, control, label string) error {
	sel := p.control(control)
	if sel.Length() == 0 {
		return fmt.Errorf("%s: %w", control, ErrControlNotFound)
	}
	var value string
	found := false
	sel.Find("option").EachWithBreak(func(_ int, o *goquery.Selection) bool {
		if strings.TrimSpace(o.Text()) != label {
			return true
		}
		value = o.AttrOr("value", strings.TrimSpace(o.Text()))
		found = true
		return false
	})
	if !found {
		return fmt.Errorf("%s has no option %q", control, label)
	}
	p.values.Set(control, value)
	return nil
}

// Submit reloads the search form's action with the selected values.
func (p *htmlPage) Submit(ctx context.Context) error {
	form := p.doc.Find("form").First()
	target := *p.loc
	if action, ok := form.Attr("action"); ok && action != "" {
		u, err := p.loc.Parse(action)
		if err != nil {
			return fmt.Errorf("parse form action: %w", err)
		}
		target = *u
	}
	q := target.Query()
	for k, vs := range p.values {
		q[k] = vs
	}
	target.RawQuery = q.Encode()
	return p.load(ctx, &target)
}

func (p *htmlPage) Rows(_ context.Context) ([]Row, error) {
	var rows []Row
	p.doc.Find(rowSelector).Each(func(_ int, s *goquery.Selection) {
		rows = append(rows, Row{ID: s.AttrOr("id", ""), Text: rowText(s)})
	})
	return rows, nil
}

func (p *htmlPage) FirstRowID(_ context.Context) (string, error) {
	return p.doc.Find(rowSelector).First().AttrOr("id", ""), nil
}

func (p *htmlPage) next() *goquery.Selection {
	return p.doc.Find(nextSelector).First()
}

func (p *htmlPage) NextEnabled(_ context.Context) (bool, error) {
	next := p.next()
	if next.Length() == 0 {
		return false, nil
	}
	if _, disabled := next.Attr("disabled"); disabled {
		return false, nil
	}
	return next.AttrOr("aria-disabled", "") != "true", nil
}

// ClickNext follows the control's data-href (buttons) or href (links).
func (p *htmlPage) ClickNext(ctx context.Context) error {
	next := p.next()
	if next.Length() == 0 {
		return errors.New("next control not found")
	}
	href := next.AttrOr("data-href", next.AttrOr("href", ""))
	if href == "" {
		return errors.New("next control has no target")
	}
	u, err := p.loc.Parse(href)
	if err != nil {
		return fmt.Errorf("parse next target: %w", err)
	}
	return p.load(ctx, u)
}

// DoubleClickNext has no distinct meaning for a static document; it retries
// the navigation.
func (p *htmlPage) DoubleClickNext(ctx context.Context) error {
	return p.ClickNext(ctx)
}

func (p *htmlPage) Close() error { return nil }

// blockTags start a new line in a row's text. Inline markup such as
// <strong>Label:</strong> value stays on one line.
var blockTags = map[string]bool{
	"div": true, "p": true, "li": true, "ul": true, "ol": true, "tr": true,
	"td": true, "th": true, "table": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"br": true, "dt": true, "dd": true, "header": true, "footer": true,
}

// rowText rebuilds a row's visible text with one line per block element, so
// label patterns see "Label: value" on its own line.
func rowText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			// Source newlines render as spaces; only block elements break lines.
			b.WriteString(strings.ReplaceAll(n.Data, "\n", " "))
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		block := n.Type == html.ElementNode && blockTags[n.Data]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if t := strings.Join(strings.Fields(line), " "); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n")
}
