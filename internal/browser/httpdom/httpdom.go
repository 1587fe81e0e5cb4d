// Package httpdom implements a browser session that fetches server rendered
// pages over HTTP and answers CSS selector queries from the parsed DOM.
package httpdom

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/lehigh-university-libraries/lccn-finder/internal/browser"
)

// DefaultUserAgent identifies the tool to the catalog.
const DefaultUserAgent = "lccn-finder/0.1 (+https://github.com/lehigh-university-libraries/lccn-finder)"

const maxPageSize = 20 * 1024 * 1024

// Session is a single page HTTP browser. It is not safe for concurrent use.
type Session struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string

	url  *url.URL
	raw  []byte
	root *html.Node
}

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) {
		s.httpClient = c
	}
}

// WithRateLimit limits navigations to rps requests per second. Zero or
// negative disables throttling.
func WithRateLimit(rps float64) Option {
	return func(s *Session) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *Session) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// New creates a session with no page loaded.
func New(opts ...Option) *Session {
	s := &Session{
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		userAgent:  DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Navigate fetches rawURL and makes it the current page. Error status codes
// still load the page body so callers can inspect error markers.
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse url: %w", err)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return fmt.Errorf("failed to read page: %w", err)
	}

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to parse page: %w", err)
	}

	slog.Debug("Loaded page", "url", u.String(), "status", resp.StatusCode, "bytes", len(body), "elapsed", time.Since(start))

	if resp.Request != nil && resp.Request.URL != nil {
		u = resp.Request.URL
	}
	s.url = u
	s.raw = body
	s.root = root
	return nil
}

// URL returns the address of the current page, after redirects.
func (s *Session) URL() string {
	if s.url == nil {
		return ""
	}
	return s.url.String()
}

// LocateAll implements browser.Browser.
func (s *Session) LocateAll(selector string) ([]browser.Element, error) {
	if s.root == nil {
		return nil, nil
	}
	return s.queryAll(s.root, selector)
}

// LocateOne implements browser.Browser.
func (s *Session) LocateOne(selector string) (browser.Element, bool, error) {
	if s.root == nil {
		return nil, false, nil
	}
	return s.queryOne(s.root, selector)
}

// Snapshot returns the HTML of the current page.
func (s *Session) Snapshot() ([]byte, string, error) {
	if s.raw == nil {
		return nil, "", fmt.Errorf("no page loaded")
	}
	return s.raw, ".html", nil
}

var (
	selectorCache   = make(map[string]cascadia.SelectorGroup)
	selectorCacheMu sync.Mutex
)

func compile(selector string) (cascadia.SelectorGroup, error) {
	selectorCacheMu.Lock()
	defer selectorCacheMu.Unlock()
	if sel, ok := selectorCache[selector]; ok {
		return sel, nil
	}
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	selectorCache[selector] = sel
	return sel, nil
}

func (s *Session) queryAll(n *html.Node, selector string) ([]browser.Element, error) {
	sel, err := compile(selector)
	if err != nil {
		return nil, err
	}
	nodes := cascadia.QueryAll(n, sel)
	elements := make([]browser.Element, 0, len(nodes))
	for _, node := range nodes {
		elements = append(elements, &element{session: s, node: node})
	}
	return elements, nil
}

func (s *Session) queryOne(n *html.Node, selector string) (browser.Element, bool, error) {
	sel, err := compile(selector)
	if err != nil {
		return nil, false, err
	}
	node := cascadia.Query(n, sel)
	if node == nil {
		return nil, false, nil
	}
	return &element{session: s, node: node}, true, nil
}

// element is a node of the page that was current when it was located.
type element struct {
	session *Session
	node    *html.Node
}

// Text returns the element's text with whitespace collapsed, skipping script
// and style content.
func (e *element) Text() (string, error) {
	var b strings.Builder
	collectText(e.node, &b)
	return strings.Join(strings.Fields(b.String()), " "), nil
}

func collectText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

// Attribute returns the attribute value. href and src are resolved against
// the page URL the way a browser reports them.
func (e *element) Attribute(name string) (string, bool, error) {
	for _, attr := range e.node.Attr {
		if attr.Namespace != "" || !strings.EqualFold(attr.Key, name) {
			continue
		}
		value := attr.Val
		if (name == "href" || name == "src") && e.session.url != nil {
			if ref, err := url.Parse(strings.TrimSpace(value)); err == nil {
				value = e.session.url.ResolveReference(ref).String()
			}
		}
		return value, true, nil
	}
	return "", false, nil
}

// LocateAll implements browser.Element.
func (e *element) LocateAll(selector string) ([]browser.Element, error) {
	return e.session.queryAll(e.node, selector)
}

// LocateOne implements browser.Element.
func (e *element) LocateOne(selector string) (browser.Element, bool, error) {
	return e.session.queryOne(e.node, selector)
}
