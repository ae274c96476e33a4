package specialist

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Defaults of HTTPFetcher.
const (
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxPageChars = 10000
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// maxBodyBytes bounds how much of a response is parsed.
const maxBodyBytes = 4 << 20

// PageFetcher returns the readable text of a web page.
type PageFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// HTTPFetcherOptions configures an HTTPFetcher.
type HTTPFetcherOptions struct {
	Client    *http.Client
	Timeout   time.Duration
	UserAgent string
	MaxChars  int
}

// HTTPFetcher downloads a page and extracts its text, dropping script,
// style, nav, footer and header elements.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxChars  int
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(optFns ...func(o *HTTPFetcherOptions)) *HTTPFetcher {
	opts := HTTPFetcherOptions{
		Timeout:   DefaultFetchTimeout,
		UserAgent: DefaultUserAgent,
		MaxChars:  DefaultMaxPageChars,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &HTTPFetcher{client: client, userAgent: opts.UserAgent, maxChars: opts.MaxChars}
}

// FetchText implements PageFetcher.
func (f *HTTPFetcher) FetchText(ctx context.Context, url string) (string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", fmt.Errorf("url %q must start with http:// or https://", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", url, err)
	}

	return truncateRunes(ExtractText(doc), f.maxChars), nil
}

var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Header:   true,
	atom.Noscript: true,
}

// ExtractText returns the visible text below n, one chunk per line. Runs of
// two or more spaces split a line into chunks; blank chunks are dropped.
func ExtractText(n *html.Node) string {
	var raw strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipped[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			raw.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && isBlock(n.DataAtom) {
			raw.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && isBlock(n.DataAtom) {
			raw.WriteByte('\n')
		}
	}
	walk(n)

	var chunks []string
	for _, line := range strings.Split(raw.String(), "\n") {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			if p := strings.TrimSpace(phrase); p != "" {
				chunks = append(chunks, p)
			}
		}
	}
	return strings.Join(chunks, "\n")
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.Ul, atom.Ol, atom.Tr, atom.Table,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Section, atom.Article, atom.Main, atom.Title, atom.Body:
		return true
	}
	return false
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
