package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	// Browser-like agent; the repack pages 403 the default Go client.
	userAgent = "Mozilla/5.0"

	pageFetchTimeout = 30 * time.Second
)

// LinkItem is one download link found on a repack page. Text is the
// anchor's visible label (usually the part name) and may be empty.
type LinkItem struct {
	Href string
	Text string
}

// fetchPage GETs a page body with the browser User-Agent. Transport
// failures and non-2xx statuses both come back as *FetchError.
func fetchPage(pageURL string) ([]byte, error) {
	client := http.Client{Timeout: pageFetchTimeout}
	req, err := http.NewRequest("GET", pageURL, nil)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: pageURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}
	appLogger.Printf("[fetchPage] %s -> %d bytes", pageURL, len(body))
	return body, nil
}

// Discover fetches pageURL, walks every anchor in the document and
// returns the links whose resolved absolute href starts with hrefPrefix.
// Relative and protocol-relative hrefs are resolved against the page URL
// before matching. Duplicates (by href) are dropped, first occurrence
// wins, document order is preserved. Zero matches is not an error.
func Discover(pageURL, hrefPrefix string) ([]LinkItem, error) {
	body, err := fetchPage(pageURL)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Err: err}
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	var items []LinkItem
	seen := make(map[string]bool)
	collectAnchors(doc, base, hrefPrefix, seen, &items)
	appLogger.Printf("[Discover] %s: %d links matching %q", pageURL, len(items), hrefPrefix)
	return items, nil
}

func collectAnchors(node *html.Node, base *url.URL, prefix string, seen map[string]bool, items *[]LinkItem) {
	if node.Type == html.ElementNode && node.Data == "a" {
		if href := getAttribute(node, "href"); href != "" {
			if abs := resolveHref(base, href); abs != "" && strings.HasPrefix(abs, prefix) && !seen[abs] {
				seen[abs] = true
				*items = append(*items, LinkItem{Href: abs, Text: strings.TrimSpace(nodeText(node))})
			}
		}
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectAnchors(child, base, prefix, seen, items)
	}
}

func getAttribute(node *html.Node, attr string) string {
	for _, a := range node.Attr {
		if a.Key == attr {
			return a.Val
		}
	}
	return ""
}

// nodeText concatenates all text nodes under node, so labels split
// across <strong>/<span> wrappers still come out whole.
func nodeText(node *html.Node) string {
	if node.Type == html.TextNode {
		return node.Data
	}
	var sb strings.Builder
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		sb.WriteString(nodeText(child))
	}
	return sb.String()
}

func resolveHref(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// redirectExtractor pulls a resource URL out of a raw page body,
// returning "" when the pattern is absent. Extractors run in order; the
// first hit wins, so a filehost markup change only needs a new entry
// here.
type redirectExtractor func(body string) string

var windowOpenRe = regexp.MustCompile(`window\.open\(\s*(?:"([^"]+)"|'([^']+)')`)

func windowOpenTarget(body string) string {
	m := windowOpenRe.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

var redirectExtractors = []redirectExtractor{windowOpenTarget}

// ResolveNested fetches a filehost page and extracts the direct resource
// URL embedded in its inline script. A page that fetches fine but holds
// no recognizable redirect returns ErrNoRedirect, so callers can tell a
// dead link from a network problem.
func ResolveNested(pageURL string) (string, error) {
	body, err := fetchPage(pageURL)
	if err != nil {
		return "", err
	}
	text := string(body)
	for _, extract := range redirectExtractors {
		if target := extract(text); target != "" {
			appLogger.Printf("[ResolveNested] %s -> %s", pageURL, target)
			return target, nil
		}
	}
	return "", fmt.Errorf("%s: %w", pageURL, ErrNoRedirect)
}
