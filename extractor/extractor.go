// Package extractor pulls title, metadata, outbound links, and
// checksum-ready plain text out of a fetched page. It is built on
// golang.org/x/net/html, the same tokenizer the teacher uses for link
// extraction, extended to cover the full metadata and text-normalization
// surface the spec requires.
package extractor

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/unicode/norm"

	"github.com/lukemcguire/zombiecrawl/urlutil"
)

// Options configures extraction behavior that must agree with the
// dedup engine's URL-normalization settings.
type Options struct {
	IgnoreGetParams bool
}

// Page is everything extracted from a fetched document.
type Page struct {
	Title           string
	Meta            map[string]string
	OutboundLinks   []string
	NormalizedText  string
	ContentChecksum string
}

var metaTagsOfInterest = map[string]bool{
	"description": true,
}

// Extract decodes body using contentType/encoding (falling back to
// content-sniffed detection, defaulting to UTF-8 for text/* as the spec
// requires), then parses it for title, meta, outbound links, and
// checksummed normalized text.
func Extract(finalURL string, body []byte, contentType, encoding string, opts Options) (*Page, error) {
	base, err := url.Parse(finalURL)
	if err != nil {
		return nil, fmt.Errorf("parse final URL %q: %w", finalURL, err)
	}

	decoded, err := decodeBody(body, contentType, encoding)
	if err != nil {
		return nil, fmt.Errorf("decode body of %s: %w", finalURL, err)
	}

	page := &Page{Meta: make(map[string]string)}
	var textBuilder strings.Builder
	var skipDepth int // >0 while inside <script>/<style>
	var inTitle bool
	seenLinks := make(map[string]bool)

	tokenizer := html.NewTokenizer(strings.NewReader(decoded))
	for {
		tokenType := tokenizer.Next()
		if tokenType == html.ErrorToken {
			break
		}

		token := tokenizer.Token()
		switch tokenType {
		case html.StartTagToken, html.SelfClosingTagToken:
			switch token.Data {
			case "script", "style":
				if tokenType == html.StartTagToken {
					skipDepth++
				}
			case "title":
				inTitle = true
			case "a":
				if href, ok := attr(token, "href"); ok {
					if normalized, ok := resolveLink(base, href, opts); ok && !seenLinks[normalized] {
						seenLinks[normalized] = true
						page.OutboundLinks = append(page.OutboundLinks, normalized)
					}
				}
			case "meta":
				recordMeta(page.Meta, token)
			case "link":
				recordCanonical(base, page.Meta, token)
			}
		case html.EndTagToken:
			switch token.Data {
			case "script", "style":
				if skipDepth > 0 {
					skipDepth--
				}
			case "title":
				inTitle = false
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			if inTitle && page.Title == "" {
				page.Title = strings.TrimSpace(token.Data)
			}
			textBuilder.WriteString(token.Data)
			textBuilder.WriteByte(' ')
		}
	}

	page.NormalizedText = normalizeText(textBuilder.String())
	sum := sha256.Sum256([]byte(page.NormalizedText))
	page.ContentChecksum = hex.EncodeToString(sum[:])

	return page, nil
}

func decodeBody(body []byte, contentType, encoding string) (string, error) {
	label := contentType
	if encoding != "" {
		// charset.NewReader parses its label as a Content-Type header, so a
		// bare charset name is wrapped as one.
		label = "text/html; charset=" + encoding
	}
	reader, err := charset.NewReader(bytes.NewReader(body), label)
	if err != nil {
		return "", err
	}
	decoded, err := func() ([]byte, error) {
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(reader); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}()
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func attr(token html.Token, key string) (string, bool) {
	for _, a := range token.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func resolveLink(base *url.URL, href string, opts Options) (string, bool) {
	if href == "" {
		return "", false
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(parsed)
	if !urlutil.IsHTTPScheme(resolved.String()) {
		return "", false
	}
	normalized, err := urlutil.Normalize(resolved.String(), urlutil.Options{Base: base, IgnoreGetParams: opts.IgnoreGetParams})
	if err != nil {
		return "", false
	}
	return normalized, true
}

func recordMeta(meta map[string]string, token html.Token) {
	name, hasName := attr(token, "name")
	property, hasProperty := attr(token, "property")
	content, hasContent := attr(token, "content")
	if !hasContent {
		return
	}
	if hasName && metaTagsOfInterest[strings.ToLower(name)] {
		meta[strings.ToLower(name)] = content
	}
	if hasProperty && strings.HasPrefix(strings.ToLower(property), "og:") {
		meta[strings.ToLower(property)] = content
	}
}

// recordCanonical resolves a declared <link rel="canonical"> href against
// base before storing it: sites very commonly declare a relative
// canonical (e.g. href="/post"), and CheckCanonical's comparison against
// the absolute final URL only works if both sides are absolute.
func recordCanonical(base *url.URL, meta map[string]string, token html.Token) {
	rel, ok := attr(token, "rel")
	if !ok || strings.ToLower(rel) != "canonical" {
		return
	}
	href, ok := attr(token, "href")
	if !ok || href == "" {
		return
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return
	}
	meta["canonical"] = base.ResolveReference(parsed).String()
}

// normalizeText collapses runs of whitespace and applies NFC
// normalization, per the spec's plain-text extraction rule.
func normalizeText(raw string) string {
	fields := strings.Fields(raw)
	joined := strings.Join(fields, " ")
	return norm.NFC.String(joined)
}
