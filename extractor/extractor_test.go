package extractor

import (
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
<title>  Example Page  </title>
<meta name="description" content="An example page">
<meta property="og:title" content="Example OG Title">
<link rel="canonical" href="https://example.com/canonical">
<style>.hidden { display: none; }</style>
</head>
<body>
<p>Hello   world.</p>
<a href="/a">Link A</a>
<a href="https://other.example/b">Link B</a>
<a href="javascript:void(0)">skip me</a>
<script>var x = 1;</script>
</body>
</html>`

func TestExtract_TitleAndMeta(t *testing.T) {
	page, err := Extract("https://example.com/", []byte(samplePage), "text/html; charset=utf-8", "", Options{})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if page.Title != "Example Page" {
		t.Errorf("Title = %q, want %q", page.Title, "Example Page")
	}
	if page.Meta["description"] != "An example page" {
		t.Errorf("Meta[description] = %q", page.Meta["description"])
	}
	if page.Meta["og:title"] != "Example OG Title" {
		t.Errorf("Meta[og:title] = %q", page.Meta["og:title"])
	}
	if page.Meta["canonical"] != "https://example.com/canonical" {
		t.Errorf("Meta[canonical] = %q", page.Meta["canonical"])
	}
}

func TestExtract_RelativeCanonicalResolvedAgainstFinalURL(t *testing.T) {
	const page = `<!DOCTYPE html>
<html><head><link rel="canonical" href="/post"></head><body></body></html>`

	p, err := Extract("https://example.com/blog/post?utm=1", []byte(page), "text/html; charset=utf-8", "", Options{})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if p.Meta["canonical"] != "https://example.com/post" {
		t.Errorf("Meta[canonical] = %q, want the href resolved against the final URL", p.Meta["canonical"])
	}
}

func TestExtract_OutboundLinks(t *testing.T) {
	page, err := Extract("https://example.com/", []byte(samplePage), "text/html", "", Options{})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	want := map[string]bool{
		"https://example.com/a":    true,
		"https://other.example/b": true,
	}
	if len(page.OutboundLinks) != len(want) {
		t.Fatalf("OutboundLinks = %v, want %d entries", page.OutboundLinks, len(want))
	}
	for _, link := range page.OutboundLinks {
		if !want[link] {
			t.Errorf("unexpected link %q", link)
		}
	}
}

func TestExtract_NormalizedTextSkipsScriptAndStyle(t *testing.T) {
	page, err := Extract("https://example.com/", []byte(samplePage), "text/html", "", Options{})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if strings.Contains(page.NormalizedText, "display") || strings.Contains(page.NormalizedText, "var x") {
		t.Errorf("NormalizedText leaked script/style content: %q", page.NormalizedText)
	}
	if !strings.Contains(page.NormalizedText, "Hello world.") {
		t.Errorf("NormalizedText = %q, want collapsed whitespace around 'Hello world.'", page.NormalizedText)
	}
}

func TestExtract_ChecksumStableAcrossWhitespace(t *testing.T) {
	a := "<html><body><p>Hello   world</p></body></html>"
	b := "<html><body><p>Hello\n\nworld</p></body></html>"

	pageA, err := Extract("https://example.com/", []byte(a), "text/html", "", Options{})
	if err != nil {
		t.Fatalf("Extract(a) error = %v", err)
	}
	pageB, err := Extract("https://example.com/", []byte(b), "text/html", "", Options{})
	if err != nil {
		t.Fatalf("Extract(b) error = %v", err)
	}
	if pageA.ContentChecksum != pageB.ContentChecksum {
		t.Errorf("checksums differ for whitespace-only variants: %q != %q", pageA.ContentChecksum, pageB.ContentChecksum)
	}
}

func TestExtract_IgnoreGetParams(t *testing.T) {
	body := `<html><body><a href="/a?utm=1">x</a></body></html>`
	page, err := Extract("https://example.com/", []byte(body), "text/html", "", Options{IgnoreGetParams: true})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(page.OutboundLinks) != 1 || page.OutboundLinks[0] != "https://example.com/a" {
		t.Errorf("OutboundLinks = %v, want [https://example.com/a]", page.OutboundLinks)
	}
}
