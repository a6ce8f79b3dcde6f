package fetcher

import (
	"strings"
	"testing"
)

func TestSecondLevelDomain(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://blog.example.com/post/1", "example.com"},
		{"https://www.example.com", "example.com"},
		{"https://news.example.co.uk/story", "example.co.uk"},
		{"http://example.com.au", "example.com.au"},
		{"https://example.org", "example.org"},
		{"https://a.b.c.deep.example.net/x?y=1", "example.net"},
	}
	for _, tt := range tests {
		if got := SecondLevelDomain(tt.url); got != tt.want {
			t.Errorf("SecondLevelDomain(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestDomainOf(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.example.com/path#frag", "example.com"},
		{"http://sub.example.org?q=1", "sub.example.org"},
		{"example.com/page", "example.com"},
	}
	for _, tt := range tests {
		if got := domainOf(tt.url); got != tt.want {
			t.Errorf("domainOf(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>Warehouse Club Economics</title>
  <script>var tracking = "should never appear";</script>
  <style>.hidden { display: none }</style>
</head>
<body>
  <nav>Home | About | Contact</nav>
  <header>Site banner text</header>
  <article>
    Membership fees fund most of the margin.
    <a href="https://example.org/analysis">Full analysis</a>
    <a href="/relative/link">relative</a>
  </article>
  <footer>Copyright boilerplate</footer>
</body>
</html>`

func TestParsePage(t *testing.T) {
	title, text, links := parsePage(samplePage)

	if title != "Warehouse Club Economics" {
		t.Errorf("title = %q", title)
	}
	if !strings.Contains(text, "Membership fees fund most of the margin.") {
		t.Errorf("body text missing from extraction: %q", text)
	}
	for _, excluded := range []string{"should never appear", "display: none", "Home | About", "Site banner", "Copyright"} {
		if strings.Contains(text, excluded) {
			t.Errorf("extracted text should not include %q", excluded)
		}
	}

	if len(links) != 1 || links[0] != "https://example.org/analysis" {
		t.Errorf("links = %v, want only the absolute href", links)
	}
}

func TestStripHTMLTags(t *testing.T) {
	got := stripHTMLTags("<p>Plain <b>bold</b> text</p>")
	if !strings.Contains(got, "Plain") || !strings.Contains(got, "bold") || strings.Contains(got, "<p>") {
		t.Errorf("stripHTMLTags = %q", got)
	}

	// No markup passes through untouched apart from trimming.
	if got := stripHTMLTags("  already plain  "); got != "already plain" {
		t.Errorf("plain passthrough = %q", got)
	}
}
