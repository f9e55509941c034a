package websearch

import "testing"

const sampleDDGHTML = `
<div class="result">
  <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&amp;rut=abc">Go <b>Documentation</b></a>
  <a class="result__snippet" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F">Learn <b>Go</b> from the official docs.</a>
</div>
<div class="result">
  <a rel="nofollow" class="result__a" href="https://example.com/direct">Example</a>
  <a class="result__snippet" href="https://example.com/direct">A direct link.</a>
</div>
`

func TestExtractDDGResults(t *testing.T) {
	results := extractDDGResults(sampleDDGHTML, 5)
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Title != "Go Documentation" {
		t.Errorf("title = %q", results[0].Title)
	}
	if results[0].URL != "https://go.dev/doc/" {
		t.Errorf("redirect not unwrapped: %q", results[0].URL)
	}
	if results[1].URL != "https://example.com/direct" {
		t.Errorf("direct url = %q", results[1].URL)
	}
	if results[0].Snippet == "" {
		t.Error("snippet missing")
	}
}

func TestExtractDDGResults_CountBound(t *testing.T) {
	results := extractDDGResults(sampleDDGHTML, 1)
	if len(results) != 1 {
		t.Errorf("results = %d, want 1", len(results))
	}
}

func TestExtractDDGResults_Empty(t *testing.T) {
	if results := extractDDGResults("<html><body>nothing</body></html>", 5); results != nil {
		t.Errorf("results = %v, want nil", results)
	}
}
