package websearch

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// parseDuckDuckGoResults extracts search results from DuckDuckGo's HTML
// interface. Result blocks carry class="result results_links ...".
func parseDuckDuckGoResults(htmlContent string, maxResults int) ([]Result, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	var results []Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" {
			class := attrValue(n, "class")
			if strings.Contains(class, "result") && strings.Contains(class, "results_links") {
				if r := extractResult(n); r.URL != "" && r.Title != "" {
					results = append(results, r)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func extractResult(n *html.Node) Result {
	var result Result
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			class := attrValue(n, "class")
			if strings.Contains(class, "result__a") {
				result.URL = attrValue(n, "href")
				result.Title = textContent(n)
			} else if strings.Contains(class, "result__snippet") {
				result.Content = textContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	result.URL = unwrapRedirect(result.URL)
	return result
}

// unwrapRedirect resolves DuckDuckGo's /l/?uddg= redirect links back to the
// target URL.
func unwrapRedirect(raw string) string {
	if !strings.HasPrefix(raw, "//duckduckgo.com/l/?uddg=") {
		return raw
	}
	decoded, err := url.QueryUnescape(strings.TrimPrefix(raw, "//duckduckgo.com/l/?uddg="))
	if err != nil {
		return raw
	}
	if idx := strings.Index(decoded, "&"); idx > 0 {
		decoded = decoded[:idx]
	}
	return decoded
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(n.Data))
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}
