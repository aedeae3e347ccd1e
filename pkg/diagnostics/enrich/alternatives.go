package enrich

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// Alternative candidates are derived by parsing the HTML excerpt captured at
// failure time rather than issuing another round of in-page queries: the
// excerpt is already in hand and parsing it cannot disturb the environment.

// candidateTags are element types worth proposing as alternatives.
var candidateTags = map[string]bool{
	"a": true, "button": true, "input": true, "select": true,
	"textarea": true, "form": true, "label": true,
}

// findAlternatives parses the HTML excerpt and scores each candidate against the
// requested target selector and criteria. Results are sorted by confidence,
// capped at maxAlternatives.
func findAlternatives(excerpt, target string, criteria *Criteria, maxAlternatives int) ([]Alternative, error) {
	if maxAlternatives <= 0 {
		return nil, nil
	}

	doc, err := html.Parse(strings.NewReader(excerpt))
	if err != nil {
		return nil, fmt.Errorf("failed to parse structure excerpt: %w", err)
	}

	tokens := selectorTokens(target)
	var alternatives []Alternative

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (candidateTags[n.Data] || hasAttr(n, "role") != "") {
			if alt, ok := scoreCandidate(n, tokens, criteria); ok {
				alternatives = append(alternatives, alt)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	sort.SliceStable(alternatives, func(i, j int) bool {
		return alternatives[i].Confidence > alternatives[j].Confidence
	})
	if len(alternatives) > maxAlternatives {
		alternatives = alternatives[:maxAlternatives]
	}
	return alternatives, nil
}

// scoreCandidate computes token overlap between the target and a candidate's
// id, classes, tag, aria label, and visible text.
func scoreCandidate(n *html.Node, tokens []string, criteria *Criteria) (Alternative, bool) {
	id := hasAttr(n, "id")
	class := hasAttr(n, "class")
	aria := hasAttr(n, "aria-label")
	role := hasAttr(n, "role")
	text := strings.TrimSpace(nodeText(n))
	if len(text) > 80 {
		text = text[:80]
	}

	haystack := strings.ToLower(strings.Join([]string{n.Data, id, class, aria, text}, " "))

	matched := 0
	for _, tok := range tokens {
		if strings.Contains(haystack, tok) {
			matched++
		}
	}

	score := 0.0
	if len(tokens) > 0 {
		score = float64(matched) / float64(len(tokens))
	}
	if criteria != nil {
		if criteria.Role != "" && strings.EqualFold(criteria.Role, role) {
			score += 0.25
		}
		if criteria.Text != "" && strings.Contains(strings.ToLower(text), strings.ToLower(criteria.Text)) {
			score += 0.25
		}
	}
	if score > 1 {
		score = 1
	}
	if score <= 0 {
		return Alternative{}, false
	}

	return Alternative{
		Selector:   buildSelector(n.Data, id, class),
		Tag:        n.Data,
		Text:       text,
		AriaLabel:  aria,
		Confidence: score,
	}, true
}

// selectorTokens splits a CSS-ish selector into comparable lowercase tokens.
func selectorTokens(selector string) []string {
	cleaned := strings.ToLower(selector)
	for _, r := range []string{"#", ".", "[", "]", "=", "\"", "'", ">", ":", "(", ")"} {
		cleaned = strings.ReplaceAll(cleaned, r, " ")
	}
	fields := strings.Fields(cleaned)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// buildSelector renders the most specific selector available for a candidate.
func buildSelector(tag, id, class string) string {
	if id != "" {
		return "#" + id
	}
	if class != "" {
		first := strings.Fields(class)
		if len(first) > 0 {
			return tag + "." + first[0]
		}
	}
	return tag
}

func hasAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(nodeText(c))
	}
	return sb.String()
}
