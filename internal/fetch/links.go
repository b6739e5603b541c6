package fetch

import (
	"bytes"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is a candidate page discovered on the main page, scored by how likely
// it is to carry festival detail.
type Link struct {
	URL      string
	Text     string
	Priority int
}

// keywordPriorities maps link keywords to a base priority; the highest match
// wins. Bonuses are added for specific substrings on top of the base.
var keywordPriorities = []struct {
	keywords []string
	priority int
}{
	{[]string{"program", "schedule"}, 10},
	{[]string{"teacher", "instructor", "artist", "lineup"}, 9},
	{[]string{"register", "ticket", "price"}, 8},
	{[]string{"venue", "location", "accommodation"}, 7},
	{[]string{"about", "info"}, 6},
	{[]string{"workshop", "class", "lesson"}, 5},
}

// ExtractLinks parses anchors from body, resolves them against base, drops
// anything off-origin or non-navigable, and returns deduplicated links sorted
// by descending priority.
func ExtractLinks(base *url.URL, body []byte) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	seen := make(map[string]int) // canonical URL -> index into links
	var links []Link

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		text := strings.TrimSpace(sel.Text())

		resolved, ok := resolveCandidate(base, href)
		if !ok {
			return
		}
		prio := scoreLink(text, resolved)
		if idx, dup := seen[resolved]; dup {
			if prio > links[idx].Priority {
				links[idx].Priority = prio
				links[idx].Text = text
			}
			return
		}
		seen[resolved] = len(links)
		links = append(links, Link{URL: resolved, Text: text, Priority: prio})
	})

	sort.SliceStable(links, func(i, j int) bool {
		return links[i].Priority > links[j].Priority
	})
	return links, nil
}

// resolveCandidate resolves href against base and filters out links that are
// empty, anchors, script schemes, or a different origin.
func resolveCandidate(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:", "vbscript:"} {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != base.Scheme || !strings.EqualFold(resolved.Host, base.Host) {
		return "", false
	}
	resolved.Fragment = ""

	// Skip the page we came from.
	if resolved.String() == base.String() {
		return "", false
	}
	return resolved.String(), true
}

// scoreLink assigns the priority table value plus substring bonuses, checking
// both the visible text and the href.
func scoreLink(text, href string) int {
	haystack := strings.ToLower(text + " " + href)

	priority := 1
	for _, entry := range keywordPriorities {
		for _, kw := range entry.keywords {
			if strings.Contains(haystack, kw) {
				if entry.priority > priority {
					priority = entry.priority
				}
				break
			}
		}
	}

	if strings.Contains(haystack, "program") || strings.Contains(haystack, "schedule") {
		priority += 2
	}
	if strings.Contains(haystack, "teacher") || strings.Contains(haystack, "artist") {
		priority += 2
	}
	if strings.Contains(haystack, "register") || strings.Contains(haystack, "ticket") {
		priority++
	}
	return priority
}
