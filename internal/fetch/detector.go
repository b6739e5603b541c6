package fetch

import (
	"bytes"
	"strings"
)

// RenderDetector decides whether a plain fetch should be retried through the
// headless renderer.
type RenderDetector struct {
	BodyLengthThreshold int
}

// NewRenderDetector creates a detector; threshold 0 uses the default.
func NewRenderDetector(threshold int) *RenderDetector {
	if threshold == 0 {
		threshold = 2048
	}
	return &RenderDetector{BodyLengthThreshold: threshold}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
}

// ShouldRender reports whether the page looks JavaScript-rendered.
func (d *RenderDetector) ShouldRender(page Page) bool {
	if page.StatusCode != 200 || page.Rendered {
		return false
	}
	body := page.Body
	if len(body) == 0 {
		return true
	}
	if len(body) < d.BodyLengthThreshold && scriptDensityHigh(body) {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

// scriptDensityHigh measures how much of the document is <script> payload.
func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	coverage := 0
	searchPos := 0

	for {
		relStart := strings.Index(lower[searchPos:], openTag)
		if relStart == -1 {
			break
		}
		start := searchPos + relStart

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			coverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		relEnd := strings.Index(lower[contentStart:], closeTag)
		var next int
		if relEnd == -1 {
			next = total
		} else {
			next = contentStart + relEnd + len(closeTag)
		}

		coverage += next - start
		searchPos = next
	}

	if coverage == 0 {
		return false
	}
	return coverage*100/total >= 25
}
