package fetch

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

var (
	scriptRe         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	excessiveLinesRe = regexp.MustCompile(`\n{4,}`)
)

// Converter turns fetched HTML into markdown so the extraction prompt carries
// content instead of markup.
type Converter struct {
	converter *md.Converter
}

// NewConverter creates an HTML to markdown converter.
func NewConverter() *Converter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &Converter{converter: converter}
}

// Convert strips script/style noise and converts the remaining HTML to
// markdown. On conversion failure it falls back to the stripped HTML, since
// sending imperfect text to the model beats sending nothing.
func (c *Converter) Convert(body []byte) string {
	cleaned := scriptRe.ReplaceAllString(string(body), "")
	cleaned = styleRe.ReplaceAllString(cleaned, "")

	markdown, err := c.converter.ConvertString(cleaned)
	if err != nil {
		return strings.TrimSpace(cleaned)
	}
	markdown = excessiveLinesRe.ReplaceAllString(markdown, "\n\n\n")
	return strings.TrimSpace(markdown)
}
