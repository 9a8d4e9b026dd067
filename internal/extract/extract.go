// Package extract turns an acquired page into leads. Markup pages go through
// selector-driven card extraction; pages that only came back as rendered
// markdown go through link-pattern matching. Both produce the same Lead shape
// and never fail: fragments that do not parse are skipped.
package extract

import (
	"strings"

	"github.com/lucasfdcampos/lead-scraper/internal/domain"
	"github.com/lucasfdcampos/lead-scraper/internal/fetch"
)

// Rules are the site-specific selectors. Empty selectors are skipped.
type Rules struct {
	// BaseURL resolves relative links ("https://www.angi.com").
	BaseURL string

	// CardSelectors are tried in order; the first one matching anything wins.
	CardSelectors []string
	// CardLinkSelector is the last resort: the closest classed div around
	// each matching anchor becomes a card.
	CardLinkSelector string

	Name        string
	NameLink    string
	ProfileLink string
	RatingLabel string
	Rating      string
	Reviews     string
	Phone       string
	Website     string
	Street      string
	Locality    string
	Address     string
	Category    string

	// ReviewMarker is the URL fragment that identifies a business profile link
	// in rendered markdown ("-reviews-", "/mip/").
	ReviewMarker string
}

// Context is what the extractor knows about the page besides its content.
type Context struct {
	Rules    Rules
	Keyword  string
	Location string
	Source   string
	// PageURL is used as SourceURL when a lead has no profile link.
	PageURL string
	// City, Region and Category fill leads whose card does not carry them.
	City     string
	Region   string
	Category string
}

// Extract dispatches on the content kind.
func Extract(c fetch.Content, ctx Context) []domain.Lead {
	if ctx.PageURL == "" {
		ctx.PageURL = c.URL
	}
	switch c.Kind {
	case fetch.Markup:
		return Markup(c.Body, ctx)
	case fetch.Rendered:
		return Rendered(c.Body, ctx)
	}
	return nil
}

func (ctx Context) lead(name string) domain.Lead {
	return domain.Lead{
		Name:      name,
		City:      ctx.City,
		Region:    ctx.Region,
		Category:  ctx.Category,
		SourceURL: ctx.PageURL,
		Keyword:   ctx.Keyword,
		Location:  ctx.Location,
		Source:    ctx.Source,
	}
}

// ParseLocality splits "City, ST 12345" into its parts. Missing parts are
// returned empty.
func ParseLocality(s string) (city, region, postal string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", ""
	}
	before, after, _ := strings.Cut(s, ",")
	city = strings.TrimSpace(before)
	fields := strings.Fields(after)
	if len(fields) > 0 {
		region = fields[0]
	}
	if len(fields) > 1 {
		postal = strings.Join(fields[1:], " ")
	}
	return city, region, postal
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func validName(name string) bool {
	return len([]rune(name)) >= 2
}
