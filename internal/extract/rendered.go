package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lucasfdcampos/lead-scraper/internal/domain"
)

// proximityWindow bounds how far after a business name the rating is looked
// for. Listings without a rating of their own may pick up the next listing's.
const proximityWindow = 300

var (
	// The rating must not be the tail of a longer number: "4.85 (30)" is
	// 4.85, and "14.5 (3)" is not a rating at all.
	ratingReviewsPattern = `(?:^|[^\d.])(\d(?:\.\d+)?)\s*\((\d[\d,]*)\)`
	genericLinkText      = map[string]bool{
		"view profile":     true,
		"read more":        true,
		"reviews":          true,
		"read reviews":     true,
		"see reviews":      true,
		"more info":        true,
		"website":          true,
		"visit website":    true,
		"get quote":        true,
		"request a quote":  true,
		"view all reviews": true,
		"see more":         true,
		"more":             true,
		"directions":       true,
		"view details":     true,
	}
	onlyRatingRe = regexp.MustCompile(`^[\d.\s()★,]+$`)
)

// Rendered extracts leads from a markdown rendering by matching links whose
// URL contains the site's review marker. Each profile URL yields at most one
// lead, named by the first descriptive link text pointing at it.
func Rendered(text string, ctx Context) []domain.Lead {
	marker := ctx.Rules.ReviewMarker
	if marker == "" {
		return nil
	}
	// An optional link title may follow the URL: [Name](url "Name").
	linkRe := regexp.MustCompile(`\[([^\[\]]+)\]\((https?://[^)\s]*` + regexp.QuoteMeta(marker) + `[^)\s]*)(?:\s+(?:"[^"]*"|'[^']*'))?\)`)

	var leads []domain.Lead
	seen := make(map[string]bool)
	for _, m := range linkRe.FindAllStringSubmatch(text, -1) {
		name, href := clean(m[1]), m[2]
		if seen[href] || !descriptive(name) {
			continue
		}
		seen[href] = true

		lead := ctx.lead(name)
		lead.SourceURL = href
		lead.Rating, lead.ReviewCount = nearbyRating(text, name)
		leads = append(leads, lead)
	}
	return leads
}

func descriptive(name string) bool {
	if !validName(name) || strings.HasPrefix(name, "!") {
		return false
	}
	if genericLinkText[strings.ToLower(name)] {
		return false
	}
	return !onlyRatingRe.MatchString(name)
}

// nearbyRating finds the first "4.8 (123)" that follows the first occurrence
// of name within the window.
func nearbyRating(text, name string) (*float64, *int) {
	re, err := regexp.Compile(`(?s)` + regexp.QuoteMeta(name) + `.{0,` + strconv.Itoa(proximityWindow) + `}?` + ratingReviewsPattern)
	if err != nil {
		return nil, nil
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil, nil
	}
	var rating *float64
	if v, ok := parseRating(m[1]); ok {
		rating = &v
	}
	return rating, parseCount(m[2])
}
