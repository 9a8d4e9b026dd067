// Package category maps free-text service keywords to directory category slugs.
package category

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type synonym struct {
	keyword string
	slug    string
}

// synonyms is ordered: substring matching walks it front to back, so more
// specific phrases must appear before the single words they contain.
var synonyms = []synonym{
	{"plumber", "plumbing"},
	{"plumbers", "plumbing"},
	{"plumbing", "plumbing"},
	{"electrician", "electrical"},
	{"electricians", "electrical"},
	{"electrical", "electrical"},
	{"hvac", "heating-and-cooling"},
	{"heating", "heating-and-cooling"},
	{"cooling", "heating-and-cooling"},
	{"air conditioning", "heating-and-cooling"},
	{"roofing", "roofing"},
	{"roofer", "roofing"},
	{"roofers", "roofing"},
	{"landscaping", "landscaping"},
	{"landscaper", "landscaping"},
	{"lawn care", "lawn-care"},
	{"lawn", "lawn-care"},
	{"painting", "painting"},
	{"painter", "painting"},
	{"painters", "painting"},
	{"house cleaning", "house-cleaning"},
	{"cleaning", "house-cleaning"},
	{"maid", "house-cleaning"},
	{"flooring", "flooring"},
	{"floor", "flooring"},
	{"carpet", "flooring"},
	{"remodeling", "remodeling"},
	{"renovation", "remodeling"},
	{"general contractor", "general-contractor"},
	{"contractor", "general-contractor"},
	{"handyman", "handyman-services"},
	{"pest control", "pest-control"},
	{"exterminator", "pest-control"},
	{"garage door", "garage-doors"},
	{"fencing", "fencing"},
	{"fence", "fencing"},
	{"tree service", "tree-services"},
	{"tree removal", "tree-services"},
	{"windows", "windows"},
	{"window", "windows"},
	{"siding", "siding"},
	{"gutters", "gutters"},
	{"gutter", "gutters"},
	{"concrete", "concrete"},
	{"driveway", "concrete"},
	{"deck", "decks-and-porches"},
	{"patio", "decks-and-porches"},
	{"swimming pool", "swimming-pools"},
	{"pool", "swimming-pools"},
	{"appliance repair", "appliance-repair"},
	{"appliance", "appliance-repair"},
	{"locksmith", "locksmith"},
	{"moving", "moving"},
	{"movers", "moving"},
	{"storage", "moving"},
}

var exact = func() map[string]string {
	m := make(map[string]string, len(synonyms))
	for _, s := range synonyms {
		m[s.keyword] = s.slug
	}
	return m
}()

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug resolves keyword to a category slug: exact synonym match first, then a
// substring match in either direction, then a plain slugification.
func Slug(keyword string) string {
	normalized := strings.ToLower(strings.TrimSpace(keyword))
	if normalized == "" {
		return ""
	}
	if slug, ok := exact[normalized]; ok {
		return slug
	}
	for _, s := range synonyms {
		if strings.Contains(normalized, s.keyword) || strings.Contains(s.keyword, normalized) {
			return s.slug
		}
	}
	return Slugify(normalized)
}

// Slugify lowercases s, strips accents and collapses every non-alphanumeric
// run to "-".
func Slugify(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(folded), "-"), "-")
}

// Title turns a slug back into display text: "heating-and-cooling" → "Heating And Cooling".
func Title(slug string) string {
	words := strings.Fields(strings.ReplaceAll(slug, "-", " "))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
