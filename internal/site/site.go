// Package site describes the directories the scraper knows how to query.
package site

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/rotisserie/eris"

	"github.com/lucasfdcampos/lead-scraper/internal/category"
	"github.com/lucasfdcampos/lead-scraper/internal/dedup"
	"github.com/lucasfdcampos/lead-scraper/internal/extract"
	"github.com/lucasfdcampos/lead-scraper/internal/location"
)

const (
	Angi        = "angi"
	YellowPages = "yellow_pages"
	Default     = Angi

	// minSimilarity is the Jaro-Winkler score a misspelled site name needs to
	// resolve to a known site.
	minSimilarity = 0.88
)

// Site is one target directory.
type Site struct {
	Name  string
	Label string
	// Homepage, when set, is fetched before each attempt to seed cookies.
	Homepage string
	PageCap  int
	KeyMode  dedup.KeyMode
	Rules    extract.Rules
	// Batch is the ordered location list of a us_latino sweep.
	Batch   []string
	aliases []string

	pageURL  func(keyword, loc string, page int) string
	defaults func(keyword, loc string) (city, region, cat string)
}

// PageURL returns the URL of result page n (1-based).
func (s *Site) PageURL(keyword, loc string, page int) string {
	return s.pageURL(keyword, loc, page)
}

// Context returns the extraction context for a page of this site.
func (s *Site) Context(keyword, loc, pageURL string) extract.Context {
	ctx := extract.Context{
		Rules:    s.Rules,
		Keyword:  keyword,
		Location: loc,
		Source:   s.Name,
		PageURL:  pageURL,
	}
	if s.defaults != nil {
		ctx.City, ctx.Region, ctx.Category = s.defaults(keyword, loc)
	}
	return ctx
}

var angi = &Site{
	Name:     Angi,
	Label:    "Angi",
	Homepage: "https://www.angi.com/",
	PageCap:  100,
	KeyMode:  dedup.KeyName,
	Batch:    location.LatinoHeavy(),
	aliases:  []string{"angi", "angis", "angieslist", "angi.com"},
	Rules: extract.Rules{
		BaseURL: "https://www.angi.com",
		CardSelectors: []string{
			`[class*="BusinessProfileCard"], [class*="ProCard"], [class*="business-card"], [data-testid*="business"], [class*="SearchResult"], article[class*="pro-card"]`,
		},
		CardLinkSelector: `div[class*="card"] a[href*="/companylist/"]`,
		Name:             `h3, h2, [class*="business-name"], [class*="BusinessName"], [class*="ProName"], a[class*="profile-target"] span`,
		NameLink:         `a[href*="/companylist/"]`,
		ProfileLink:      `a[class*="profile-target"], a[class*="BusinessProfileCard"], a[href*="-reviews-"]`,
		RatingLabel:      `[aria-label*="Rating"]`,
		Rating:           `[class*="RatingDisplay"], [class*="rating"]`,
		Reviews:          `[class*="review"], [class*="Review"]`,
		Address:          `[class*="address"], [class*="Address"], [class*="location"], [class*="Location"]`,
		Category:         `[class*="services"], [class*="Services"], [class*="category"], [class*="Category"]`,
		ReviewMarker:     "-reviews-",
	},
	pageURL: func(keyword, loc string, page int) string {
		city, region := location.Split(loc)
		u := fmt.Sprintf("https://www.angi.com/companylist/us/%s/%s/%s.htm",
			strings.ToLower(region),
			strings.ReplaceAll(strings.ToLower(city), " ", "-"),
			category.Slug(keyword),
		)
		if page > 1 {
			u += fmt.Sprintf("?page=%d", page)
		}
		return u
	},
	defaults: func(keyword, loc string) (string, string, string) {
		city, region := location.Split(loc)
		return category.Title(city), region, category.Title(category.Slug(keyword))
	},
}

var yellowPages = &Site{
	Name:    YellowPages,
	Label:   "Yellow Pages",
	PageCap: 80,
	KeyMode: dedup.KeyNamePhone,
	Batch:   location.LatinoCore(),
	aliases: []string{"yellowpages", "yp", "yellowpages.com", "ypcom"},
	Rules: extract.Rules{
		BaseURL:       "https://www.yellowpages.com",
		CardSelectors: []string{`.search-results .result, .organic .result, [data-ypresult]`},
		Name:          `a.business-name`,
		Reviews:       `.ratings .count`,
		Phone:         `.phones.phone.primary, .phone`,
		Website:       `a.track-visit-website, a.website-link`,
		Street:        `.street-address, .adr .street-address`,
		Locality:      `.locality`,
		Category:      `.categories`,
		ReviewMarker:  "/mip/",
	},
	pageURL: func(keyword, loc string, page int) string {
		q := url.Values{}
		q.Set("search_terms", keyword)
		q.Set("geo_location_terms", loc)
		q.Set("page", fmt.Sprint(page))
		return "https://www.yellowpages.com/search?" + q.Encode()
	},
}

var registry = map[string]*Site{
	angi.Name:        angi,
	yellowPages.Name: yellowPages,
}

// Names returns the registered site names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a user-supplied site name. Empty selects Default; close
// misspellings ("yelowpages") resolve to the nearest known site.
func Lookup(name string) (*Site, error) {
	key := normalize(name)
	if key == "" {
		return registry[Default], nil
	}

	var best *Site
	bestScore := 0.0
	for _, s := range registry {
		for _, alias := range append([]string{normalize(s.Name)}, s.aliases...) {
			if key == alias {
				return s, nil
			}
			if score := matchr.JaroWinkler(key, alias, false); score > bestScore {
				best, bestScore = s, score
			}
		}
	}
	if best != nil && bestScore >= minSimilarity {
		return best, nil
	}
	return nil, eris.Errorf("site: unknown site %q (known: %s)", name, strings.Join(Names(), ", "))
}

func normalize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
