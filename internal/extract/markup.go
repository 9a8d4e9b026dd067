package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/lucasfdcampos/lead-scraper/internal/domain"
)

var (
	ratingLabelRe = regexp.MustCompile(`(?i)Rating:\s*([\d.]+)`)
	firstNumberRe = regexp.MustCompile(`[\d.]+`)
	reviewCountRe = regexp.MustCompile(`\((\d[\d,]*)\)`)
)

// Markup extracts leads from an HTML result page.
func Markup(body string, ctx Context) []domain.Lead {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		zap.L().Debug("extract: parse markup", zap.Error(err))
		return nil
	}

	var leads []domain.Lead
	cards(doc, ctx.Rules).Each(func(i int, sel *goquery.Selection) {
		if lead, ok := card(sel, i, ctx); ok {
			leads = append(leads, lead)
		}
	})
	return leads
}

func cards(doc *goquery.Document, r Rules) *goquery.Selection {
	for _, s := range r.CardSelectors {
		if found := doc.Find(s); found.Length() > 0 {
			return found
		}
	}
	if r.CardLinkSelector == "" {
		return doc.Find("__none__")
	}
	return doc.Find(r.CardLinkSelector).Closest("div[class]")
}

func card(sel *goquery.Selection, i int, ctx Context) (lead domain.Lead, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Debug("extract: skipped malformed card", zap.Int("index", i), zap.Any("panic", r))
			ok = false
		}
	}()

	r := ctx.Rules
	nameSel := first(sel, r.Name)
	if clean(nameSel.Text()) == "" {
		nameSel = first(sel, r.NameLink)
	}
	name := clean(nameSel.Text())
	if !validName(name) {
		return domain.Lead{}, false
	}

	lead = ctx.lead(name)

	profile := first(sel, r.ProfileLink)
	if profile.Length() == 0 && goquery.NodeName(nameSel) == "a" {
		profile = nameSel
	}
	if u := absolute(r.BaseURL, attr(profile, "href")); u != "" {
		lead.SourceURL = u
	}

	lead.Rating = rating(sel, r)
	lead.ReviewCount = reviews(sel, r)
	lead.Phone = clean(first(sel, r.Phone).Text())
	lead.Website = absolute(r.BaseURL, attr(first(sel, r.Website), "href"))
	lead.Street = clean(first(sel, r.Street).Text())

	locality := clean(first(sel, r.Locality).Text())
	if locality != "" {
		city, region, postal := ParseLocality(locality)
		if city != "" {
			lead.City = city
		}
		if region != "" {
			lead.Region = region
		}
		lead.PostalCode = postal
	}

	lead.Address = clean(first(sel, r.Address).Text())
	if lead.Address == "" {
		switch {
		case lead.Street != "" && locality != "":
			lead.Address = lead.Street + ", " + locality
		case lead.Street != "":
			lead.Address = lead.Street
		default:
			lead.Address = locality
		}
	}

	if cat := listText(first(sel, r.Category)); cat != "" {
		lead.Category = cat
	}
	return lead, true
}

func rating(sel *goquery.Selection, r Rules) *float64 {
	if label := attr(first(sel, r.RatingLabel), "aria-label"); label != "" {
		if m := ratingLabelRe.FindStringSubmatch(label); m != nil {
			if v, ok := parseRating(m[1]); ok {
				return &v
			}
		}
	}
	text := first(sel, r.Rating).Text()
	if m := firstNumberRe.FindString(text); m != "" {
		if v, ok := parseRating(m); ok {
			return &v
		}
	}
	return nil
}

func parseRating(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v > 5 {
		return 0, false
	}
	return v, true
}

func reviews(sel *goquery.Selection, r Rules) *int {
	m := reviewCountRe.FindStringSubmatch(first(sel, r.Reviews).Text())
	if m == nil {
		return nil
	}
	return parseCount(m[1])
}

func parseCount(s string) *int {
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func first(sel *goquery.Selection, selector string) *goquery.Selection {
	if selector == "" {
		return sel.Find("__none__")
	}
	return sel.Find(selector).First()
}

func attr(sel *goquery.Selection, name string) string {
	v, _ := sel.Attr(name)
	return strings.TrimSpace(v)
}

// listText joins the texts of the element's links with ", ", or returns its
// own text when it has none.
func listText(sel *goquery.Selection) string {
	links := sel.Find("a")
	if links.Length() < 2 {
		return clean(sel.Text())
	}
	parts := links.Map(func(_ int, a *goquery.Selection) string { return clean(a.Text()) })
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

func absolute(base, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if !ref.IsAbs() {
		b, err := url.Parse(base)
		if err != nil || base == "" {
			return ""
		}
		ref = b.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}
