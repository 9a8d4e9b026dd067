package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lucasfdcampos/lead-scraper/internal/domain"
)

func TestLeadDoc(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rating, reviews := 4.5, 12

	full := leadDoc(domain.Lead{
		Name:        "Lopez Plumbing",
		Phone:       "(713) 555-0100",
		City:        "Houston",
		Rating:      &rating,
		ReviewCount: &reviews,
		Source:      "yellow_pages",
	}, now)

	assert.Equal(t, "Lopez Plumbing", full["name"])
	assert.Equal(t, "(713) 555-0100", full["phone"])
	assert.Equal(t, "Houston", full["city"])
	assert.Equal(t, 4.5, full["rating"])
	assert.Equal(t, 12, full["review_count"])
	assert.Equal(t, now, full["last_seen_at"])
	assert.NotContains(t, full, "website")

	bare := leadDoc(domain.Lead{Name: "No Phone LLC"}, now)
	assert.Equal(t, "", bare["phone"])
	assert.NotContains(t, bare, "rating")
	assert.NotContains(t, bare, "review_count")
}

func TestQueryFilter(t *testing.T) {
	t.Parallel()

	a := queryFilter("angi", domain.Query{Keyword: "Plumber", Location: "Houston, TX", Limit: 25})
	b := queryFilter("ANGI", domain.Query{Keyword: " plumber ", Location: "houston,  tx", Limit: 25})
	assert.Equal(t, a, b)
	assert.Equal(t, "plumber", a["keyword_key"])
	assert.Equal(t, "houston, tx", a["location_key"])
	assert.Equal(t, 200, a["status"])

	c := queryFilter("angi", domain.Query{Keyword: "plumber", Location: "Houston, TX", Limit: 25, RequirePhone: true})
	assert.NotEqual(t, a, c)
}
