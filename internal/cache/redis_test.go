package cache_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lucasfdcampos/lead-scraper/internal/cache"
	"github.com/lucasfdcampos/lead-scraper/internal/domain"
)

func TestResultKey(t *testing.T) {
	t.Parallel()

	base := domain.Query{Keyword: "plumber", Location: "Houston, TX", Limit: 25}
	key := cache.ResultKey("angi", base)

	assert.True(t, strings.HasPrefix(key, "leads:scrape:v1:"))
	assert.Len(t, key, len("leads:scrape:v1:")+64)

	same := domain.Query{Keyword: " Plumber ", Location: "houston,  tx", Limit: 25}
	assert.Equal(t, key, cache.ResultKey("ANGI", same))

	for name, q := range map[string]domain.Query{
		"limit":    {Keyword: "plumber", Location: "Houston, TX", Limit: 50},
		"phone":    {Keyword: "plumber", Location: "Houston, TX", Limit: 25, RequirePhone: true},
		"location": {Keyword: "plumber", Location: "Dallas, TX", Limit: 25},
	} {
		assert.NotEqual(t, key, cache.ResultKey("angi", q), name)
	}
	assert.NotEqual(t, key, cache.ResultKey("yellow_pages", base))
}
