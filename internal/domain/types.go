package domain

import (
	"strings"
	"time"
)

const (
	DefaultLimit = 25
	MaxLimit     = 2000
)

// Query is one logical scrape request. It is never mutated after creation.
type Query struct {
	Keyword      string `json:"keyword"`
	Location     string `json:"location"`
	Limit        int    `json:"limit"`
	Site         string `json:"site,omitempty"`
	RequirePhone bool   `json:"require_phone,omitempty"`
	// NoCache skips the cache lookups; the fresh result is still cached.
	NoCache bool `json:"no_cache,omitempty"`
}

// Normalized returns a copy with the limit clamped to [1, MaxLimit].
func (q Query) Normalized() Query {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	return q
}

// MatchKey returns the case- and whitespace-insensitive form of a keyword or
// location. Two queries are the same run when their match keys agree.
func MatchKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Lead is one normalized business listing.
type Lead struct {
	Name        string   `json:"name"                  bson:"name"`
	Phone       string   `json:"phone,omitempty"       bson:"phone,omitempty"`
	Website     string   `json:"website,omitempty"     bson:"website,omitempty"`
	Street      string   `json:"street,omitempty"      bson:"street,omitempty"`
	Address     string   `json:"address,omitempty"     bson:"address,omitempty"`
	City        string   `json:"city,omitempty"        bson:"city,omitempty"`
	Region      string   `json:"region,omitempty"      bson:"region,omitempty"`
	PostalCode  string   `json:"postalCode,omitempty"  bson:"postal_code,omitempty"`
	Rating      *float64 `json:"rating,omitempty"      bson:"rating,omitempty"`
	ReviewCount *int     `json:"reviewCount,omitempty" bson:"review_count,omitempty"`
	Category    string   `json:"category,omitempty"    bson:"category,omitempty"`
	SourceURL   string   `json:"sourceUrl,omitempty"   bson:"source_url,omitempty"`
	Keyword     string   `json:"keyword"               bson:"keyword"`
	Location    string   `json:"location"              bson:"location"`
	Source      string   `json:"source"                bson:"source"`
}

// Scrape modes reported in Result.Mode.
const (
	ModeSingle         = "single"
	ModeSingleFallback = "single_with_state_fallback"
	ModeBatch          = "us_latino"
)

// Result is what a Query produces. Error is set only on a first-page hard
// failure; in that case Leads is empty.
type Result struct {
	Leads        []Lead   `json:"leads"`
	Status       int      `json:"status,omitempty"`
	Count        int      `json:"count"`
	PagesScraped int      `json:"pages_scraped"`
	Locations    []string `json:"locations,omitempty"`
	Mode         string   `json:"mode,omitempty"`
	Error        string   `json:"error,omitempty"`
	Cached       bool     `json:"cached,omitempty"`
	QueryID      string   `json:"query_id,omitempty"`
}

// StoredQuery is the query-run document saved in MongoDB (collection: queries).
type StoredQuery struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Site         string    `bson:"site"          json:"site"`
	Keyword      string    `bson:"keyword"       json:"keyword"`
	Location     string    `bson:"location"      json:"location"`
	KeywordKey   string    `bson:"keyword_key"   json:"-"`
	LocationKey  string    `bson:"location_key"  json:"-"`
	Limit        int       `bson:"limit"         json:"limit"`
	RequirePhone bool      `bson:"require_phone" json:"require_phone"`
	Mode         string    `bson:"mode"          json:"mode"`
	Status       int       `bson:"status"        json:"status"`
	Count        int       `bson:"count"         json:"count"`
	PagesScraped int       `bson:"pages_scraped" json:"pages_scraped"`
	Locations    []string  `bson:"locations"     json:"locations"`
	Error        string    `bson:"error,omitempty" json:"error,omitempty"`
	DurationMs   int64     `bson:"duration_ms"   json:"duration_ms"`
	CreatedAt    time.Time `bson:"created_at"    json:"created_at"`
	ExpiresAt    time.Time `bson:"expires_at"    json:"expires_at"`
}

// StoredResult is one lead of a query run (collection: results).
type StoredResult struct {
	QueryID   string    `bson:"query_id"`
	Position  int       `bson:"position"`
	Lead      Lead      `bson:"lead"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}
