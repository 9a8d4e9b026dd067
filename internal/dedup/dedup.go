// Package dedup holds the per-query set of seen lead keys.
//
// A Set is created when a query starts and shared by every page walk of that
// query, across all locations. Admission is a single critical section: the
// duplicate check, the aggregate cap check and the insert happen under one
// lock, so concurrent walkers can never admit the same key twice or push the
// total past the cap.
package dedup

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/lucasfdcampos/lead-scraper/internal/domain"
)

// KeyMode selects which lead fields make up the identity of a lead.
type KeyMode int

const (
	// KeyName identifies a lead by its normalized name.
	KeyName KeyMode = iota
	// KeyNamePhone identifies a lead by normalized name plus phone digits.
	KeyNamePhone
)

// Admission is the outcome of Set.Admit.
type Admission int

const (
	Admitted Admission = iota
	Duplicate
	Full
)

func (a Admission) String() string {
	switch a {
	case Admitted:
		return "admitted"
	case Duplicate:
		return "duplicate"
	case Full:
		return "full"
	}
	return "unknown"
}

// Set is a concurrency-safe SeenSet with an aggregate cap.
type Set struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	admitted int
	limit    int
}

// NewSet returns an empty Set that admits at most limit keys.
// A limit <= 0 means unbounded.
func NewSet(limit int) *Set {
	return &Set{seen: make(map[string]struct{}), limit: limit}
}

// Admit records key if it is new and the cap has room.
func (s *Set) Admit(key string) Admission {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		return Duplicate
	}
	if s.limit > 0 && s.admitted >= s.limit {
		return Full
	}
	s.seen[key] = struct{}{}
	s.admitted++
	return Admitted
}

// Seen reports whether key was already admitted.
func (s *Set) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[key]
	return ok
}

// Full reports whether the cap has been reached.
func (s *Set) Full() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit > 0 && s.admitted >= s.limit
}

// Len returns how many keys were admitted.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admitted
}

var (
	nonAlnumRe = regexp.MustCompile(`[^a-z0-9\s]`)
	spaceRe    = regexp.MustCompile(`\s+`)
	nonDigitRe = regexp.MustCompile(`\D`)
)

// NormalizeName lowercases, folds accents and collapses punctuation and
// whitespace so "José's  Plumbing" and "jose s plumbing" compare equal.
func NormalizeName(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	out := nonAlnumRe.ReplaceAllString(strings.ToLower(folded), " ")
	out = spaceRe.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// PhoneDigits strips everything but digits.
func PhoneDigits(phone string) string {
	return nonDigitRe.ReplaceAllString(phone, "")
}

// Key derives the dedup key of a lead under mode.
func Key(l domain.Lead, mode KeyMode) string {
	name := NormalizeName(l.Name)
	if mode == KeyNamePhone {
		return name + "|" + PhoneDigits(l.Phone)
	}
	return name
}
