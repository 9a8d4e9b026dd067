// Package filter provides lead quality filters.
//
// Filters are predicates applied by the page walker before leads reach the
// seen set, so filtered leads do not use up the query limit.
package filter

import (
	"github.com/lucasfdcampos/lead-scraper/internal/dedup"
	"github.com/lucasfdcampos/lead-scraper/internal/domain"
)

// MinPhoneDigits is the shortest digit run accepted as a real phone number.
const MinPhoneDigits = 7

// HasPhone reports whether the lead carries a usable phone number.
func HasPhone(l domain.Lead) bool {
	return len(dedup.PhoneDigits(l.Phone)) >= MinPhoneDigits
}

// For returns the predicate matching q's options, or nil when q needs none.
func For(q domain.Query) func(domain.Lead) bool {
	if q.RequirePhone {
		return HasPhone
	}
	return nil
}
