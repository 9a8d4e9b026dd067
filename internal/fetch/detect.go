package fetch

import (
	"bytes"
	"strings"
)

// BlockDetector decides whether a 200 response is really an anti-bot
// challenge page.
type BlockDetector interface {
	Detect(body []byte) (marker string, blocked bool)
}

// DefaultMarkers are challenge-page signatures of the common bot-management
// vendors. Matching is case-insensitive.
var DefaultMarkers = []string{
	"<title>just a moment...</title>",
	"cf-browser-verification",
	"/cdn-cgi/challenge-platform/",
	"cf-chl-bypass",
	"attention required! | cloudflare",
	"px-captcha",
	"captcha-delivery.com",
	"_incapsula_resource",
	"<title>access denied</title>",
	"please verify you are a human",
	"pardon our interruption",
}

// MarkerDetector flags bodies containing any of its markers.
type MarkerDetector struct {
	markers [][]byte
}

// NewMarkerDetector returns a detector for markers, or DefaultMarkers when
// none are given.
func NewMarkerDetector(markers ...string) *MarkerDetector {
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	d := &MarkerDetector{markers: make([][]byte, 0, len(markers))}
	for _, m := range markers {
		if m = strings.TrimSpace(m); m != "" {
			d.markers = append(d.markers, []byte(strings.ToLower(m)))
		}
	}
	return d
}

func (d *MarkerDetector) Detect(body []byte) (string, bool) {
	lower := bytes.ToLower(body)
	for _, m := range d.markers {
		if bytes.Contains(lower, m) {
			return string(m), true
		}
	}
	return "", false
}
