package fetch

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	DefaultRenderProxyURL = "https://r.jina.ai/"
	DefaultRenderTimeout  = 35 * time.Second
	// DefaultRenderRPM matches the anonymous tier of the default service.
	DefaultRenderRPM = 20
)

// RenderProxy asks a third-party service to fetch the page server side and
// return it as markdown. The service makes the final request, so none of our
// TLS or header fingerprint reaches the target.
type RenderProxy struct {
	base     string
	token    string
	detector BlockDetector
	limiter  *rate.Limiter
	http     *resty.Client
}

type RenderOption func(*RenderProxy)

// WithRenderToken sends token as a bearer credential.
func WithRenderToken(token string) RenderOption {
	return func(r *RenderProxy) { r.token = token }
}

func WithRenderTimeout(d time.Duration) RenderOption {
	return func(r *RenderProxy) {
		if d > 0 {
			r.http.SetTimeout(d)
		}
	}
}

// WithRenderDetector checks the rendered text for challenge markers; the
// service sometimes renders the challenge page itself.
func WithRenderDetector(d BlockDetector) RenderOption {
	return func(r *RenderProxy) { r.detector = d }
}

// WithRenderRate limits requests to rpm per minute. Zero or less disables
// the limit.
func WithRenderRate(rpm int) RenderOption {
	return func(r *RenderProxy) {
		if rpm <= 0 {
			r.limiter = nil
			return
		}
		r.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}
}

func NewRenderProxy(base string, opts ...RenderOption) *RenderProxy {
	if base == "" {
		base = DefaultRenderProxyURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	r := &RenderProxy{
		base:     base,
		detector: NewMarkerDetector(),
		limiter:  rate.NewLimiter(rate.Every(time.Minute/DefaultRenderRPM), 1),
		http:     resty.New().SetTimeout(DefaultRenderTimeout),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *RenderProxy) Name() string { return "render_proxy" }

func (r *RenderProxy) Render(ctx context.Context, target string) (Content, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return Content{}, eris.Wrap(err, "render proxy: rate limit")
		}
	}
	req := r.http.R().
		SetContext(ctx).
		SetHeader("Accept", "text/plain").
		SetHeader("X-Return-Format", "markdown")
	if r.token != "" {
		req.SetAuthToken(r.token)
	}

	resp, err := req.Get(r.base + target)
	if err != nil {
		return Content{}, eris.Wrapf(err, "render proxy: get %s", target)
	}
	if resp.StatusCode() != http.StatusOK {
		return Content{}, eris.Errorf("render proxy: status %d for %s", resp.StatusCode(), target)
	}
	body := resp.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		return Content{}, eris.Errorf("render proxy: empty body for %s", target)
	}
	if r.detector != nil {
		if marker, blocked := r.detector.Detect(body); blocked {
			return Content{}, eris.Errorf("render proxy: challenge page (%s) for %s", marker, target)
		}
	}
	return Content{Kind: Rendered, URL: target, Body: string(body), Via: r.Name()}, nil
}
