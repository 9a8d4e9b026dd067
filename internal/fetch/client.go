// Package fetch acquires result pages from sites that resist automated
// access: a browser-fingerprinted HTTP client, a retry chain that rotates
// identities and proxies, and fallbacks that render the page elsewhere.
package fetch

import (
	"context"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultWarmupTimeout = 20 * time.Second
	defaultReferer       = "https://www.google.com/"
	defaultAccept        = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7"
)

// OutcomeKind classifies a single fetch attempt.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota + 1
	OutcomeSoftBlock
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeSoftBlock:
		return "soft_block"
	case OutcomeError:
		return "error"
	}
	return "unknown"
}

// Outcome is the result of one attempt. Body is set whenever a response was
// received, including soft blocks.
type Outcome struct {
	Kind     OutcomeKind
	Status   int
	Body     []byte
	Identity Identity
	Err      error
}

// Fetcher performs one direct attempt with the given identity.
type Fetcher interface {
	Fetch(ctx context.Context, target string, id Identity) Outcome
}

// ClientOptions configures a Client.
type ClientOptions struct {
	// Homepage, when set, is fetched before every attempt to seed cookies.
	Homepage string
	// Cookies is a raw "k=v; k2=v2" string sent on every request, typically
	// a previously obtained clearance token.
	Cookies       string
	Detector      BlockDetector
	Timeout       time.Duration
	WarmupTimeout time.Duration
	// Transport builds the base transport of a session. Its TLS dialing is
	// replaced by the browser handshake; RootCAs, InsecureSkipVerify and
	// ServerName of its TLSClientConfig are kept.
	Transport func() *http.Transport
}

// Client issues single GETs that present a browser's TLS fingerprint
// (BrowserHello).
type Client struct {
	opts ClientOptions
}

func NewClient(opts ClientOptions) *Client {
	if opts.Detector == nil {
		opts.Detector = NewMarkerDetector()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.WarmupTimeout <= 0 {
		opts.WarmupTimeout = DefaultWarmupTimeout
	}
	if opts.Transport == nil {
		opts.Transport = baseTransport
	}
	return &Client{opts: opts}
}

// Fetch performs an optional homepage warm-up and then the real GET, both in
// one session bound to id. It never returns an error; failures are reported in
// the Outcome.
func (c *Client) Fetch(ctx context.Context, target string, id Identity) Outcome {
	out := Outcome{Identity: id}

	session, err := c.session(id)
	if err != nil {
		out.Kind = OutcomeError
		out.Err = err
		return out
	}

	if c.opts.Homepage != "" {
		c.warmUp(ctx, session)
	}

	resp, err := session.R().SetContext(ctx).Get(target)
	if err != nil {
		out.Kind = OutcomeError
		out.Err = eris.Wrapf(err, "fetch: get %s", target)
		return out
	}

	out.Status = resp.StatusCode()
	out.Body = resp.Body()
	if out.Status != http.StatusOK {
		out.Kind = OutcomeError
		out.Err = eris.Errorf("fetch: status %d for %s", out.Status, target)
		return out
	}
	if marker, blocked := c.opts.Detector.Detect(out.Body); blocked {
		out.Kind = OutcomeSoftBlock
		out.Err = eris.Errorf("fetch: challenge page (%s) for %s", marker, target)
		return out
	}
	out.Kind = OutcomeSuccess
	return out
}

// warmUp is fire-and-forget: its only effect is whatever cookies the
// homepage sets in the session jar.
func (c *Client) warmUp(ctx context.Context, session *resty.Client) {
	wctx, cancel := context.WithTimeout(ctx, c.opts.WarmupTimeout)
	defer cancel()
	if _, err := session.R().SetContext(wctx).Get(c.opts.Homepage); err != nil {
		zap.L().Debug("fetch: warm-up failed", zap.String("homepage", c.opts.Homepage), zap.Error(err))
	}
}

func (c *Client) session(id Identity) (*resty.Client, error) {
	proxy, err := parseProxy(id.Proxy)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: cookie jar")
	}

	ua := id.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	lang := id.AcceptLanguage
	if lang == "" {
		lang = DefaultAcceptLanguages[0]
	}

	session := resty.New()
	session.SetCookieJar(jar)
	session.SetTransport(browserTransport(c.opts.Transport(), proxy))
	session.SetTimeout(c.opts.Timeout)
	session.SetHeaders(map[string]string{
		"User-Agent":                ua,
		"Accept":                    defaultAccept,
		"Accept-Language":           lang,
		"Accept-Encoding":           "gzip",
		"Referer":                   defaultReferer,
		"Cache-Control":             "no-cache",
		"Pragma":                    "no-cache",
		"Upgrade-Insecure-Requests": "1",
	})
	if c.opts.Cookies != "" {
		session.SetHeader("Cookie", c.opts.Cookies)
	}
	return session, nil
}

func baseTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 25 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
	}
}
