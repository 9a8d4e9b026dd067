package fetch

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"net"
	"net/http"
	"net/url"
	"time"

	utls "github.com/refraction-networking/utls"
	"github.com/rotisserie/eris"
)

// BrowserHello is the ClientHello every session presents. It matches the
// Chrome release of DefaultUserAgent.
var BrowserHello = utls.HelloChrome_120

// browserTransport returns a copy of base whose TLS connections perform a
// Chrome handshake. HTTPS through a proxy is tunnelled with CONNECT so the
// handshake with the origin is still ours. Trust settings of
// base.TLSClientConfig are carried over.
func browserTransport(base *http.Transport, proxy *url.URL) *http.Transport {
	t := base.Clone()
	dial := t.DialContext
	if dial == nil {
		dial = (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext
	}
	d := &browserDialer{trust: t.TLSClientConfig, proxy: proxy, dial: dial}
	t.DialTLSContext = d.DialTLSContext

	// The parroted hello only offers http/1.1, so HTTP/2 is never negotiated.
	t.ForceAttemptHTTP2 = false
	t.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}

	t.Proxy = nil
	if proxy != nil {
		t.Proxy = func(r *http.Request) (*url.URL, error) {
			if r.URL.Scheme == "https" {
				return nil, nil
			}
			return proxy, nil
		}
	}
	return t
}

type browserDialer struct {
	trust *tls.Config
	proxy *url.URL
	dial  func(ctx context.Context, network, addr string) (net.Conn, error)
}

func (d *browserDialer) DialTLSContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: tls address %q", addr)
	}

	var conn net.Conn
	if d.proxy != nil {
		conn, err = d.tunnel(ctx, network, addr)
	} else {
		conn, err = d.dial(ctx, network, addr)
	}
	if err != nil {
		return nil, err
	}

	cfg := &utls.Config{ServerName: host}
	if d.trust != nil {
		cfg.RootCAs = d.trust.RootCAs
		cfg.InsecureSkipVerify = d.trust.InsecureSkipVerify
		if d.trust.ServerName != "" {
			cfg.ServerName = d.trust.ServerName
		}
	}

	spec, err := browserSpec()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	uconn := utls.UClient(conn, cfg, utls.HelloCustom)
	if err := uconn.ApplyPreset(&spec); err != nil {
		_ = conn.Close()
		return nil, eris.Wrap(err, "fetch: apply client hello")
	}
	if err := uconn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, eris.Wrapf(err, "fetch: tls handshake with %s", addr)
	}
	return uconn, nil
}

// browserSpec builds a fresh spec per connection; specs hold per-handshake
// extension state.
func browserSpec() (utls.ClientHelloSpec, error) {
	spec, err := utls.UTLSIdToSpec(BrowserHello)
	if err != nil {
		return spec, eris.Wrap(err, "fetch: client hello spec")
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}
	return spec, nil
}

// tunnel opens a CONNECT tunnel to addr through the proxy.
func (d *browserDialer) tunnel(ctx context.Context, network, addr string) (net.Conn, error) {
	proxyAddr := d.proxy.Host
	if d.proxy.Port() == "" {
		port := "80"
		if d.proxy.Scheme == "https" {
			port = "443"
		}
		proxyAddr = net.JoinHostPort(d.proxy.Hostname(), port)
	}

	conn, err := d.dial(ctx, network, proxyAddr)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: dial proxy %s", proxyAddr)
	}
	switch d.proxy.Scheme {
	case "http":
	case "https":
		conn = tls.Client(conn, &tls.Config{ServerName: d.proxy.Hostname()})
	default:
		_ = conn.Close()
		return nil, eris.Errorf("fetch: unsupported proxy scheme %q", d.proxy.Scheme)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
		defer func() { _ = conn.SetDeadline(time.Time{}) }()
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if u := d.proxy.User; u != nil {
		pw, _ := u.Password()
		req.Header.Set("Proxy-Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(u.Username()+":"+pw)))
	}
	if err := req.Write(conn); err != nil {
		_ = conn.Close()
		return nil, eris.Wrap(err, "fetch: proxy connect")
	}
	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		_ = conn.Close()
		return nil, eris.Wrap(err, "fetch: proxy connect response")
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_ = conn.Close()
		return nil, eris.Errorf("fetch: proxy connect status %d", resp.StatusCode)
	}
	return conn, nil
}

func parseProxy(proxy string) (*url.URL, error) {
	if proxy == "" {
		return nil, nil
	}
	u, err := url.Parse(proxy)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: parse proxy %q", proxy)
	}
	if u.Host == "" {
		return nil, eris.Errorf("fetch: proxy %q has no host", proxy)
	}
	return u, nil
}
