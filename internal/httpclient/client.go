// Package httpclient builds the HTTP client used to download model bundles.
// Requests to loopback, private and link-local addresses are refused unless
// explicitly allowed, both before dialing and on every redirect.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teranos/nrps/errors"
)

const (
	DefaultTimeout      = 5 * time.Minute
	DefaultMaxRedirects = 10
)

// Options configures New. The zero value is the strict default.
type Options struct {
	Timeout      time.Duration
	MaxRedirects int
	// AllowPrivate permits loopback and private network hosts.
	AllowPrivate bool
}

// New returns an http.Client that checks every request URL, including
// redirects, before it is sent.
func New(opts Options) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}

	var base http.RoundTripper = http.DefaultTransport
	if !opts.AllowPrivate {
		dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
		base = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, _, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, errors.Wrap(err, "invalid address")
				}
				// A public name resolving to a private address is refused here.
				ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
				if err != nil {
					return nil, errors.Wrapf(err, "failed to resolve host %q", host)
				}
				for _, ip := range ips {
					if IsPrivateIP(ip) {
						return nil, errors.Newf("private IP address blocked: %s", ip)
					}
				}
				return dialer.DialContext(ctx, network, addr)
			},
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		}
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: checkedTransport{opts: opts, next: base},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= opts.MaxRedirects {
				return errors.Newf("stopped after %d redirects", opts.MaxRedirects)
			}
			return errors.Wrap(Check(req.URL, opts.AllowPrivate), "redirect blocked")
		},
	}
}

// Check reports why u may not be fetched, or nil.
func Check(u *url.URL, allowPrivate bool) error {
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return errors.Newf("scheme %q not allowed (allowed: http, https)", u.Scheme)
	}
	if u.User != nil {
		return errors.New("URL must not carry credentials")
	}

	host := u.Hostname()
	if host == "" {
		return errors.New("URL missing hostname")
	}
	if allowPrivate {
		return nil
	}
	if isLocalhost(host) {
		return errors.New("localhost access blocked")
	}
	if ip := net.ParseIP(host); ip != nil && IsPrivateIP(ip) {
		return errors.Newf("private IP address blocked: %s", host)
	}
	return nil
}

type checkedTransport struct {
	opts Options
	next http.RoundTripper
}

func (t checkedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := Check(req.URL, t.opts.AllowPrivate); err != nil {
		return nil, errors.WithHint(
			errors.Mark(errors.Wrap(err, "request blocked"), errors.ErrInvalidRequest),
			"pass --allow-private to fetch from a local or private host")
	}
	return t.next.RoundTrip(req)
}

var privateV4 = []*net.IPNet{
	mustCIDR("10.0.0.0/8"),
	mustCIDR("172.16.0.0/12"),
	mustCIDR("192.168.0.0/16"),
	mustCIDR("127.0.0.0/8"),
	mustCIDR("169.254.0.0/16"),
	mustCIDR("100.64.0.0/10"),
	mustCIDR("0.0.0.0/8"),
	mustCIDR("224.0.0.0/4"),
	mustCIDR("240.0.0.0/4"),
}

var privateV6 = []*net.IPNet{
	mustCIDR("fc00::/7"),
	mustCIDR("fec0::/10"),
	mustCIDR("2001:db8::/32"),
}

// IsPrivateIP reports whether ip is loopback, private, link-local, multicast
// or otherwise not a public unicast address.
func IsPrivateIP(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		for _, block := range privateV4 {
			if block.Contains(ip4) {
				return true
			}
		}
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsMulticast() || ip.IsUnspecified() {
		return true
	}
	for _, block := range privateV6 {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

func isLocalhost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return host == "localhost" ||
		host == "localhost.localdomain" ||
		strings.HasSuffix(host, ".localhost")
}

func mustCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}
