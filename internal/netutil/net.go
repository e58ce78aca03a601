// Package netutil holds the shared HTTP plumbing: the proxy-aware outbound
// client and client-IP extraction for request logging.
package netutil

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// NewHTTPClient builds the outbound client used for upstream calls. proxyURL
// may be empty; a malformed value is logged and ignored. A zero timeout means
// no client-level timeout (streaming callers rely on context deadlines).
func NewHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil && parsed.Scheme != "" {
			transport.Proxy = http.ProxyURL(parsed)
		} else {
			log.WithField("proxy", proxyURL).Warn("ignoring malformed proxy URL")
		}
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// ExtractIPFromRequest extracts the client IP from proxy headers or the
// remote address.
func ExtractIPFromRequest(r *http.Request) net.IP {
	if r == nil {
		return nil
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		first := strings.TrimSpace(strings.SplitN(xf, ",", 2)[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip
		}
	}
	if xr := r.Header.Get("X-Real-IP"); xr != "" {
		if ip := net.ParseIP(strings.TrimSpace(xr)); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		host = strings.TrimSpace(r.RemoteAddr)
	}
	return net.ParseIP(host)
}

// IPString returns the textual form, empty for nil.
func IPString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}
