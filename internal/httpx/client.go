package httpx

import (
	"net"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"
)

// RequestTimeout bounds each individual request. There is no deadline across
// a sequence of requests.
const RequestTimeout = 30 * time.Second

var (
	defaultOnce      sync.Once
	defaultTransport *http.Transport
	defaultClient    *http.Client
)

// Default returns a shared HTTP client with sensible timeouts.
func Default() *http.Client {
	defaultOnce.Do(func() {
		defaultTransport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		defaultClient = &http.Client{
			Timeout:   RequestTimeout,
			Transport: defaultTransport,
		}
	})
	return defaultClient
}

// NewSession returns a client with its own cookie jar. Cookies set by one
// response are sent on the following requests made with the same session.
// The transport of base is shared so connections are still pooled.
func NewSession(base *http.Client) *http.Client {
	if base == nil {
		base = Default()
	}
	// cookiejar.New only errors on a bad PublicSuffixList.
	jar, _ := cookiejar.New(nil)
	timeout := base.Timeout
	if timeout == 0 {
		timeout = RequestTimeout
	}
	return &http.Client{
		Transport: base.Transport,
		Jar:       jar,
		Timeout:   timeout,
	}
}

// SpoofChromeHeaders sets a modern Chrome-like header set on the request.
func SpoofChromeHeaders(r *http.Request) {
	r.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	r.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	r.Header.Set("Accept-Language", "en-US,en;q=0.9")
	r.Header.Set("Connection", "keep-alive")
}
