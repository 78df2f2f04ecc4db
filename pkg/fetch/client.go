package fetch

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient returns a client whose connection pool keeps up to
// maxConnsPerHost idle connections per host, so a batch of parallel downloads
// from one CDN reuses its connections. Timeouts are applied per attempt by
// the Fetcher, not here.
func NewHTTPClient(maxConnsPerHost int) *http.Client {
	if maxConnsPerHost < 1 {
		maxConnsPerHost = 1
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   maxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Transport: transport}
}
