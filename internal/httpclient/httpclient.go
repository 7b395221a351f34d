package httpclient

import (
	"net/http"
	"time"
)

// Default returns an HTTP client tuned for a single capability-endpoint
// probe against a SAT>IP device: short overall timeout, so an unreachable
// tuner fails fast instead of stalling the scan loop.
func Default() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			ResponseHeaderTimeout: 5 * time.Second,
			ExpectContinueTimeout: 2 * time.Second,
			IdleConnTimeout:       20 * time.Second,
		},
	}
}
