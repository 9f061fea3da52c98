package netutil

import (
	"context"
	"net"
	"net/http"
	"time"
)

// ClientOptions tunes NewHTTPClient. Zero fields fall back to defaults.
type ClientOptions struct {
	Timeout      time.Duration
	DialTimeout  time.Duration
	Retries      int
	RetryBackoff time.Duration
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.Retries <= 0 {
		o.Retries = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	return o
}

// BuildHTTPClient returns an HTTP client tuned for chat API calls.
func BuildHTTPClient() *http.Client {
	return NewHTTPClient(ClientOptions{})
}

// NewHTTPClient builds a pooled client whose transport retries dial and
// timeout failures.
func NewHTTPClient(opts ClientOptions) *http.Client {
	opts = opts.withDefaults()
	dialer := &net.Dialer{Timeout: opts.DialTimeout, KeepAlive: 30 * time.Second}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   opts.DialTimeout,
		ResponseHeaderTimeout: opts.Timeout / 3,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: NewRetryTransport(base, opts.Retries, opts.RetryBackoff),
	}
}

// NewRetryTransport wraps base so that transient network failures are retried
// with linear backoff. Requests with a body are retried only when GetBody is set.
func NewRetryTransport(base http.RoundTripper, maxRetries int, backoff time.Duration) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &retryTransport{base: base, retries: max(maxRetries, 0), backoff: backoff}
}

type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	for attempt := 1; attempt <= t.retries && err != nil && ShouldRetry(err); attempt++ {
		next, ok := rewind(req)
		if !ok {
			break
		}
		if werr := wait(req.Context(), t.backoff*time.Duration(attempt)); werr != nil {
			return nil, werr
		}
		resp, err = t.base.RoundTrip(next)
	}
	return resp, err
}

// rewind clones req for another attempt. A body that cannot be replayed
// makes the request single-shot.
func rewind(req *http.Request) (*http.Request, bool) {
	next := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return next, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	next.Body = body
	return next, true
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
