// Package sonar is a minimal client for the analysis server's project
// administration API: validate credentials, check that a project exists,
// create it when it does not.
package sonar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"sonarherd/internal/logging"
)

// Sentinel errors callers classify with errors.Is. Detail is carried in the
// wrapping message.
var (
	// ErrAuth marks rejected credentials: 401/403 responses or a failed
	// authentication validation.
	ErrAuth = errors.New("analysis server rejected credentials")

	// ErrServerUnreachable marks network failures and persistent server
	// errors after retries are exhausted.
	ErrServerUnreachable = errors.New("analysis server unreachable")
)

type Client struct {
	host  string
	httpc *http.Client
	log   logging.Logger

	attempts   int
	retryDelay time.Duration

	lookups singleflight.Group
	known   *existsCache
}

type options struct {
	httpClient *http.Client
	log        logging.Logger
	verbose    bool
	attempts   int
	retryDelay time.Duration
}

type Option func(*options)

// WithLogger attaches a logger; when verbose is also set, every request and
// response is traced at debug level. The token never appears in traces: it
// travels in a header, not the URL.
func WithLogger(log logging.Logger, verbose bool) Option {
	return func(o *options) {
		o.log = log
		o.verbose = verbose
	}
}

// WithHTTPClient substitutes the HTTP client, primarily for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithRetry overrides the retry budget for server calls. attempts counts the
// first try; delay doubles after every failed attempt.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(o *options) {
		o.attempts = attempts
		o.retryDelay = delay
	}
}

// loggingRoundTripper wraps an underlying transport and emits one debug line
// per request/response pair, including latency.
type loggingRoundTripper struct {
	base http.RoundTripper
	log  logging.Logger
}

func (t *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	evt := t.log.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Dur("elapsed", time.Since(start).Truncate(time.Millisecond))
	if err != nil {
		evt.Err(err).Msg("server api")
		return resp, err
	}
	evt.Int("status", resp.StatusCode).Msg("server api")
	return resp, nil
}

// New builds a client for the server at host. The token is sent as a Bearer
// Authorization header on every request.
func New(host, token string, opts ...Option) (*Client, error) {
	if host == "" {
		return nil, errors.New("sonar client: host is required")
	}

	o := &options{attempts: 3, retryDelay: 500 * time.Millisecond}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}

	httpc := o.httpClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	transport := httpc.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if o.verbose {
		transport = &loggingRoundTripper{base: transport, log: o.log}
	}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		transport = &oauth2.Transport{Source: ts, Base: transport}
	}
	httpc = &http.Client{Transport: transport, Timeout: httpc.Timeout}

	return &Client{
		host:       host,
		httpc:      httpc,
		log:        o.log,
		attempts:   o.attempts,
		retryDelay: o.retryDelay,
		known:      newExistsCache(),
	}, nil
}

// do sends the request produced by build, retrying network failures and 5xx
// responses with doubling backoff. Auth rejections return immediately: they
// will not get better by retrying. build runs once per attempt because a
// request body cannot be replayed.
func (c *Client) do(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	delay := c.retryDelay
	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrServerUnreachable, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}

		req, err := build()
		if err != nil {
			return nil, err
		}
		resp, err := c.httpc.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			drain(resp)
			return nil, fmt.Errorf("%w: %s %s returned %d", ErrAuth, req.Method, req.URL.Path, resp.StatusCode)
		}
		if resp.StatusCode >= 500 {
			drain(resp)
			lastErr = fmt.Errorf("%s %s returned %d", req.Method, req.URL.Path, resp.StatusCode)
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrServerUnreachable, lastErr)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
