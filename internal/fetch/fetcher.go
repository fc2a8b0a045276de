package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// Default client settings.
const (
	// DefaultTimeout bounds one request including reading the body.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodySize limits how much of a response body is read.
	// Article documents are a few hundred kilobytes at most.
	DefaultMaxBodySize = 10 * 1024 * 1024

	// DefaultUserAgent identifies lorecrawl in requests.
	DefaultUserAgent = "lorecrawl/1.0 (+https://github.com/nao1215/lorecrawl)"

	// maxRedirects stops redirect loops.
	maxRedirects = 10
)

// Fetcher retrieves the body of a URL.
type Fetcher interface {
	// Fetch issues a GET for rawURL and returns the response body.
	// Every error matches ErrTransport.
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// HTTPFetcher is a Fetcher backed by net/http.
type HTTPFetcher struct {
	// client performs the requests.
	client *http.Client

	// userAgent is sent with every request.
	userAgent string

	// maxBodySize caps the bytes read from a response body.
	maxBodySize int64
}

// FetcherOption configures an HTTPFetcher.
type FetcherOption func(*HTTPFetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *HTTPFetcher) {
		f.client = client
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize sets the maximum body size. Non-positive values are ignored.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// NewHTTPFetcher creates an HTTPFetcher. Without WithHTTPClient it uses a
// direct client with DefaultTimeout.
func NewHTTPFetcher(opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{
			Transport: newTransport(nil),
			Timeout:   DefaultTimeout,
		}
	}
	return f
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // best effort
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body of %s: %w", ErrTransport, rawURL, err)
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, fmt.Errorf("%w: %w: body of %s exceeds %d bytes", ErrTransport, ErrBodyTooLarge, rawURL, f.maxBodySize)
	}
	return body, nil
}

// ClientConfig describes how to build the HTTP client.
type ClientConfig struct {
	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration

	// Proxy is an optional SOCKS5 proxy, either "host:port" or
	// "socks5://[user:pass@]host:port". Empty means a direct connection.
	Proxy string
}

// NewHTTPClient builds an HTTP client from cfg.
func NewHTTPClient(cfg ClientConfig) (*http.Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var dialer proxy.ContextDialer
	if cfg.Proxy != "" {
		d, err := socksDialer(cfg.Proxy)
		if err != nil {
			return nil, err
		}
		dialer = d
	}

	return &http.Client{
		Transport: newTransport(dialer),
		Timeout:   timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// newTransport creates a transport that dials through dialer when non-nil.
func newTransport(dialer proxy.ContextDialer) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport
	t.MaxIdleConnsPerHost = 2
	t.IdleConnTimeout = 30 * time.Second
	if dialer != nil {
		t.Proxy = nil
		t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		}
	}
	return t
}

// socksDialer creates a SOCKS5 dialer from a proxy setting.
func socksDialer(setting string) (proxy.ContextDialer, error) {
	raw := setting
	if !strings.Contains(raw, "://") {
		raw = "socks5://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" || u.Port() == "" {
		return nil, ErrInvalidProxyAddress
	}
	if u.Scheme != "socks5" && u.Scheme != "socks5h" {
		return nil, ErrInvalidProxyAddress
	}
	u.Scheme = "socks5"

	d, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("SOCKS5 dialer does not support contexts: %w", ErrInvalidProxyAddress)
	}
	return cd, nil
}
