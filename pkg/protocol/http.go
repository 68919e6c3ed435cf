package protocol

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/publicsuffix"
)

const (
	maxRedirects    = 10
	maxIdleConns    = 100
	idleConnTimeout = 90 * time.Second
	keepAlive       = 30 * time.Second
)

var _ Adapter[*http.Client] = (*HTTPAdapter)(nil)

// HTTPConfig describes how to build an HTTP client and which URL to request.
type HTTPConfig struct {
	URL          string  `yaml:"url"`
	Tunnel       *string `yaml:"tunnel,omitempty"`
	IgnoreCert   bool    `yaml:"ignore_cert"`
	ConnReuse    bool    `yaml:"conn_reuse"`
	StoreCookies bool    `yaml:"store_cookies"`
	Verbose      bool    `yaml:"verbose"`
	HTTP2Only    bool    `yaml:"http2_only"`
}

// Validate checks that URL is an absolute http or https URL.
// The tunnel is checked when the client is built.
func (c HTTPConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("url %q must be absolute", c.URL)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("url %q: unsupported scheme %q", c.URL, u.Scheme)
	}
	return nil
}

// ConnObserver is notified each time a request acquires a connection.
type ConnObserver interface {
	ConnAcquired(reused bool)
}

// Option configures an HTTPAdapter.
type Option func(*HTTPAdapter)

// WithLogger sets the logger for failures and verbose diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(a *HTTPAdapter) {
		if logger != nil {
			a.logger = logger.Named("protocol")
		}
	}
}

// WithConnObserver reports connection acquisition to o.
func WithConnObserver(o ConnObserver) Option {
	return func(a *HTTPAdapter) {
		a.observer = o
	}
}

// HTTPAdapter implements Adapter for HTTP/1.1 and HTTP/2.
type HTTPAdapter struct {
	cfg      HTTPConfig
	logger   *zap.Logger
	observer ConnObserver
	bufPool  sync.Pool
}

// NewHTTPAdapter validates cfg and returns an adapter for it.
func NewHTTPAdapter(cfg HTTPConfig, opts ...Option) (*HTTPAdapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, configError(err)
	}
	if cfg.Tunnel != nil {
		tunnel := *cfg.Tunnel
		cfg.Tunnel = &tunnel
	}

	a := &HTTPAdapter{
		cfg:    cfg,
		logger: zap.NewNop(),
		bufPool: sync.Pool{
			New: func() interface{} {
				buf := make([]byte, 32*1024)
				return &buf
			},
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Config returns a copy of the adapter configuration.
func (a *HTTPAdapter) Config() HTTPConfig {
	cfg := a.cfg
	if cfg.Tunnel != nil {
		tunnel := *cfg.Tunnel
		cfg.Tunnel = &tunnel
	}
	return cfg
}

// BuildClient creates a new HTTP client. It performs no network I/O.
func (a *HTTPAdapter) BuildClient() (*http.Client, error) {
	var proxyURL *url.URL
	if a.cfg.Tunnel != nil {
		u, err := parseTunnel(*a.cfg.Tunnel)
		if err != nil {
			return nil, configError(err)
		}
		proxyURL = u
	}

	tlsCfg := &tls.Config{
		InsecureSkipVerify: a.cfg.IgnoreCert,
	}

	dialer, err := newTunnelDialer(proxyURL, a.cfg.IgnoreCert)
	if err != nil {
		return nil, configError(err)
	}

	var transport http.RoundTripper
	if a.cfg.HTTP2Only {
		transport = a.newHTTP2Transport(tlsCfg, dialer)
	} else {
		transport = a.newHTTP1Transport(tlsCfg, proxyURL)
	}

	client := &http.Client{
		Transport:     transport,
		CheckRedirect: limitRedirects,
	}

	if a.cfg.StoreCookies {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, configError(err)
		}
		client.Jar = jar
	}

	return client, nil
}

// newHTTP1Transport builds an HTTP/1.1 transport.
func (a *HTTPAdapter) newHTTP1Transport(tlsCfg *tls.Config, proxyURL *url.URL) *http.Transport {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   ConnectTimeout,
			KeepAlive: keepAlive,
		}).DialContext,
		TLSHandshakeTimeout: ConnectTimeout,
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConns,
		IdleConnTimeout:     idleConnTimeout,
		DisableCompression:  true,
		TLSClientConfig:     tlsCfg,
	}

	if !a.cfg.ConnReuse {
		// Negative means no idle connections are kept; zero would mean the default of 2.
		transport.MaxIdleConns = 0
		transport.MaxIdleConnsPerHost = -1
	}

	if proxyURL != nil {
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return transport
}

// newHTTP2Transport builds a transport that speaks HTTP/2 with prior
// knowledge and never falls back to HTTP/1. Each request picks cleartext or
// TLS from its own URL scheme, so redirects may cross between the two.
func (a *HTTPAdapter) newHTTP2Transport(tlsCfg *tls.Config, dialer *tunnelDialer) http.RoundTripper {
	dialCleartext := func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
		return dialer.DialContext(ctx, network, addr)
	}
	dialTLS := func(ctx context.Context, network, addr string, cfg *tls.Config) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		return handshakeH2(ctx, conn, cfg)
	}

	newTransport := func(dial func(context.Context, string, string, *tls.Config) (net.Conn, error)) *http2.Transport {
		return &http2.Transport{
			AllowHTTP:          true,
			DialTLSContext:     dial,
			TLSClientConfig:    tlsCfg,
			DisableCompression: true,
			IdleConnTimeout:    idleConnTimeout,
		}
	}

	if a.cfg.ConnReuse {
		return &schemeTransport{
			cleartext: newTransport(dialCleartext),
			tls:       newTransport(dialTLS),
		}
	}

	return &singleUseTransport{
		transport: newTransport(dialCleartext),
		dial: func(ctx context.Context, u *url.URL) (net.Conn, error) {
			if u.Scheme == "http" {
				return dialCleartext(ctx, "tcp", hostPort(u), nil)
			}
			cfg := tlsCfg.Clone()
			cfg.ServerName = u.Hostname()
			cfg.NextProtos = []string{http2.NextProtoTLS}
			return dialTLS(ctx, "tcp", hostPort(u), cfg)
		},
	}
}

// SendRequest issues one GET to the configured URL. Any received response,
// including 4xx and 5xx, is reported as stats.
func (a *HTTPAdapter) SendRequest(ctx context.Context, client *http.Client) (*RequestStats, error) {
	if client == nil {
		return nil, a.fail(configError(errors.New("nil client")))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.URL, nil)
	if err != nil {
		return nil, a.fail(configError(err))
	}
	req.Header.Set("User-Agent", UserAgent)

	if trace := a.clientTrace(); trace != nil {
		req = withClientTrace(req, trace)
	}

	resp, err := client.Do(req)
	if err != nil {
		classified := transportError(err)
		if resp != nil {
			// Only a failed redirect policy returns both a response and an error.
			classified.StatusCode = resp.StatusCode
			resp.Body.Close()
		}
		return nil, a.fail(classified)
	}
	defer resp.Body.Close()

	var contentLength int64
	if resp.ContentLength > 0 {
		contentLength = resp.ContentLength
	}

	if a.cfg.ConnReuse && contentLength > 0 {
		a.drain(resp.Body)
	}

	return NewRequestStatsBuilder().
		BytesProcessed(contentLength).
		Status(statusLine(resp.StatusCode)).
		MustBuild(), nil
}

// fail logs a request failure and returns it.
func (a *HTTPAdapter) fail(err *Error) error {
	a.logger.Error("error sending request",
		zap.String("url", a.cfg.URL),
		zap.Stringer("kind", err.Kind),
		zap.Error(err),
		zap.NamedError("cause", err.Err),
	)
	return err
}

// drain discards a body of known length so the connection can be reused.
func (a *HTTPAdapter) drain(body io.Reader) {
	bufPtr := a.bufPool.Get().(*[]byte)
	defer a.bufPool.Put(bufPtr)

	io.CopyBuffer(io.Discard, body, *bufPtr)
}

func limitRedirects(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	return nil
}

// statusLine renders "<code> <reason>", with a placeholder reason for codes
// that have none.
func statusLine(code int) string {
	text := http.StatusText(code)
	if text == "" {
		text = "<unknown status code>"
	}
	return strconv.Itoa(code) + " " + text
}
