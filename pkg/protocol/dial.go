package protocol

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/proxy"
)

// parseTunnel parses and checks a proxy URL.
func parseTunnel(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}

	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("proxy url %q: unsupported scheme %q", raw, u.Scheme)
	}

	if u.Hostname() == "" {
		return nil, fmt.Errorf("proxy url %q: missing host", raw)
	}

	return u, nil
}

// tunnelDialer opens TCP connections either directly or through a proxy.
// It is used where the transport has no proxy support of its own.
type tunnelDialer struct {
	direct *net.Dialer
	proxy  *url.URL
	socks  proxy.ContextDialer
	// proxyTLS is used for https proxies.
	proxyTLS *tls.Config
}

func newTunnelDialer(proxyURL *url.URL, ignoreCert bool) (*tunnelDialer, error) {
	d := &tunnelDialer{
		direct: &net.Dialer{
			Timeout:   ConnectTimeout,
			KeepAlive: keepAlive,
		},
		proxy: proxyURL,
	}

	if proxyURL == nil {
		return d, nil
	}

	switch proxyURL.Scheme {
	case "socks5", "socks5h":
		pd, err := proxy.FromURL(proxyURL, d.direct)
		if err != nil {
			return nil, err
		}
		cd, ok := pd.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("proxy url %q: dialer does not support contexts", proxyURL.Redacted())
		}
		d.socks = cd
	case "https":
		d.proxyTLS = &tls.Config{
			ServerName:         proxyURL.Hostname(),
			InsecureSkipVerify: ignoreCert,
		}
	}

	return d, nil
}

// DialContext connects to addr, tunnelling through the proxy when one is set.
func (d *tunnelDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	switch {
	case d.proxy == nil:
		return d.direct.DialContext(ctx, network, addr)
	case d.socks != nil:
		return d.socks.DialContext(ctx, network, addr)
	default:
		return d.connect(ctx, addr)
	}
}

// connect opens an HTTP CONNECT tunnel to addr.
func (d *tunnelDialer) connect(ctx context.Context, addr string) (net.Conn, error) {
	conn, err := d.direct.DialContext(ctx, "tcp", hostPort(d.proxy))
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(ConnectTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	conn.SetDeadline(deadline)

	if d.proxyTLS != nil {
		tlsConn := tls.Client(conn, d.proxyTLS)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		conn = tlsConn
	}

	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	req.Header.Set("User-Agent", UserAgent)
	if user := d.proxy.User; user != nil {
		password, _ := user.Password()
		creds := base64.StdEncoding.EncodeToString([]byte(user.Username() + ":" + password))
		req.Header.Set("Proxy-Authorization", "Basic "+creds)
	}

	if err := req.Write(conn); err != nil {
		conn.Close()
		return nil, err
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		conn.Close()
		return nil, err
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, fmt.Errorf("proxy CONNECT %s: %s", addr, resp.Status)
	}

	conn.SetDeadline(time.Time{})

	if br.Buffered() > 0 {
		return &bufferedConn{Conn: conn, r: br}, nil
	}
	return conn, nil
}

// hostPort returns host:port for u, filling in the scheme's default port.
func hostPort(u *url.URL) string {
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// bufferedConn returns bytes read past the CONNECT response before reading
// from the connection again.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

// handshakeH2 runs a TLS handshake that must negotiate h2 through ALPN.
func handshakeH2(ctx context.Context, conn net.Conn, cfg *tls.Config) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	if p := tlsConn.ConnectionState().NegotiatedProtocol; p != http2.NextProtoTLS {
		tlsConn.Close()
		return nil, fmt.Errorf("http2: unexpected ALPN protocol %q; want %q", p, http2.NextProtoTLS)
	}

	return tlsConn, nil
}

// schemeTransport routes http requests to a cleartext HTTP/2 transport and
// everything else to a TLS one. Each keeps its own connection pool.
type schemeTransport struct {
	cleartext *http2.Transport
	tls       *http2.Transport
}

func (t *schemeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme == "http" {
		return t.cleartext.RoundTrip(req)
	}
	return t.tls.RoundTrip(req)
}

func (t *schemeTransport) CloseIdleConnections() {
	t.cleartext.CloseIdleConnections()
	t.tls.CloseIdleConnections()
}

// singleUseTransport gives every HTTP/2 request its own connection and
// closes it with the response body, so no idle connection is retained.
type singleUseTransport struct {
	transport *http2.Transport
	dial      func(ctx context.Context, u *url.URL) (net.Conn, error)
}

func (t *singleUseTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	trace := httptrace.ContextClientTrace(ctx)

	if trace != nil && trace.GetConn != nil {
		trace.GetConn(hostPort(req.URL))
	}

	conn, err := t.dial(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	cc, err := t.transport.NewClientConn(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if trace != nil && trace.GotConn != nil {
		trace.GotConn(httptrace.GotConnInfo{Conn: conn})
	}

	resp, err := cc.RoundTrip(req)
	if err != nil {
		cc.Close()
		return nil, err
	}

	resp.Body = &closeHookBody{ReadCloser: resp.Body, onClose: func() { cc.Close() }}
	return resp, nil
}

// CloseIdleConnections is a no-op; connections are never idle.
func (t *singleUseTransport) CloseIdleConnections() {}

type closeHookBody struct {
	io.ReadCloser
	onClose func()
}

func (b *closeHookBody) Close() error {
	err := b.ReadCloser.Close()
	b.onClose()
	return err
}
