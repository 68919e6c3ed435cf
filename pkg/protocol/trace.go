package protocol

import (
	"crypto/tls"
	"net/http"
	"net/http/httptrace"

	"go.uber.org/zap"
)

// clientTrace returns hooks for verbose logging and connection observation,
// or nil when neither is enabled.
func (a *HTTPAdapter) clientTrace() *httptrace.ClientTrace {
	if !a.cfg.Verbose && a.observer == nil {
		return nil
	}

	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if a.observer != nil {
				a.observer.ConnAcquired(info.Reused)
			}
			if a.cfg.Verbose {
				fields := []zap.Field{
					zap.Bool("reused", info.Reused),
					zap.Bool("was_idle", info.WasIdle),
				}
				if info.Conn != nil {
					fields = append(fields,
						zap.Stringer("local", info.Conn.LocalAddr()),
						zap.Stringer("remote", info.Conn.RemoteAddr()),
					)
				}
				a.logger.Debug("connection acquired", fields...)
			}
		},
	}

	if !a.cfg.Verbose {
		return trace
	}

	log := a.logger
	trace.GetConn = func(hostPort string) {
		log.Debug("getting connection", zap.String("host", hostPort))
	}
	trace.DNSDone = func(info httptrace.DNSDoneInfo) {
		log.Debug("dns resolved", zap.Any("addrs", info.Addrs), zap.Error(info.Err))
	}
	trace.ConnectStart = func(network, addr string) {
		log.Debug("connecting", zap.String("network", network), zap.String("addr", addr))
	}
	trace.ConnectDone = func(network, addr string, err error) {
		log.Debug("connected", zap.String("network", network), zap.String("addr", addr), zap.Error(err))
	}
	trace.TLSHandshakeDone = func(state tls.ConnectionState, err error) {
		log.Debug("tls handshake done",
			zap.String("version", tls.VersionName(state.Version)),
			zap.String("alpn", state.NegotiatedProtocol),
			zap.Error(err),
		)
	}
	trace.GotFirstResponseByte = func() {
		log.Debug("first response byte")
	}

	return trace
}

func withClientTrace(req *http.Request, trace *httptrace.ClientTrace) *http.Request {
	return req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
}
