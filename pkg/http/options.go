package http

import "time"

// Option tunes the client and websocket dialer built by NewConnector.
type Option func(*httpConfig)

// WithConnClientTimeout bounds TCP dialing. The websocket handshake gets the
// same budget on top of the TLS handshake timeout.
func WithConnClientTimeout(timeout time.Duration) Option {
	return func(c *httpConfig) {
		c.dialTimeout = timeout
	}
}

// WithRequestTimeout bounds a whole request. Zero disables the bound.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *httpConfig) {
		c.requestTimeout = timeout
	}
}

func WithClientKeepAlive(keepAlive time.Duration) Option {
	return func(c *httpConfig) {
		c.keepAlive = keepAlive
	}
}

// WithTLSHandshakeTimeout applies to REST calls and the websocket dial.
// Non-positive values keep the default.
func WithTLSHandshakeTimeout(timeout time.Duration) Option {
	return func(c *httpConfig) {
		if timeout > 0 {
			c.tlsHandshakeTimeout = timeout
		}
	}
}

// WithResponseHeaderTimeout bounds the wait for response headers. Ingestion
// answers only once the service has processed every upload, so zero is the
// usual setting.
func WithResponseHeaderTimeout(timeout time.Duration) Option {
	return func(c *httpConfig) {
		c.responseHeaderTimeout = timeout
	}
}

func WithIdleConnTimeout(timeout time.Duration) Option {
	return func(c *httpConfig) {
		c.idleConnTimeout = timeout
	}
}

// WithMaxIdleConnsPerHost keeps at least one idle connection.
func WithMaxIdleConnsPerHost(maxConns int) Option {
	return func(c *httpConfig) {
		if maxConns > 0 {
			c.maxIdleConnsPerHost = maxConns
		}
	}
}

// WithTransport wraps the base round tripper. Later wrappers see requests first.
func WithTransport(transport TransportFunc) Option {
	return func(c *httpConfig) {
		c.transports = append(c.transports, transport)
	}
}

// WithInsecureSkipVerify disables certificate checks for REST calls and the
// websocket dial, for self-hosted services with private certificates.
func WithInsecureSkipVerify(skip bool) Option {
	return func(c *httpConfig) {
		c.insecureSkipVerify = skip
	}
}
