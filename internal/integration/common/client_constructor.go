package common

import (
	"github.com/futig/docchat/internal/config"
	pkgHTTP "github.com/futig/docchat/pkg/http"
	"go.uber.org/zap"
)

// NewBaseConnector builds the outbound client for a service from its env
// settings. The API key goes out as a bearer token on REST calls and on the
// websocket handshake.
func NewBaseConnector(cfg config.HTTPClientConfig, logger *zap.Logger) *pkgHTTP.Connector {
	opts := []pkgHTTP.Option{
		pkgHTTP.WithRequestTimeout(cfg.RequestTimeout),
		pkgHTTP.WithConnClientTimeout(cfg.ConnTimeout),
		pkgHTTP.WithClientKeepAlive(cfg.KeepAlive),
		pkgHTTP.WithIdleConnTimeout(cfg.IdleConnTimeout),
		pkgHTTP.WithResponseHeaderTimeout(cfg.ResponseHeaderTimeout),
		pkgHTTP.WithTLSHandshakeTimeout(cfg.TLSHandshakeTimeout),
		pkgHTTP.WithMaxIdleConnsPerHost(cfg.MaxIdleConnsPerHost),
		pkgHTTP.WithRequestLogging(),
	}

	if cfg.InsecureSkipVerify {
		logger.Warn("TLS certificate verification disabled", zap.String("url", cfg.Url))
		opts = append(opts, pkgHTTP.WithInsecureSkipVerify(true))
	}

	return pkgHTTP.NewConnector(&pkgHTTP.ConnectorConfig{
		Logger:  logger,
		BaseURL: cfg.Url,
		APIKey:  cfg.Token,
	}, opts...)
}
