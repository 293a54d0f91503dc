package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Connector struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	httpCfg    *httpConfig
	logger     *zap.Logger
}

type ConnectorConfig struct {
	BaseURL string
	APIKey  string
	Logger  *zap.Logger
}

func NewConnector(config *ConnectorConfig, options ...Option) *Connector {
	if config.APIKey != "" {
		options = append(options, WithAPIKey(config.APIKey))
	}

	client, httpCfg := newClient(options...)

	return &Connector{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		httpClient: client,
		httpCfg:    httpCfg,
		logger:     config.Logger,
	}
}

// URL resolves an endpoint against the base URL.
func (c *Connector) URL(endpoint string) string {
	return c.baseURL + endpoint
}

// WebSocketURL resolves an endpoint against the base URL with a ws/wss scheme.
func (c *Connector) WebSocketURL(endpoint string) string {
	url := c.URL(endpoint)
	switch {
	case strings.HasPrefix(url, "https://"):
		return "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		return "ws://" + strings.TrimPrefix(url, "http://")
	default:
		return url
	}
}

// DialWebSocket opens a websocket to the endpoint using the connector's
// timeouts and API key.
func (c *Connector) DialWebSocket(ctx context.Context, endpoint string) (*websocket.Conn, error) {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.httpCfg.tlsHandshakeTimeout + c.httpCfg.dialTimeout,
		TLSClientConfig:  tlsConfig(c.httpCfg),
	}

	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", BearerToken(c.apiKey))
	}

	conn, resp, err := dialer.DialContext(ctx, c.WebSocketURL(endpoint), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			return nil, &HTTPError{StatusCode: resp.StatusCode, Message: string(body)}
		}
		return nil, &NetworkError{Err: err}
	}

	return conn, nil
}

// DoRequest sends reqBody as JSON and decodes a JSON response into respBody.
func (c *Connector) DoRequest(ctx context.Context, method, endpoint string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(jsonData)
		ctx = context.WithValue(ctx, payloadContextKey{}, jsonData)
	}

	contentType := ""
	if reqBody != nil {
		contentType = "application/json"
	}

	return c.do(ctx, method, endpoint, body, contentType, respBody)
}

// DoMultipartRequest builds a multipart body with prepareBody and decodes a
// JSON response into respBody.
func (c *Connector) DoMultipartRequest(ctx context.Context, method, endpoint string, prepareBody func(*multipart.Writer) error, respBody any) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := prepareBody(writer); err != nil {
		return fmt.Errorf("prepare multipart body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	return c.do(ctx, method, endpoint, body, writer.FormDataContentType(), respBody)
}

func (c *Connector) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string, respBody any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.URL(endpoint), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    string(bodyBytes),
		}
	}

	if respBody != nil && len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// HTTPError represents an HTTP error response
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// NetworkError represents a network-level error (connection, timeout, etc.)
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying: network failures and
// 5xx/429 responses.
func IsTransient(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return !errors.Is(netErr.Err, context.Canceled) && !errors.Is(netErr.Err, context.DeadlineExceeded)
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == http.StatusTooManyRequests
	}

	return false
}
