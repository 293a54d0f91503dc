package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestConnector(t *testing.T, handler http.HandlerFunc) *Connector {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewConnector(&ConnectorConfig{
		BaseURL: srv.URL + "/",
		APIKey:  "secret",
		Logger:  zap.NewNop(),
	}, WithRequestLogging())
}

func TestDoRequest_SendsJSONWithAPIKey(t *testing.T) {
	conn := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/collections", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "docs", body["name"])

		w.Write([]byte(`{"id":"c-1"}`))
	})

	var resp struct {
		ID string `json:"id"`
	}
	err := conn.DoRequest(context.Background(), http.MethodPost, "/collections", map[string]string{"name": "docs"}, &resp)
	require.NoError(t, err)
	assert.Equal(t, "c-1", resp.ID)
}

func TestDoRequest_NonSuccessStatus(t *testing.T) {
	conn := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("bad key"))
	})

	err := conn.DoRequest(context.Background(), http.MethodGet, "/collections/x", nil, nil)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Equal(t, "bad key", httpErr.Message)
	assert.False(t, IsTransient(err))
}

func TestDoMultipartRequest(t *testing.T) {
	conn := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		content, _ := io.ReadAll(file)
		assert.Equal(t, "a.pdf", header.Filename)
		assert.Equal(t, "hello", string(content))

		w.Write([]byte(`{"id":"u-1"}`))
	})

	var resp struct {
		ID string `json:"id"`
	}
	err := conn.DoMultipartRequest(context.Background(), http.MethodPut, "/uploads", func(mw *multipart.Writer) error {
		part, err := mw.CreateFormFile("file", "a.pdf")
		if err != nil {
			return err
		}
		_, err = part.Write([]byte("hello"))
		return err
	}, &resp)

	require.NoError(t, err)
	assert.Equal(t, "u-1", resp.ID)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"server error", &HTTPError{StatusCode: 503}, true},
		{"rate limited", &HTTPError{StatusCode: 429}, true},
		{"not found", &HTTPError{StatusCode: 404}, false},
		{"network", &NetworkError{Err: errors.New("connection refused")}, true},
		{"cancelled", &NetworkError{Err: context.Canceled}, false},
		{"other", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestWebSocketURL(t *testing.T) {
	conn := NewConnector(&ConnectorConfig{BaseURL: "https://rag.example.com"})
	assert.Equal(t, "wss://rag.example.com/ws", conn.WebSocketURL("/ws"))

	conn = NewConnector(&ConnectorConfig{BaseURL: "http://localhost:8888/"})
	assert.Equal(t, "ws://localhost:8888/ws", conn.WebSocketURL("/ws"))
}
