package rag

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/futig/docchat/internal/config"
	"github.com/futig/docchat/internal/entity"
	pkgRetry "github.com/futig/docchat/internal/pkg/retry"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeService emulates the hosted RAG service over HTTP and websocket.
type fakeService struct {
	mu            sync.Mutex
	countReplies  []int
	countCalls    int
	countFailures int
	ingested      []string
	deleted       []string
	lastQuery     entity.ChatFrame
	answer        func(q entity.ChatFrame, ws *websocket.Conn)
}

func (f *fakeService) set(fn func(f *fakeService)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type fakeSnapshot struct {
	countCalls int
	ingested   []string
	deleted    []string
	lastQuery  entity.ChatFrame
}

func (f *fakeService) snapshot() fakeSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeSnapshot{
		countCalls: f.countCalls,
		ingested:   append([]string(nil), f.ingested...),
		deleted:    append([]string(nil), f.deleted...),
		lastQuery:  f.lastQuery,
	}
}

func newFakeService(t *testing.T) (*fakeService, *httptest.Server) {
	f := &fakeService{}
	f.answer = func(q entity.ChatFrame, ws *websocket.Conn) {
		ws.WriteJSON(entity.ChatFrame{Type: entity.ChatFramePartial, CorrelationID: q.CorrelationID, Body: "par"})
		ws.WriteJSON(entity.ChatFrame{Type: entity.ChatFrameFinal, CorrelationID: q.CorrelationID, Body: "answer to " + q.Message, MessageID: "m-1"})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		var req entity.RAGCreateCollectionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Collection_test", req.Name)
		w.Write([]byte(`{"id":"col-1"}`))
	})
	mux.HandleFunc("DELETE /api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		var req entity.RAGDeleteCollectionsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.deleted = append(f.deleted, req.CollectionIDs...)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/v1/chats", func(w http.ResponseWriter, r *http.Request) {
		var req entity.RAGCreateChatSessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "col-1", req.CollectionID)
		w.Write([]byte(`{"id":"chat-1"}`))
	})
	mux.HandleFunc("PUT /api/v1/uploads", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.NotEmpty(t, content)
		w.Write([]byte(`{"id":"up-` + header.Filename + `"}`))
	})
	mux.HandleFunc("POST /api/v1/collections/{id}/ingest", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "col-1", r.PathValue("id"))
		var req entity.RAGIngestUploadsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.ingested = append(f.ingested, req.UploadIDs...)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/v1/collections/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.countCalls++
		if f.countFailures > 0 {
			f.countFailures--
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		count := 0
		if len(f.countReplies) > 0 {
			count = f.countReplies[0]
			f.countReplies = f.countReplies[1:]
		}
		json.NewEncoder(w).Encode(entity.RAGCollectionResponse{ID: r.PathValue("id"), DocumentCount: count})
	})

	upgrader := websocket.Upgrader{}
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "chat-1", r.URL.Query().Get("chat_session_id"))

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		for {
			var q entity.ChatFrame
			if err := ws.ReadJSON(&q); err != nil {
				return
			}
			f.mu.Lock()
			f.lastQuery = q
			answer := f.answer
			f.mu.Unlock()
			answer(q, ws)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func testConfig(url string) config.RAGConnectorConfig {
	return config.RAGConnectorConfig{
		HTTPClientConfig: config.HTTPClientConfig{
			Url:         url,
			Token:       "sk-test",
			ConnTimeout: 5 * time.Second,
		},
		CollectionsEndpoint:  "/api/v1/collections",
		CollectionEndpoint:   "/api/v1/collections/{collection_id}",
		ChatSessionsEndpoint: "/api/v1/chats",
		UploadsEndpoint:      "/api/v1/uploads",
		IngestEndpoint:       "/api/v1/collections/{collection_id}/ingest",
		ChatSocketEndpoint:   "/ws",
		LLM:                  "gpt-4-1106-preview",
		Retry:                pkgRetry.RetryConfig{Attempts: 3, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}
}

func newTestConnector(t *testing.T) (*fakeService, *Connector) {
	f, srv := newFakeService(t)
	c, err := NewConnector(testConfig(srv.URL), zap.NewNop())
	require.NoError(t, err)
	return f, c
}

func TestNewConnector_MissingCredentials(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		token string
	}{
		{"no address", "", "sk-test"},
		{"no api key", "https://rag.example.com", ""},
		{"blank api key", "https://rag.example.com", "   "},
		{"relative address", "rag.example.com", "sk-test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(tt.url)
			cfg.Token = tt.token

			c, err := NewConnector(cfg, zap.NewNop())
			assert.Nil(t, c)
			assert.ErrorIs(t, err, entity.ErrMissingCredentials)
		})
	}
}

func TestConnector_CollectionLifecycle(t *testing.T) {
	f, c := newTestConnector(t)
	ctx := context.Background()

	collectionID, err := c.CreateCollection(ctx, "Collection_test", "")
	require.NoError(t, err)
	assert.Equal(t, "col-1", collectionID)

	chatID, err := c.CreateChatSession(ctx, collectionID)
	require.NoError(t, err)
	assert.Equal(t, "chat-1", chatID)

	uploadID, err := c.Upload(ctx, entity.FileData{Filename: "a.pdf", Content: []byte("%PDF")})
	require.NoError(t, err)
	assert.Equal(t, "up-a.pdf", uploadID)

	require.NoError(t, c.IngestUploads(ctx, collectionID, []string{uploadID}))
	assert.Equal(t, []string{"up-a.pdf"}, f.snapshot().ingested)

	require.NoError(t, c.DeleteCollections(ctx, []string{collectionID}))
	assert.Equal(t, []string{"col-1"}, f.snapshot().deleted)
}

func TestConnector_CountDocumentsRetriesTransientFailures(t *testing.T) {
	f, c := newTestConnector(t)
	f.set(func(f *fakeService) {
		f.countFailures = 2
		f.countReplies = []int{4}
	})

	count, err := c.CountDocuments(context.Background(), "col-1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Equal(t, 3, f.snapshot().countCalls)
}

func TestConnector_CountDocumentsGivesUp(t *testing.T) {
	f, c := newTestConnector(t)
	f.set(func(f *fakeService) { f.countFailures = 10 })

	_, err := c.CountDocuments(context.Background(), "col-1")
	assert.ErrorIs(t, err, entity.ErrRAGService)
	assert.Equal(t, 3, f.snapshot().countCalls)
}

func TestConnector_QueryOverChatConnection(t *testing.T) {
	f, c := newTestConnector(t)
	ctx := context.Background()

	conn, err := c.Connect(ctx, "chat-1")
	require.NoError(t, err)
	defer conn.Close()

	resp, err := conn.Query(ctx, &entity.QueryRequest{
		Message:   "What is X?",
		LLM:       "gpt-4-1106-preview",
		LLMArgs:   map[string]any{"temperature": 0.0},
		RAGConfig: entity.RAGConfig{RAGType: entity.ModeLLMOnly},
	})
	require.NoError(t, err)
	assert.Equal(t, "answer to What is X?", resp.Content)
	assert.Equal(t, "m-1", resp.MessageID)

	last := f.snapshot().lastQuery
	assert.Equal(t, entity.ChatFrameQuery, last.Type)
	assert.Equal(t, "chat-1", last.ChatSessionID)
	assert.Equal(t, "gpt-4-1106-preview", last.LLM)
	require.NotNil(t, last.RAGConfig)
	assert.Equal(t, entity.ModeLLMOnly, last.RAGConfig.RAGType)
}

func TestConnector_QueryErrorFrame(t *testing.T) {
	f, c := newTestConnector(t)
	f.set(func(f *fakeService) {
		f.answer = func(q entity.ChatFrame, ws *websocket.Conn) {
			ws.WriteJSON(entity.ChatFrame{Type: entity.ChatFrameError, CorrelationID: q.CorrelationID, Error: "model overloaded"})
		}
	})

	conn, err := c.Connect(context.Background(), "chat-1")
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Query(context.Background(), &entity.QueryRequest{Message: "hi"})
	assert.ErrorIs(t, err, entity.ErrRAGService)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestConnector_QueryHonoursContextDeadline(t *testing.T) {
	f, c := newTestConnector(t)
	f.set(func(f *fakeService) {
		f.answer = func(q entity.ChatFrame, ws *websocket.Conn) {}
	})

	conn, err := c.Connect(context.Background(), "chat-1")
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = conn.Query(ctx, &entity.QueryRequest{Message: "hi"})
	assert.ErrorIs(t, err, entity.ErrChatConnection)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestConnector_ConnectRejectedWithoutValidKey(t *testing.T) {
	_, srv := newFakeService(t)
	cfg := testConfig(srv.URL)
	cfg.Token = "wrong"

	c, err := NewConnector(cfg, zap.NewNop())
	require.NoError(t, err)

	_, err = c.Connect(context.Background(), "chat-1")
	assert.ErrorIs(t, err, entity.ErrChatConnection)
}

func TestChatConnection_CloseIsIdempotent(t *testing.T) {
	_, c := newTestConnector(t)

	conn, err := c.Connect(context.Background(), "chat-1")
	require.NoError(t, err)

	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
}
