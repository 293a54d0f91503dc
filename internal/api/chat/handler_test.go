package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/futig/docchat/internal/api/middleware"
	"github.com/futig/docchat/internal/config"
	"github.com/futig/docchat/internal/entity"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsecase struct {
	session    *entity.SessionDTO
	sessionErr error
	backendErr error

	uploaded    []entity.FileData
	intake      *entity.IntakeResult
	question    string
	askErr      error
	cleared     bool
	format      entity.ExportFormat
	lastSession string
}

func (s *stubUsecase) Session(ctx context.Context, sessionID string) (*entity.SessionDTO, error) {
	s.lastSession = sessionID
	return s.session, s.sessionErr
}

func (s *stubUsecase) UploadDocuments(ctx context.Context, sessionID string, files []entity.FileData) (*entity.IntakeResult, error) {
	s.lastSession = sessionID
	s.uploaded = files
	return s.intake, nil
}

func (s *stubUsecase) Ask(ctx context.Context, sessionID, question string) (*entity.AskResult, error) {
	s.lastSession = sessionID
	s.question = question
	if s.askErr != nil {
		return nil, s.askErr
	}
	return &entity.AskResult{
		Mode:     entity.ModeLLMOnly,
		Question: entity.ConversationTurn{Role: entity.RoleUser, Message: question},
		Answer:   entity.ConversationTurn{Role: entity.RoleAI, Message: "answer"},
		Turns:    2,
	}, nil
}

func (s *stubUsecase) ClearHistory(ctx context.Context, sessionID string) (*entity.SessionDTO, error) {
	s.cleared = true
	return s.session, nil
}

func (s *stubUsecase) Export(ctx context.Context, sessionID string, format entity.ExportFormat) (*entity.ExportResult, error) {
	s.format = format
	return &entity.ExportResult{Filename: "conversation.md", ContentType: "text/markdown", Content: []byte("# t")}, nil
}

func (s *stubUsecase) BackendError() error { return s.backendErr }

func newTestRouter(uc ChatUsecase) http.Handler {
	h := NewHandler(uc, config.FileUploadConfig{
		MaxFileSize:   1 << 20,
		MaxTotalSize:  1 << 21,
		MaxFileCount:  5,
		MaxUploadSize: 1 << 20,
	})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithSessionID(r.Context(), "web_test")))
		})
	})
	RegisterRoutes(r, h)
	return r
}

func defaultSession() *entity.SessionDTO {
	return &entity.SessionDTO{
		SessionID:    "web_test",
		CollectionID: "col-1",
		Mode:         entity.ModeLLMOnly,
		Documents:    []string{},
		Conversation: []entity.ConversationTurn{},
	}
}

func TestPage_RendersEmptySession(t *testing.T) {
	uc := &stubUsecase{session: defaultSession()}
	rec := httptest.NewRecorder()

	newTestRouter(uc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Chat with your documents")
	assert.Contains(t, body, `name="files"`)
	assert.NotContains(t, body, "Clear chat history")
	assert.NotContains(t, body, "Uploaded documents")
	assert.Equal(t, "web_test", uc.lastSession)
}

func TestPage_RendersTranscriptInOrder(t *testing.T) {
	session := defaultSession()
	session.Documents = []string{"a.pdf"}
	session.Conversation = []entity.ConversationTurn{
		{Role: entity.RoleUser, Message: "first <question>"},
		{Role: entity.RoleAI, Message: "first answer"},
	}
	rec := httptest.NewRecorder()

	newTestRouter(&stubUsecase{session: session}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?notice=done", nil))

	body := rec.Body.String()
	assert.Contains(t, body, "Clear chat history")
	assert.Contains(t, body, "a.pdf")
	assert.Contains(t, body, "done")
	assert.Contains(t, body, "first &lt;question&gt;")
	assert.Less(t, strings.Index(body, "first &lt;question&gt;"), strings.Index(body, "first answer"))
}

func TestPage_DegradedBanner(t *testing.T) {
	uc := &stubUsecase{
		sessionErr: fmt.Errorf("%w: %w", entity.ErrBackendUnavailable, entity.ErrMissingCredentials),
		backendErr: entity.ErrMissingCredentials,
	}
	rec := httptest.NewRecorder()

	newTestRouter(uc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "not configured")
	assert.Contains(t, rec.Body.String(), entity.ErrMissingCredentials.Error())
}

func TestGetSession_BackendUnavailable(t *testing.T) {
	uc := &stubUsecase{sessionErr: fmt.Errorf("%w: %w", entity.ErrBackendUnavailable, entity.ErrMissingCredentials)}
	rec := httptest.NewRecorder()

	newTestRouter(uc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body entity.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "document service is not available", body.Message)
}

func multipartBody(t *testing.T, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("content of " + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadDocuments_JSON(t *testing.T) {
	uc := &stubUsecase{intake: &entity.IntakeResult{Uploaded: []string{"a.pdf", "b.pdf"}, Skipped: []string{}, Ingested: true}}
	body, contentType := multipartBody(t, "a.pdf", "b.pdf")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	newTestRouter(uc).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, uc.uploaded, 2)
	assert.Equal(t, "a.pdf", uc.uploaded[0].Filename)
	assert.Equal(t, "content of a.pdf", string(uc.uploaded[0].Content))

	var result entity.IntakeResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.True(t, result.Ingested)
}

func TestUploadDocuments_FormRedirects(t *testing.T) {
	uc := &stubUsecase{intake: &entity.IntakeResult{Uploaded: []string{"a.pdf"}, Ingested: true}}
	body, contentType := multipartBody(t, "a.pdf")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rec := httptest.NewRecorder()
	newTestRouter(uc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/", loc.Path)
	assert.Equal(t, "Successfully processed your documents", loc.Query().Get("notice"))
}

func TestUploadDocuments_NotMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	newTestRouter(&stubUsecase{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessage(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		accept      string
		wantStatus  int
	}{
		{"json", "application/json", `{"message":"What is X?"}`, "", http.StatusOK},
		{"form from page", "application/x-www-form-urlencoded", "message=What+is+X%3F", "text/html", http.StatusSeeOther},
		{"broken json", "application/json", `{`, "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &stubUsecase{}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			rec := httptest.NewRecorder()
			newTestRouter(uc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusBadRequest {
				assert.Equal(t, "What is X?", uc.question)
			}
		})
	}
}

func TestSendMessage_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"empty question", entity.ErrEmptyQuestion, http.StatusBadRequest},
		{"backend unavailable", entity.ErrBackendUnavailable, http.StatusServiceUnavailable},
		{"service failure", fmt.Errorf("%w: boom", entity.ErrRAGService), http.StatusBadGateway},
		{"connection failure", fmt.Errorf("%w: boom", entity.ErrChatConnection), http.StatusBadGateway},
		{"timeout", fmt.Errorf("%w: %w", entity.ErrChatConnection, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &stubUsecase{askErr: tt.err}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(`{"message":"q"}`))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			newTestRouter(uc).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestSendMessage_FormErrorRedirectsWithMessage(t *testing.T) {
	uc := &stubUsecase{askErr: fmt.Errorf("%w: boom", entity.ErrRAGService)}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader("message=q"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	newTestRouter(uc).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "document service request failed", loc.Query().Get("error"))
}

func TestClearHistory(t *testing.T) {
	for _, route := range []struct{ method, path string }{
		{http.MethodDelete, "/api/v1/messages"},
		{http.MethodPost, "/api/v1/messages/clear"},
	} {
		t.Run(route.method, func(t *testing.T) {
			uc := &stubUsecase{session: defaultSession()}
			rec := httptest.NewRecorder()
			newTestRouter(uc).ServeHTTP(rec, httptest.NewRequest(route.method, route.path, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.True(t, uc.cleared)
		})
	}
}

func TestExportTranscript(t *testing.T) {
	uc := &stubUsecase{}
	rec := httptest.NewRecorder()
	newTestRouter(uc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/messages/export", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.FormatMarkdown, uc.format)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "conversation.md")

	rec = httptest.NewRecorder()
	newTestRouter(uc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/messages/export?format=html", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, entity.FormatMarkdown, uc.format, "usecase not called for unknown format")
}
