package chat

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/futig/docchat/internal/api/middleware"
	"github.com/futig/docchat/internal/config"
	"github.com/futig/docchat/internal/entity"
	"github.com/futig/docchat/internal/pkg/logger"
	"github.com/futig/docchat/internal/pkg/response"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

const multipartSlack = 1 << 20

type Handler struct {
	usecase ChatUsecase
	cfg     config.FileUploadConfig
	tmpl    *template.Template
}

func NewHandler(usecase ChatUsecase, cfg config.FileUploadConfig) *Handler {
	return &Handler{
		usecase: usecase,
		cfg:     cfg,
		tmpl:    template.Must(template.ParseFS(templateFS, "templates/*.html")),
	}
}

// Page handles GET / - render the chat page
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "Page")

	session, err := h.usecase.Session(ctx, middleware.SessionID(ctx))
	view := toPageView(session)
	view.Notice = r.URL.Query().Get("notice")
	view.Error = r.URL.Query().Get("error")

	if err != nil {
		if errors.Is(err, entity.ErrBackendUnavailable) {
			view.Unavailable = h.usecase.BackendError().Error()
		} else {
			ctxzap.Error(ctx, "failed to initialize session", zap.Error(err))
			view.Error = userMessage(err)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.ExecuteTemplate(w, "chat.html", view); err != nil {
		ctxzap.Error(ctx, "failed to render page", zap.Error(err))
	}
}

// GetSession handles GET /api/v1/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "GetSession")

	session, err := h.usecase.Session(ctx, middleware.SessionID(ctx))
	if err != nil {
		h.handleUsecaseError(ctx, w, r, err)
		return
	}

	response.Success(w, session)
}

// UploadDocuments handles POST /api/v1/documents - multipart field "files"
func (h *Handler) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "UploadDocuments")

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxTotalSize+multipartSlack)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadSize); err != nil {
		ctxzap.Warn(ctx, "failed to parse multipart form", zap.Error(err))
		h.handleUsecaseError(ctx, w, r, errors.Join(entity.ErrInvalidFile, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	ctxzap.Info(ctx, "uploading documents", zap.Int("file_count", len(headers)))

	files, err := toFileData(headers)
	if err != nil {
		h.handleUsecaseError(ctx, w, r, err)
		return
	}

	result, err := h.usecase.UploadDocuments(ctx, middleware.SessionID(ctx), files)
	if err != nil {
		h.handleUsecaseError(ctx, w, r, err)
		return
	}

	if wantsHTML(r) {
		redirectHome(w, r, "notice", intakeNotice(result))
		return
	}
	response.Success(w, result)
}

// SendMessage handles POST /api/v1/messages - form or JSON field "message"
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "SendMessage")

	question, err := readQuestion(r)
	if err != nil {
		ctxzap.Warn(ctx, "failed to decode request body", zap.Error(err))
		h.handleUsecaseError(ctx, w, r, errors.Join(entity.ErrMissingField, err))
		return
	}

	result, err := h.usecase.Ask(ctx, middleware.SessionID(ctx), question)
	if err != nil {
		h.handleUsecaseError(ctx, w, r, err)
		return
	}

	ctxzap.Info(ctx, "question answered",
		zap.String("mode", string(result.Mode)),
		zap.Int("turns", result.Turns),
	)

	if wantsHTML(r) {
		redirectHome(w, r, "", "")
		return
	}
	response.Success(w, result)
}

// ClearHistory handles DELETE /api/v1/messages and POST /api/v1/messages/clear
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "ClearHistory")

	session, err := h.usecase.ClearHistory(ctx, middleware.SessionID(ctx))
	if err != nil {
		h.handleUsecaseError(ctx, w, r, err)
		return
	}

	if wantsHTML(r) {
		redirectHome(w, r, "", "")
		return
	}
	response.Success(w, session)
}

// ExportTranscript handles GET /api/v1/messages/export?format=markdown|pdf|docx
func (h *Handler) ExportTranscript(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "ExportTranscript")

	format := entity.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = entity.FormatMarkdown
	}
	if !format.IsValid() {
		h.handleUsecaseError(ctx, w, r, fmt.Errorf("%w: unsupported export format %q", entity.ErrInvalidFormat, format))
		return
	}

	result, err := h.usecase.Export(ctx, middleware.SessionID(ctx), format)
	if err != nil {
		h.handleUsecaseError(ctx, w, r, err)
		return
	}

	ctxzap.Info(ctx, "transcript exported",
		zap.String("format", string(format)),
		zap.Int("size", len(result.Content)),
	)
	response.Attachment(w, result.Filename, result.ContentType, result.Content)
}

// Helper methods
func (h *Handler) respondError(
	ctx context.Context,
	w http.ResponseWriter,
	r *http.Request,
	status int,
	message string,
	err error,
) {
	if status >= http.StatusInternalServerError {
		ctxzap.Error(ctx, message, zap.Error(err))
	} else {
		ctxzap.Warn(ctx, message, zap.Error(err))
	}

	if wantsHTML(r) {
		redirectHome(w, r, "error", message)
		return
	}
	response.Error(w, status, message)
}

func (h *Handler) handleUsecaseError(ctx context.Context, w http.ResponseWriter, r *http.Request, err error) {
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.As(err, &maxBytesErr):
		h.respondError(ctx, w, r, http.StatusRequestEntityTooLarge, "upload is too large", err)
	case entity.IsValidationError(err):
		h.respondError(ctx, w, r, http.StatusBadRequest, userMessage(err), err)
	case errors.Is(err, entity.ErrBackendUnavailable):
		h.respondError(ctx, w, r, http.StatusServiceUnavailable, "document service is not available", err)
	case errors.Is(err, context.DeadlineExceeded):
		h.respondError(ctx, w, r, http.StatusGatewayTimeout, "document service did not answer in time", err)
	case entity.IsBackendError(err):
		h.respondError(ctx, w, r, http.StatusBadGateway, "document service request failed", err)
	default:
		h.respondError(ctx, w, r, http.StatusInternalServerError, "internal server error", err)
	}
}

// userMessage is the first line of err, safe to show to the user.
func userMessage(err error) string {
	msg, _, _ := strings.Cut(err.Error(), "\n")
	return msg
}

func readQuestion(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req entity.AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", err
		}
		return req.Message, nil
	}
	return r.FormValue("message"), nil
}

// wantsHTML reports whether the request came from the page's forms.
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func redirectHome(w http.ResponseWriter, r *http.Request, key, message string) {
	target := "/"
	if key != "" && message != "" {
		target += "?" + url.Values{key: {message}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
