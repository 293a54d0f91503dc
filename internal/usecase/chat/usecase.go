package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/futig/docchat/internal/config"
	"github.com/futig/docchat/internal/entity"
	"github.com/futig/docchat/internal/pkg/formatter"
	"github.com/futig/docchat/internal/pkg/logger"
	"github.com/futig/docchat/internal/pkg/validator"
	"github.com/futig/docchat/internal/repository"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const (
	collectionNamePrefix     = "Collection_"
	deleteCollectionsTimeout = 30 * time.Second
)

// ChatUsecase runs the document intake and question workflows of a chat session
type ChatUsecase struct {
	backend    RagBackend
	backendErr error
	sessions   repository.SessionRepository
	validator  *validator.Validator
	formatters *formatter.Factory
	ragCfg     config.RAGConnectorConfig
	sessionCfg config.SessionConfig
	llmArgs    map[string]any
	logger     *zap.Logger
}

// NewUsecase creates a new chat use case. backend is nil when the RAG client
// could not be built; backendErr then says why and every workflow fails with
// entity.ErrBackendUnavailable.
func NewUsecase(
	backend RagBackend,
	backendErr error,
	sessions repository.SessionRepository,
	validator *validator.Validator,
	formatters *formatter.Factory,
	ragCfg config.RAGConnectorConfig,
	sessionCfg config.SessionConfig,
	logger *zap.Logger,
) *ChatUsecase {
	llmArgs, err := ragCfg.ParsedLLMArgs()
	if err != nil {
		logger.Warn("ignoring invalid LLM arguments", zap.Error(err))
	}

	if backend == nil && backendErr == nil {
		backendErr = entity.ErrMissingCredentials
	}

	return &ChatUsecase{
		backend:    backend,
		backendErr: backendErr,
		sessions:   sessions,
		validator:  validator,
		formatters: formatters,
		ragCfg:     ragCfg,
		sessionCfg: sessionCfg,
		llmArgs:    llmArgs,
		logger:     logger,
	}
}

// BackendError is the reason the RAG client is unavailable, or nil.
func (uc *ChatUsecase) BackendError() error {
	if uc.backend != nil {
		return nil
	}
	return uc.backendErr
}

// Session returns the session view, initializing the session on first access.
func (uc *ChatUsecase) Session(ctx context.Context, sessionID string) (*entity.SessionDTO, error) {
	state, err := uc.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer state.Unlock()

	return toSessionDTO(state), nil
}

// UploadDocuments uploads every file not yet sent in this session, then
// ingests the new uploads into the session collection in one call.
// Files already uploaded are skipped without any service call.
func (uc *ChatUsecase) UploadDocuments(
	ctx context.Context,
	sessionID string,
	files []entity.FileData,
) (*entity.IntakeResult, error) {
	files = sanitizeFiles(files)

	if err := uc.validator.ValidateUpload(files); err != nil {
		return nil, err
	}

	state, err := uc.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer state.Unlock()

	result := &entity.IntakeResult{
		Uploaded: []string{},
		Skipped:  []string{},
	}

	uploadIDs := make([]string, 0, len(files))
	for _, f := range files {
		if state.HasUploaded(f.Filename) {
			result.Skipped = append(result.Skipped, f.Filename)
			continue
		}

		uploadID, err := uc.backend.Upload(ctx, f)
		if err != nil {
			ctxzap.Error(ctx, "failed to upload document",
				zap.String("filename", f.Filename),
				zap.Strings("uploaded_before_failure", result.Uploaded),
				zap.Error(err),
			)
			return nil, err
		}

		uploadIDs = append(uploadIDs, uploadID)
		state.MarkUploaded(f.Filename)
		result.Uploaded = append(result.Uploaded, f.Filename)

		ctxzap.Debug(ctx, "document uploaded",
			zap.String("filename", f.Filename),
			zap.String("upload_id", uploadID),
		)
	}

	if len(uploadIDs) == 0 {
		ctxzap.Info(ctx, "no new documents to ingest", zap.Int("skipped", len(result.Skipped)))
		return result, nil
	}

	if err := uc.backend.IngestUploads(ctx, state.Collection.ID, uploadIDs); err != nil {
		return nil, err
	}
	result.Ingested = true

	ctxzap.Info(ctx, "documents processed successfully",
		zap.String("collection_id", state.Collection.ID),
		zap.Int("uploaded", len(result.Uploaded)),
		zap.Int("skipped", len(result.Skipped)),
	)

	return result, nil
}

// Ask answers a question in the session's chat and records the exchange.
// The transcript is only modified when an answer was received.
func (uc *ChatUsecase) Ask(ctx context.Context, sessionID, question string) (*entity.AskResult, error) {
	if err := uc.validator.ValidateQuestion(question); err != nil {
		return nil, err
	}

	state, err := uc.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer state.Unlock()

	mode, err := uc.retrievalMode(ctx, state)
	if err != nil {
		return nil, err
	}

	ctxzap.Info(ctx, "querying chat session",
		zap.String("chat_session_id", state.ChatSession.ID),
		zap.String("mode", string(mode)),
	)

	conn, err := uc.backend.Connect(ctx, state.ChatSession.ID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			ctxzap.Warn(ctx, "failed to close chat connection", zap.Error(err))
		}
	}()

	queryCtx := ctx
	if uc.ragCfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		queryCtx, cancel = context.WithTimeout(ctx, uc.ragCfg.QueryTimeout)
		defer cancel()
	}

	resp, err := conn.Query(queryCtx, &entity.QueryRequest{
		Message:   question,
		LLM:       uc.ragCfg.LLM,
		LLMArgs:   uc.llmArgs,
		RAGConfig: entity.RAGConfig{RAGType: mode},
	})
	if err != nil {
		return nil, err
	}

	state.AppendExchange(question, resp.Content)
	turns := state.Conversation()

	return &entity.AskResult{
		Mode:     mode,
		Question: turns[len(turns)-2],
		Answer:   turns[len(turns)-1],
		Turns:    len(turns),
	}, nil
}

// ClearHistory empties the transcript. Collection, chat session and
// uploaded documents are kept.
func (uc *ChatUsecase) ClearHistory(ctx context.Context, sessionID string) (*entity.SessionDTO, error) {
	state, err := uc.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer state.Unlock()

	state.ClearConversation()
	ctxzap.Info(ctx, "conversation cleared")

	return toSessionDTO(state), nil
}

// Export renders the transcript in the requested format.
func (uc *ChatUsecase) Export(
	ctx context.Context,
	sessionID string,
	format entity.ExportFormat,
) (*entity.ExportResult, error) {
	f, err := uc.formatters.Create(format)
	if err != nil {
		return nil, err
	}

	state, err := uc.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	turns := state.Conversation()
	state.Unlock()

	content, err := f.Format(turns)
	if err != nil {
		return nil, fmt.Errorf("format transcript: %w", err)
	}

	return &entity.ExportResult{
		Filename:    "conversation_" + time.Now().Format("20060102_150405") + f.FileExtension(),
		ContentType: f.ContentType(),
		Content:     content,
	}, nil
}

// ReleaseSession is called when a session leaves the store. The collection is
// deleted only when configured to.
func (uc *ChatUsecase) ReleaseSession(state *entity.ChatState) {
	if !uc.sessionCfg.DeleteCollectionOnExpiry || uc.backend == nil {
		return
	}

	ctx := logger.Background(uc.logger,
		zap.String("action", "ReleaseSession"),
		zap.String("session_id", state.ID),
	)
	ctx, cancel := context.WithTimeout(ctx, deleteCollectionsTimeout)
	defer cancel()

	if err := uc.backend.DeleteCollections(ctx, []string{state.Collection.ID}); err != nil {
		ctxzap.Error(ctx, "failed to delete collection of expired session",
			zap.String("collection_id", state.Collection.ID),
			zap.Error(err),
		)
	}
}

// acquire returns the locked session state, creating it on first access.
// The caller must Unlock it.
func (uc *ChatUsecase) acquire(ctx context.Context, sessionID string) (*entity.ChatState, error) {
	if uc.backend == nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrBackendUnavailable, uc.backendErr)
	}

	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id", entity.ErrMissingField)
	}

	state, err := uc.sessions.GetOrCreate(ctx, sessionID, func(ctx context.Context) (*entity.ChatState, error) {
		return uc.initSession(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}

	state.Lock()
	return state, nil
}

// initSession creates the collection and its chat session for a new session.
func (uc *ChatUsecase) initSession(ctx context.Context, sessionID string) (*entity.ChatState, error) {
	collection := entity.Collection{
		Name:        collectionNamePrefix + uuid.New().String(),
		Description: "",
	}

	collectionID, err := uc.backend.CreateCollection(ctx, collection.Name, collection.Description)
	if err != nil {
		return nil, err
	}
	collection.ID = collectionID

	chatSessionID, err := uc.backend.CreateChatSession(ctx, collectionID)
	if err != nil {
		if delErr := uc.backend.DeleteCollections(ctx, []string{collectionID}); delErr != nil {
			ctxzap.Warn(ctx, "failed to delete orphaned collection",
				zap.String("collection_id", collectionID),
				zap.Error(delErr),
			)
		}
		return nil, err
	}

	ctxzap.Info(ctx, "chat session initialized",
		zap.String("session_id", sessionID),
		zap.String("collection_id", collectionID),
		zap.String("chat_session_id", chatSessionID),
	)

	return entity.NewChatState(sessionID, collection, entity.ChatSession{
		ID:           chatSessionID,
		CollectionID: collectionID,
	}), nil
}

// retrievalMode picks RAG once the collection has been seen with documents.
// After that the count is not asked again.
func (uc *ChatUsecase) retrievalMode(ctx context.Context, state *entity.ChatState) (entity.RetrievalMode, error) {
	if state.HasDocuments() {
		return entity.ModeRAG, nil
	}

	count, err := uc.backend.CountDocuments(ctx, state.Collection.ID)
	if err != nil {
		return "", err
	}

	if count > 0 {
		state.MarkHasDocuments()
	}
	return state.Mode(), nil
}

// sanitizeFiles returns a copy of files with safe filenames.
func sanitizeFiles(files []entity.FileData) []entity.FileData {
	sanitized := make([]entity.FileData, len(files))
	for i, f := range files {
		f.Filename = validator.SanitizeFilename(f.Filename)
		sanitized[i] = f
	}
	return sanitized
}
