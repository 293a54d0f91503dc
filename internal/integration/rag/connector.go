package rag

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/futig/docchat/internal/config"
	"github.com/futig/docchat/internal/entity"
	"github.com/futig/docchat/internal/integration/common"
	"github.com/futig/docchat/internal/pkg/retry"
	pkghttp "github.com/futig/docchat/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type Connector struct {
	config    config.RAGConnectorConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

// NewConnector validates the service address and API key and builds a client.
// It returns entity.ErrMissingCredentials when either is absent.
func NewConnector(
	cfg config.RAGConnectorConfig,
	logger *zap.Logger,
) (*Connector, error) {
	if strings.TrimSpace(cfg.Url) == "" || strings.TrimSpace(cfg.Token) == "" {
		return nil, entity.ErrMissingCredentials
	}

	u, err := url.ParseRequestURI(cfg.Url)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid service URL %q", entity.ErrMissingCredentials, cfg.Url)
	}

	// retry-go treats zero attempts as retry forever
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = *retry.DefaultRetryConfig()
	}

	return &Connector{
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger),
		config:    cfg,
		logger:    logger,
	}, nil
}

// CreateCollection creates a collection and returns its id
// POST {collections_endpoint}
func (c *Connector) CreateCollection(ctx context.Context, name, description string) (string, error) {
	ctxzap.Info(ctx, "creating collection in RAG service", zap.String("collection_name", name))

	var resp entity.RAGResourceResponse
	req := &entity.RAGCreateCollectionRequest{Name: name, Description: description}
	if err := c.connector.DoRequest(ctx, http.MethodPost, c.config.CollectionsEndpoint, req, &resp); err != nil {
		return "", fmt.Errorf("%w: create collection: %w", entity.ErrRAGService, err)
	}

	if resp.ID == "" {
		return "", fmt.Errorf("%w: create collection: empty id in response", entity.ErrRAGService)
	}

	ctxzap.Info(ctx, "collection created", zap.String("collection_id", resp.ID))
	return resp.ID, nil
}

// CreateChatSession creates a chat session bound to a collection
// POST {chat_sessions_endpoint}
func (c *Connector) CreateChatSession(ctx context.Context, collectionID string) (string, error) {
	var resp entity.RAGResourceResponse
	req := &entity.RAGCreateChatSessionRequest{CollectionID: collectionID}
	if err := c.connector.DoRequest(ctx, http.MethodPost, c.config.ChatSessionsEndpoint, req, &resp); err != nil {
		return "", fmt.Errorf("%w: create chat session: %w", entity.ErrRAGService, err)
	}

	if resp.ID == "" {
		return "", fmt.Errorf("%w: create chat session: empty id in response", entity.ErrRAGService)
	}

	ctxzap.Info(ctx, "chat session created",
		zap.String("collection_id", collectionID),
		zap.String("chat_session_id", resp.ID),
	)
	return resp.ID, nil
}

// Upload sends one raw file and returns the upload id
// PUT {uploads_endpoint} with multipart/form-data
func (c *Connector) Upload(ctx context.Context, file entity.FileData) (string, error) {
	ctxzap.Debug(ctx, "uploading file to RAG service",
		zap.String("filename", file.Filename),
		zap.Int("size", len(file.Content)),
	)

	prepareBody := func(writer *multipart.Writer) error {
		part, err := writer.CreateFormFile("file", file.Filename)
		if err != nil {
			return fmt.Errorf("create form file: %w", err)
		}

		if _, err := part.Write(file.Content); err != nil {
			return fmt.Errorf("write file content: %w", err)
		}
		return nil
	}

	var resp entity.RAGResourceResponse
	if err := c.connector.DoMultipartRequest(ctx, http.MethodPut, c.config.UploadsEndpoint, prepareBody, &resp); err != nil {
		return "", fmt.Errorf("%w: upload %q: %w", entity.ErrRAGService, file.Filename, err)
	}

	if resp.ID == "" {
		return "", fmt.Errorf("%w: upload %q: empty id in response", entity.ErrRAGService, file.Filename)
	}

	return resp.ID, nil
}

// IngestUploads turns previously uploaded files into collection documents
// POST {ingest_endpoint} with {collection_id} substituted
func (c *Connector) IngestUploads(ctx context.Context, collectionID string, uploadIDs []string) error {
	endpoint := withCollectionID(c.config.IngestEndpoint, collectionID)

	ctxzap.Info(ctx, "ingesting uploads into collection",
		zap.String("collection_id", collectionID),
		zap.Int("upload_count", len(uploadIDs)),
	)

	req := &entity.RAGIngestUploadsRequest{UploadIDs: uploadIDs}
	if err := c.connector.DoRequest(ctx, http.MethodPost, endpoint, req, nil); err != nil {
		ctxzap.Error(ctx, "failed to ingest uploads", zap.Error(err))
		return fmt.Errorf("%w: ingest uploads: %w", entity.ErrRAGService, err)
	}

	ctxzap.Info(ctx, "uploads ingested successfully")
	return nil
}

// CountDocuments returns the number of documents in a collection
// GET {collection_endpoint} with {collection_id} substituted, retried on transient errors
func (c *Connector) CountDocuments(ctx context.Context, collectionID string) (int, error) {
	endpoint := withCollectionID(c.config.CollectionEndpoint, collectionID)

	var resp entity.RAGCollectionResponse
	err := c.config.Retry.Do(ctx, func() error {
		return c.connector.DoRequest(ctx, http.MethodGet, endpoint, nil, &resp)
	}, pkghttp.IsTransient)
	if err != nil {
		return 0, fmt.Errorf("%w: count documents: %w", entity.ErrRAGService, err)
	}

	ctxzap.Debug(ctx, "collection document count",
		zap.String("collection_id", collectionID),
		zap.Int("document_count", resp.DocumentCount),
	)
	return resp.DocumentCount, nil
}

// DeleteCollections removes collections and their documents
// DELETE {collections_endpoint}
func (c *Connector) DeleteCollections(ctx context.Context, collectionIDs []string) error {
	ctxzap.Info(ctx, "deleting collections", zap.Strings("collection_ids", collectionIDs))

	req := &entity.RAGDeleteCollectionsRequest{CollectionIDs: collectionIDs}
	if err := c.connector.DoRequest(ctx, http.MethodDelete, c.config.CollectionsEndpoint, req, nil); err != nil {
		return fmt.Errorf("%w: delete collections: %w", entity.ErrRAGService, err)
	}

	return nil
}

// Connect opens a websocket to the chat session. The caller must Close it.
func (c *Connector) Connect(ctx context.Context, chatSessionID string) (entity.ChatConnection, error) {
	endpoint := c.config.ChatSocketEndpoint + "?chat_session_id=" + url.QueryEscape(chatSessionID)

	var conn *chatConnection
	err := c.config.Retry.Do(ctx, func() error {
		ws, err := c.connector.DialWebSocket(ctx, endpoint)
		if err != nil {
			return err
		}
		conn = newChatConnection(ws, chatSessionID)
		return nil
	}, pkghttp.IsTransient)
	if err != nil {
		return nil, fmt.Errorf("%w: connect to chat session %s: %w", entity.ErrChatConnection, chatSessionID, err)
	}

	ctxzap.Debug(ctx, "chat connection opened", zap.String("chat_session_id", chatSessionID))
	return conn, nil
}

func withCollectionID(endpoint, collectionID string) string {
	return strings.Replace(endpoint, "{collection_id}", url.PathEscape(collectionID), 1)
}
