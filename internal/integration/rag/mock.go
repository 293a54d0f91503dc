package rag

import (
	"context"
	"fmt"
	"sync"

	"github.com/futig/docchat/internal/entity"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// MockConnector is an in-memory stand-in for the RAG service used for local
// runs without credentials.
type MockConnector struct {
	logger *zap.Logger

	mu           sync.Mutex
	collections  map[string]*mockCollection
	chatSessions map[string]string // chat session id -> collection id
	uploads      map[string]entity.FileData
}

type mockCollection struct {
	name      string
	documents []string
}

func NewMockConnector(logger *zap.Logger) *MockConnector {
	return &MockConnector{
		logger:       logger,
		collections:  make(map[string]*mockCollection),
		chatSessions: make(map[string]string),
		uploads:      make(map[string]entity.FileData),
	}
}

func (m *MockConnector) CreateCollection(ctx context.Context, name, description string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.collections[id] = &mockCollection{name: name}

	ctxzap.Info(ctx, "[MOCK] collection created",
		zap.String("collection_id", id),
		zap.String("collection_name", name),
	)
	return id, nil
}

func (m *MockConnector) CreateChatSession(ctx context.Context, collectionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[collectionID]; !ok {
		return "", fmt.Errorf("%w: collection %s not found", entity.ErrRAGService, collectionID)
	}

	id := uuid.NewString()
	m.chatSessions[id] = collectionID

	ctxzap.Info(ctx, "[MOCK] chat session created", zap.String("chat_session_id", id))
	return id, nil
}

func (m *MockConnector) Upload(ctx context.Context, file entity.FileData) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.uploads[id] = file

	ctxzap.Info(ctx, "[MOCK] file uploaded",
		zap.String("upload_id", id),
		zap.String("filename", file.Filename),
	)
	return id, nil
}

func (m *MockConnector) IngestUploads(ctx context.Context, collectionID string, uploadIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	collection, ok := m.collections[collectionID]
	if !ok {
		return fmt.Errorf("%w: collection %s not found", entity.ErrRAGService, collectionID)
	}

	for _, id := range uploadIDs {
		file, ok := m.uploads[id]
		if !ok {
			return fmt.Errorf("%w: upload %s not found", entity.ErrRAGService, id)
		}
		collection.documents = append(collection.documents, file.Filename)
		delete(m.uploads, id)
	}

	ctxzap.Info(ctx, "[MOCK] uploads ingested",
		zap.String("collection_id", collectionID),
		zap.Int("document_count", len(collection.documents)),
	)
	return nil
}

func (m *MockConnector) CountDocuments(ctx context.Context, collectionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	collection, ok := m.collections[collectionID]
	if !ok {
		return 0, fmt.Errorf("%w: collection %s not found", entity.ErrRAGService, collectionID)
	}
	return len(collection.documents), nil
}

func (m *MockConnector) DeleteCollections(ctx context.Context, collectionIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range collectionIDs {
		delete(m.collections, id)
		for chatID, collectionID := range m.chatSessions {
			if collectionID == id {
				delete(m.chatSessions, chatID)
			}
		}
	}

	ctxzap.Info(ctx, "[MOCK] collections deleted", zap.Strings("collection_ids", collectionIDs))
	return nil
}

func (m *MockConnector) Connect(ctx context.Context, chatSessionID string) (entity.ChatConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	collectionID, ok := m.chatSessions[chatSessionID]
	if !ok {
		return nil, fmt.Errorf("%w: chat session %s not found", entity.ErrChatConnection, chatSessionID)
	}

	return &mockChatConnection{mock: m, collectionID: collectionID}, nil
}

type mockChatConnection struct {
	mock         *MockConnector
	collectionID string
	closed       bool
}

func (c *mockChatConnection) Query(ctx context.Context, req *entity.QueryRequest) (*entity.QueryResponse, error) {
	if c.closed {
		return nil, fmt.Errorf("%w: connection closed", entity.ErrChatConnection)
	}

	c.mock.mu.Lock()
	var documents []string
	if collection, ok := c.mock.collections[c.collectionID]; ok {
		documents = append(documents, collection.documents...)
	}
	c.mock.mu.Unlock()

	ctxzap.Info(ctx, "[MOCK] answering query",
		zap.String("llm", req.LLM),
		zap.String("rag_type", string(req.RAGConfig.RAGType)),
	)

	var content string
	if req.RAGConfig.RAGType == entity.ModeRAG {
		content = fmt.Sprintf("[MOCK] Answer based on %d document(s) %v for: %s", len(documents), documents, req.Message)
	} else {
		content = fmt.Sprintf("[MOCK] Answer without documents for: %s", req.Message)
	}

	return &entity.QueryResponse{
		Content:   content,
		MessageID: uuid.NewString(),
	}, nil
}

func (c *mockChatConnection) Close() error {
	c.closed = true
	return nil
}
