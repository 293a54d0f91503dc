package chat

import (
	"context"

	"github.com/futig/docchat/internal/entity"
)

// RagBackend is the hosted RAG service as seen by the chat workflows.
type RagBackend interface {
	CreateCollection(ctx context.Context, name, description string) (string, error)
	CreateChatSession(ctx context.Context, collectionID string) (string, error)
	Upload(ctx context.Context, file entity.FileData) (string, error)
	IngestUploads(ctx context.Context, collectionID string, uploadIDs []string) error
	CountDocuments(ctx context.Context, collectionID string) (int, error)
	DeleteCollections(ctx context.Context, collectionIDs []string) error
	Connect(ctx context.Context, chatSessionID string) (entity.ChatConnection, error)
}
