package entity

import "context"

// FileData is a document as received from the user.
type FileData struct {
	Filename string
	Content  []byte
}

type RAGCreateCollectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type RAGCreateChatSessionRequest struct {
	CollectionID string `json:"collection_id"`
}

// RAGResourceResponse is returned by every create/upload call.
type RAGResourceResponse struct {
	ID string `json:"id"`
}

type RAGIngestUploadsRequest struct {
	UploadIDs []string `json:"upload_ids"`
}

type RAGCollectionResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DocumentCount int    `json:"document_count"`
}

type RAGDeleteCollectionsRequest struct {
	CollectionIDs []string `json:"collection_ids"`
}

type RAGConfig struct {
	RAGType RetrievalMode `json:"rag_type"`
}

// QueryRequest is one question sent over a chat connection.
type QueryRequest struct {
	Message   string
	LLM       string
	LLMArgs   map[string]any
	RAGConfig RAGConfig
}

type QueryResponse struct {
	Content   string
	MessageID string
}

// Chat socket frame types
const (
	ChatFrameQuery   = "query"
	ChatFramePartial = "partial"
	ChatFrameFinal   = "final"
	ChatFrameError   = "error"
)

// ChatFrame is the JSON envelope exchanged over the chat websocket.
type ChatFrame struct {
	Type          string         `json:"type"`
	CorrelationID string         `json:"correlation_id"`
	ChatSessionID string         `json:"chat_session_id,omitempty"`
	Message       string         `json:"message,omitempty"`
	LLM           string         `json:"llm,omitempty"`
	LLMArgs       map[string]any `json:"llm_args,omitempty"`
	RAGConfig     *RAGConfig     `json:"rag_config,omitempty"`
	Body          string         `json:"body,omitempty"`
	MessageID     string         `json:"message_id,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// ChatConnection is an open connection to one chat session. It must be closed
// after use.
type ChatConnection interface {
	Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error)
	Close() error
}
