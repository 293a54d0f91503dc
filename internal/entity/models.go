package entity

import (
	"sync"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// ConversationTurn is one message in the transcript.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Message string `json:"message"`
}

// RetrievalMode selects whether a query is answered with retrieved document
// content or by the language model alone.
type RetrievalMode string

const (
	ModeRAG     RetrievalMode = "rag"
	ModeLLMOnly RetrievalMode = "llm_only"
)

// Collection is the external service's named container of ingested documents.
type Collection struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ChatSession is the external conversational context bound to one collection.
type ChatSession struct {
	ID           string `json:"id"`
	CollectionID string `json:"collection_id"`
}

// ChatState is everything one UI session owns: its collection, chat session,
// uploaded document names and transcript.
//
// Callers hold the state lock for the duration of a workflow. The transcript
// only grows by whole exchanges or is cleared; the uploaded set only grows.
type ChatState struct {
	mu sync.Mutex

	ID          string
	Collection  Collection
	ChatSession ChatSession
	CreatedAt   time.Time

	uploaded     []string
	uploadedSet  map[string]struct{}
	conversation []ConversationTurn
	hasDocuments bool
}

func NewChatState(id string, collection Collection, chatSession ChatSession) *ChatState {
	return &ChatState{
		ID:          id,
		Collection:  collection,
		ChatSession: chatSession,
		CreatedAt:   time.Now(),
		uploadedSet: make(map[string]struct{}),
	}
}

func (s *ChatState) Lock()   { s.mu.Lock() }
func (s *ChatState) Unlock() { s.mu.Unlock() }

// HasUploaded reports whether a document with this filename was already sent.
func (s *ChatState) HasUploaded(filename string) bool {
	_, ok := s.uploadedSet[filename]
	return ok
}

// MarkUploaded records filename. Returns false if it was already recorded.
func (s *ChatState) MarkUploaded(filename string) bool {
	if s.HasUploaded(filename) {
		return false
	}
	s.uploadedSet[filename] = struct{}{}
	s.uploaded = append(s.uploaded, filename)
	return true
}

// UploadedDocuments returns the uploaded filenames in upload order.
func (s *ChatState) UploadedDocuments() []string {
	return append([]string(nil), s.uploaded...)
}

// Conversation returns a copy of the transcript.
func (s *ChatState) Conversation() []ConversationTurn {
	return append([]ConversationTurn(nil), s.conversation...)
}

// AppendExchange adds a user question and its answer, in that order.
func (s *ChatState) AppendExchange(question, answer string) {
	s.conversation = append(s.conversation,
		ConversationTurn{Role: RoleUser, Message: question},
		ConversationTurn{Role: RoleAI, Message: answer},
	)
}

// ClearConversation empties the transcript. Collection, chat session and
// uploaded documents are untouched.
func (s *ChatState) ClearConversation() {
	s.conversation = nil
}

// HasDocuments reports whether the collection was ever seen with documents.
func (s *ChatState) HasDocuments() bool {
	return s.hasDocuments
}

// MarkHasDocuments switches the session to RAG mode for good.
func (s *ChatState) MarkHasDocuments() {
	s.hasDocuments = true
}

// Mode is the retrieval mode implied by what has been observed so far.
func (s *ChatState) Mode() RetrievalMode {
	if s.hasDocuments {
		return ModeRAG
	}
	return ModeLLMOnly
}
