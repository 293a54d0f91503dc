package entity

// SessionDTO is the JSON view of a chat session.
type SessionDTO struct {
	SessionID     string             `json:"session_id"`
	CollectionID  string             `json:"collection_id"`
	ChatSessionID string             `json:"chat_session_id"`
	Mode          RetrievalMode      `json:"mode"`
	Documents     []string           `json:"documents"`
	Conversation  []ConversationTurn `json:"conversation"`
}

// IntakeResult describes what one upload batch did.
type IntakeResult struct {
	Uploaded []string `json:"uploaded"`
	Skipped  []string `json:"skipped"`
	Ingested bool     `json:"ingested"`
}

// AskRequest is the JSON body of POST /api/v1/messages.
type AskRequest struct {
	Message string `json:"message"`
}

// AskResult is the outcome of one answered question.
type AskResult struct {
	Mode     RetrievalMode    `json:"mode"`
	Question ConversationTurn `json:"question"`
	Answer   ConversationTurn `json:"answer"`
	Turns    int              `json:"turns"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
