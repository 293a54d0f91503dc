package chat

import "github.com/futig/docchat/internal/entity"

func toSessionDTO(state *entity.ChatState) *entity.SessionDTO {
	dto := &entity.SessionDTO{
		SessionID:     state.ID,
		CollectionID:  state.Collection.ID,
		ChatSessionID: state.ChatSession.ID,
		Mode:          state.Mode(),
		Documents:     state.UploadedDocuments(),
		Conversation:  state.Conversation(),
	}

	if dto.Documents == nil {
		dto.Documents = []string{}
	}
	if dto.Conversation == nil {
		dto.Conversation = []entity.ConversationTurn{}
	}
	return dto
}
