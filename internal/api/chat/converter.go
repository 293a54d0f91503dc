package chat

import (
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/futig/docchat/internal/entity"
)

const pageTitle = "Chat with your documents"

// pageView is the data the chat page template renders
type pageView struct {
	Title        string
	Unavailable  string
	Notice       string
	Error        string
	Mode         entity.RetrievalMode
	Documents    []string
	Conversation []entity.ConversationTurn
	ShowClear    bool
}

func toPageView(session *entity.SessionDTO) *pageView {
	view := &pageView{Title: pageTitle}
	if session == nil {
		return view
	}

	view.Mode = session.Mode
	view.Documents = session.Documents
	view.Conversation = session.Conversation
	view.ShowClear = len(session.Conversation) > 0
	return view
}

// toFileData reads uploaded multipart files into memory
func toFileData(files []*multipart.FileHeader) ([]entity.FileData, error) {
	result := make([]entity.FileData, 0, len(files))

	for _, fh := range files {
		src, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %w", entity.ErrInvalidFile, fh.Filename, err)
		}

		content, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", entity.ErrInvalidFile, fh.Filename, err)
		}

		result = append(result, entity.FileData{
			Filename: fh.Filename,
			Content:  content,
		})
	}

	return result, nil
}

func intakeNotice(result *entity.IntakeResult) string {
	switch {
	case result.Ingested:
		return "Successfully processed your documents"
	case len(result.Skipped) > 0:
		return "Already uploaded: " + strings.Join(result.Skipped, ", ")
	default:
		return "No documents to process"
	}
}
