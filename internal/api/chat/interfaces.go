package chat

import (
	"context"

	"github.com/futig/docchat/internal/entity"
)

type ChatUsecase interface {
	Session(ctx context.Context, sessionID string) (*entity.SessionDTO, error)
	UploadDocuments(ctx context.Context, sessionID string, files []entity.FileData) (*entity.IntakeResult, error)
	Ask(ctx context.Context, sessionID, question string) (*entity.AskResult, error)
	ClearHistory(ctx context.Context, sessionID string) (*entity.SessionDTO, error)
	Export(ctx context.Context, sessionID string, format entity.ExportFormat) (*entity.ExportResult, error)
	BackendError() error
}
