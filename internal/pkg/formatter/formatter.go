package formatter

import (
	"fmt"

	"github.com/futig/docchat/internal/entity"
)

const baseTitle = "Chat with your documents"

// Formatter renders a conversation transcript into a downloadable document
type Formatter interface {
	Format(turns []entity.ConversationTurn) ([]byte, error)
	ContentType() string
	FileExtension() string
}

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(format entity.ExportFormat) (Formatter, error) {
	switch format {
	case entity.FormatMarkdown:
		return NewMarkdownFormatter(), nil
	case entity.FormatDOCX:
		return NewDOCXFormatter(), nil
	case entity.FormatPDF:
		return NewPDFFormatter(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported export format %q", entity.ErrInvalidFormat, format)
	}
}

func speaker(role entity.Role) string {
	if role == entity.RoleUser {
		return "You"
	}
	return "Assistant"
}
