package formatter

import (
	"bytes"
	"fmt"

	"github.com/futig/docchat/internal/entity"
)

const (
	markdownContentType   = "text/markdown; charset=utf-8"
	markdownFileExtension = ".md"
)

type MarkdownFormatter struct{}

func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

func (mf *MarkdownFormatter) Format(turns []entity.ConversationTurn) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n", baseTitle)

	for _, turn := range turns {
		fmt.Fprintf(&buf, "\n**%s:**\n\n%s\n", speaker(turn.Role), turn.Message)
	}

	return buf.Bytes(), nil
}

func (mf *MarkdownFormatter) ContentType() string {
	return markdownContentType
}

func (mf *MarkdownFormatter) FileExtension() string {
	return markdownFileExtension
}
