package formatter

import (
	"bytes"
	"strings"

	"github.com/futig/docchat/internal/entity"
	"github.com/unidoc/unioffice/document"
)

const (
	docxContentType   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	docxFileExtension = ".docx"
)

// DOCXFormatter writes one bold speaker line and one message paragraph per turn.
type DOCXFormatter struct{}

func NewDOCXFormatter() *DOCXFormatter {
	return &DOCXFormatter{}
}

func (df *DOCXFormatter) Format(turns []entity.ConversationTurn) ([]byte, error) {
	doc := document.New()
	defer doc.Close()

	titlePar := doc.AddParagraph()
	titlePar.SetStyle("Heading1")
	titlePar.AddRun().AddText(baseTitle)

	for _, turn := range turns {
		doc.AddParagraph()

		speakerRun := doc.AddParagraph().AddRun()
		speakerRun.Properties().SetBold(true)
		speakerRun.AddText(speaker(turn.Role))

		// Word ignores "\n" inside a text node.
		messageRun := doc.AddParagraph().AddRun()
		for i, line := range strings.Split(turn.Message, "\n") {
			if i > 0 {
				messageRun.AddBreak()
			}
			messageRun.AddText(line)
		}
	}

	var buf bytes.Buffer
	if err := doc.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (df *DOCXFormatter) ContentType() string {
	return docxContentType
}

func (df *DOCXFormatter) FileExtension() string {
	return docxFileExtension
}
