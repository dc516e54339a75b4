package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fumiama/go-docx"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dgallion1/omrgest/internal/store"
)

// DOCX writes the scan as a Word document: a heading, a summary line, one
// paragraph per item and the warnings.
func DOCX(s store.Scan, w io.Writer) error {
	caser := cases.Title(language.Und)
	doc := docx.New().WithDefaultTheme()

	doc.AddParagraph().AddText(Title(s)).Bold().Size("32")
	doc.AddParagraph().AddText(fmt.Sprintf("Status: %s. Items: %d. Average confidence: %.3f. Processing time: %d ms.",
		status(s.Result), len(s.Result.Items), s.Result.ConfidenceAvg, s.Result.ProcessingTimeMs))

	for _, it := range s.Result.Items {
		p := doc.AddParagraph()
		p.AddText(it.ID + ": ").Bold()
		p.AddText(fmt.Sprintf("%s (%s), confidence %.3f",
			it.Value, caser.String(strings.ReplaceAll(string(it.Type), "_", " ")), it.Confidence))
	}

	if len(s.Result.Warnings) > 0 {
		doc.AddParagraph().AddText("Warnings").Bold()
		for _, warning := range s.Result.Warnings {
			doc.AddParagraph().AddText("- " + warning)
		}
	}

	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}
