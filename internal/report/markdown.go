// Package report renders scan results for people: Markdown, a standalone
// HTML page, and DOCX.
package report

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dgallion1/omrgest/internal/omr"
	"github.com/dgallion1/omrgest/internal/store"
)

// Title returns the report heading for a scan.
func Title(s store.Scan) string {
	name := s.Filename
	if name == "" {
		name = s.ID
	}
	return "OMR report: " + name
}

// Markdown renders the scan summary, item table and warnings.
func Markdown(s store.Scan) string {
	var b strings.Builder
	caser := cases.Title(language.Und)

	fmt.Fprintf(&b, "# %s\n\n", escapeInline(Title(s)))
	fmt.Fprintf(&b, "- **Scan:** %s\n", escapeInline(s.ID))
	fmt.Fprintf(&b, "- **Status:** %s\n", status(s.Result))
	fmt.Fprintf(&b, "- **Items:** %d\n", len(s.Result.Items))
	fmt.Fprintf(&b, "- **Average confidence:** %.3f\n", s.Result.ConfidenceAvg)
	fmt.Fprintf(&b, "- **Processing time:** %d ms\n", s.Result.ProcessingTimeMs)
	if !s.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "- **Scanned at:** %s\n", s.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	}

	if len(s.Result.Items) > 0 {
		b.WriteString("\n| ID | Type | Answer | Confidence | Box |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, it := range s.Result.Items {
			fmt.Fprintf(&b, "| %s | %s | %s | %.3f | %s |\n",
				escapeCell(it.ID),
				caser.String(strings.ReplaceAll(string(it.Type), "_", " ")),
				escapeCell(it.Value),
				it.Confidence,
				formatBBox(it.BBox),
			)
		}
	}

	if len(s.Result.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range s.Result.Warnings {
			fmt.Fprintf(&b, "- %s\n", escapeInline(w))
		}
	}
	return b.String()
}

func status(r omr.Result) string {
	if r.Success {
		return "success"
	}
	return "failed"
}

func formatBBox(bb [4]float64) string {
	return fmt.Sprintf("%g, %g, %g, %g", bb[0], bb[1], bb[2], bb[3])
}

var inlineEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	"\n", " ",
)

func escapeInline(s string) string {
	return inlineEscaper.Replace(s)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(escapeInline(s), "|", `\|`)
}
