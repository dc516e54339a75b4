package imaging

import (
	"bytes"
	"fmt"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFPageCount opens a PDF and returns its page count. An unreadable or
// empty PDF is an error.
func PDFPageCount(data []byte) (n int, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("open pdf: %v", r)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	n = reader.NumPage()
	if n == 0 {
		return 0, fmt.Errorf("pdf has no pages")
	}
	return n, nil
}
