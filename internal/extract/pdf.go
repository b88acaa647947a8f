package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// readTextLayer returns the text layer of every page, in page order. Pages whose content
// cannot be decoded yield an empty string; only a document that cannot be opened is an error.
func readTextLayer(content []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("open PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()
	pages = make([]string, numPages)
	for i := 0; i < numPages; i++ {
		pages[i] = pageText(r, i+1)
	}
	return pages, nil
}

func pageText(r *pdf.Reader, n int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	page := r.Page(n)
	if page.V.IsNull() || page.V.Key("Contents").IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}
