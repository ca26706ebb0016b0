// Package extract converts uploaded file bytes into plain text for chunking.
// Plain-text files are decoded as UTF-8 with invalid bytes dropped; PDF files
// are read page by page via ledongthuc/pdf. Extraction failures are reported
// as *Error so callers can map them to a user-facing 400 rather than a
// generic server error.
package extract

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Error is a typed extraction failure carrying the upstream cause.
type Error struct {
	// Kind identifies the input format ("pdf" or "text").
	Kind string
	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("extract: failed to extract text from %s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Err }

// Text converts raw upload bytes into plain text. When isPDF is true the
// bytes are parsed as a PDF document; otherwise they are decoded as UTF-8,
// silently discarding undecodable byte sequences. The result is trimmed;
// an empty string means the file carried no extractable text.
func Text(data []byte, isPDF bool) (string, error) {
	if isPDF {
		return fromPDF(data)
	}
	return decodeUTF8(data), nil
}

// fromPDF extracts the text of every page, joining pages with blank lines.
// Pages whose text extraction fails individually are skipped; only a
// document-level parse failure aborts extraction.
func fromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &Error{Kind: "pdf", Err: err}
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}

	return strings.TrimSpace(strings.Join(pages, "\n\n")), nil
}

// decodeUTF8 returns data as a string with invalid UTF-8 sequences removed,
// trimmed of surrounding whitespace.
func decodeUTF8(data []byte) string {
	if utf8.Valid(data) {
		return strings.TrimSpace(string(data))
	}

	var b strings.Builder
	b.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r != utf8.RuneError || size > 1 {
			b.WriteRune(r)
		}
		data = data[size:]
	}
	return strings.TrimSpace(b.String())
}
