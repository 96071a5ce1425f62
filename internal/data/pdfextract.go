package data

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDFText pulls the plain text out of a PDF document. An empty result
// is an error: a proof document with no extractable text cannot be evaluated
// and the classifier fails closed on it.
func extractPDFText(data []byte) (_ string, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	raw, err := io.ReadAll(textReader)
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", fmt.Errorf("no extractable text")
	}
	return text, nil
}
