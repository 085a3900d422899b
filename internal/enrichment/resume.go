package enrichment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/spigell/chat-applier/internal/records"
	"github.com/spigell/chat-applier/internal/utils"
)

// ErrUnsupportedResume is returned for resume formats that cannot be read as text.
var ErrUnsupportedResume = errors.New("unsupported resume format")

// ResumeText extracts up to maxChars of text from a stored resume.
func ResumeText(doc *records.Document, maxChars int) (string, error) {
	if doc == nil || len(doc.Data) == 0 {
		return "", nil
	}

	var (
		text string
		err  error
	)
	mimeType := strings.ToLower(doc.MIME)
	switch {
	case strings.Contains(mimeType, "pdf") || bytes.HasPrefix(doc.Data, []byte("%PDF")):
		text, err = pdfText(doc.Data)
	case strings.HasPrefix(mimeType, "text/"):
		text = string(doc.Data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedResume, doc.MIME)
	}
	if err != nil {
		return "", err
	}

	return utils.Truncate(strings.TrimSpace(text), maxChars), nil
}

func pdfText(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed documents
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return string(out), nil
}
