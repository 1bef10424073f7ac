package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

const (
	MimePDF  = "application/pdf"
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeWebP = "image/webp"
	MimeGIF  = "image/gif"
	MimeText = "text/plain"
)

// MaxTextRunes caps the extracted text handed to a model.
const MaxTextRunes = 20000

// ErrUnsupported is returned for payloads that carry no extractable text.
var ErrUnsupported = errors.New("unsupported plan format")

// DetectMime sniffs the payload, falling back to the file extension.
func DetectMime(data []byte, fileName string) string {
	sniffed := strings.ToLower(strings.TrimSpace(strings.Split(http.DetectContentType(data), ";")[0]))
	if sniffed != "application/octet-stream" {
		return sniffed
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return MimePDF
	case ".png":
		return MimePNG
	case ".jpg", ".jpeg":
		return MimeJPEG
	case ".webp":
		return MimeWebP
	case ".txt":
		return MimeText
	}
	return sniffed
}

// IsImage reports whether mime is a raster format a vision model accepts directly.
func IsImage(mime string) bool {
	switch mime {
	case MimePNG, MimeJPEG, MimeWebP, MimeGIF:
		return true
	}
	return false
}

// PlanText returns the text layer of a PDF or plain-text plan, truncated to MaxTextRunes.
func PlanText(ctx context.Context, data []byte, mime string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var (
		text string
		err  error
	)
	switch mime {
	case MimePDF:
		text, err = extractPDF(data)
	case MimeText:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: text is not utf-8", ErrUnsupported)
		}
		text = string(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, mime)
	}
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", mime, err)
	}
	return truncateRunes(strings.TrimSpace(text), MaxTextRunes), nil
}

func extractPDF(data []byte) (text string, err error) {
	// ledongthuc/pdf panics on some malformed xref tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
