// Package document extracts plain report text from uploaded files.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MaxSize is the largest document accepted.
const MaxSize = 20 << 20

var (
	// ErrUnsupportedFormat is returned for extensions other than .txt, .docx and .pdf.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrTooLarge is returned when a document exceeds MaxSize.
	ErrTooLarge = errors.New("document too large")
)

// Format identifies a supported document type.
type Format string

const (
	FormatText Format = "txt"
	FormatDOCX Format = "docx"
	FormatPDF  Format = "pdf"
)

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatDOCX, FormatPDF}

// DetectFormat returns the format for filename's extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".text", "":
		return FormatText, nil
	case ".docx":
		return FormatDOCX, nil
	case ".pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// Extract reads r and returns its text. The format is chosen by filename.
func Extract(filename string, r io.Reader) (string, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filename, err)
	}
	if len(data) > MaxSize {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, filename, MaxSize)
	}

	var text string
	switch format {
	case FormatText:
		text, err = plainText(data)
	case FormatDOCX:
		text, err = docxText(data)
	case FormatPDF:
		text, err = pdfText(data)
	}
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filename, err)
	}
	return strings.TrimSpace(text), nil
}

func plainText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", errors.New("text is not valid UTF-8")
	}
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}
