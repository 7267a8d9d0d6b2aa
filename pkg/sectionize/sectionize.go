package sectionize

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Unit is one extracted content unit of a document, in document order.
// Order is 1-based. Units with empty content are never returned.
type Unit struct {
	Title   string
	Content string
	Order   int
}

// Extract splits a document into ordered units. PDFs yield one unit per
// non-empty page; DOCX and plain text yield a single unit.
func Extract(data io.ReaderAt, size int64, fileType string) ([]Unit, error) {
	switch strings.ToLower(fileType) {
	case ".pdf", "pdf", "application/pdf":
		return extractPDF(data, size)
	case ".docx", "docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return extractDOCX(data, size)
	case ".txt", "txt", "text/plain":
		return extractTXT(data, size)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
}

func SupportedTypes() []string {
	return []string{".pdf", ".docx", ".txt"}
}

func extractPDF(data io.ReaderAt, size int64) ([]Unit, error) {
	reader, err := pdf.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	var units []Unit
	numPages := reader.NumPage()

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = Clean(text)
		if text == "" {
			continue
		}
		units = append(units, Unit{
			Title:   fmt.Sprintf("Page %d", i),
			Content: text,
			Order:   len(units) + 1,
		})
	}

	return units, nil
}

func extractDOCX(data io.ReaderAt, size int64) ([]Unit, error) {
	reader, err := zip.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}

	var buf strings.Builder
	for _, f := range reader.File {
		if filepath.Base(f.Name) == "document.xml" {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open document.xml: %w", err)
			}
			defer rc.Close()

			content, err := io.ReadAll(rc)
			if err != nil {
				return nil, fmt.Errorf("read document.xml: %w", err)
			}

			buf.WriteString(stripXMLTags(string(content)))
			break
		}
	}

	text := Clean(buf.String())
	if text == "" {
		return nil, nil
	}
	return []Unit{{Title: "Document", Content: text, Order: 1}}, nil
}

func extractTXT(data io.ReaderAt, size int64) ([]Unit, error) {
	buf := make([]byte, size)
	_, err := data.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read TXT: %w", err)
	}

	text := Clean(string(bytes.TrimSpace(buf)))
	if text == "" {
		return nil, nil
	}
	return []Unit{{Title: "Document", Content: text, Order: 1}}, nil
}

var (
	hyphenBreak = regexp.MustCompile(`(\w+)-\n(\w+)`)
	multiBlank  = regexp.MustCompile(`\n{2,}`)
)

// Clean joins words hyphenated across line breaks, collapses blank runs and
// trims surrounding whitespace.
func Clean(text string) string {
	text = hyphenBreak.ReplaceAllString(text, "$1$2")
	text = multiBlank.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func stripXMLTags(s string) string {
	var result strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			result.WriteRune(' ')
		case !inTag:
			result.WriteRune(r)
		}
	}
	parts := strings.Fields(result.String())
	return strings.Join(parts, " ")
}
