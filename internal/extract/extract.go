// Package extract turns uploaded PDF and Word files into plain text.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/mfenderov/citedoc/pkg/models"
)

// Supported MIME types.
const (
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEDOC  = "application/msword"
)

var extensions = map[string]string{
	".pdf":  MIMEPDF,
	".docx": MIMEDOCX,
	".doc":  MIMEDOC,
}

// Result is the text of a document. Pages is nil for formats without pages.
type Result struct {
	Text      string
	Pages     []string
	PageCount int
}

// Supported reports whether mimeType can be extracted.
func Supported(mimeType string) bool {
	switch mimeType {
	case MIMEPDF, MIMEDOCX, MIMEDOC:
		return true
	}
	return false
}

// SupportedExtension reports whether a file name has an uploadable extension.
func SupportedExtension(fileName string) bool {
	_, ok := extensions[strings.ToLower(filepath.Ext(fileName))]
	return ok
}

// DetectMIME returns the MIME type of an upload. The file extension decides
// only when the declared type is empty or generic; any other declared type is
// returned as is, so an unsupported one is rejected whatever the file name.
func DetectMIME(fileName, declared string) string {
	declared = strings.TrimSpace(strings.ToLower(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	switch declared {
	case "", "application/octet-stream", "binary/octet-stream":
		if mimeType, ok := extensions[strings.ToLower(filepath.Ext(fileName))]; ok {
			return mimeType
		}
	}
	return declared
}

// Extract returns the text of data interpreted as mimeType.
func Extract(data []byte, mimeType string) (*Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", models.ErrInvalidInput)
	}

	switch mimeType {
	case MIMEPDF:
		return extractPDF(data)
	case MIMEDOCX, MIMEDOC:
		// Legacy .doc only works when it is really OOXML under the old extension.
		return extractDOCX(data)
	default:
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedType, mimeType)
	}
}

func extractPDF(data []byte) (result *Result, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: malformed pdf: %v", models.ErrExtractionFailed, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open pdf: %w", models.ErrExtractionFailed, err)
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read page %d: %w", models.ErrExtractionFailed, i, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}

	return &Result{
		Text:      JoinPages(pages),
		Pages:     pages,
		PageCount: numPages,
	}, nil
}

// JoinPages concatenates page texts the way Extract does for PDFs.
func JoinPages(pages []string) string {
	var b strings.Builder
	for _, page := range pages {
		if page == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(page)
	}
	return b.String()
}

func extractDOCX(data []byte) (*Result, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not an OOXML document: %w", models.ErrExtractionFailed, err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to open document.xml: %w", models.ErrExtractionFailed, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read document.xml: %w", models.ErrExtractionFailed, err)
		}

		text, err := parseDocumentXML(content)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrExtractionFailed, err)
		}
		return &Result{Text: text}, nil
	}

	return nil, fmt.Errorf("%w: word/document.xml missing", models.ErrExtractionFailed)
}

type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []struct {
		Content string `xml:",chardata"`
	} `xml:"t"`
	Tabs []struct{} `xml:"tab"`
}

func parseDocumentXML(content []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("failed to parse document.xml: %w", err)
	}

	var b strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			b.WriteString("\n")
		}
		for _, r := range para.Runs {
			if len(r.Tabs) > 0 {
				b.WriteString("\t")
			}
			for _, t := range r.Text {
				b.WriteString(t.Content)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
