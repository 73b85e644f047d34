package documents

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ExtractionError reports unreadable or corrupt document content. It is
// local to one document and never affects the owning session.
type ExtractionError struct {
	FileName string
	FileType string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract %s (%s): %v", e.FileName, e.FileType, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor pulls plain text out of a stored document file
type Extractor interface {
	Extract(path, fileName, fileType string) (string, error)
}

// FileExtractor reads documents from durable storage. PDF pages are
// concatenated with newline separators; TXT files are decoded as UTF-8.
type FileExtractor struct{}

// NewFileExtractor returns the default extractor
func NewFileExtractor() *FileExtractor {
	return &FileExtractor{}
}

// Extract returns the plain text of the file at path
func (x *FileExtractor) Extract(path, fileName, fileType string) (string, error) {
	switch fileType {
	case "pdf":
		text, err := extractPDF(path)
		if err != nil {
			return "", &ExtractionError{FileName: fileName, FileType: fileType, Err: err}
		}
		return text, nil
	case "txt":
		text, err := extractTXT(path)
		if err != nil {
			return "", &ExtractionError{FileName: fileName, FileType: fileType, Err: err}
		}
		return text, nil
	default:
		return "", &ExtractionError{
			FileName: fileName,
			FileType: fileType,
			Err:      fmt.Errorf("unsupported file type"),
		}
	}
}

func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, content)
	}
	return strings.Join(pages, "\n"), nil
}

func extractTXT(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("content is not valid UTF-8")
	}
	return string(data), nil
}
