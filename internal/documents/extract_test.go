package documents

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTXT(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("line one\nline two"), 0o644))

	text, err := NewFileExtractor().Extract(path, "notes.txt", "txt")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", text)
}

func TestExtractTXTInvalidUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.txt")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0xfd}, 0o644))

	_, err := NewFileExtractor().Extract(path, "bad.txt", "txt")
	var extractionErr *ExtractionError
	require.True(t, errors.As(err, &extractionErr))
	assert.Equal(t, "bad.txt", extractionErr.FileName)
	assert.Equal(t, "txt", extractionErr.FileType)
}

func TestExtractMissingFile(t *testing.T) {
	_, err := NewFileExtractor().Extract(filepath.Join(t.TempDir(), "gone.txt"), "gone.txt", "txt")
	var extractionErr *ExtractionError
	assert.True(t, errors.As(err, &extractionErr))
}

func TestExtractUnsupportedType(t *testing.T) {
	_, err := NewFileExtractor().Extract("whatever", "sheet.xlsx", "xlsx")
	var extractionErr *ExtractionError
	require.True(t, errors.As(err, &extractionErr))
	assert.Contains(t, extractionErr.Error(), "unsupported file type")
}

func TestExtractCorruptPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf at all"), 0o644))

	_, err := NewFileExtractor().Extract(path, "fake.pdf", "pdf")
	var extractionErr *ExtractionError
	assert.True(t, errors.As(err, &extractionErr))
}
