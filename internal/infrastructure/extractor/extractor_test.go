package extractor

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	domainRAG "github.com/ragchat/backend/internal/domain/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// writeDOCX 生成只包含 word/document.xml 的最小 DOCX
func writeDOCX(t *testing.T, documentXML string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.docx")
	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	w, err := zw.Create(docxBodyPath)
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestRegistry_Extract(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	tests := []struct {
		name     string
		file     string
		content  string
		mimeType string
		want     string
	}{
		{
			name:     "plain text",
			file:     "a.txt",
			content:  "Hello there. How are you?",
			mimeType: MimeText,
			want:     "Hello there. How are you?",
		},
		{
			name:     "plain text with charset",
			file:     "b.txt",
			content:  "charset param",
			mimeType: "text/plain; charset=utf-8",
			want:     "charset param",
		},
		{
			name:     "markdown strips markup",
			file:     "c.md",
			content:  "# Title\n\nSome **bold** text.\n\n- item one\n- item two\n",
			mimeType: MimeMarkdown,
			want:     "Title\nSome bold text.\nitem one\nitem two",
		},
		{
			name:     "html drops scripts",
			file:     "d.html",
			content:  "<html><head><style>p{}</style></head><body><h1>Heading</h1><p>First<br>line</p><script>alert(1)</script></body></html>",
			mimeType: MimeHTML,
			want:     "Heading\nFirst\nline",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			got, err := r.Extract(ctx, path, tt.mimeType)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_ExtractDOCX(t *testing.T) {
	path := writeDOCX(t, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First </w:t></w:r><w:r><w:t>paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	got, err := NewRegistry().Extract(context.Background(), path, MimeDOCX)
	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\nSecond paragraph.", got)
}

func TestRegistry_UnsupportedFormat(t *testing.T) {
	path := writeFile(t, "x.bin", "data")
	_, err := NewRegistry().Extract(context.Background(), path, "application/octet-stream")
	assert.ErrorIs(t, err, domainRAG.ErrUnsupportedFormat)
}

func TestRegistry_EmptyContent(t *testing.T) {
	path := writeFile(t, "empty.txt", "  \n\t ")
	_, err := NewRegistry().Extract(context.Background(), path, MimeText)
	assert.ErrorIs(t, err, domainRAG.ErrEmptyContent)
}

func TestRegistry_InvalidDOCX(t *testing.T) {
	path := writeFile(t, "broken.docx", "not a zip")
	_, err := NewRegistry().Extract(context.Background(), path, MimeDOCX)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domainRAG.ErrUnsupportedFormat)
}

func TestRegistry_Supports(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Supports(MimePDF))
	assert.True(t, r.Supports("TEXT/PLAIN"))
	assert.False(t, r.Supports("image/png"))
	assert.Contains(t, r.SupportedMIMETypes(), MimeDOCX)
}

func TestDetectMIME(t *testing.T) {
	assert.Equal(t, MimePDF, DetectMIME("report.PDF"))
	assert.Equal(t, MimeMarkdown, DetectMIME("notes.md"))
	assert.Equal(t, "", DetectMIME("image.png"))
}
