package loaders

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpusworks/corpus-cli/internal/core/domain"
)

// writeDocx assembles a minimal .docx archive from raw part contents.
func writeDocx(t *testing.T, parts map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.docx")
	fh, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(fh)
	for name, content := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, fh.Close())
	return path
}

const fixtureBodyXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p>
      <w:pPr><w:pStyle w:val="Heading1"/></w:pPr>
      <w:r><w:t>Maintenance Manual</w:t></w:r>
    </w:p>
    <w:p>
      <w:r><w:t>Replace the filter </w:t></w:r>
      <w:r><w:t>every 500 hours.</w:t></w:r>
    </w:p>
    <w:p>
      <w:pPr><w:pStyle w:val="Heading2"/></w:pPr>
      <w:r><w:t>Spare Parts</w:t></w:r>
    </w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>part</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>qty</w:t></w:r></w:p></w:tc>
      </w:tr>
      <w:tr>
        <w:tc><w:p><w:r><w:t>12-345A</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>4</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
  </w:body>
</w:document>`

const fixtureCoreXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
  xmlns:dc="http://purl.org/dc/elements/1.1/">
  <dc:title>Pump Manual</dc:title>
  <dc:creator>Maintenance Dept</dc:creator>
</cp:coreProperties>`

func TestWordLoader(t *testing.T) {
	path := writeDocx(t, map[string]string{
		"word/document.xml": fixtureBodyXML,
		"docProps/core.xml": fixtureCoreXML,
	})

	l := NewWordLoader()
	docs, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	doc := docs[0]

	assert.Contains(t, doc.Content, "# Maintenance Manual")
	assert.Contains(t, doc.Content, "## Spare Parts")
	assert.Contains(t, doc.Content, "Replace the filter every 500 hours.")
	assert.Contains(t, doc.Content, "Table:\npart | qty\n12-345A | 4")

	assert.Equal(t, domain.DocTypeDOCX, doc.MetaString(domain.MetaDocType))
	assert.True(t, doc.MetaBool(domain.MetaHasTables))

	tables, ok := doc.MetaInt(domain.MetaTableCount)
	require.True(t, ok)
	assert.Equal(t, 1, tables)

	headings, ok := doc.MetaInt("heading_count")
	require.True(t, ok)
	assert.Equal(t, 2, headings)

	paragraphs, ok := doc.MetaInt("paragraph_count")
	require.True(t, ok)
	assert.Equal(t, 3, paragraphs)

	assert.Equal(t, "Pump Manual", doc.MetaString("title"))
	assert.Equal(t, "Maintenance Dept", doc.MetaString("author"))
}

func TestWordLoaderEmptyBody(t *testing.T) {
	path := writeDocx(t, map[string]string{
		"word/document.xml": `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body></w:body>
</w:document>`,
	})

	docs, err := NewWordLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, PlaceholderEmpty, docs[0].Content)
	assert.False(t, docs[0].MetaBool(domain.MetaHasTables))
}

func TestWordLoaderLegacyDocFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.doc")
	require.NoError(t, os.WriteFile(path, []byte("\xd0\xcf\x11\xe0 legacy binary"), 0o644))

	_, err := NewWordLoader().Load(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "as docx")
}

func TestWordLoaderMissingBodyPart(t *testing.T) {
	path := writeDocx(t, map[string]string{
		"docProps/core.xml": fixtureCoreXML,
	})

	_, err := NewWordLoader().Load(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "word/document.xml")
}
