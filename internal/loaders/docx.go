package loaders

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/corpusworks/corpus-cli/internal/core/domain"
	"github.com/corpusworks/corpus-cli/internal/core/ports/driven"
)

var _ driven.DocumentLoader = (*WordLoader)(nil)

// WordLoader extracts a single document from a .docx file: headings
// rendered as markdown-style lines, body paragraphs, and tables as
// pipe-delimited rows. Legacy .doc files are routed here too and fail
// with a structured error since they are not zip archives.
type WordLoader struct{}

// NewWordLoader creates a Word document loader.
func NewWordLoader() *WordLoader { return &WordLoader{} }

// Extensions implements driven.DocumentLoader.
func (l *WordLoader) Extensions() []string { return []string{".docx", ".doc"} }

// Load implements driven.DocumentLoader.
func (l *WordLoader) Load(ctx context.Context, path string) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open %s as docx: %w", filepath.Base(path), err)
	}

	var bodyXML, propsXML []byte
	for _, f := range zr.File {
		switch f.Name {
		case "word/document.xml":
			bodyXML, err = readZipFile(f)
		case "docProps/core.xml":
			propsXML, err = readZipFile(f)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
	}
	if bodyXML == nil {
		return nil, errors.New("docx missing word/document.xml")
	}

	blocks, err := parseWordBody(bodyXML)
	if err != nil {
		return nil, fmt.Errorf("parse document body: %w", err)
	}

	var parts []string
	paragraphs, headings, tableCount := 0, 0, 0
	for _, b := range blocks {
		switch {
		case len(b.rows) > 0:
			tableCount++
			var tb strings.Builder
			tb.WriteString("Table:\n")
			for _, cells := range b.rows {
				tb.WriteString(strings.Join(cells, " | "))
				tb.WriteByte('\n')
			}
			parts = append(parts, strings.TrimRight(tb.String(), "\n"))
		case b.text != "":
			paragraphs++
			if b.level > 0 {
				headings++
				parts = append(parts, strings.Repeat("#", b.level)+" "+b.text)
			} else {
				parts = append(parts, b.text)
			}
		}
	}

	content := NormalizeText(strings.Join(parts, "\n\n"))
	if content == "" {
		content = PlaceholderEmpty
	}

	extra := map[string]any{
		domain.MetaDocType:    domain.DocTypeDOCX,
		domain.MetaHasTables:  tableCount > 0,
		domain.MetaTableCount: tableCount,
		"paragraph_count":     paragraphs,
		"heading_count":       headings,
	}
	if propsXML != nil {
		var props coreProperties
		if xml.Unmarshal(propsXML, &props) == nil {
			if props.Title != "" {
				extra["title"] = props.Title
			}
			if props.Creator != "" {
				extra["author"] = props.Creator
			}
			if props.Subject != "" {
				extra["subject"] = props.Subject
			}
		}
	}

	return []domain.Document{domain.NewDocument(content, withMeta(baseMetadata(path), extra))}, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// wordBlock is one body-level element, either a paragraph (text, and
// level > 0 for headings) or a table (rows).
type wordBlock struct {
	text  string
	level int
	rows  [][]string
}

// parseWordBody walks word/document.xml in document order. Paragraphs
// inside tables are consumed by the table decode and never appear as
// top-level blocks.
func parseWordBody(data []byte) ([]wordBlock, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var blocks []wordBlock
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "p":
			var p wordParagraph
			if err := dec.DecodeElement(&p, &se); err != nil {
				return nil, err
			}
			blocks = append(blocks, wordBlock{text: p.text(), level: p.headingLevel()})
		case "tbl":
			var t wordTable
			if err := dec.DecodeElement(&t, &se); err != nil {
				return nil, err
			}
			blocks = append(blocks, wordBlock{rows: t.cellRows()})
		}
	}
	return blocks, nil
}

type wordParagraph struct {
	Props struct {
		Style struct {
			Val string `xml:"val,attr"`
		} `xml:"pStyle"`
	} `xml:"pPr"`
	Runs []struct {
		Text []string `xml:"t"`
	} `xml:"r"`
}

func (p wordParagraph) text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Text {
			b.WriteString(t)
		}
	}
	return strings.TrimSpace(b.String())
}

// headingLevel maps Heading1..Heading9 paragraph styles to markdown
// levels, clamped to 6. Zero means body text.
func (p wordParagraph) headingLevel() int {
	style := p.Props.Style.Val
	if !strings.HasPrefix(style, "Heading") {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(style, "Heading"))
	if err != nil || n < 1 {
		return 1
	}
	if n > 6 {
		n = 6
	}
	return n
}

type wordTable struct {
	Rows []struct {
		Cells []struct {
			Paragraphs []wordParagraph `xml:"p"`
		} `xml:"tc"`
	} `xml:"tr"`
}

func (t wordTable) cellRows() [][]string {
	var rows [][]string
	for _, tr := range t.Rows {
		var cells []string
		for _, tc := range tr.Cells {
			var parts []string
			for _, p := range tc.Paragraphs {
				if s := p.text(); s != "" {
					parts = append(parts, s)
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	}
	return rows
}

// coreProperties is the subset of docProps/core.xml worth keeping.
type coreProperties struct {
	Title   string `xml:"title"`
	Creator string `xml:"creator"`
	Subject string `xml:"subject"`
}
