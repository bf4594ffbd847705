package parser

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"

	"fsrecon/internal/model"
)

// DOCXParser handles .docx files. Paragraphs and tables are emitted in DOM
// order; paragraph style names and auto-numbering ordinals are preserved so
// the segmentation cascade can use them as secondary boundary signals.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*Stream, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "fsrecon-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, int64(size))
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	stream := &Stream{
		Filename: filename,
		Format:   model.FormatWord,
	}

	// Ordinal counters per numbering definition, top level only.
	numCounters := make(map[int]int)

	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			text := docxParagraphText(it)
			if text == "" {
				continue
			}
			b := Block{
				Kind:  BlockParagraph,
				Text:  text,
				Style: docxStyleName(it),
			}
			if id, ok := docxTopLevelNumID(it); ok {
				numCounters[id]++
				b.AutoNum = numCounters[id]
			}
			stream.Blocks = append(stream.Blocks, b)

		case *docx.Table:
			rows := docxTableRows(it)
			if len(rows) == 0 {
				continue
			}
			stream.Blocks = append(stream.Blocks, Block{
				Kind: BlockTable,
				Text: rowsToText(rows),
				Rows: rows,
			})
		}
	}

	return stream, nil
}

func docxStyleName(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return para.Properties.Style.Val
}

// docxTopLevelNumID returns the numbering definition id for paragraphs that
// are auto-numbered at list level 0. Deeper levels are sub-items, never
// section headings.
func docxTopLevelNumID(para *docx.Paragraph) (int, bool) {
	if para.Properties == nil || para.Properties.NumProperties == nil {
		return 0, false
	}
	np := para.Properties.NumProperties
	if np.NumID == nil {
		return 0, false
	}
	// go-docx keeps the w:val attributes as raw strings.
	if np.Ilvl != nil && np.Ilvl.Val != "0" {
		return 0, false
	}
	id, err := strconv.Atoi(np.NumID.Val)
	if err != nil {
		return 0, false
	}
	return id, true
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

func docxTableRows(table *docx.Table) [][]string {
	var rows [][]string
	for _, tr := range table.TableRows {
		cells := make([]string, 0, len(tr.TableCells))
		for _, tc := range tr.TableCells {
			var parts []string
			for _, para := range tc.Paragraphs {
				if t := docxParagraphText(para); t != "" {
					parts = append(parts, t)
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		if anyNonEmpty(cells) {
			rows = append(rows, cells)
		}
	}
	return rows
}

func anyNonEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return true
		}
	}
	return false
}

// rowsToText renders table rows as tab/newline separated text. Empty cells
// keep their tab so column positions survive into the raw text.
func rowsToText(rows [][]string) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		for i, c := range row {
			row[i] = strings.ReplaceAll(c, "\n", " ")
		}
		lines = append(lines, strings.Join(row, "\t"))
	}
	return strings.Join(lines, "\n")
}
