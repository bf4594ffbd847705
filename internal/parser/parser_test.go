package parser

import (
	"strings"
	"testing"

	"github.com/fumiama/go-docx"
)

func TestForFile(t *testing.T) {
	cases := []struct {
		name string
		want Parser
	}{
		{"report.txt", &TextParser{}},
		{"report.md", &MarkdownParser{}},
		{"Report.HTML", &HTMLParser{}},
		{"report.pdf", &PDFParser{}},
		{"report.docx", &DOCXParser{}},
	}
	for _, tc := range cases {
		p, err := ForFile(tc.name)
		if err != nil {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		if gotT, wantT := typeName(p), typeName(tc.want); gotT != wantT {
			t.Errorf("%s: got %s, want %s", tc.name, gotT, wantT)
		}
	}
	if _, err := ForFile("report.hwp"); err == nil {
		t.Error("expected an error for unsupported extension")
	}
}

func typeName(p Parser) string {
	switch p.(type) {
	case *TextParser:
		return "text"
	case *MarkdownParser:
		return "markdown"
	case *HTMLParser:
		return "html"
	case *PDFParser:
		return "pdf"
	case *DOCXParser:
		return "docx"
	}
	return "unknown"
}

func TestSniff(t *testing.T) {
	if p, err := Sniff([]byte("PK\x03\x04rest")); err != nil || typeName(p) != "docx" {
		t.Errorf("zip: %v %v", p, err)
	}
	if p, err := Sniff([]byte("%PDF-1.7")); err != nil || typeName(p) != "pdf" {
		t.Errorf("pdf: %v %v", p, err)
	}
	if _, err := Sniff([]byte("plain text")); err == nil {
		t.Error("expected an error for unknown magic")
	}
}

func TestTextParser_BlankLineParagraphs(t *testing.T) {
	input := "NOTE 1. General Information\n\nThe Company was incorporated in 1998\nand is engaged in manufacturing.\n\n\nNOTE 2. Basis of Preparation\n"
	stream, err := (&TextParser{}).Parse(strings.NewReader(input), "report.txt")
	if err != nil {
		t.Fatal(err)
	}
	if len(stream.Blocks) != 3 {
		t.Fatalf("expected 3 paragraphs, got %d", len(stream.Blocks))
	}
	if stream.Blocks[1].Text != "The Company was incorporated in 1998\nand is engaged in manufacturing." {
		t.Errorf("got %q", stream.Blocks[1].Text)
	}
}

func TestMarkdownParser_HeadingsAreStyled(t *testing.T) {
	input := "# NOTE 1. General Information\n\nThe Company operates in Korea.\n\n## Detail\n\nMore prose.\n"
	stream, err := (&MarkdownParser{}).Parse(strings.NewReader(input), "report.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(stream.Blocks) != 4 {
		t.Fatalf("expected 4 blocks, got %d: %+v", len(stream.Blocks), stream.Blocks)
	}
	if stream.Blocks[0].Style != "Heading1" || stream.Blocks[0].Text != "NOTE 1. General Information" {
		t.Errorf("block 0: %+v", stream.Blocks[0])
	}
	if stream.Blocks[2].Style != "Heading2" {
		t.Errorf("block 2: %+v", stream.Blocks[2])
	}
	if stream.Blocks[1].Style != "" {
		t.Errorf("prose must not carry a heading style: %+v", stream.Blocks[1])
	}
}

func TestHTMLParser_HeadingsTablesParagraphs(t *testing.T) {
	input := `<html><head><style>p{color:red}</style></head><body>
<h2>NOTE 3. Inventories</h2>
<p>Inventories consist of the following:</p>
<table>
<tr><th>Item</th><th>Current</th></tr>
<tr><td>Merchandise</td><td>1,366,255</td></tr>
</table>
<script>alert(1)</script>
</body></html>`
	stream, err := (&HTMLParser{}).Parse(strings.NewReader(input), "report.html")
	if err != nil {
		t.Fatal(err)
	}
	if len(stream.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d: %+v", len(stream.Blocks), stream.Blocks)
	}
	if stream.Blocks[0].Style != "Heading2" || stream.Blocks[0].Text != "NOTE 3. Inventories" {
		t.Errorf("block 0: %+v", stream.Blocks[0])
	}
	tbl := stream.Blocks[2]
	if tbl.Kind != BlockTable || len(tbl.Rows) != 2 {
		t.Fatalf("table block: %+v", tbl)
	}
	if tbl.Rows[1][1] != "1,366,255" {
		t.Errorf("cell: %q", tbl.Rows[1][1])
	}
	for _, b := range stream.Blocks {
		if strings.Contains(b.Text, "alert") || strings.Contains(b.Text, "color") {
			t.Errorf("script or style content leaked: %+v", b)
		}
	}
}

func TestDocxTopLevelNumID(t *testing.T) {
	numbered := func(numID, ilvl string) *docx.Paragraph {
		np := &docx.NumProperties{NumID: &docx.NumID{Val: numID}}
		if ilvl != "" {
			np.Ilvl = &docx.Ilevel{Val: ilvl}
		}
		return &docx.Paragraph{Properties: &docx.ParagraphProperties{NumProperties: np}}
	}

	if id, ok := docxTopLevelNumID(numbered("3", "0")); !ok || id != 3 {
		t.Errorf("level-0 list item: got (%d, %v)", id, ok)
	}
	if id, ok := docxTopLevelNumID(numbered("3", "")); !ok || id != 3 {
		t.Errorf("missing ilvl counts as top level: got (%d, %v)", id, ok)
	}
	if _, ok := docxTopLevelNumID(numbered("3", "1")); ok {
		t.Error("nested list item must not count as a heading")
	}
	if _, ok := docxTopLevelNumID(numbered("not-a-number", "0")); ok {
		t.Error("unparsable numbering id must be rejected")
	}
	if _, ok := docxTopLevelNumID(&docx.Paragraph{}); ok {
		t.Error("plain paragraph must not be numbered")
	}
}
