package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"fsrecon/internal/model"
)

// MarkdownParser handles Markdown files using goldmark. Headings surface as
// styled blocks ("Heading1".."Heading6") so the style-based boundary
// detector works the same way it does for docx.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*Stream, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	reader := text.NewReader(src)
	doc := md.Parser().Parse(reader)

	stream := &Stream{
		Filename: filename,
		Format:   model.FormatMarkdown,
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := strings.TrimSpace(string(node.Text(src)))
			if title == "" {
				continue
			}
			stream.Blocks = append(stream.Blocks, Block{
				Kind:  BlockParagraph,
				Text:  title,
				Style: fmt.Sprintf("Heading%d", node.Level),
			})
		default:
			t := extractText(n, src)
			if t != "" {
				stream.Blocks = append(stream.Blocks, Block{
					Kind: BlockParagraph,
					Text: t,
				})
			}
		}
	}

	return stream, nil
}

// extractText gets the text content of a goldmark AST node. A leaf block's
// source lines already cover its inline children, so exactly one of the two
// is read.
func extractText(n ast.Node, src []byte) string {
	if n.Type() == ast.TypeBlock {
		lines := n.Lines()
		if lines.Len() > 0 {
			var buf bytes.Buffer
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
			return strings.TrimSpace(buf.String())
		}
		// Container blocks (lists, quotes) have no lines of their own.
		var parts []string
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if s := extractText(c, src); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	}

	var buf bytes.Buffer
	if t, ok := n.(*ast.Text); ok {
		buf.Write(t.Value(src))
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		buf.WriteString(extractText(c, src))
	}
	return strings.TrimSpace(buf.String())
}
