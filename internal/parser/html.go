package parser

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"fsrecon/internal/model"
)

// HTMLParser handles HTML files. Headings become styled blocks, tables
// become row blocks, other content collapses to paragraph blocks.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*Stream, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	stream := &Stream{
		Filename: filename,
		Format:   model.FormatHTML,
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				if t := textContent(n); t != "" {
					stream.Blocks = append(stream.Blocks, Block{
						Kind:  BlockParagraph,
						Text:  t,
						Style: fmt.Sprintf("Heading%d", level),
					})
				}
				return
			}

			switch n.Data {
			case "script", "style", "nav":
				return
			case "table":
				rows := htmlTableRows(n)
				if len(rows) > 0 {
					stream.Blocks = append(stream.Blocks, Block{
						Kind: BlockTable,
						Text: rowsToText(rows),
						Rows: rows,
					})
				}
				return
			case "p", "li", "blockquote":
				if t := textContent(n); t != "" {
					stream.Blocks = append(stream.Blocks, Block{
						Kind: BlockParagraph,
						Text: t,
					})
				}
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	body := findBody(doc)
	if body != nil {
		walk(body)
	} else {
		walk(doc)
	}

	return stream, nil
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func htmlTableRows(table *html.Node) [][]string {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, textContent(c))
				}
			}
			if anyNonEmpty(cells) {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)
	return rows
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
