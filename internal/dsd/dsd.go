// Package dsd reads DART DSD filing archives. A DSD file is a ZIP holding a
// contents.xml with the whole filing body; the XML is frequently EUC-KR
// encoded and sprinkled with bare ampersands and the "&cr;" line-break
// marker of the DSD editor.
package dsd

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"

	"fsrecon/internal/model"
	"fsrecon/internal/parser"
)

// paraTags are element names treated as one paragraph each. Tag names vary
// between DSD generator versions.
var paraTags = map[string]bool{
	"P": true, "PARA": true, "PARAGRAPH": true, "TEXT": true,
	"TITLE": true, "SUBTITLE": true, "LI": true, "ITEM": true, "NOTE": true,
}

// skipTags mark metadata subtrees that never carry filing content.
var skipTags = []string{
	"DOCUMENT-HEADER", "DOCUMENT-INFO", "GENERATOR",
	"EXTRACTION", "SCHEMA", "HEADER", "METADATA",
}

var rowTags = map[string]bool{"ROW": true, "TR": true, "R": true}

var spaceRe = regexp.MustCompile(`\s+`)

// Parse extracts the filing body from a DSD archive as a flat block stream,
// in document order, with table structure preserved.
func Parse(path string) (*parser.Stream, error) {
	raw, err := readContentsXML(path)
	if err != nil {
		return nil, err
	}
	root, err := decodeTree(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing contents.xml: %w", err)
	}

	var blocks []parser.Block
	walk(root, &blocks)
	blocks = dedupeConsecutive(blocks)

	return &parser.Stream{
		Filename: path,
		Format:   model.FormatText,
		Blocks:   blocks,
	}, nil
}

// readContentsXML locates contents.xml inside the archive and returns it as
// UTF-8. Encodings seen in the wild are UTF-8 and EUC-KR (CP949).
func readContentsXML(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("opening DSD archive: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		lower := strings.ToLower(f.Name)
		if !strings.Contains(lower, "contents") || !strings.HasSuffix(lower, ".xml") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("opening %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", f.Name, err)
		}
		return decodeCharset(data), nil
	}
	return "", fmt.Errorf("no contents.xml in DSD archive %s", path)
}

func decodeCharset(data []byte) string {
	data = bytesTrimBOM(data)
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := korean.EUCKR.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

func bytesTrimBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// node is a schema-free XML tree. Character data directly under the element
// lands in Text; element children land in Nodes in document order.
type node struct {
	XMLName xml.Name
	Text    string `xml:",chardata"`
	Nodes   []node `xml:",any"`
}

// decodeTree parses the XML, repairing bare ampersands on a first failure.
// DSD files routinely contain "&" in company names and the undeclared
// "&cr;" entity, both of which break a strict parse.
func decodeTree(raw string) (*node, error) {
	root, err := tryDecode(raw)
	if err == nil {
		return root, nil
	}
	return tryDecode(repairEntities(raw))
}

func tryDecode(raw string) (*node, error) {
	dec := xml.NewDecoder(strings.NewReader(raw))
	// Encoding already normalized to UTF-8; ignore the declared charset.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	var root node
	if err := dec.Decode(&root); err != nil {
		return nil, err
	}
	return &root, nil
}

// repairEntities escapes every "&" that does not start one of the five
// predefined XML entities.
func repairEntities(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/16)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '&' {
			b.WriteByte(c)
			continue
		}
		rest := s[i+1:]
		if strings.HasPrefix(rest, "amp;") || strings.HasPrefix(rest, "lt;") ||
			strings.HasPrefix(rest, "gt;") || strings.HasPrefix(rest, "quot;") ||
			strings.HasPrefix(rest, "apos;") {
			b.WriteByte(c)
			continue
		}
		b.WriteString("&amp;")
	}
	return b.String()
}

func localTag(n *node) string {
	return strings.ToUpper(n.XMLName.Local)
}

func walk(n *node, blocks *[]parser.Block) {
	tag := localTag(n)
	for _, skip := range skipTags {
		if strings.Contains(tag, skip) {
			return
		}
	}

	if strings.Contains(tag, "TABLE") || tag == "TBL" {
		rows := tableRows(n)
		if len(rows) > 0 {
			*blocks = append(*blocks, parser.Block{
				Kind: parser.BlockTable,
				Text: rowsToText(rows),
				Rows: rows,
			})
		}
		return
	}

	if paraTags[tag] || len(n.Nodes) == 0 {
		appendParagraph(blocks, allText(n))
		if paraTags[tag] {
			return
		}
	} else if t := normalizeText(n.Text); t != "" {
		appendParagraph(blocks, t)
	}

	for i := range n.Nodes {
		walk(&n.Nodes[i], blocks)
	}
}

func appendParagraph(blocks *[]parser.Block, text string) {
	text = normalizeText(text)
	// Segments of only the line-break marker carry nothing; a lone "-" is a
	// null amount cell and must survive.
	if text == "" || text == "&cr;" || (len(text) == 1 && text != "-") {
		return
	}
	text = strings.TrimSpace(strings.ReplaceAll(text, "&cr;", "\n"))
	if text == "" {
		return
	}
	*blocks = append(*blocks, parser.Block{Kind: parser.BlockParagraph, Text: text})
}

// tableRows flattens every ROW-like descendant into a cell slice. Tables
// without row markup collapse to a single one-cell row.
func tableRows(n *node) [][]string {
	var rows [][]string
	var scan func(*node)
	scan = func(el *node) {
		if rowTags[localTag(el)] {
			var cells []string
			nonEmpty := false
			for i := range el.Nodes {
				cell := normalizeText(allText(&el.Nodes[i]))
				cell = strings.ReplaceAll(cell, "&cr;", " ")
				cells = append(cells, strings.TrimSpace(cell))
				if cells[len(cells)-1] != "" {
					nonEmpty = true
				}
			}
			if nonEmpty {
				rows = append(rows, cells)
			}
			return
		}
		for i := range el.Nodes {
			scan(&el.Nodes[i])
		}
	}
	scan(n)

	if len(rows) == 0 {
		if text := normalizeText(allText(n)); text != "" {
			rows = append(rows, []string{text})
		}
	}
	return rows
}

func rowsToText(rows [][]string) string {
	lines := make([]string, len(rows))
	for i, cells := range rows {
		lines[i] = strings.Join(cells, "\t")
	}
	return strings.Join(lines, "\n")
}

func allText(n *node) string {
	var b strings.Builder
	var gather func(*node)
	gather = func(el *node) {
		if t := strings.TrimSpace(el.Text); t != "" {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(t)
		}
		for i := range el.Nodes {
			gather(&el.Nodes[i])
		}
	}
	gather(n)
	return b.String()
}

func normalizeText(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func dedupeConsecutive(blocks []parser.Block) []parser.Block {
	var out []parser.Block
	for _, b := range blocks {
		if len(out) > 0 {
			prev := out[len(out)-1]
			if prev.Kind == b.Kind && prev.Text == b.Text {
				continue
			}
		}
		out = append(out, b)
	}
	return out
}
