package parser

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"fsrecon/internal/model"
)

// BlockKind distinguishes the units of a parsed block stream.
type BlockKind string

const (
	BlockParagraph BlockKind = "paragraph"
	BlockTable     BlockKind = "table"
	BlockPage      BlockKind = "page" // one pdf page of plain text
)

// Block is one unit of the ordered stream a parser produces. Segmentation
// runs over blocks; it never touches the source container again.
type Block struct {
	Kind    BlockKind
	Text    string     // paragraph/page text, or tab-joined table text
	Rows    [][]string // table blocks only
	Style   string     // docx paragraph style name, "" elsewhere
	AutoNum int        // docx auto-numbering ordinal (1-based), 0 when none
	Page    int        // pdf page number, 0 when not page-oriented
}

// Stream is the full parsed document in original order.
type Stream struct {
	Filename string
	Format   model.DocFormat
	Blocks   []Block
}

// Parser converts raw document bytes into a block stream.
type Parser interface {
	Parse(r io.Reader, filename string) (*Stream, error)
}

// SupportedExtensions lists free-text filing formats this service accepts.
var SupportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".html": true,
	".htm":  true,
	".pdf":  true,
	".docx": true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Sniff picks a parser from magic bytes when the extension is missing or
// wrong: ZIP containers are treated as docx, %PDF as pdf.
func Sniff(data []byte) (Parser, error) {
	switch {
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return &DOCXParser{}, nil
	case bytes.HasPrefix(data, []byte("%PDF")):
		return &PDFParser{}, nil
	}
	return nil, fmt.Errorf("unrecognized file format")
}
