package segment

import (
	"fmt"
	"regexp"
	"strings"

	"fsrecon/internal/model"
	"fsrecon/internal/parser"
)

// MinSections is the segmentation reliability floor. A document that yields
// fewer detected sections than this falls back to one whole-document
// section: a partial segmentation with one or two sections misleads the
// mapping resolver more than an honest "unsegmented" signal.
const MinSections = 3

// Numbered note headings: "1. General Information", "NOTE 15 Income Tax".
// Sub-numbered lines ("1.1", "2.2.1 ...") are not section boundaries.
var (
	noteHeadingRe = regexp.MustCompile(`^\s*(\d{1,3})\.\s+(\p{Lu}[^\n]{0,120})$`)
	noteWordRe    = regexp.MustCompile(`(?i)^\s*NOTE\s+(\d{1,3})[.:]?\s*(.{0,120})$`)
	subNumberRe   = regexp.MustCompile(`^\s*\d+\.\d`)

	// Heading of the notes category; ends a financial-statement capture
	// region without itself opening a note.
	notesCategoryRe = regexp.MustCompile(`(?i)^\s*NOTES\s+TO\s+(THE\s+)?(CONSOLIDATED\s+|SEPARATE\s+)?FINANCIAL\s+STATEMENTS?\b`)

	// A number with 7+ significant digits, plain or comma-grouped. Used as
	// an amounts-table proxy when classifying pdf statement pages.
	bigNumberRe = regexp.MustCompile(`\d{1,3}(?:,\d{3}){2,}|\d{7,}`)

	pageNumberRe = regexp.MustCompile(`^\d{1,3}$`)
)

// Statement titles in decreasing specificity. Comprehensive income must be
// tried before income.
var statementPatterns = []struct {
	key string
	re  *regexp.Regexp
}{
	{"fs:position", regexp.MustCompile(`(?i)^\s*(CONSOLIDATED\s+|SEPARATE\s+)?STATEMENTS?\s+OF\s+FINANCIAL\s+POSITION\b`)},
	{"fs:position", regexp.MustCompile(`(?i)^\s*(CONSOLIDATED\s+|SEPARATE\s+)?BALANCE\s+SHEETS?\b`)},
	{"fs:comprehensive", regexp.MustCompile(`(?i)^\s*(CONSOLIDATED\s+|SEPARATE\s+)?STATEMENTS?\s+OF\s+COMPREHENSIVE\s+(INCOME|LOSS)\b`)},
	{"fs:income", regexp.MustCompile(`(?i)^\s*(CONSOLIDATED\s+|SEPARATE\s+)?(INCOME\s+STATEMENTS?|STATEMENTS?\s+OF\s+(PROFIT\s+OR\s+LOSS|INCOME|OPERATIONS))\b`)},
	{"fs:equity", regexp.MustCompile(`(?i)^\s*(CONSOLIDATED\s+|SEPARATE\s+)?STATEMENTS?\s+OF\s+CHANGES\s+IN\s+(SHAREHOLDERS.?\s+)?EQUITY\b`)},
	{"fs:cash-flows", regexp.MustCompile(`(?i)^\s*(CONSOLIDATED\s+|SEPARATE\s+)?STATEMENTS?\s+OF\s+CASH\s+FLOWS?\b`)},
}

// Word paragraph styles that mark a note title.
var titleStyles = map[string]bool{
	"ABCTitle":  true,
	"Title":     true,
	"Heading1":  true,
	"Heading 1": true,
	"heading 1": true,
}

type accum struct {
	key       string
	title     string
	lines     []string
	pageStart int
	pageEnd   int
	statement bool
}

// Segment splits a parsed block stream into titled sections. It never fails:
// absence of detectable structure degrades to a single section that spans
// the whole cleaned document.
func Segment(stream *parser.Stream) *model.TargetDocument {
	doc := &model.TargetDocument{
		Filename: stream.Filename,
		Format:   stream.Format,
	}

	var sections []accum
	var full []string

	if stream.Format == model.FormatPDF {
		sections, full = segmentPages(stream)
	} else {
		sections, full = segmentBlocks(stream)
	}

	doc.FullText = strings.Join(full, "\n")

	if len(sections) < MinSections {
		doc.Sections = []model.TextSection{*doc.FallbackSection()}
		return doc
	}

	for _, s := range sections {
		doc.Sections = append(doc.Sections, model.TextSection{
			Key:       s.key,
			Title:     s.title,
			RawText:   strings.Join(s.lines, "\n"),
			Format:    stream.Format,
			PageStart: s.pageStart,
			PageEnd:   s.pageEnd,
		})
	}
	return doc
}

// Unsegmented reports whether segmentation degraded to the whole-document
// fallback for this target.
func Unsegmented(doc *model.TargetDocument) bool {
	return len(doc.Sections) == 1 && doc.Sections[0].Key == model.FallbackKey
}

// segmentBlocks handles style-aware formats (word, html, markdown, text).
// Boundary detectors are an ordered cascade, each tried independently in
// decreasing specificity: numbered heading text, title style tag, top-level
// auto-numbering metadata.
func segmentBlocks(stream *parser.Stream) ([]accum, []string) {
	var sections []accum
	var current *accum
	var full []string

	flush := func() {
		if current != nil {
			sections = append(sections, *current)
			current = nil
		}
	}

	noteCounter := 0
	inStatement := false

	for _, b := range stream.Blocks {
		if b.Kind == parser.BlockTable {
			full = append(full, b.Text)
			if current != nil {
				current.lines = append(current.lines, b.Text)
			}
			continue
		}

		text := strings.TrimSpace(b.Text)
		if text == "" || pageNumberRe.MatchString(text) {
			continue
		}
		full = append(full, text)

		// A notes-category heading closes a statement capture region so
		// statement sections never absorb note content.
		if notesCategoryRe.MatchString(text) {
			if inStatement {
				flush()
				inStatement = false
			}
			continue
		}

		if key, title, ok := detectStatement(text); ok {
			flush()
			current = &accum{key: key, title: title, lines: []string{text}, statement: true}
			inStatement = true
			continue
		}

		if num, title, ok := detectNumberedHeading(text); ok {
			flush()
			inStatement = false
			current = &accum{key: num, title: title, lines: []string{text}}
			continue
		}

		if titleStyles[b.Style] && looksLikeTitle(text) {
			flush()
			inStatement = false
			noteCounter++
			current = &accum{key: fmt.Sprintf("%d", noteCounter), title: text, lines: []string{text}}
			continue
		}

		if b.AutoNum > 0 && looksLikeTitle(text) {
			flush()
			inStatement = false
			current = &accum{key: fmt.Sprintf("%d", b.AutoNum), title: text, lines: []string{text}}
			continue
		}

		if current != nil {
			current.lines = append(current.lines, text)
		}
	}
	flush()

	return sections, full
}

// segmentPages handles the page-oriented pdf format.
func segmentPages(stream *parser.Stream) ([]accum, []string) {
	pages := cleanPages(stream)

	var sections []accum
	var current *accum
	var full []string

	flush := func() {
		if current != nil {
			sections = append(sections, *current)
			current = nil
		}
	}

	inStatement := false

	for _, pg := range pages {
		full = append(full, pg.lines...)

		// A page opens a financial-statement section only when a statement
		// title sits in its first few lines AND the page holds at least one
		// amount-sized number. Titles alone also appear on contents and
		// cover pages; amount density disambiguates.
		if key, title, ok := classifyStatementPage(pg.lines); ok {
			if current == nil || current.key != key {
				flush()
				current = &accum{key: key, title: title, pageStart: pg.num, statement: true}
				inStatement = true
			}
		}

		for _, line := range pg.lines {
			if notesCategoryRe.MatchString(line) {
				if inStatement {
					flush()
					inStatement = false
				}
				continue
			}
			if num, title, ok := detectNumberedHeading(line); ok {
				flush()
				inStatement = false
				current = &accum{key: num, title: title, lines: []string{line}, pageStart: pg.num}
				continue
			}
			if current != nil {
				current.lines = append(current.lines, line)
				current.pageEnd = pg.num
			}
		}
	}
	flush()

	return sections, full
}

func detectNumberedHeading(line string) (num, title string, ok bool) {
	if subNumberRe.MatchString(line) {
		return "", "", false
	}
	if m := noteHeadingRe.FindStringSubmatch(line); m != nil {
		return m[1], strings.TrimSpace(m[2]), true
	}
	if m := noteWordRe.FindStringSubmatch(line); m != nil {
		title := strings.TrimSpace(m[2])
		if title == "" {
			title = "NOTE " + m[1]
		}
		return m[1], title, true
	}
	return "", "", false
}

func detectStatement(line string) (key, title string, ok bool) {
	for _, sp := range statementPatterns {
		if sp.re.MatchString(line) {
			return sp.key, strings.TrimSpace(line), true
		}
	}
	return "", "", false
}

const statementTitleWindow = 5

func classifyStatementPage(lines []string) (key, title string, ok bool) {
	limit := statementTitleWindow
	if len(lines) < limit {
		limit = len(lines)
	}
	for i := 0; i < limit; i++ {
		k, t, found := detectStatement(lines[i])
		if !found {
			continue
		}
		for _, line := range lines {
			if bigNumberRe.MatchString(line) {
				return k, t, true
			}
		}
		return "", "", false
	}
	return "", "", false
}

// looksLikeTitle filters style/auto-number boundary candidates down to
// short heading-shaped text.
func looksLikeTitle(text string) bool {
	if len(text) > 120 || strings.Contains(text, "\t") {
		return false
	}
	r := []rune(text)
	return len(r) > 0 && !isLower(r[0])
}

func isLower(r rune) bool {
	return r >= 'a' && r <= 'z'
}
