// Package source builds structured sections from a DSD block stream. Note
// boundaries, statement titles, units, and table shapes in DART filings are
// regular enough to interpret deterministically; only the free-text side of
// a reconciliation needs a semantic reading.
package source

import (
	"regexp"
	"strings"

	"fsrecon/internal/model"
	"fsrecon/internal/parser"
)

var (
	// 주석 15. 법인세 / 주석15 법인세
	explicitNoteRe = regexp.MustCompile(`^\s*주\s*석\s*(\d+)\s*[.\s]*(.*)\s*$`)
	// 15. 법인세 / 16 종업원급여
	simpleNoteRe = regexp.MustCompile(`^\s*(\d+)\s*[.\s]\s*([\p{Hangul}\w\s]{2,40})\s*$`)

	// Auditor's report headings match the simple note pattern but are not
	// financial-statement notes.
	auditorKeywordRe = regexp.MustCompile(
		`감사대상|감사참여|감사실시|감사의견|핵심감사|감사범위|감사기준|` +
			`경영진의\s*책임|감사인의\s*책임|감사보고|내부통제|계속기업`)

	yearHeaderRe = regexp.MustCompile(`^(\d{4})\s*년?\s*(?:말|도)?$`)

	// 1,059,251천원(전기: 707,200천원)
	pairedAmountRe = regexp.MustCompile(
		`([\d,]+(?:\.\d+)?)\s*(천원|백만원)\s*\(\s*전\s*기\s*:?\s*([\d,]+(?:\.\d+)?)\s*(천원|백만원)\s*\)`)
	// 1,059,251천원
	inlineAmountRe = regexp.MustCompile(`([\d,]+(?:\.\d+)?)\s*(천원|백만원)`)
)

// statementTitles maps Korean statement headings to canonical section keys.
// The free-text segmentation engine emits the same keys, which lets the
// exact-key mapping tier pair statements across languages. Longer titles
// come first so 포괄손익계산서 is not read as 손익계산서.
var statementTitles = []struct {
	Keyword string
	Key     string
	Title   string
}{
	{"재무상태표", "fs:position", "재무상태표"},
	{"포괄손익계산서", "fs:comprehensive", "포괄손익계산서"},
	{"손익계산서", "fs:income", "손익계산서"},
	{"자본변동표", "fs:equity", "자본변동표"},
	{"현금흐름표", "fs:cash-flows", "현금흐름표"},
}

// labelHeaders are column headings that carry row labels, not values.
var labelHeaders = map[string]bool{
	"구분": true, "세부구분": true, "내역": true, "항목": true,
	"계정과목": true, "과목": true, "종류": true, "명칭": true,
}

// BuildSections splits the filing into statement and note sections and
// interprets their tables into attributed value cells. Amounts are
// normalized to won using each section's unit line. Blocks before the first
// recognized boundary (cover pages, auditor's report) are dropped.
func BuildSections(blocks []parser.Block) []*model.SourceSection {
	type boundary struct {
		index int
		key   string
		title string
	}
	var bounds []boundary
	for i, b := range blocks {
		if b.Kind != parser.BlockParagraph {
			continue
		}
		line := firstLine(b.Text)
		if key, title, ok := matchStatementTitle(line); ok {
			bounds = append(bounds, boundary{i, key, title})
			continue
		}
		if num, title, ok := matchNoteHeading(line); ok {
			bounds = append(bounds, boundary{i, num, title})
		}
	}

	var sections []*model.SourceSection
	for bi, b := range bounds {
		end := len(blocks)
		if bi+1 < len(bounds) {
			end = bounds[bi+1].index
		}
		sec := buildSection(b.key, b.title, blocks[b.index:end])
		if sec != nil {
			sections = append(sections, sec)
		}
	}
	return sections
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func matchStatementTitle(line string) (key, title string, ok bool) {
	if len([]rune(line)) > 30 {
		return "", "", false
	}
	// Statement titles are often letter-spaced: 재 무 상 태 표.
	compact := strings.Join(strings.Fields(line), "")
	for _, st := range statementTitles {
		if strings.Contains(compact, st.Keyword) {
			return st.Key, st.Title, true
		}
	}
	return "", "", false
}

func matchNoteHeading(line string) (num, title string, ok bool) {
	for _, re := range []*regexp.Regexp{explicitNoteRe, simpleNoteRe} {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		title = strings.TrimSpace(m[2])
		if auditorKeywordRe.MatchString(title) {
			return "", "", false
		}
		return strings.TrimSpace(m[1]), title, true
	}
	return "", "", false
}

func buildSection(key, title string, blocks []parser.Block) *model.SourceSection {
	sec := &model.SourceSection{Key: key, Title: title, Unit: "원"}

	// The unit line applies to every table after it; scan paragraphs first.
	for _, b := range blocks {
		if b.Kind != parser.BlockParagraph {
			continue
		}
		if u := model.DetectUnit(b.Text); u != "" {
			sec.Unit = u
			break
		}
	}
	multiplier := model.NormalizeUnit(1, sec.Unit)

	seq := 0
	for i, b := range blocks {
		switch b.Kind {
		case parser.BlockTable:
			sec.Items = append(sec.Items, interpretTable(b.Rows, multiplier, &seq)...)
		case parser.BlockParagraph:
			if i == 0 {
				continue // the heading itself
			}
			sec.Items = append(sec.Items, inlineAmountItems(b.Text, &seq)...)
		}
	}
	if len(sec.Items) == 0 {
		return nil
	}
	return sec
}

// columnAttrs turns a stack of column headings into cell attributes. Period
// words map to 기간, four-digit years to 연도, anything else to 구분 and
// then 세부구분 for deeper header rows.
func columnAttrs(headers []string) model.Attributes {
	attrs := model.Attributes{}
	generic := []string{"구분", "세부구분"}
	for _, h := range headers {
		h = strings.TrimSpace(h)
		switch {
		case h == "":
		case strings.Contains(h, "전전기"):
			attrs["기간"] = "전전기"
		case strings.Contains(h, "당기") || strings.Contains(h, "당 기"):
			attrs["기간"] = "당기"
		case strings.Contains(h, "전기") || strings.Contains(h, "전 기"):
			attrs["기간"] = "전기"
		case yearHeaderRe.MatchString(h):
			attrs["연도"] = yearHeaderRe.FindStringSubmatch(h)[1]
		case labelHeaders[h]:
		default:
			if len(generic) > 0 {
				attrs[generic[0]] = h
				generic = generic[1:]
			}
		}
	}
	return attrs
}

// interpretTable reads leading non-numeric rows as a header matrix and the
// rest as data rows. Column 0 is the row label; label-typed extra columns
// extend the label. Rows with no parsable amounts become header-only items.
func interpretTable(rows [][]string, multiplier float64, seq *int) []model.LineItem {
	if len(rows) == 0 {
		return nil
	}

	headerDepth := 0
	for headerDepth < len(rows) && headerDepth < 3 && !rowHasAmount(rows[headerDepth]) {
		// An amount-free row below the first header row is only part of
		// the header matrix when its label column is blank or repeats a
		// label heading. A row naming something there is a group row.
		if headerDepth > 0 && !headerContinuation(rows[headerDepth]) {
			break
		}
		headerDepth++
	}
	if headerDepth == len(rows) {
		// All-text table, often a layout artifact. Treat first row as the
		// header and the rest as header-only rows.
		headerDepth = 1
	}
	headerRows := rows[:headerDepth]

	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	colAttrs := make([]model.Attributes, width)
	colIsLabel := make([]bool, width)
	for c := 0; c < width; c++ {
		var stack []string
		for _, hr := range headerRows {
			if c < len(hr) {
				h := strings.TrimSpace(hr[c])
				if h != "" && (len(stack) == 0 || stack[len(stack)-1] != h) {
					stack = append(stack, h)
				}
			}
		}
		colAttrs[c] = columnAttrs(stack)
		colIsLabel[c] = c == 0 || (len(stack) > 0 && labelHeaders[stack[len(stack)-1]])
	}

	var items []model.LineItem
	for _, row := range rows[headerDepth:] {
		var labelParts []string
		var cells []model.ValueCell
		for c, raw := range row {
			raw = strings.TrimSpace(raw)
			if colIsLabel[c] {
				if raw != "" {
					labelParts = append(labelParts, raw)
				}
				continue
			}
			v := model.ParseAmount(raw)
			if v != nil {
				scaled := *v * multiplier
				v = &scaled
			}
			cells = append(cells, model.ValueCell{
				Attributes: colAttrs[c].Clone(),
				Value:      v,
				RawText:    raw,
			})
		}
		label := strings.Join(labelParts, " / ")
		if label == "" && !anyValue(cells) {
			continue
		}
		item := model.LineItem{
			Seq:        *seq,
			Label:      label,
			HeaderOnly: !anyValue(cells),
			Cells:      cells,
		}
		if item.HeaderOnly {
			item.Cells = nil
		}
		items = append(items, item)
		*seq++
	}
	return items
}

func headerContinuation(row []string) bool {
	if len(row) == 0 {
		return false
	}
	first := strings.TrimSpace(row[0])
	return first == "" || labelHeaders[first]
}

func rowHasAmount(row []string) bool {
	for i, cell := range row {
		if i == 0 {
			continue
		}
		if model.ParseAmount(strings.TrimSpace(cell)) != nil {
			return true
		}
	}
	return false
}

func anyValue(cells []model.ValueCell) bool {
	for _, c := range cells {
		if c.Value != nil {
			return true
		}
	}
	return false
}

// inlineAmountItems extracts amounts quoted inside running prose. The
// "NNN천원(전기: MMM천원)" idiom yields a current and prior period pair;
// other unit-suffixed amounts yield single-cell items. Inline units bind
// tighter than the section's unit line.
func inlineAmountItems(text string, seq *int) []model.LineItem {
	var items []model.LineItem

	consumed := map[int]bool{}
	for _, m := range pairedAmountRe.FindAllStringSubmatchIndex(text, -1) {
		label := contextLabel(text, m[0])
		cur := scaledAmount(text[m[2]:m[3]], text[m[4]:m[5]])
		prev := scaledAmount(text[m[6]:m[7]], text[m[8]:m[9]])
		if cur == nil && prev == nil {
			continue
		}
		items = append(items, model.LineItem{
			Seq:   *seq,
			Label: label,
			Cells: []model.ValueCell{
				{Attributes: model.Attributes{"기간": "당기"}, Value: cur, RawText: text[m[2]:m[5]]},
				{Attributes: model.Attributes{"기간": "전기"}, Value: prev, RawText: text[m[6]:m[9]]},
			},
		})
		*seq++
		for i := m[0]; i < m[1]; i++ {
			consumed[i] = true
		}
	}

	for _, m := range inlineAmountRe.FindAllStringSubmatchIndex(text, -1) {
		if consumed[m[0]] {
			continue
		}
		v := scaledAmount(text[m[2]:m[3]], text[m[4]:m[5]])
		if v == nil {
			continue
		}
		items = append(items, model.LineItem{
			Seq:   *seq,
			Label: contextLabel(text, m[0]),
			Cells: []model.ValueCell{
				{Attributes: model.Attributes{}, Value: v, RawText: text[m[0]:m[1]]},
			},
		})
		*seq++
	}
	return items
}

func scaledAmount(num, unit string) *float64 {
	v := model.ParseAmount(num)
	if v == nil {
		return nil
	}
	scaled := model.NormalizeUnit(*v, unit)
	return &scaled
}

// contextLabel is the clause leading up to an inline amount, clipped at the
// previous sentence break and at 60 runes.
func contextLabel(text string, pos int) string {
	start := 0
	for i := pos - 1; i >= 0; i-- {
		if text[i] == '.' || text[i] == '\n' {
			start = i + 1
			break
		}
	}
	label := strings.TrimSpace(text[start:pos])
	runes := []rune(label)
	if len(runes) > 60 {
		runes = runes[len(runes)-60:]
	}
	return strings.TrimSpace(string(runes))
}
