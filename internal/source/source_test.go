package source

import (
	"testing"

	"fsrecon/internal/parser"
)

func para(text string) parser.Block {
	return parser.Block{Kind: parser.BlockParagraph, Text: text}
}

func table(rows ...[]string) parser.Block {
	return parser.Block{Kind: parser.BlockTable, Rows: rows}
}

func TestBuildSections_NoteBoundaries(t *testing.T) {
	secs := BuildSections([]parser.Block{
		para("주석 1. 일반사항"),
		para("당사의 임차보증금은 50,000천원입니다."),
		para("2. 재무제표 작성기준"),
		para("리스료는 1,059,251천원이 인식되었습니다."),
		para("주석15. 법인세"),
		table(
			[]string{"구분", "당기", "전기"},
			[]string{"법인세비용", "1,234,567", "987,654"},
		),
	})
	if len(secs) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(secs))
	}
	wantKeys := []string{"1", "2", "15"}
	wantTitles := []string{"일반사항", "재무제표 작성기준", "법인세"}
	for i, sec := range secs {
		if sec.Key != wantKeys[i] {
			t.Errorf("section %d: key %q, want %q", i, sec.Key, wantKeys[i])
		}
		if sec.Title != wantTitles[i] {
			t.Errorf("section %d: title %q, want %q", i, sec.Title, wantTitles[i])
		}
	}
}

func TestBuildSections_AuditorHeadingsExcluded(t *testing.T) {
	secs := BuildSections([]parser.Block{
		para("1. 감사의견"),
		para("본 감사인은 적정의견을 표명합니다. 금액은 500천원입니다."),
		para("2. 핵심감사사항"),
		para("감사기준에 따라 수행하였으며 1,000천원을 검토했습니다."),
		para("주석 1. 일반사항"),
		para("리스료는 1,059,251천원입니다."),
	})
	if len(secs) != 1 {
		t.Fatalf("expected auditor headings to be excluded, got %d sections", len(secs))
	}
	if secs[0].Title != "일반사항" {
		t.Errorf("expected 일반사항, got %q", secs[0].Title)
	}
}

func TestBuildSections_StatementTitles(t *testing.T) {
	secs := BuildSections([]parser.Block{
		para("재 무 상 태 표"),
		table(
			[]string{"과목", "당기", "전기"},
			[]string{"자산총계", "9,876,543", "8,765,432"},
		),
		para("포괄손익계산서"),
		table(
			[]string{"과목", "당기", "전기"},
			[]string{"당기순이익", "111,222", "99,887"},
		),
	})
	if len(secs) != 2 {
		t.Fatalf("expected 2 statement sections, got %d", len(secs))
	}
	if secs[0].Key != "fs:position" {
		t.Errorf("expected fs:position, got %q", secs[0].Key)
	}
	// 포괄손익계산서 must not be keyed as the plain income statement.
	if secs[1].Key != "fs:comprehensive" {
		t.Errorf("expected fs:comprehensive, got %q", secs[1].Key)
	}
}

func TestBuildSections_TableInterpretation(t *testing.T) {
	secs := BuildSections([]parser.Block{
		para("주석 3. 재고자산"),
		para("(단위: 천원)"),
		table(
			[]string{"구분", "당기", "전기"},
			[]string{"상품", "1,366,255", "707,200"},
			[]string{"합계", "1,366,255", "707,200"},
		),
	})
	if len(secs) != 1 {
		t.Fatalf("expected 1 section, got %d", len(secs))
	}
	sec := secs[0]
	if sec.Unit != "천원" {
		t.Errorf("expected unit 천원, got %q", sec.Unit)
	}
	if len(sec.Items) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(sec.Items))
	}

	item := sec.Items[0]
	if item.Label != "상품" {
		t.Errorf("expected label 상품, got %q", item.Label)
	}
	if len(item.Cells) != 2 {
		t.Fatalf("expected 2 cells, got %d", len(item.Cells))
	}
	// Values are normalized to won using the section's unit line.
	if item.Cells[0].Value == nil || *item.Cells[0].Value != 1366255000 {
		t.Errorf("expected 1366255000, got %v", item.Cells[0].Value)
	}
	if item.Cells[0].Attributes["기간"] != "당기" {
		t.Errorf("expected 기간=당기, got %v", item.Cells[0].Attributes)
	}
	if item.Cells[1].Attributes["기간"] != "전기" {
		t.Errorf("expected 기간=전기, got %v", item.Cells[1].Attributes)
	}
	if item.Cells[0].RawText != "1,366,255" {
		t.Errorf("raw text must keep the printed form, got %q", item.Cells[0].RawText)
	}

	// Seq is 0-based and unique within the section.
	for i, it := range sec.Items {
		if it.Seq != i {
			t.Errorf("item %d has seq %d", i, it.Seq)
		}
	}
}

func TestBuildSections_MultiRowHeader(t *testing.T) {
	secs := BuildSections([]parser.Block{
		para("주석 7. 금융상품"),
		table(
			[]string{"구분", "당기", "당기", "전기", "전기"},
			[]string{"", "수준1", "수준2", "수준1", "수준2"},
			[]string{"공정가치", "100", "200", "300", "400"},
		),
	})
	item := secs[0].Items[0]
	if len(item.Cells) != 4 {
		t.Fatalf("expected 4 cells, got %d", len(item.Cells))
	}
	c := item.Cells[1]
	if c.Attributes["기간"] != "당기" || c.Attributes["구분"] != "수준2" {
		t.Errorf("expected {기간:당기, 구분:수준2}, got %v", c.Attributes)
	}
	c = item.Cells[2]
	if c.Attributes["기간"] != "전기" || c.Attributes["구분"] != "수준1" {
		t.Errorf("expected {기간:전기, 구분:수준1}, got %v", c.Attributes)
	}
}

func TestBuildSections_YearHeaders(t *testing.T) {
	secs := BuildSections([]parser.Block{
		para("주석 9. 리스"),
		table(
			[]string{"구분", "2025년", "2024년"},
			[]string{"1년 이하", "1,366,255", "707,200"},
		),
	})
	cells := secs[0].Items[0].Cells
	if cells[0].Attributes["연도"] != "2025" {
		t.Errorf("expected 연도=2025, got %v", cells[0].Attributes)
	}
	if cells[1].Attributes["연도"] != "2024" {
		t.Errorf("expected 연도=2024, got %v", cells[1].Attributes)
	}
}

func TestBuildSections_NullCellsAndHeaderRows(t *testing.T) {
	secs := BuildSections([]parser.Block{
		para("주석 5. 충당부채"),
		table(
			[]string{"구분", "당기", "전기"},
			[]string{"유동성 충당부채", "", ""},
			[]string{"복구충당부채", "5,000", "-"},
		),
	})
	items := secs[0].Items
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if !items[0].HeaderOnly {
		t.Error("row without amounts must be header-only")
	}
	if items[0].Cells != nil {
		t.Error("header-only rows carry no cells")
	}
	if items[1].HeaderOnly {
		t.Error("row with an amount is not header-only")
	}
	// The dash cell survives as a nil-valued cell with its raw text.
	if items[1].Cells[1].Value != nil {
		t.Errorf("dash cell must have nil value, got %v", *items[1].Cells[1].Value)
	}
	if items[1].Cells[1].RawText != "-" {
		t.Errorf("dash cell raw text lost: %q", items[1].Cells[1].RawText)
	}
}

func TestBuildSections_GroupRowUnderMultiRowHeader(t *testing.T) {
	// The blank-labelled second row extends the header; the amount-free
	// group row right below it does not.
	secs := BuildSections([]parser.Block{
		para("주석 6. 금융자산"),
		table(
			[]string{"구분", "당기", "전기"},
			[]string{"", "수준1", "수준1"},
			[]string{"유동자산", "", ""},
			[]string{"현금성자산", "100", "200"},
		),
	})
	items := secs[0].Items
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Label != "유동자산" || !items[0].HeaderOnly {
		t.Errorf("group row lost: %+v", items[0])
	}
	if items[1].Label != "현금성자산" || items[1].HeaderOnly {
		t.Errorf("data row: %+v", items[1])
	}
	if got := items[1].Cells[0].Attributes["구분"]; got != "수준1" {
		t.Errorf("header continuation attrs lost, got %q", got)
	}
}

func TestBuildSections_NegativeAmounts(t *testing.T) {
	secs := BuildSections([]parser.Block{
		para("주석 11. 자본"),
		table(
			[]string{"구분", "당기"},
			[]string{"자기주식", "(1,234)"},
		),
	})
	v := secs[0].Items[0].Cells[0].Value
	if v == nil || *v != -1234 {
		t.Errorf("expected -1234, got %v", v)
	}
}

func TestBuildSections_InlinePairedAmounts(t *testing.T) {
	secs := BuildSections([]parser.Block{
		para("주석 9. 리스"),
		para("당기 중 인식한 리스료는 1,059,251천원(전기: 707,200천원)입니다."),
	})
	if len(secs) != 1 {
		t.Fatalf("expected 1 section, got %d", len(secs))
	}
	items := secs[0].Items
	if len(items) != 1 {
		t.Fatalf("expected 1 inline item, got %d", len(items))
	}
	cells := items[0].Cells
	if len(cells) != 2 {
		t.Fatalf("expected current and prior cells, got %d", len(cells))
	}
	if cells[0].Attributes["기간"] != "당기" || *cells[0].Value != 1059251000 {
		t.Errorf("current cell wrong: %v %v", cells[0].Attributes, *cells[0].Value)
	}
	if cells[1].Attributes["기간"] != "전기" || *cells[1].Value != 707200000 {
		t.Errorf("prior cell wrong: %v %v", cells[1].Attributes, *cells[1].Value)
	}
}

func TestBuildSections_InlineSingleAmount(t *testing.T) {
	secs := BuildSections([]parser.Block{
		para("주석 12. 우발부채"),
		para("보증한도는 3,500백만원입니다."),
	})
	items := secs[0].Items
	if len(items) != 1 {
		t.Fatalf("expected 1 inline item, got %d", len(items))
	}
	v := items[0].Cells[0].Value
	if v == nil || *v != 3500000000 {
		t.Errorf("expected 3500000000, got %v", v)
	}
}

func TestBuildSections_EmptySectionDropped(t *testing.T) {
	secs := BuildSections([]parser.Block{
		para("주석 1. 일반사항"),
		para("금액 없는 서술만 있는 주석."),
		para("주석 2. 재고자산"),
		table(
			[]string{"구분", "당기"},
			[]string{"상품", "1,000"},
		),
	})
	// A section with no extractable items carries nothing to reconcile.
	if len(secs) != 1 {
		t.Fatalf("expected amount-free section to drop, got %d", len(secs))
	}
	if secs[0].Key != "2" {
		t.Errorf("expected section 2, got %q", secs[0].Key)
	}
}
