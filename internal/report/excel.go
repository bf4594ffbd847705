// Package report renders reconciliation results into a formatted Excel
// workbook: a Summary sheet, a Mapping_Log sheet, a Mismatches digest, and
// one detail sheet per reconciled section.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"fsrecon/internal/model"
)

// Cell fill colors, shared across sheets.
const (
	colorMatch        = "C6EFCE" // light green
	colorMismatch     = "FFC7CE" // light red
	colorUnverifiable = "FFEB9C" // light yellow
	colorNotFound     = "D9D9D9" // gray
	colorHeader       = "4472C4" // blue
	colorGroupRow     = "607D8B" // slate, header-only rows
)

type styleSet struct {
	header  int
	group   int
	match   int
	miss    int
	unver   int
	number  int
	percent int
	plain   int
}

// Writer accumulates one workbook.
type Writer struct {
	f      *excelize.File
	styles styleSet
	now    time.Time
}

func NewWriter() (*Writer, error) {
	w := &Writer{f: excelize.NewFile(), now: time.Now()}
	if err := w.buildStyles(); err != nil {
		return nil, fmt.Errorf("creating styles: %w", err)
	}
	return w, nil
}

func (w *Writer) buildStyles() error {
	border := []excelize.Border{
		{Type: "left", Color: "CCCCCC", Style: 1},
		{Type: "right", Color: "CCCCCC", Style: 1},
		{Type: "top", Color: "CCCCCC", Style: 1},
		{Type: "bottom", Color: "CCCCCC", Style: 1},
	}
	fill := func(color string) excelize.Fill {
		return excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1}
	}
	var err error
	mk := func(s *excelize.Style) int {
		if err != nil {
			return 0
		}
		var id int
		id, err = w.f.NewStyle(s)
		return id
	}

	w.styles.header = mk(&excelize.Style{
		Fill:      fill(colorHeader),
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 10},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	w.styles.group = mk(&excelize.Style{
		Fill: fill(colorGroupRow),
		Font: &excelize.Font{Bold: true, Color: "FFFFFF", Size: 10},
	})
	w.styles.match = mk(&excelize.Style{Fill: fill(colorMatch), Border: border})
	w.styles.miss = mk(&excelize.Style{Fill: fill(colorMismatch), Border: border})
	w.styles.unver = mk(&excelize.Style{Fill: fill(colorUnverifiable), Border: border})

	numFmt := "#,##0"
	w.styles.number = mk(&excelize.Style{
		CustomNumFmt: &numFmt,
		Alignment:    &excelize.Alignment{Horizontal: "right", Vertical: "center"},
		Border:       border,
	})
	pctFmt := "0.0%"
	w.styles.percent = mk(&excelize.Style{
		CustomNumFmt: &pctFmt,
		Alignment:    &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:       border,
	})
	w.styles.plain = mk(&excelize.Style{Border: border})
	return err
}

// Render writes the complete workbook to path.
func (w *Writer) Render(results []model.SectionResult, path string) error {
	if err := w.writeSummary(results); err != nil {
		return err
	}
	if err := w.writeMappingLog(results); err != nil {
		return err
	}
	if err := w.writeMismatches(results); err != nil {
		return err
	}
	for i := range results {
		if err := w.writeSectionSheet(&results[i]); err != nil {
			return err
		}
	}
	// The default sheet is replaced by Summary.
	if err := w.f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	if idx, err := w.f.GetSheetIndex("Summary"); err == nil && idx >= 0 {
		w.f.SetActiveSheet(idx)
	}
	if err := w.f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return w.f.Close()
}

func (w *Writer) setRow(sheet string, row int, style int, values ...any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if v != nil {
			if err := w.f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
		if style != 0 {
			if err := w.f.SetCellStyle(sheet, cell, cell, style); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Writer) freezeRows(sheet string, rows int) {
	topLeft, _ := excelize.CoordinatesToCellName(1, rows+1)
	_ = w.f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      rows,
		TopLeftCell: topLeft,
		ActivePane:  "bottomLeft",
	})
}

func (w *Writer) writeSummary(results []model.SectionResult) error {
	const sheet = "Summary"
	if _, err := w.f.NewSheet(sheet); err != nil {
		return err
	}

	total, matched, mismatched, unver := 0, 0, 0, 0
	for i := range results {
		total += results[i].TotalCells()
		matched += results[i].MatchedCount()
		mismatched += results[i].MismatchedCount()
		unver += results[i].UnverifiableCount()
	}
	rate := 0.0
	if total > 0 {
		rate = float64(matched) / float64(total)
	}

	w.f.SetCellValue(sheet, "A1", "재무제표 국문/영문 대사 결과")
	w.f.MergeCell(sheet, "A1", "I1")
	w.f.SetCellStyle(sheet, "A1", "A1", w.styles.header)
	w.f.SetCellValue(sheet, "A2", "생성일시: "+w.now.Format("2006-01-02 15:04"))
	w.f.SetCellValue(sheet, "A3", fmt.Sprintf(
		"전체: %d건 대사 | 일치 %d건 (%.1f%%) | 불일치 %d건 | 검증불가 %d건",
		total, matched, rate*100, mismatched, unver))
	w.f.MergeCell(sheet, "A3", "I3")

	headers := []any{"구분", "국문 제목", "영문 제목", "총 금액수", "일치", "불일치", "검증불가", "일치율", "매핑방법"}
	if err := w.setRow(sheet, 5, w.styles.header, headers...); err != nil {
		return err
	}

	row := 6
	for i := range results {
		r := &results[i]
		rowStyle := w.styles.plain
		if r.MismatchedCount() > 0 {
			rowStyle = w.styles.miss
		}
		if err := w.setRow(sheet, row, rowStyle,
			r.SourceKey, r.SourceTitle, dash(r.TargetTitle),
			r.TotalCells(), r.MatchedCount(), r.MismatchedCount(), r.UnverifiableCount(),
			nil, string(r.MappingMethod)); err != nil {
			return err
		}
		rateCell, _ := excelize.CoordinatesToCellName(8, row)
		w.f.SetCellValue(sheet, rateCell, r.MatchRate())
		w.f.SetCellStyle(sheet, rateCell, rateCell, w.styles.percent)
		row++
	}

	widths := []float64{12, 28, 35, 9, 7, 7, 9, 8, 22}
	for i, width := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		w.f.SetColWidth(sheet, col, col, width)
	}
	w.freezeRows(sheet, 5)
	return nil
}

func (w *Writer) writeMappingLog(results []model.SectionResult) error {
	const sheet = "Mapping_Log"
	if _, err := w.f.NewSheet(sheet); err != nil {
		return err
	}
	headers := []any{"구분", "국문 제목", "영문 구분", "영문 제목", "매핑방법", "신뢰도"}
	if err := w.setRow(sheet, 1, w.styles.header, headers...); err != nil {
		return err
	}
	for i := range results {
		r := &results[i]
		confStyle := w.styles.match
		switch {
		case r.MappingConfidence < 0.5:
			confStyle = w.styles.miss
		case r.MappingConfidence < 0.9:
			confStyle = w.styles.unver
		}
		if err := w.setRow(sheet, i+2, w.styles.plain,
			r.SourceKey, r.SourceTitle, dash(r.TargetKey), dash(r.TargetTitle),
			string(r.MappingMethod)); err != nil {
			return err
		}
		cell, _ := excelize.CoordinatesToCellName(6, i+2)
		w.f.SetCellValue(sheet, cell, r.MappingConfidence)
		w.f.SetCellStyle(sheet, cell, cell, confStyle)
	}
	for i, width := range []float64{14, 30, 14, 35, 22, 8} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		w.f.SetColWidth(sheet, col, col, width)
	}
	w.freezeRows(sheet, 1)
	return nil
}

func (w *Writer) writeMismatches(results []model.SectionResult) error {
	const sheet = "Mismatches"
	if _, err := w.f.NewSheet(sheet); err != nil {
		return err
	}
	headers := []any{"구분", "국문 제목", "국문 레이블", "영문 레이블", "속성",
		"국문 금액", "영문 보고치", "배율", "차이", "상태", "메모"}
	if err := w.setRow(sheet, 1, w.styles.header, headers...); err != nil {
		return err
	}

	row := 2
	for i := range results {
		r := &results[i]
		for _, item := range r.Items {
			for _, rec := range item.Records {
				if rec.Outcome == model.OutcomeMatched {
					continue
				}
				if err := w.writeRecordRow(sheet, row, r, &item, &rec, true); err != nil {
					return err
				}
				row++
			}
		}
	}
	for i, width := range []float64{8, 25, 25, 25, 30, 14, 14, 10, 14, 10, 30} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		w.f.SetColWidth(sheet, col, col, width)
	}
	w.freezeRows(sheet, 1)
	return nil
}

func (w *Writer) writeSectionSheet(r *model.SectionResult) error {
	sheet := sheetName(r.SourceKey)
	if _, err := w.f.NewSheet(sheet); err != nil {
		return err
	}

	w.f.SetCellValue(sheet, "A1", r.SourceKey+". "+r.SourceTitle+"  ⇄  "+dash(r.TargetTitle))
	w.f.MergeCell(sheet, "A1", "K1")
	w.f.SetCellStyle(sheet, "A1", "A1", w.styles.header)

	headers := []any{"번호", "국문 레이블", "영문 레이블", "속성",
		"국문 금액", "영문 보고치", "배율", "차이", "상태", "발견", "메모"}
	if err := w.setRow(sheet, 2, w.styles.header, headers...); err != nil {
		return err
	}

	row := 3
	for _, item := range r.Items {
		if item.HeaderOnly {
			cell, _ := excelize.CoordinatesToCellName(1, row)
			w.f.SetCellValue(sheet, cell, item.Label)
			end, _ := excelize.CoordinatesToCellName(11, row)
			w.f.MergeCell(sheet, cell, end)
			w.f.SetCellStyle(sheet, cell, cell, w.styles.group)
			row++
			continue
		}
		for _, rec := range item.Records {
			if err := w.writeRecordRow(sheet, row, r, &item, &rec, false); err != nil {
				return err
			}
			row++
		}
	}

	for i, width := range []float64{7, 28, 28, 30, 14, 14, 10, 14, 10, 7, 25} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		w.f.SetColWidth(sheet, col, col, width)
	}
	w.freezeRows(sheet, 2)
	return nil
}

// writeRecordRow writes one verification record. In digest mode the leading
// columns identify the section; in section-sheet mode they identify the item.
func (w *Writer) writeRecordRow(sheet string, row int, r *model.SectionResult, item *model.ItemResult, rec *model.VerificationRecord, digest bool) error {
	style := w.styles.unver
	status := "검증불가"
	switch rec.Outcome {
	case model.OutcomeMatched:
		style = w.styles.match
		status = "일치"
	case model.OutcomeMismatched:
		style = w.styles.miss
		status = "불일치"
	}

	var lead []any
	if digest {
		lead = []any{r.SourceKey, r.SourceTitle}
	} else {
		lead = []any{rec.ItemSeq}
	}
	values := append(lead,
		rec.Label, dash(rec.ClaimedLabel), attrString(rec.SourceAttrs),
		nil, nil, nil, nil, status)
	if digest {
		values = append(values, rec.Commentary)
	} else {
		values = append(values, found(rec.Found), rec.Commentary)
	}
	if err := w.setRow(sheet, row, style, values...); err != nil {
		return err
	}

	numCol := len(lead) + 4
	srcCell, _ := excelize.CoordinatesToCellName(numCol, row)
	w.f.SetCellValue(sheet, srcCell, rec.SourceValue)
	w.f.SetCellStyle(sheet, srcCell, srcCell, w.styles.number)

	if rec.ClaimedValue != nil {
		claimCell, _ := excelize.CoordinatesToCellName(numCol+1, row)
		w.f.SetCellValue(sheet, claimCell, *rec.ClaimedValue)
		w.f.SetCellStyle(sheet, claimCell, claimCell, w.styles.number)
	}
	if rec.Scale > 0 {
		scaleCell, _ := excelize.CoordinatesToCellName(numCol+2, row)
		w.f.SetCellValue(sheet, scaleCell, "×"+strconv.FormatFloat(rec.Scale, 'f', -1, 64))
	}
	if rec.Outcome == model.OutcomeMismatched {
		varCell, _ := excelize.CoordinatesToCellName(numCol+3, row)
		w.f.SetCellValue(sheet, varCell, rec.Variance)
		w.f.SetCellStyle(sheet, varCell, varCell, w.styles.number)
	}
	return nil
}

// sheetName maps a section key to a legal Excel sheet name. Statement keys
// get their Korean titles; note keys get Note_NN.
func sheetName(key string) string {
	fsNames := map[string]string{
		"fs:position":      "FS_재무상태표",
		"fs:income":        "FS_손익계산서",
		"fs:comprehensive": "FS_포괄손익계산서",
		"fs:equity":        "FS_자본변동표",
		"fs:cash-flows":    "FS_현금흐름표",
	}
	name, ok := fsNames[key]
	if !ok {
		if n, err := strconv.Atoi(key); err == nil {
			name = fmt.Sprintf("Note_%02d", n)
		} else {
			name = "Note_" + key
		}
	}
	return sanitizeSheetName(name)
}

// sanitizeSheetName enforces Excel's 31-character limit and forbidden
// character set.
func sanitizeSheetName(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", "?", "X", "*", "X", "[", "(", "]", ")", ":", "_")
	name = replacer.Replace(name)
	runes := []rune(name)
	if len(runes) > 31 {
		runes = runes[:31]
	}
	return string(runes)
}

// Filename builds the output workbook name for a job.
func Filename(jobID string, t time.Time) string {
	return fmt.Sprintf("reconciliation_%s_%s.xlsx", jobID, t.Format("20060102"))
}

func attrString(attrs model.Attributes) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + attrs[k]
	}
	return strings.Join(parts, ", ")
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "—"
	}
	return s
}

func found(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}
