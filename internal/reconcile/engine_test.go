package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"fsrecon/internal/model"
)

// fakeOracle scripts CompleteJSON responses. Each call consumes the next
// response; an error entry simulates a transport failure.
type fakeOracle struct {
	mu        sync.Mutex
	responses []fakeResponse
	calls     []string
}

type fakeResponse struct {
	body string
	err  error
}

func (f *fakeOracle) CompleteJSON(ctx context.Context, system, user string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, user)
	if len(f.responses) == 0 {
		return nil, fmt.Errorf("fake oracle: no scripted response")
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	if r.err != nil {
		return nil, r.err
	}
	return []byte(r.body), nil
}

func (f *fakeOracle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSection() *model.SourceSection {
	return &model.SourceSection{
		Key:   "15",
		Title: "법인세",
		Unit:  "천원",
		Items: []model.LineItem{
			{Seq: 0, Label: "법인세비용", HeaderOnly: true},
			{Seq: 1, Label: "당기법인세", Cells: []model.ValueCell{
				{Attributes: model.Attributes{"기간": "당기"}, Value: model.Float(1234567000), RawText: "1,234,567"},
				{Attributes: model.Attributes{"기간": "전기"}, Value: model.Float(987654000), RawText: "987,654"},
			}},
			{Seq: 2, Label: "이연법인세", Cells: []model.ValueCell{
				{Attributes: model.Attributes{"기간": "당기"}, Value: nil, RawText: "-"},
			}},
		},
	}
}

func testMapping(src *model.SourceSection) model.SectionMapping {
	return model.SectionMapping{
		Source: src,
		Target: &model.TextSection{
			Key:     "15",
			Title:   "Income Taxes",
			RawText: "Current tax expense was 1,234,567 thousand won.",
		},
		Confidence: 1.0,
		Method:     model.MethodExactKey,
	}
}

func claimsJSON(claims []map[string]any) string {
	b, _ := json.Marshal(claims)
	return string(b)
}

func TestReconcileSection_SingleCall(t *testing.T) {
	oracle := &fakeOracle{responses: []fakeResponse{{body: claimsJSON([]map[string]any{
		{"cell_id": "1_0", "found": true, "claimed_value": 1234567, "claimed_label": "Current tax", "confidence": 0.95},
		{"cell_id": "1_1", "found": false, "claimed_value": nil},
	})}}}
	e := NewEngine(oracle, testLogger())

	src := testSection()
	results := e.ReconcileAll(context.Background(), []model.SectionMapping{testMapping(src)}, nil)
	if len(results) != 1 {
		t.Fatalf("expected 1 section result, got %d", len(results))
	}
	res := results[0]

	if oracle.callCount() != 1 {
		t.Errorf("expected a single oracle call, got %d", oracle.callCount())
	}
	// Nil-valued cells never produce records, so the section carries two.
	if got := res.TotalCells(); got != 2 {
		t.Fatalf("expected 2 records, got %d", got)
	}
	if res.MatchedCount() != 1 {
		t.Errorf("expected 1 matched, got %d", res.MatchedCount())
	}
	if res.UnverifiableCount() != 1 {
		t.Errorf("expected 1 unverifiable, got %d", res.UnverifiableCount())
	}

	// Item 1, cell 0: claimed in thousands, must match under the x1000 scale.
	rec := res.Items[1].Records[0]
	if rec.Outcome != model.OutcomeMatched {
		t.Errorf("expected matched record for 1_0, got %q", rec.Outcome)
	}
	if rec.Scale != 1000 {
		t.Errorf("expected scale 1000, got %v", rec.Scale)
	}
	if res.Items[1].TargetLabel != "Current tax" {
		t.Errorf("expected target label from claim, got %q", res.Items[1].TargetLabel)
	}
	// Item 2's only cell is nil-valued.
	if len(res.Items[2].Records) != 0 {
		t.Errorf("expected no records for nil-valued cells, got %d", len(res.Items[2].Records))
	}
}

func TestReconcileSection_MissingClaimIsUnverifiable(t *testing.T) {
	// The oracle reports only one of the two anchors.
	oracle := &fakeOracle{responses: []fakeResponse{{body: claimsJSON([]map[string]any{
		{"cell_id": "1_0", "found": true, "claimed_value": 1234567, "confidence": 0.9},
	})}}}
	e := NewEngine(oracle, testLogger())

	results := e.ReconcileAll(context.Background(), []model.SectionMapping{testMapping(testSection())}, nil)
	res := results[0]
	if res.UnverifiableCount() != 1 {
		t.Fatalf("expected the unreported cell to be unverifiable, got %d", res.UnverifiableCount())
	}
	rec := res.Items[1].Records[1]
	if rec.Outcome != model.OutcomeUnverifiable {
		t.Errorf("expected unverifiable for 1_1, got %q", rec.Outcome)
	}
}

func TestReconcileSection_ChunkedFallback(t *testing.T) {
	// First call fails, then one chunked call per line item group succeeds.
	oracle := &fakeOracle{responses: []fakeResponse{
		{err: fmt.Errorf("response too large")},
		{body: claimsJSON([]map[string]any{
			{"cell_id": "1_0", "found": true, "claimed_value": 1234567, "confidence": 0.9},
			{"cell_id": "1_1", "found": true, "claimed_value": 987654, "confidence": 0.9},
		})},
	}}
	e := NewEngine(oracle, testLogger())
	e.ChunkItems = 3

	results := e.ReconcileAll(context.Background(), []model.SectionMapping{testMapping(testSection())}, nil)
	res := results[0]
	if res.MatchedCount() != 2 {
		t.Fatalf("expected 2 matched after chunked retry, got %d", res.MatchedCount())
	}
	if oracle.callCount() != 2 {
		t.Errorf("expected 2 oracle calls (1 failed + 1 chunk), got %d", oracle.callCount())
	}
	// The chunk payload must carry the complete target text.
	last := oracle.calls[len(oracle.calls)-1]
	if !strings.Contains(last, "1,234,567 thousand won") {
		t.Error("expected chunked call to include the full target text")
	}
}

func TestReconcileSection_ChunkFailureLosesOnlyThatChunk(t *testing.T) {
	src := &model.SourceSection{
		Key:   "3",
		Title: "재고자산",
		Items: []model.LineItem{
			{Seq: 0, Label: "상품", Cells: []model.ValueCell{
				{Value: model.Float(1000), RawText: "1,000"},
			}},
			{Seq: 1, Label: "제품", Cells: []model.ValueCell{
				{Value: model.Float(2000), RawText: "2,000"},
			}},
		},
	}
	m := model.SectionMapping{
		Source:     src,
		Target:     &model.TextSection{Key: "3", Title: "Inventories", RawText: "Merchandise 1,000."},
		Confidence: 1.0,
		Method:     model.MethodExactKey,
	}

	oracle := &fakeOracle{responses: []fakeResponse{
		{err: fmt.Errorf("bad response")},
		{body: claimsJSON([]map[string]any{
			{"cell_id": "0_0", "found": true, "claimed_value": 1000, "confidence": 1.0},
		})},
		{err: fmt.Errorf("still bad")},
	}}
	e := NewEngine(oracle, testLogger())
	e.ChunkItems = 1

	res := e.ReconcileAll(context.Background(), []model.SectionMapping{m}, nil)[0]
	if res.MatchedCount() != 1 {
		t.Errorf("expected the surviving chunk to match, got %d", res.MatchedCount())
	}
	if res.UnverifiableCount() != 1 {
		t.Errorf("expected the failed chunk's cell to be unverifiable, got %d", res.UnverifiableCount())
	}
}

func TestReconcileSection_UnmatchedMapping(t *testing.T) {
	oracle := &fakeOracle{}
	e := NewEngine(oracle, testLogger())

	m := model.SectionMapping{Source: testSection(), Method: model.MethodUnmatched}
	res := e.ReconcileAll(context.Background(), []model.SectionMapping{m}, nil)[0]

	if oracle.callCount() != 0 {
		t.Errorf("expected no oracle calls for an unmatched section, got %d", oracle.callCount())
	}
	if res.TotalCells() != 2 {
		t.Fatalf("expected 2 records, got %d", res.TotalCells())
	}
	if res.UnverifiableCount() != 2 {
		t.Errorf("expected all records unverifiable, got %d", res.UnverifiableCount())
	}
}

func TestReconcileAll_ProgressAndOrder(t *testing.T) {
	var sections []model.SectionMapping
	var responses []fakeResponse
	for i := 0; i < 5; i++ {
		src := &model.SourceSection{
			Key:   fmt.Sprintf("%d", i+1),
			Title: fmt.Sprintf("주석 %d", i+1),
			Items: []model.LineItem{{Seq: 0, Label: "합계", Cells: []model.ValueCell{
				{Value: model.Float(float64(i) * 100), RawText: "x"},
			}}},
		}
		sections = append(sections, model.SectionMapping{
			Source:     src,
			Target:     &model.TextSection{Key: src.Key, RawText: "text"},
			Confidence: 1.0,
			Method:     model.MethodExactKey,
		})
		responses = append(responses, fakeResponse{body: "[]"})
	}
	oracle := &fakeOracle{responses: responses}
	e := NewEngine(oracle, testLogger())

	var mu sync.Mutex
	var seen []int
	results := e.ReconcileAll(context.Background(), sections, func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, done)
		if total != 5 {
			t.Errorf("expected total 5, got %d", total)
		}
	})

	if len(seen) != 5 {
		t.Fatalf("expected 5 progress callbacks, got %d", len(seen))
	}
	// Results land at their mapping's index regardless of completion order.
	for i, res := range results {
		if res.SourceKey != fmt.Sprintf("%d", i+1) {
			t.Errorf("result %d has key %q, want %q", i, res.SourceKey, fmt.Sprintf("%d", i+1))
		}
	}
}
