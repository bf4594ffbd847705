package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"fsrecon/internal/model"
	"fsrecon/internal/oracle"
)

const (
	// MaxConcurrent bounds in-flight oracle calls across all sections.
	MaxConcurrent = 10
	// ChunkItems is the line-item group size for the chunked retry path.
	ChunkItems = 3
)

// Engine drives per-section reconciliation. Each mapped section becomes one
// oracle extraction call; sections run concurrently under a semaphore and
// any failed section degrades to smaller chunked calls before giving up.
type Engine struct {
	oracle        oracle.Oracle
	log           *slog.Logger
	MaxConcurrent int
	ChunkItems    int
}

func NewEngine(o oracle.Oracle, log *slog.Logger) *Engine {
	return &Engine{
		oracle:        o,
		log:           log,
		MaxConcurrent: MaxConcurrent,
		ChunkItems:    ChunkItems,
	}
}

// ReconcileAll processes every mapping concurrently and returns results in
// mapping order. progress, when non-nil, is called after each section
// finishes with the completed and total counts.
func (e *Engine) ReconcileAll(ctx context.Context, mappings []model.SectionMapping, progress func(done, total int)) []model.SectionResult {
	results := make([]model.SectionResult, len(mappings))
	sem := make(chan struct{}, e.MaxConcurrent)

	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0
	for i := range mappings {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = e.reconcileSection(ctx, mappings[i])

			mu.Lock()
			done++
			n := done
			mu.Unlock()
			if progress != nil {
				progress(n, len(mappings))
			}
		}(i)
	}
	wg.Wait()
	return results
}

// anchor is one verifiable source cell as presented to the oracle. Cells
// without a numeric value never become anchors.
type anchor struct {
	CellID     string            `json:"cell_id"`
	ItemSeq    int               `json:"item_seq"`
	Label      string            `json:"label"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Value      float64           `json:"value"`
	RawText    string            `json:"raw_text,omitempty"`
}

// claim is the oracle's report for one anchor.
type claim struct {
	CellID     string            `json:"cell_id"`
	Found      bool              `json:"found"`
	Value      *float64          `json:"claimed_value"`
	Label      string            `json:"claimed_label"`
	Attributes map[string]string `json:"claimed_attributes,omitempty"`
	Confidence float64           `json:"confidence"`
	Commentary string            `json:"commentary,omitempty"`
}

const extractSystemPrompt = `You are a senior auditor at a Big4 accounting firm comparing a Korean
financial filing against its English counterpart.

You receive a list of anchors (figures from the Korean filing, already in
KRW) and a passage of English filing text. For EVERY anchor, locate the
corresponding figure in the English text.

Rules:
- Report the number exactly as printed in the English text. Do NOT convert
  units; if the text says 1,234 in a table headed "millions of won", report 1234.
- Parentheses around a number mean it is negative.
- found=false and claimed_value=null when the anchor has no counterpart.
- claimed_label is the English line-item wording; claimed_attributes echoes
  the period or column the figure was read from.
- confidence: 0.0-1.0, how certain you are this is the same line item.
- commentary: one short sentence only when something needs explaining.
- Return ONLY a JSON array, no other text or markdown:
  [{"cell_id": "3_0", "found": true, "claimed_value": 1234, "claimed_label": "...", "claimed_attributes": {"period": "current"}, "confidence": 0.95, "commentary": ""}]`

func (e *Engine) reconcileSection(ctx context.Context, m model.SectionMapping) model.SectionResult {
	res := model.SectionResult{
		SourceKey:         m.Source.Key,
		SourceTitle:       m.Source.Title,
		MappingMethod:     m.Method,
		MappingConfidence: m.Confidence,
	}
	if m.Target != nil {
		res.TargetKey = m.Target.Key
		res.TargetTitle = m.Target.Title
	}

	items := m.Source.Items
	if m.Method == model.MethodUnmatched || m.Target == nil {
		res.Items = unverifiableItems(items, "no matching section in the target document")
		return res
	}

	claims, err := e.extract(ctx, items, m.Target.RawText)
	if err != nil {
		e.log.Warn("section extraction failed, retrying in chunks",
			"section", m.Source.Key, "error", err)
		claims = e.extractChunked(ctx, items, m.Target.RawText)
	}
	res.Items = buildItemResults(items, claims)

	e.log.Info("section reconciled",
		"section", m.Source.Key,
		"method", string(m.Method),
		"cells", res.TotalCells(),
		"matched", res.MatchedCount(),
		"mismatched", res.MismatchedCount(),
		"unverifiable", res.UnverifiableCount())
	return res
}

// extract runs one oracle call over the given line items and returns claims
// keyed by cell id. An empty anchor list short-circuits without a call.
func (e *Engine) extract(ctx context.Context, items []model.LineItem, targetText string) (map[string]claim, error) {
	anchors := buildAnchors(items)
	if len(anchors) == 0 {
		return map[string]claim{}, nil
	}

	payload, err := json.Marshal(map[string]any{
		"anchors":     anchors,
		"target_text": targetText,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling anchors: %w", err)
	}
	raw, err := e.oracle.CompleteJSON(ctx, extractSystemPrompt, string(payload))
	if err != nil {
		return nil, err
	}
	claims, err := oracle.DecodeArray[claim](raw)
	if err != nil {
		return nil, fmt.Errorf("decoding claims: %w", err)
	}

	byID := make(map[string]claim, len(claims))
	for _, c := range claims {
		if _, dup := byID[c.CellID]; !dup {
			byID[c.CellID] = c
		}
	}
	return byID, nil
}

// extractChunked retries extraction in groups of ChunkItems line items. Every
// chunk carries the full target text since the relevant figure can sit
// anywhere in the section. Chunks that still fail contribute no claims and
// their cells end up unverifiable.
func (e *Engine) extractChunked(ctx context.Context, items []model.LineItem, targetText string) map[string]claim {
	merged := make(map[string]claim)
	size := e.ChunkItems
	if size <= 0 {
		size = ChunkItems
	}
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunk, err := e.extract(ctx, items[start:end], targetText)
		if err != nil {
			e.log.Error("chunk extraction failed",
				"items", fmt.Sprintf("%d-%d", start, end-1), "error", err)
			continue
		}
		for id, c := range chunk {
			merged[id] = c
		}
	}
	return merged
}

func buildAnchors(items []model.LineItem) []anchor {
	var anchors []anchor
	for _, item := range items {
		for ci, cell := range item.Cells {
			if cell.Value == nil {
				continue
			}
			anchors = append(anchors, anchor{
				CellID:     cellID(item.Seq, ci),
				ItemSeq:    item.Seq,
				Label:      item.Label,
				Attributes: cell.Attributes,
				Value:      *cell.Value,
				RawText:    cell.RawText,
			})
		}
	}
	return anchors
}

func buildItemResults(items []model.LineItem, claims map[string]claim) []model.ItemResult {
	results := make([]model.ItemResult, 0, len(items))
	for _, item := range items {
		ir := model.ItemResult{Seq: item.Seq, Label: item.Label, HeaderOnly: item.HeaderOnly}
		for ci, cell := range item.Cells {
			if cell.Value == nil {
				continue
			}
			id := cellID(item.Seq, ci)
			c, ok := claims[id]
			if !ok {
				c = claim{CellID: id, Commentary: "no report returned for this cell"}
			}
			if ir.TargetLabel == "" {
				ir.TargetLabel = c.Label
			}

			v := Verify(*cell.Value, c.Value, c.Found)
			ir.Records = append(ir.Records, model.VerificationRecord{
				CellID:       id,
				ItemSeq:      item.Seq,
				Label:        item.Label,
				SourceAttrs:  cell.Attributes,
				ClaimedAttrs: c.Attributes,
				ClaimedLabel: c.Label,
				SourceValue:  *cell.Value,
				ClaimedValue: c.Value,
				Outcome:      v.Outcome,
				Variance:     v.Variance,
				Scale:        v.Scale,
				Confidence:   c.Confidence,
				Found:        c.Found,
				Commentary:   c.Commentary,
			})
		}
		results = append(results, ir)
	}
	return results
}

func unverifiableItems(items []model.LineItem, commentary string) []model.ItemResult {
	results := make([]model.ItemResult, 0, len(items))
	for _, item := range items {
		ir := model.ItemResult{Seq: item.Seq, Label: item.Label, HeaderOnly: item.HeaderOnly}
		for ci, cell := range item.Cells {
			if cell.Value == nil {
				continue
			}
			ir.Records = append(ir.Records, model.VerificationRecord{
				CellID:      cellID(item.Seq, ci),
				ItemSeq:     item.Seq,
				Label:       item.Label,
				SourceAttrs: cell.Attributes,
				SourceValue: *cell.Value,
				Outcome:     model.OutcomeUnverifiable,
				Commentary:  commentary,
			})
		}
		results = append(results, ir)
	}
	return results
}

func cellID(seq, cellIdx int) string {
	return fmt.Sprintf("%d_%d", seq, cellIdx)
}
