package model

// Outcome is the verdict for one source cell. The oracle only locates a
// candidate value; the verdict itself is always computed locally.
type Outcome string

const (
	OutcomeMatched      Outcome = "matched"
	OutcomeMismatched   Outcome = "mismatched"
	OutcomeUnverifiable Outcome = "unverifiable"
)

// VerificationRecord is the result for a single source value cell within a
// mapped section pair. Created once, never mutated afterwards.
type VerificationRecord struct {
	CellID       string     `json:"cell_id"` // "{itemSeq}_{cellIdx}"
	ItemSeq      int        `json:"item_seq"`
	Label        string     `json:"label"`
	SourceAttrs  Attributes `json:"source_attributes"`
	ClaimedAttrs Attributes `json:"claimed_attributes"`
	ClaimedLabel string     `json:"claimed_label,omitempty"`
	SourceValue  float64    `json:"source_value"`
	ClaimedValue *float64   `json:"claimed_value"` // as reported in the target text
	Outcome      Outcome    `json:"outcome"`
	Variance     float64    `json:"variance"` // best-fit scaled claim minus source
	Scale        float64    `json:"scale"`    // scale hypothesis used, 0 if unverifiable
	Confidence   float64    `json:"confidence"`
	Found        bool       `json:"found"`
	Commentary   string     `json:"commentary,omitempty"`
}

// ItemResult groups the records of one source line item.
type ItemResult struct {
	Seq         int                  `json:"seq"`
	Label       string               `json:"label"`
	TargetLabel string               `json:"target_label,omitempty"`
	HeaderOnly  bool                 `json:"header_only"`
	Records     []VerificationRecord `json:"records"`
}

// SectionResult aggregates one mapped section pair. Records inside preserve
// line-item sequence order regardless of oracle call completion order.
type SectionResult struct {
	SourceKey         string      `json:"source_key"`
	SourceTitle       string      `json:"source_title"`
	TargetKey         string      `json:"target_key,omitempty"`
	TargetTitle       string      `json:"target_title,omitempty"`
	MappingMethod     MatchMethod `json:"mapping_method"`
	MappingConfidence float64     `json:"mapping_confidence"`
	Items             []ItemResult `json:"items"`
}

// TotalCells counts verification records across all non-header items.
func (r *SectionResult) TotalCells() int {
	n := 0
	for _, it := range r.Items {
		if !it.HeaderOnly {
			n += len(it.Records)
		}
	}
	return n
}

// MatchedCount counts records with a matched outcome.
func (r *SectionResult) MatchedCount() int {
	return r.countOutcome(OutcomeMatched)
}

// MismatchedCount counts records with a mismatched outcome.
func (r *SectionResult) MismatchedCount() int {
	return r.countOutcome(OutcomeMismatched)
}

// UnverifiableCount counts records the oracle could not locate or that were
// lost to transport/response failures.
func (r *SectionResult) UnverifiableCount() int {
	return r.countOutcome(OutcomeUnverifiable)
}

func (r *SectionResult) countOutcome(o Outcome) int {
	n := 0
	for _, it := range r.Items {
		for _, rec := range it.Records {
			if rec.Outcome == o {
				n++
			}
		}
	}
	return n
}

// MatchRate is matched/total, 0 when the section has no verifiable cells.
func (r *SectionResult) MatchRate() float64 {
	total := r.TotalCells()
	if total == 0 {
		return 0
	}
	return float64(r.MatchedCount()) / float64(total)
}
