package model

// DocFormat tags the container a free-text filing was parsed from.
type DocFormat string

const (
	FormatWord     DocFormat = "word"
	FormatPDF      DocFormat = "pdf"
	FormatHTML     DocFormat = "html"
	FormatMarkdown DocFormat = "markdown"
	FormatText     DocFormat = "text"
)

// Attributes identifies one value cell within a line item. Financial tables
// carry an open-ended, issuer-specific set of column dimensions (period,
// maturity bucket, fair-value level, roll-forward stage), so this is a free
// key→value map rather than fixed period fields. Order is irrelevant.
type Attributes map[string]string

// Equal reports whether two attribute sets hold the same key→value pairs.
func (a Attributes) Equal(b Attributes) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// Clone returns a copy that can be mutated independently.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// ValueCell is a single amount cell. Value is nil exactly when the cell
// denotes "no amount" (a dash, blank, or non-numeric marker); unparsable
// text is retained with a nil value rather than dropped.
type ValueCell struct {
	Attributes Attributes `json:"attributes"`
	Value      *float64   `json:"value"` // normalized to KRW
	RawText    string     `json:"raw_text"`
}

// LineItem is one labeled row of a structured section. Seq is assigned once
// at parse time, is 0-based and unique within its section, and is the join
// key for correlating oracle output back to source cells.
type LineItem struct {
	Seq        int         `json:"seq"`
	Label      string      `json:"label"`
	HeaderOnly bool        `json:"header_only"`
	Cells      []ValueCell `json:"cells"`
}

// SourceSection is a section of the structured national-language filing:
// a key (note number or synthetic), a title and parsed line items.
type SourceSection struct {
	Key   string
	Title string
	Unit  string
	Items []LineItem
}

// TextSection is a section of the free-text foreign-language filing. Only
// raw original text is kept; no number extraction happens at parse time,
// reading the text is the oracle's job.
type TextSection struct {
	Key       string
	Title     string
	RawText   string
	Format    DocFormat
	PageStart int // pdf only, 0 when unknown
	PageEnd   int
}

// TargetDocument is the parsed free-text filing: its detected sections plus
// a whole-document text fallback used when segmentation is unreliable.
type TargetDocument struct {
	Filename string
	Format   DocFormat
	Sections []TextSection
	FullText string
}

// FallbackKey is the synthetic key of the whole-document fallback section.
const FallbackKey = "ALL"

// FallbackSection returns a section spanning the entire document text. It is
// never consumed by the mapping pool and may back any number of sources.
func (d *TargetDocument) FallbackSection() *TextSection {
	return &TextSection{
		Key:     FallbackKey,
		Title:   "(whole document)",
		RawText: d.FullText,
		Format:  d.Format,
	}
}

// MatchMethod records how a section pair was resolved.
type MatchMethod string

const (
	MethodExactKey  MatchMethod = "exact-key"
	MethodSemantic  MatchMethod = "semantic"
	MethodFallback  MatchMethod = "whole-document-fallback"
	MethodUnmatched MatchMethod = "unmatched"
)

// SectionMapping pairs one structured section with at most one free-text
// section. Target is nil exactly when Method is MethodUnmatched.
type SectionMapping struct {
	Source     *SourceSection
	Target     *TextSection
	Confidence float64
	Method     MatchMethod
}

// Float returns a pointer to v. Amount fields are pointers so that "no
// amount" stays distinguishable from zero.
func Float(v float64) *float64 {
	return &v
}
