package mapping

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"fsrecon/internal/model"
	"fsrecon/internal/oracle"
)

// FallbackConfidence is the fixed confidence of a whole-document fallback
// mapping. Kept visibly below the ~0.5 the oracle tends to report for shaky
// semantic pairs so downstream consumers can flag degraded sections.
const FallbackConfidence = 0.3

// Resolver pairs structured source sections with free-text target sections.
// Resolution runs single-threaded to completion before reconciliation
// starts, so the consumed-section pool needs no locking.
type Resolver struct {
	oracle oracle.Oracle
	log    *slog.Logger
}

func NewResolver(o oracle.Oracle, log *slog.Logger) *Resolver {
	return &Resolver{oracle: o, log: log}
}

// Resolve returns one mapping per source section, in source order. Tiers:
// exact key match (confidence 1.0), one batched semantic oracle call over
// everything unresolved, then the whole-document fallback. A specific target
// section is consumed by at most one mapping; the fallback text is shared.
func (r *Resolver) Resolve(ctx context.Context, sources []*model.SourceSection, doc *model.TargetDocument) []model.SectionMapping {
	results := make([]model.SectionMapping, len(sources))
	fallback := doc.FallbackSection()

	assignFallback := func(i int) {
		if strings.TrimSpace(doc.FullText) == "" {
			results[i] = model.SectionMapping{Source: sources[i], Method: model.MethodUnmatched}
			return
		}
		results[i] = model.SectionMapping{
			Source:     sources[i],
			Target:     fallback,
			Confidence: FallbackConfidence,
			Method:     model.MethodFallback,
		}
	}

	unsegmented := len(doc.Sections) == 0 ||
		(len(doc.Sections) == 1 && doc.Sections[0].Key == model.FallbackKey)
	if unsegmented {
		r.log.Warn("target document unsegmented, mapping everything to full text",
			"sources", len(sources))
		for i := range sources {
			assignFallback(i)
		}
		return results
	}

	// Pool of not-yet-consumed target sections, keyed by normalized key.
	pool := make(map[string]*model.TextSection, len(doc.Sections))
	for i := range doc.Sections {
		sec := &doc.Sections[i]
		if _, dup := pool[NormalizeKey(sec.Key)]; !dup {
			pool[NormalizeKey(sec.Key)] = sec
		}
	}

	var unresolved []int
	for i, src := range sources {
		key := NormalizeKey(src.Key)
		if target, ok := pool[key]; ok {
			results[i] = model.SectionMapping{
				Source:     src,
				Target:     target,
				Confidence: 1.0,
				Method:     model.MethodExactKey,
			}
			delete(pool, key)
			continue
		}
		unresolved = append(unresolved, i)
	}
	r.log.Info("exact-key mapping done",
		"matched", len(sources)-len(unresolved), "unresolved", len(unresolved))

	if len(unresolved) > 0 && len(pool) > 0 {
		unresolved = r.resolveSemantic(ctx, sources, unresolved, pool, results)
	}

	for _, i := range unresolved {
		assignFallback(i)
	}
	return results
}

type titleEntry struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

type semanticProposal struct {
	SourceKey  string  `json:"source_key"`
	TargetKey  string  `json:"target_key"`
	Confidence float64 `json:"confidence"`
}

type semanticResponse struct {
	Mappings []semanticProposal `json:"mappings"`
}

const semanticSystemPrompt = `You are a senior auditor at a Big4 accounting firm.
Match Korean financial-statement note titles to English note titles by meaning.

Rules:
- Pair titles that denote the same note, even when their numbers differ.
- Leave a source title out of the result when no target fits.
- confidence: 0.0-1.0 (1.0 = certain, 0.5 = doubtful).
- Return ONLY JSON, no other text or markdown, in this form:
  {"mappings": [{"source_key": "15", "target_key": "16", "confidence": 0.95}]}`

// resolveSemantic runs the single batched oracle call for all unresolved
// sections and returns the indices that are still unresolved afterwards.
// Proposals are accepted even at low confidence; the method tag lets
// downstream consumers flag them. On conflicting proposals for one target,
// the first proposed pair wins and later ones fall through to the fallback.
func (r *Resolver) resolveSemantic(ctx context.Context, sources []*model.SourceSection, unresolved []int, pool map[string]*model.TextSection, results []model.SectionMapping) []int {
	srcList := make([]titleEntry, 0, len(unresolved))
	for _, i := range unresolved {
		srcList = append(srcList, titleEntry{Key: sources[i].Key, Title: sources[i].Title})
	}
	tgtList := make([]titleEntry, 0, len(pool))
	for _, sec := range pool {
		tgtList = append(tgtList, titleEntry{Key: sec.Key, Title: sec.Title})
	}

	payload, err := json.Marshal(map[string]any{
		"source_titles": srcList,
		"target_titles": tgtList,
	})
	if err != nil {
		return unresolved
	}

	raw, err := r.oracle.CompleteJSON(ctx, semanticSystemPrompt, string(payload))
	if err != nil {
		r.log.Error("semantic mapping call failed, falling back", "error", err)
		return unresolved
	}
	resp, err := oracle.DecodeObject[semanticResponse](raw)
	if err != nil {
		r.log.Error("semantic mapping response unusable, falling back", "error", err)
		return unresolved
	}

	bySourceKey := make(map[string]int, len(unresolved))
	for _, i := range unresolved {
		if _, dup := bySourceKey[NormalizeKey(sources[i].Key)]; !dup {
			bySourceKey[NormalizeKey(sources[i].Key)] = i
		}
	}

	resolved := make(map[int]bool)
	for _, prop := range resp.Mappings {
		i, ok := bySourceKey[NormalizeKey(prop.SourceKey)]
		if !ok || resolved[i] {
			continue
		}
		target, ok := pool[NormalizeKey(prop.TargetKey)]
		if !ok {
			continue
		}
		results[i] = model.SectionMapping{
			Source:     sources[i],
			Target:     target,
			Confidence: clamp01(prop.Confidence),
			Method:     model.MethodSemantic,
		}
		delete(pool, NormalizeKey(prop.TargetKey))
		resolved[i] = true
	}
	r.log.Info("semantic mapping done", "proposed", len(resp.Mappings), "accepted", len(resolved))

	var still []int
	for _, i := range unresolved {
		if !resolved[i] {
			still = append(still, i)
		}
	}
	return still
}

// NormalizeKey makes section keys comparable across languages and layout
// quirks: case and surrounding whitespace are ignored, a trailing dot is
// dropped, and numeric keys lose leading zeros ("015." equals "15").
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.TrimSuffix(key, ".")
	if isDigits(key) {
		if t := strings.TrimLeft(key, "0"); t != "" {
			return t
		}
		return "0"
	}
	return key
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
