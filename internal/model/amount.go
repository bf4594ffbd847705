package model

import (
	"regexp"
	"strconv"
	"strings"
)

// ParseAmount converts an amount string to a number. Commas and spaces are
// stripped, parenthesized amounts are negative, and the dash family ("-",
// "—", "–"), the empty string and non-numeric text all return nil.
func ParseAmount(text string) *float64 {
	text = strings.TrimSpace(text)
	switch text {
	case "", "-", "—", "–":
		return nil
	}

	negative := strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")")
	if negative {
		text = text[1 : len(text)-1]
	}
	text = strings.ReplaceAll(text, ",", "")
	text = strings.ReplaceAll(text, " ", "")

	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil
	}
	if negative {
		v = -v
	}
	return &v
}

// NormalizeUnit scales an amount to KRW. Source values are normalized once
// at parse time; nothing downstream rescales them again.
func NormalizeUnit(amount float64, unit string) float64 {
	unit = strings.TrimSpace(unit)
	lower := strings.ToLower(unit)
	switch {
	case strings.Contains(unit, "백만") || strings.Contains(lower, "million"):
		return amount * 1_000_000
	case strings.Contains(unit, "천") || strings.Contains(lower, "thousand"):
		return amount * 1_000
	}
	return amount
}

var unitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\(단위\s*:\s*([^)]+)\)`),
	regexp.MustCompile(`(?i)\(Unit\s*:\s*([^)]+)\)`),
	regexp.MustCompile(`단위\s*:\s*(\S+)`),
}

// DetectUnit finds a "(단위: 천원)" / "(Unit: KRW thousands)" marker in text
// and returns the canonical unit, or "" when the text carries no marker.
func DetectUnit(text string) string {
	for _, pat := range unitPatterns {
		m := pat.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.TrimSpace(m[1])
		lower := strings.ToLower(raw)
		switch {
		case strings.Contains(raw, "백만") || strings.Contains(lower, "million"):
			return "백만원"
		case strings.Contains(raw, "천") || strings.Contains(lower, "thousand"):
			return "천원"
		}
		return raw
	}
	return ""
}
