package segment

import (
	"strings"

	"fsrecon/internal/parser"
)

type page struct {
	num   int
	lines []string
}

// Running headers and footers repeat on most pages ("COMPANY — Notes to the
// Financial Statements — December 31, 2025"). They are layout noise for the
// oracle's verbatim read, so lines seen on enough pages are stripped.
const (
	repeatMinPages = 3
	repeatMinShare = 0.3
)

func cleanPages(stream *parser.Stream) []page {
	var raw []page
	for _, b := range stream.Blocks {
		if b.Kind != parser.BlockPage {
			continue
		}
		var lines []string
		for _, line := range strings.Split(b.Text, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				lines = append(lines, line)
			}
		}
		raw = append(raw, page{num: b.Page, lines: lines})
	}

	repeated := repeatedLines(raw)

	var out []page
	for _, pg := range raw {
		cleaned := make([]string, 0, len(pg.lines))
		for _, line := range pg.lines {
			if pageNumberRe.MatchString(line) || repeated[line] {
				continue
			}
			// Rejoin words hyphen-broken across line ends.
			if n := len(cleaned); n > 0 && strings.HasSuffix(cleaned[n-1], "-") {
				cleaned[n-1] = strings.TrimSuffix(cleaned[n-1], "-") + line
				continue
			}
			cleaned = append(cleaned, line)
		}
		if len(cleaned) > 0 {
			out = append(out, page{num: pg.num, lines: cleaned})
		}
	}
	return out
}

func repeatedLines(pages []page) map[string]bool {
	if len(pages) < repeatMinPages {
		return nil
	}
	counts := make(map[string]int)
	for _, pg := range pages {
		seen := make(map[string]bool, len(pg.lines))
		for _, line := range pg.lines {
			if len(line) < 8 || seen[line] {
				continue
			}
			seen[line] = true
			counts[line]++
		}
	}
	threshold := int(float64(len(pages)) * repeatMinShare)
	if threshold < repeatMinPages {
		threshold = repeatMinPages
	}
	repeated := make(map[string]bool)
	for line, n := range counts {
		if n >= threshold {
			repeated[line] = true
		}
	}
	return repeated
}
