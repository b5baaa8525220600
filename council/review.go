package council

import (
	"regexp"
	"strings"
)

// The stage-2 parser is intentionally lenient. Reviewers are language
// models: some follow the requested "Ranking: ... Explanation: ..." format,
// some bold the headings, some ignore the format entirely. A parse failure
// retains the raw text and leaves Ranking absent; it never escalates to a
// stage failure.

var (
	rankingLineRe = regexp.MustCompile(`(?im)^\s*\**\s*ranking\s*\**\s*[:\-]\s*(.+)$`)
	labelRe       = regexp.MustCompile(`(?i)response\s+(\d+)`)
	explanationRe = regexp.MustCompile(`(?is)\**\s*explanation\s*\**\s*[:\-]\s*(.+)$`)
)

// parseRanking attempts to extract a structured ranking from a reviewer's
// raw output. Returns nil when no usable ranking is present.
//
// Extraction rules:
//   - the label order is read from the first "Ranking:" line; when no such
//     line exists, from label mentions across the whole text in order of
//     appearance;
//   - labels not covered by the anonymization map are ignored, duplicates
//     keep their first position;
//   - the rationale is the text following an "Explanation:" heading, when
//     present.
func parseRanking(raw string, anon *anonymization) *Ranking {
	if anon.size() == 0 {
		return nil
	}

	source := raw
	fromLine := false
	if m := rankingLineRe.FindStringSubmatch(raw); m != nil {
		source = m[1]
		fromLine = true
	}

	order := extractLabels(source, anon)
	if len(order) == 0 && fromLine {
		// The Ranking: line existed but carried nothing usable; fall back
		// to scanning the whole text.
		order = extractLabels(raw, anon)
	}
	if len(order) == 0 {
		return nil
	}

	ranking := &Ranking{Order: order}
	if m := explanationRe.FindStringSubmatch(raw); m != nil {
		ranking.Rationale = strings.TrimSpace(m[1])
	}
	return ranking
}

// extractLabels pulls valid anonymized labels out of text in order of
// appearance, deduplicated.
func extractLabels(text string, anon *anonymization) []string {
	var order []string
	seen := make(map[string]bool)

	for _, m := range labelRe.FindAllStringSubmatch(text, -1) {
		label := "Response " + m[1]
		if _, ok := anon.modelFor(label); !ok {
			continue
		}
		if seen[label] {
			continue
		}
		seen[label] = true
		order = append(order, label)
	}
	return order
}

// toReviewResult reinterprets a dispatched stage-2 call as a ReviewResult,
// running the lenient parser over successful output.
func toReviewResult(res ModelResult, anon *anonymization) ReviewResult {
	if !res.OK() {
		return ReviewResult{
			LatencySeconds: res.LatencySeconds,
			Error:          res.Error,
		}
	}
	return ReviewResult{
		RawText:        res.Content,
		Ranking:        parseRanking(res.Content, anon),
		Usage:          res.Usage,
		LatencySeconds: res.LatencySeconds,
	}
}
