package council

import (
	"strings"
)

// Most-valuable extraction is lenient the same way review parsing is: the
// chairman is instructed to emit an exact heading, but chairmen drift. The
// extractor tries known heading variants, then a trailing-section heuristic.
// When nothing matches, the whole output is the final answer and the
// most-valuable section is simply absent, which is permitted.

var mostValuablePatterns = []string{
	"**Most Valuable Models:**",
	"Most Valuable Models:",
	"**Most Valuable Model:**",
	"Most Valuable Model:",
	"**Valuable Models:**",
	"Valuable Models:",
}

var sectionSeparators = []string{"---", "***", "==="}

var valuableKeywords = []string{
	"valuable", "best", "excellent", "strong", "insightful", "helpful",
	"accurate", "comprehensive", "detailed",
}

// splitSynthesis separates the chairman's raw output into the final answer
// and the optional most-valuable section. contributors are the member names
// that appeared in the prompt; they anchor the trailing-section heuristic.
func splitSynthesis(full string, contributors []string) Synthesis {
	if text, section, ok := splitByHeading(full); ok {
		return Synthesis{FinalText: text, MostValuable: section}
	}
	if text, section, ok := splitBySeparator(full, contributors); ok {
		return Synthesis{FinalText: text, MostValuable: section}
	}
	return Synthesis{FinalText: strings.TrimSpace(full)}
}

// splitByHeading looks for a known most-valuable heading variant.
func splitByHeading(full string) (finalText, section string, ok bool) {
	for _, pattern := range mostValuablePatterns {
		idx := strings.Index(full, pattern)
		if idx < 0 {
			continue
		}

		section = strings.TrimSpace(full[idx+len(pattern):])
		finalText = strings.TrimSpace(full[:idx])

		// Drop a leading separator line left over from the heading block.
		if strings.HasPrefix(section, "---") {
			if _, rest, found := strings.Cut(section, "\n"); found {
				section = strings.TrimSpace(rest)
			}
		}
		// Anything past a trailing separator is not part of the section.
		for _, sep := range sectionSeparators {
			section, _, _ = strings.Cut(section, sep)
		}
		section = strings.TrimSpace(section)

		// Too short to be a real section; treat as absent.
		if len(section) < 10 {
			return "", "", false
		}

		finalText = trimTrailingSeparators(finalText)
		return finalText, section, true
	}
	return "", "", false
}

// splitBySeparator treats the text after the last separator as the
// most-valuable section when it plausibly is one: it must mention a
// contributor by name in a valuable-sounding context.
func splitBySeparator(full string, contributors []string) (finalText, section string, ok bool) {
	for _, sep := range sectionSeparators {
		idx := strings.LastIndex(full, sep)
		if idx < 0 {
			continue
		}

		last := strings.TrimSpace(full[idx+len(sep):])
		if last == "" {
			continue
		}

		lower := strings.ToLower(last)
		mentionsContributor := false
		for _, member := range contributors {
			if strings.Contains(lower, strings.ToLower(member)) {
				mentionsContributor = true
				break
			}
		}
		if !mentionsContributor {
			continue
		}

		soundsValuable := false
		for _, kw := range valuableKeywords {
			if strings.Contains(lower, kw) {
				soundsValuable = true
				break
			}
		}
		if !soundsValuable {
			continue
		}

		return trimTrailingSeparators(full[:idx]), last, true
	}
	return "", "", false
}

func trimTrailingSeparators(text string) string {
	text = strings.TrimSpace(text)
	for {
		trimmed := text
		for _, sep := range sectionSeparators {
			trimmed = strings.TrimSuffix(trimmed, sep)
		}
		trimmed = strings.TrimSpace(trimmed)
		if trimmed == text {
			return text
		}
		text = trimmed
	}
}
