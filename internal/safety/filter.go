package safety

import "strings"

// MaskToken replaces a forbidden term when redaction is the last resort.
const MaskToken = "████"

// FindForbidden returns the forbidden terms present in text, matched
// case-insensitively and verbatim. The returned slice preserves the
// configured casing and contains no duplicates.
func FindForbidden(text string, terms []string) []string {
	if len(terms) == 0 || text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var found []string
	seen := make(map[string]bool)
	for _, term := range terms {
		t := strings.TrimSpace(term)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		if strings.Contains(lower, strings.ToLower(t)) {
			found = append(found, t)
			seen[strings.ToLower(t)] = true
		}
	}
	return found
}

// Redact replaces every case-insensitive occurrence of each term with
// the mask token. This is mechanical and does not respect word
// boundaries; it guarantees the output carries none of the terms.
func Redact(text string, terms []string) string {
	for _, term := range terms {
		t := strings.TrimSpace(term)
		if t == "" {
			continue
		}
		text = redactTerm(text, t)
	}
	return text
}

func redactTerm(text, term string) string {
	lowerTerm := strings.ToLower(term)
	var b strings.Builder
	for {
		idx := strings.Index(strings.ToLower(text), lowerTerm)
		if idx < 0 {
			b.WriteString(text)
			return b.String()
		}
		b.WriteString(text[:idx])
		b.WriteString(MaskToken)
		text = text[idx+len(term):]
	}
}

// Clean reports whether text contains none of the terms.
func Clean(text string, terms []string) bool {
	return len(FindForbidden(text, terms)) == 0
}
