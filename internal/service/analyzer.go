package service

import (
	"fmt"
	"strings"

	"github.com/makeasinger/producer/internal/genre"
)

// maxSyllableIssues caps how many per-line syllable complaints one
// analysis reports, so a completely off draft produces a usable issue
// list instead of a wall of lines.
const maxSyllableIssues = 5

// Analyze checks lyrics against a genre's structural rules and returns
// the list of issues found. An empty result means the draft passes.
func Analyze(lyrics string, rules *genre.Rules) []string {
	var issues []string

	for _, tag := range rules.StructureTags {
		if !strings.Contains(lyrics, tag) {
			issues = append(issues, fmt.Sprintf("missing required section %s", tag))
		}
	}

	issues = append(issues, syllableIssues(lyrics, rules)...)

	if issue := rhymeIssue(lyrics, rules); issue != "" {
		issues = append(issues, issue)
	}

	return issues
}

func syllableIssues(lyrics string, rules *genre.Rules) []string {
	if rules.SyllableMin <= 0 && rules.SyllableMax <= 0 {
		return nil
	}
	var issues []string
	for i, line := range strings.Split(lyrics, "\n") {
		text := strings.TrimSpace(line)
		if text == "" || isSectionTag(text) {
			continue
		}
		n := countSyllables(text)
		if n < rules.SyllableMin || n > rules.SyllableMax {
			if len(issues) == maxSyllableIssues {
				issues = append(issues, "further lines also fall outside the syllable range")
				return issues
			}
			issues = append(issues, fmt.Sprintf("line %d has %d syllables, want %d-%d", i+1, n, rules.SyllableMin, rules.SyllableMax))
		}
	}
	return issues
}

// rhymeIssue checks the configured scheme against the first stanza with
// enough lines. Rhyme is approximated by comparing line-ending suffixes;
// anything subtler needs a human ear anyway.
func rhymeIssue(lyrics string, rules *genre.Rules) string {
	var pairs [][2]int
	switch rules.RhymeScheme {
	case "ABAB":
		pairs = [][2]int{{0, 2}, {1, 3}}
	case "AABB":
		pairs = [][2]int{{0, 1}, {2, 3}}
	case "ABCB":
		pairs = [][2]int{{1, 3}}
	default:
		return ""
	}

	stanza := firstStanza(lyrics, 4)
	if stanza == nil {
		return ""
	}
	for _, p := range pairs {
		if !linesRhyme(stanza[p[0]], stanza[p[1]]) {
			return fmt.Sprintf("first stanza does not follow the %s rhyme scheme", rules.RhymeScheme)
		}
	}
	return ""
}

// firstStanza returns the first blank-line-delimited stanza with at
// least n lyric lines, or nil when none qualifies.
func firstStanza(lyrics string, n int) []string {
	var stanza []string
	for _, line := range strings.Split(lyrics, "\n") {
		text := strings.TrimSpace(line)
		if text == "" {
			if len(stanza) >= n {
				return stanza[:n]
			}
			stanza = stanza[:0]
			continue
		}
		if isSectionTag(text) {
			continue
		}
		stanza = append(stanza, text)
	}
	if len(stanza) >= n {
		return stanza[:n]
	}
	return nil
}

func linesRhyme(a, b string) bool {
	wa := lastWord(a)
	wb := lastWord(b)
	if wa == "" || wb == "" {
		return false
	}
	if wa == wb {
		return true
	}
	n := 2
	if len(wa) < n || len(wb) < n {
		n = 1
	}
	return wa[len(wa)-n:] == wb[len(wb)-n:]
}

func lastWord(line string) string {
	line = strings.ToLower(strings.TrimRight(strings.TrimSpace(line), ".,!?;:\"'"))
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[len(fields)-1], ".,!?;:\"'()")
}

func isSectionTag(line string) bool {
	return strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]")
}

// countSyllables estimates syllables across a line by counting vowel
// groups per word, with a silent-e adjustment. Crude, but stable enough
// to hold drafts to a range.
func countSyllables(line string) int {
	total := 0
	for _, word := range strings.Fields(line) {
		total += wordSyllables(word)
	}
	return total
}

func wordSyllables(word string) int {
	word = strings.ToLower(strings.Trim(word, ".,!?;:\"'()-"))
	if word == "" {
		return 0
	}
	count := 0
	prevVowel := false
	for _, r := range word {
		v := isVowel(r)
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}
