package service

import (
	"strings"
	"testing"

	"github.com/makeasinger/producer/internal/genre"
	"github.com/makeasinger/producer/internal/model"
)

func TestAnalyze_MissingSections(t *testing.T) {
	rules := &genre.Rules{ID: "pop", StructureTags: []string{"[Verse]", "[Chorus]", "[Bridge]"}}
	issues := Analyze("[Verse]\nSome opening line goes here", rules)

	var missing int
	for _, issue := range issues {
		if strings.Contains(issue, "missing required section") {
			missing++
		}
	}
	if missing != 2 {
		t.Errorf("got %d missing-section issues, want 2: %v", missing, issues)
	}
}

func TestAnalyze_CleanDraft(t *testing.T) {
	rules := &genre.Rules{ID: "pop", StructureTags: []string{"[Verse]"}}
	if issues := Analyze(testLyrics, rules); len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
}

func TestAnalyze_SyllableWindow(t *testing.T) {
	rules := &genre.Rules{ID: "pop", StructureTags: []string{"[Verse]"}, SyllableMin: 6, SyllableMax: 12}
	lyrics := "[Verse]\nNo\nWalking down the empty street tonight"

	issues := Analyze(lyrics, rules)
	var syllable int
	for _, issue := range issues {
		if strings.Contains(issue, "syllables") {
			syllable++
		}
	}
	if syllable != 1 {
		t.Errorf("the one-word line should be flagged once, got %v", issues)
	}
}

func TestAnalyze_SyllableIssueCap(t *testing.T) {
	rules := &genre.Rules{ID: "pop", StructureTags: []string{"[Verse]"}, SyllableMin: 6, SyllableMax: 12}
	var b strings.Builder
	b.WriteString("[Verse]\n")
	for i := 0; i < 10; i++ {
		b.WriteString("No\n")
	}

	issues := Analyze(b.String(), rules)
	var syllable int
	for _, issue := range issues {
		if strings.Contains(issue, "syllable") {
			syllable++
		}
	}
	// maxSyllableIssues line complaints plus the summary line.
	if syllable != maxSyllableIssues+1 {
		t.Errorf("got %d syllable issues, want %d", syllable, maxSyllableIssues+1)
	}
}

func TestAnalyze_RhymeScheme(t *testing.T) {
	rules := &genre.Rules{ID: "rock", StructureTags: []string{"[Verse]"}, RhymeScheme: "AABB"}

	rhyming := "[Verse]\nWe ride all night\nUnder the light\nNever look back\nDown the old track"
	if issues := Analyze(rhyming, rules); len(issues) != 0 {
		t.Errorf("AABB stanza should pass, got %v", issues)
	}

	broken := "[Verse]\nWe ride all night\nInto the storm\nNever look back\nWithout a sound"
	issues := Analyze(broken, rules)
	found := false
	for _, issue := range issues {
		if strings.Contains(issue, "rhyme") {
			found = true
		}
	}
	if !found {
		t.Errorf("broken rhyme should be flagged, got %v", issues)
	}
}

func TestCountSyllables(t *testing.T) {
	cases := []struct {
		line string
		want int
	}{
		{"hello world", 3},
		{"no", 1},
		{"beautiful morning light", 6},
	}
	for _, c := range cases {
		if got := countSyllables(c.line); got != c.want {
			t.Errorf("countSyllables(%q) = %d, want %d", c.line, got, c.want)
		}
	}
}

func TestTrimPreamble(t *testing.T) {
	tags := []string{"[Verse]", "[Chorus]"}

	raw := "Sure! Here are the lyrics you asked for:\n\n[Verse]\nFirst line"
	got := trimPreamble(raw, tags)
	if !strings.HasPrefix(got, "[Verse]") {
		t.Errorf("preamble not trimmed: %q", got)
	}

	clean := "[Verse]\nFirst line"
	if got := trimPreamble(clean, tags); got != clean {
		t.Errorf("clean draft changed: %q", got)
	}

	untagged := "Just some lines\nwithout any tags"
	if got := trimPreamble(untagged, tags); got != untagged {
		t.Errorf("untagged draft should pass through: %q", got)
	}
}

func TestExtractJSON(t *testing.T) {
	wrapped := "Here is the plan:\n```json\n{\"title\": \"X\"}\n```\nHope that helps!"
	got := extractJSON(wrapped)
	if got != `{"title": "X"}` {
		t.Errorf("extractJSON = %q", got)
	}

	bare := `{"a": 1}`
	if got := extractJSON(bare); got != bare {
		t.Errorf("bare JSON changed: %q", got)
	}
}

func TestRevisionCap(t *testing.T) {
	cases := []struct {
		override string
		want     int
	}{
		{"", defaultRevisionCap},
		{"llama-3.3-70b-versatile", defaultRevisionCap},
		{"gpt-4o", premiumRevisionCap},
		{"claude-sonnet-4-20250514", premiumRevisionCap},
		{"o1-mini", premiumRevisionCap},
	}
	for _, c := range cases {
		p := &model.Production{}
		if c.override != "" {
			p.ModelOverrides = `{"lyrics":"` + c.override + `"}`
		}
		if got := revisionCap(p); got != c.want {
			t.Errorf("revisionCap(%q) = %d, want %d", c.override, got, c.want)
		}
	}
}
