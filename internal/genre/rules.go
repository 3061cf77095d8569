package genre

import "sync"

// Rules describes the structural contract lyrics must satisfy for a
// genre: which section tags must appear, the rhyme scheme, the per-line
// syllable window, and submission hints.
type Rules struct {
	ID               string   `json:"id"`
	StructureTags    []string `json:"structureTags"`
	RhymeScheme      string   `json:"rhymeScheme"`
	SyllableMin      int      `json:"syllableMin"`
	SyllableMax      int      `json:"syllableMax"`
	DefaultSongCount int      `json:"defaultSongCount"`
	StyleHints       []string `json:"styleHints"`
}

// builtin is the default rule table. Per-user overrides layer on top.
var builtin = map[string]Rules{
	"pop": {
		ID:               "pop",
		StructureTags:    []string{"[Verse]", "[Chorus]", "[Bridge]"},
		RhymeScheme:      "ABAB",
		SyllableMin:      6,
		SyllableMax:      12,
		DefaultSongCount: 10,
		StyleHints:       []string{"catchy", "radio-friendly", "polished vocals"},
	},
	"rock": {
		ID:               "rock",
		StructureTags:    []string{"[Verse]", "[Chorus]", "[Bridge]"},
		RhymeScheme:      "AABB",
		SyllableMin:      6,
		SyllableMax:      14,
		DefaultSongCount: 9,
		StyleHints:       []string{"electric guitar", "driving drums", "raw vocals"},
	},
	"hiphop": {
		ID:               "hiphop",
		StructureTags:    []string{"[Verse]", "[Hook]"},
		RhymeScheme:      "AABB",
		SyllableMin:      10,
		SyllableMax:      18,
		DefaultSongCount: 12,
		StyleHints:       []string{"boom bap", "808 bass", "confident flow"},
	},
	"country": {
		ID:               "country",
		StructureTags:    []string{"[Verse]", "[Chorus]"},
		RhymeScheme:      "ABAB",
		SyllableMin:      7,
		SyllableMax:      12,
		DefaultSongCount: 10,
		StyleHints:       []string{"acoustic guitar", "storytelling", "warm vocals"},
	},
	"electronic": {
		ID:               "electronic",
		StructureTags:    []string{"[Verse]", "[Drop]", "[Chorus]"},
		RhymeScheme:      "ABAB",
		SyllableMin:      5,
		SyllableMax:      10,
		DefaultSongCount: 8,
		StyleHints:       []string{"synth leads", "four on the floor", "airy vocals"},
	},
	"folk": {
		ID:               "folk",
		StructureTags:    []string{"[Verse]", "[Chorus]"},
		RhymeScheme:      "ABCB",
		SyllableMin:      7,
		SyllableMax:      13,
		DefaultSongCount: 9,
		StyleHints:       []string{"fingerpicked guitar", "intimate", "narrative"},
	},
}

// Provider resolves genre rules, preferring per-user overrides over the
// built-in table.
type Provider struct {
	mu        sync.RWMutex
	overrides map[string]map[string]Rules // userID → genreID → rules
}

func NewProvider() *Provider {
	return &Provider{overrides: make(map[string]map[string]Rules)}
}

// GetRules returns the rules for a genre, or nil when the genre is
// unknown to both the user's overrides and the built-in table.
func (p *Provider) GetRules(userID, genreID string) *Rules {
	p.mu.RLock()
	if byGenre, ok := p.overrides[userID]; ok {
		if r, ok := byGenre[genreID]; ok {
			p.mu.RUnlock()
			return &r
		}
	}
	p.mu.RUnlock()

	if r, ok := builtin[genreID]; ok {
		return &r
	}
	return nil
}

// SetOverride registers a per-user rule set for a genre.
func (p *Provider) SetOverride(userID string, rules Rules) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.overrides[userID] == nil {
		p.overrides[userID] = make(map[string]Rules)
	}
	p.overrides[userID][rules.ID] = rules
}

// Known reports whether a genre exists in the built-in table.
func Known(genreID string) bool {
	_, ok := builtin[genreID]
	return ok
}
