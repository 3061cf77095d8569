package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/makeasinger/producer/internal/client"
	"github.com/makeasinger/producer/internal/genre"
	"github.com/makeasinger/producer/internal/model"
	"github.com/makeasinger/producer/internal/safety"
	"github.com/makeasinger/producer/internal/store"
	ws "github.com/makeasinger/producer/internal/websocket"
	"github.com/makeasinger/producer/internal/workspace"
)

// Lyricist drafts and revises song lyrics with the completion model.
type Lyricist struct {
	store         *store.Store
	completion    client.CompletionClient
	genres        *genre.Provider
	mirror        *workspace.Mirror
	hub           *ws.Hub
	safetyRetries int
	minLength     int
}

func NewLyricist(st *store.Store, completion client.CompletionClient, genres *genre.Provider, mirror *workspace.Mirror, hub *ws.Hub, safetyRetries, minLength int) *Lyricist {
	return &Lyricist{
		store:         st,
		completion:    completion,
		genres:        genres,
		mirror:        mirror,
		hub:           hub,
		safetyRetries: safetyRetries,
		minLength:     minLength,
	}
}

// WriteLyrics drafts the first lyrics for a song and moves it to review.
// A failed or undersized draft reverts the song to planned so recovery
// picks it up again; the error is returned for the caller's log.
func (l *Lyricist) WriteLyrics(ctx context.Context, songID string) error {
	song, err := l.store.GetSong(songID)
	if err != nil {
		return err
	}
	if song.Status != model.SongStatusPlanned && song.Status != model.SongStatusLyricsWIP {
		log.Printf("[Lyricist] song %s is %s, skipping draft", songID, song.Status)
		return nil
	}

	prod, err := l.store.GetProductionAny(song.ProductionID)
	if err != nil {
		return err
	}
	rules := l.genres.GetRules(prod.OwnerID, song.GenreRuleID)
	if rules == nil {
		rules = l.genres.GetRules(prod.OwnerID, prod.GenreID)
	}
	if rules == nil {
		return fmt.Errorf("no genre rules for song %s", songID)
	}

	if song.Status == model.SongStatusPlanned {
		song.Status = model.SongStatusLyricsWIP
		if err := l.store.SaveSong(song); err != nil {
			return err
		}
		l.hub.BroadcastSongStatus(song)
	}

	album, err := l.store.GetAlbum(song.AlbumID)
	if err != nil {
		return err
	}

	lyrics, _, err := l.generate(ctx, prod, rules, l.draftPrompt(prod, album, song, rules))
	if err != nil {
		return l.revertToPlanned(song, err)
	}

	return l.acceptDraft(ctx, prod, song, lyrics)
}

// Revise rewrites existing lyrics against the reviewer's issue list. The
// song stays in lyrics_review; the returned bool reports whether the new
// draft had to be redacted, which the reviewer must re-analyze.
func (l *Lyricist) Revise(ctx context.Context, prod *model.Production, song *model.Song, issues []string) (bool, error) {
	rules := l.genres.GetRules(prod.OwnerID, song.GenreRuleID)
	if rules == nil {
		rules = l.genres.GetRules(prod.OwnerID, prod.GenreID)
	}
	if rules == nil {
		return false, fmt.Errorf("no genre rules for song %s", song.ID)
	}
	if song.Lyrics == nil {
		return false, fmt.Errorf("song %s has no lyrics to revise", song.ID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Revise the lyrics below for the song %q. Keep the structure tags.\n", song.Title)
	b.WriteString("Fix these issues:\n")
	for _, issue := range issues {
		fmt.Fprintf(&b, "- %s\n", issue)
	}
	b.WriteString("\nCurrent lyrics:\n\n")
	b.WriteString(*song.Lyrics)

	lyrics, redacted, err := l.generate(ctx, prod, rules, b.String())
	if err != nil {
		return false, err
	}

	song.Lyrics = &lyrics
	if err := l.store.SaveSong(song); err != nil {
		return false, err
	}
	l.mirror.Write(ctx, prod.OwnerID, song.WorkspacePath, lyrics)
	return redacted, nil
}

// generate runs one completion with the forbidden-word policy applied:
// bounded corrective re-prompts, then redaction. Drafts shorter than the
// configured minimum are treated as model failures.
func (l *Lyricist) generate(ctx context.Context, prod *model.Production, rules *genre.Rules, prompt string) (string, bool, error) {
	forbidden := prod.Forbidden()

	var feedback []string
	for attempt := 0; ; attempt++ {
		userPrompt := prompt
		if len(feedback) > 0 {
			userPrompt += fmt.Sprintf("\n\nYour previous draft used the disallowed terms: %s.\nRewrite without any of these terms.", strings.Join(feedback, ", "))
		}

		raw, err := l.completion.Complete(ctx, &client.CompletionRequest{
			Model: prod.ModelFor(model.TaskLyrics),
			Messages: []client.ChatMessage{
				{Role: "system", Content: lyricsSystemPrompt},
				{Role: "user", Content: userPrompt},
			},
			Temperature: 0.8,
		})
		if err != nil {
			return "", false, err
		}

		lyrics := trimPreamble(raw, rules.StructureTags)
		if len(strings.TrimSpace(lyrics)) < l.minLength {
			return "", false, fmt.Errorf("draft too short (%d chars)", len(strings.TrimSpace(lyrics)))
		}

		found := safety.FindForbidden(lyrics, forbidden)
		if len(found) == 0 {
			return lyrics, false, nil
		}
		if attempt < l.safetyRetries {
			log.Printf("[Lyricist] forbidden terms in draft (%v), re-prompting", found)
			feedback = found
			continue
		}
		return safety.Redact(lyrics, forbidden), true, nil
	}
}

func (l *Lyricist) acceptDraft(ctx context.Context, prod *model.Production, song *model.Song, lyrics string) error {
	song.Lyrics = &lyrics
	song.Status = model.SongStatusLyricsReview
	song.ErrorMessage = nil
	if err := l.store.SaveSong(song); err != nil {
		return err
	}
	l.mirror.Write(ctx, prod.OwnerID, song.WorkspacePath, lyrics)
	l.hub.BroadcastSongStatus(song)
	log.Printf("[Lyricist] song %s drafted (%d chars)", song.ID, len(lyrics))
	return nil
}

func (l *Lyricist) revertToPlanned(song *model.Song, cause error) error {
	msg := cause.Error()
	song.Status = model.SongStatusPlanned
	song.Lyrics = nil
	song.ErrorMessage = &msg
	if err := l.store.SaveSong(song); err != nil {
		return err
	}
	l.hub.BroadcastSongStatus(song)
	return fmt.Errorf("lyrics draft for song %s failed: %w", song.ID, cause)
}

const lyricsSystemPrompt = `You are a professional songwriter. Write complete song lyrics
using bracketed structure tags like [Verse] and [Chorus] to label sections.
Output only the lyrics, no commentary.`

func (l *Lyricist) draftPrompt(prod *model.Production, album *model.Album, song *model.Song, rules *genre.Rules) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the lyrics for %q, track %d of the album %q by %s.\n",
		song.Title, song.TrackNumber, album.Title, prod.ArtistName)
	fmt.Fprintf(&b, "Album theme: %s\n", album.Theme)
	if song.Direction != "" {
		fmt.Fprintf(&b, "Creative direction: %s\n", song.Direction)
	}
	if song.StyleTags != "" {
		fmt.Fprintf(&b, "Style: %s\n", song.StyleTags)
	}
	fmt.Fprintf(&b, "Use these section tags: %s.\n", strings.Join(rules.StructureTags, ", "))
	fmt.Fprintf(&b, "Aim for %s rhymes and %d-%d syllables per line.\n",
		rules.RhymeScheme, rules.SyllableMin, rules.SyllableMax)
	return b.String()
}

// trimPreamble drops any chatter the model emitted before the first
// recognized section tag. If no tag is present the draft is returned
// unchanged and the analyzer will flag the missing structure.
func trimPreamble(raw string, tags []string) string {
	raw = strings.TrimSpace(raw)
	first := -1
	for _, tag := range tags {
		if idx := strings.Index(raw, tag); idx >= 0 && (first < 0 || idx < first) {
			first = idx
		}
	}
	if first > 0 {
		return strings.TrimSpace(raw[first:])
	}
	return raw
}
