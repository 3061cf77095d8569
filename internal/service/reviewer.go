package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/makeasinger/producer/internal/genre"
	"github.com/makeasinger/producer/internal/model"
	"github.com/makeasinger/producer/internal/store"
	ws "github.com/makeasinger/producer/internal/websocket"
)

// defaultRevisionCap bounds how many revision rounds a song gets before
// its draft is approved as-is. Premium models get a single round since
// their first drafts are usually close.
const (
	defaultRevisionCap = 3
	premiumRevisionCap = 1
)

var premiumModelPrefixes = []string{"gpt-", "claude-", "o1"}

// Reviewer analyzes drafts against genre rules and drives the bounded
// revision loop. Every review ends in lyrics_approved eventually; a song
// never starves in review.
type Reviewer struct {
	store    *store.Store
	lyricist *Lyricist
	genres   *genre.Provider
	hub      *ws.Hub
}

func NewReviewer(st *store.Store, lyricist *Lyricist, genres *genre.Provider, hub *ws.Hub) *Reviewer {
	return &Reviewer{store: st, lyricist: lyricist, genres: genres, hub: hub}
}

// revisionCap returns the maximum revisions allowed for the
// production's lyrics model.
func revisionCap(prod *model.Production) int {
	m := strings.ToLower(prod.ModelFor(model.TaskLyrics))
	for _, prefix := range premiumModelPrefixes {
		if strings.HasPrefix(m, prefix) {
			return premiumRevisionCap
		}
	}
	return defaultRevisionCap
}

// Review runs one review round on a song in lyrics_review. A clean draft
// is approved; a flawed draft below the revision cap is revised once and
// stays in review; a flawed draft at the cap is approved as-is with its
// issues recorded.
func (r *Reviewer) Review(ctx context.Context, songID string) error {
	song, err := r.store.GetSong(songID)
	if err != nil {
		return err
	}
	if song.Status != model.SongStatusLyricsReview {
		log.Printf("[Reviewer] song %s is %s, skipping review", songID, song.Status)
		return nil
	}
	if song.Lyrics == nil {
		return fmt.Errorf("song %s in review without lyrics", songID)
	}

	prod, err := r.store.GetProductionAny(song.ProductionID)
	if err != nil {
		return err
	}
	rules := r.genres.GetRules(prod.OwnerID, song.GenreRuleID)
	if rules == nil {
		rules = r.genres.GetRules(prod.OwnerID, prod.GenreID)
	}
	if rules == nil {
		return fmt.Errorf("no genre rules for song %s", songID)
	}

	issues := Analyze(*song.Lyrics, rules)
	if len(issues) == 0 {
		return r.approve(song, nil)
	}

	limit := revisionCap(prod)
	if song.RevisionCount >= limit {
		log.Printf("[Reviewer] song %s at revision cap %d, approving with %d open issues", songID, limit, len(issues))
		return r.approve(song, issues)
	}

	log.Printf("[Reviewer] song %s revision %d/%d: %d issues", songID, song.RevisionCount+1, limit, len(issues))
	redacted, err := r.lyricist.Revise(ctx, prod, song, issues)
	if err != nil {
		return fmt.Errorf("revision of song %s failed: %w", songID, err)
	}

	song.RevisionCount++
	// A redacted revision bypassed the model's own rewrite, so analyze the
	// masked text again and record what still stands.
	if redacted {
		song.SetIssues(Analyze(*song.Lyrics, rules))
	} else {
		song.SetIssues(issues)
	}
	if err := r.store.SaveSong(song); err != nil {
		return err
	}
	return nil
}

func (r *Reviewer) approve(song *model.Song, openIssues []string) error {
	song.Status = model.SongStatusLyricsApproved
	song.SetIssues(openIssues)
	if err := r.store.SaveSong(song); err != nil {
		return err
	}
	r.hub.BroadcastSongStatus(song)
	return nil
}
