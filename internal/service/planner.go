package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/makeasinger/producer/internal/client"
	"github.com/makeasinger/producer/internal/genre"
	"github.com/makeasinger/producer/internal/model"
	"github.com/makeasinger/producer/internal/safety"
	"github.com/makeasinger/producer/internal/store"
	"github.com/makeasinger/producer/internal/workspace"
	ws "github.com/makeasinger/producer/internal/websocket"
)

// Planner turns a production request into persisted albums and songs by
// prompting the completion model once per album.
type Planner struct {
	store         *store.Store
	completion    client.CompletionClient
	genres        *genre.Provider
	mirror        *workspace.Mirror
	hub           *ws.Hub
	safetyRetries int
}

func NewPlanner(st *store.Store, completion client.CompletionClient, genres *genre.Provider, mirror *workspace.Mirror, hub *ws.Hub, safetyRetries int) *Planner {
	return &Planner{
		store:         st,
		completion:    completion,
		genres:        genres,
		mirror:        mirror,
		hub:           hub,
		safetyRetries: safetyRetries,
	}
}

// albumPlan is the JSON schema the model must answer with.
type albumPlan struct {
	Title string `json:"title"`
	Theme string `json:"theme"`
	Songs []struct {
		Title     string   `json:"title"`
		Direction string   `json:"direction"`
		StyleTags []string `json:"styleTags"`
	} `json:"songs"`
}

// Plan populates every album of a production. A malformed model response
// fails the whole production; it is not retried inside this call. Albums
// already persisted from an earlier crashed attempt are kept, so Plan is
// safe to re-run.
func (p *Planner) Plan(ctx context.Context, productionID string) error {
	prod, err := p.store.GetProductionAny(productionID)
	if err != nil {
		return err
	}
	if prod.Status != model.ProductionStatusPlanning {
		log.Printf("[Planner] production %s is %s, nothing to plan", productionID, prod.Status)
		return nil
	}

	rules := p.genres.GetRules(prod.OwnerID, prod.GenreID)
	if rules == nil {
		return p.failPlanning(prod, fmt.Sprintf("unknown genre %q", prod.GenreID))
	}

	songCount := rules.DefaultSongCount
	if prod.SongsPerAlbum != nil {
		songCount = *prod.SongsPerAlbum
	}
	forbidden := prod.Forbidden()

	existing, err := p.store.AlbumsForProduction(productionID)
	if err != nil {
		return err
	}
	planned := make(map[int]bool, len(existing))
	for _, a := range existing {
		planned[a.AlbumNumber] = true
	}

	for n := 1; n <= prod.AlbumCount; n++ {
		if planned[n] {
			continue
		}

		plan, redacted, err := p.planAlbum(ctx, prod, rules, n, songCount, forbidden)
		if err != nil {
			return p.failPlanning(prod, fmt.Sprintf("album %d planning failed: %v", n, err))
		}

		if err := p.persistAlbum(ctx, prod, rules, n, plan, redacted); err != nil {
			return err
		}
		log.Printf("[Planner] production %s: album %d/%d planned (%d songs)", productionID, n, prod.AlbumCount, len(plan.Songs))
	}

	ok, err := p.store.TransitionProduction(productionID, model.ProductionStatusPlanning, model.ProductionStatusPlanned, nil)
	if err != nil {
		return err
	}
	if ok {
		p.hub.BroadcastProductionStatus(productionID, model.ProductionStatusPlanned, "")
	}
	return nil
}

// planAlbum prompts for one album and enforces the forbidden-word policy:
// bounded corrective re-prompts, then mechanical redaction so the stored
// plan is guaranteed clean. The returned bool reports whether redaction
// was applied.
func (p *Planner) planAlbum(ctx context.Context, prod *model.Production, rules *genre.Rules, albumNumber, songCount int, forbidden []string) (*albumPlan, bool, error) {
	prompt := p.buildPlanPrompt(prod, rules, albumNumber, songCount)

	var feedback []string
	for attempt := 0; ; attempt++ {
		userPrompt := prompt
		if len(feedback) > 0 {
			userPrompt += fmt.Sprintf("\n\nYour previous answer used the disallowed terms: %s.\nRewrite the plan without any of these terms.", strings.Join(feedback, ", "))
		}

		raw, err := p.completion.Complete(ctx, &client.CompletionRequest{
			Model: prod.ModelFor(model.TaskPlan),
			Messages: []client.ChatMessage{
				{Role: "system", Content: planSystemPrompt},
				{Role: "user", Content: userPrompt},
			},
			MaxTokens: 4096,
		})
		if err != nil {
			return nil, false, err
		}

		plan, err := parseAlbumPlan(raw)
		if err != nil {
			return nil, false, err
		}

		found := p.scanPlan(plan, forbidden)
		if len(found) == 0 {
			return plan, false, nil
		}
		if attempt < p.safetyRetries {
			log.Printf("[Planner] production %s: forbidden terms in album %d plan (%v), re-prompting", prod.ID, albumNumber, found)
			feedback = found
			continue
		}

		// Last resort: redact in place. The stored plan never carries a
		// forbidden term, at the cost of masking artifacts.
		plan.Title = safety.Redact(plan.Title, forbidden)
		plan.Theme = safety.Redact(plan.Theme, forbidden)
		for i := range plan.Songs {
			plan.Songs[i].Title = safety.Redact(plan.Songs[i].Title, forbidden)
			plan.Songs[i].Direction = safety.Redact(plan.Songs[i].Direction, forbidden)
		}
		log.Printf("[Planner] production %s: redacted forbidden terms in album %d plan after %d re-prompts", prod.ID, albumNumber, p.safetyRetries)
		return plan, true, nil
	}
}

func (p *Planner) scanPlan(plan *albumPlan, forbidden []string) []string {
	var texts []string
	texts = append(texts, plan.Title, plan.Theme)
	for _, s := range plan.Songs {
		texts = append(texts, s.Title, s.Direction)
	}
	return safety.FindForbidden(strings.Join(texts, "\n"), forbidden)
}

func (p *Planner) persistAlbum(ctx context.Context, prod *model.Production, rules *genre.Rules, albumNumber int, plan *albumPlan, redacted bool) error {
	album := &model.Album{
		ID:           uuid.New().String(),
		ProductionID: prod.ID,
		AlbumNumber:  albumNumber,
		Title:        plan.Title,
		Theme:        plan.Theme,
		SongCount:    len(plan.Songs),
		Status:       model.AlbumStatusPlanned,
	}

	songs := make([]model.Song, 0, len(plan.Songs))
	for i, ps := range plan.Songs {
		song := model.Song{
			ID:            uuid.New().String(),
			AlbumID:       album.ID,
			ProductionID:  prod.ID,
			TrackNumber:   i + 1,
			Title:         ps.Title,
			Direction:     ps.Direction,
			StyleTags:     strings.Join(ps.StyleTags, ", "),
			GenreRuleID:   rules.ID,
			WorkspacePath: fmt.Sprintf("productions/%s/album-%02d/track-%02d.md", prod.ID, albumNumber, i+1),
			Status:        model.SongStatusPlanned,
		}
		if redacted {
			song.SetIssues([]string{"forbidden terms redacted during planning"})
		}
		songs = append(songs, song)
	}

	if err := p.store.CreateAlbumWithSongs(album, songs); err != nil {
		return err
	}

	p.mirror.Write(ctx, prod.OwnerID,
		fmt.Sprintf("productions/%s/album-%02d/plan.md", prod.ID, albumNumber),
		renderPlanMarkdown(prod, album, songs))
	return nil
}

func (p *Planner) failPlanning(prod *model.Production, msg string) error {
	log.Printf("[Planner] production %s failed: %s", prod.ID, msg)
	ok, err := p.store.TransitionProduction(prod.ID, model.ProductionStatusPlanning, model.ProductionStatusFailed, &msg)
	if err != nil {
		return err
	}
	if ok {
		p.hub.BroadcastProductionStatus(prod.ID, model.ProductionStatusFailed, msg)
	}
	return nil
}

const planSystemPrompt = `You are an experienced A&R producer planning studio albums.
Always output your response as valid JSON in the exact format requested.
Do not include any text outside the JSON structure.`

func (p *Planner) buildPlanPrompt(prod *model.Production, rules *genre.Rules, albumNumber, songCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan album %d of %d for the artist %q in the %s genre.\n",
		albumNumber, prod.AlbumCount, prod.ArtistName, rules.ID)
	if prod.Notes != "" {
		fmt.Fprintf(&b, "Production notes: %s\n", prod.Notes)
	}
	fmt.Fprintf(&b, "Style hints for this genre: %s\n", strings.Join(rules.StyleHints, ", "))
	fmt.Fprintf(&b, "The album must have exactly %d songs.\n", songCount)
	b.WriteString(`Give the album a title and a one-paragraph theme. For each song provide
a title, a one-sentence creative direction, and 2-4 style tags.

Output as JSON: {"title": "...", "theme": "...", "songs": [{"title": "...", "direction": "...", "styleTags": ["..."]}]}`)
	return b.String()
}

func parseAlbumPlan(raw string) (*albumPlan, error) {
	raw = extractJSON(raw)

	var plan albumPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}
	if plan.Title == "" {
		return nil, fmt.Errorf("plan has no album title")
	}
	if len(plan.Songs) == 0 {
		return nil, fmt.Errorf("plan has no songs")
	}
	for i, s := range plan.Songs {
		if s.Title == "" {
			return nil, fmt.Errorf("song %d has no title", i+1)
		}
	}
	return &plan, nil
}

// extractJSON attempts to extract JSON from a response that may contain
// extra text around it.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")

	if start != -1 && end != -1 && end > start {
		return s[start : end+1]
	}
	return s
}

func renderPlanMarkdown(prod *model.Production, album *model.Album, songs []model.Song) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", album.Title)
	fmt.Fprintf(&b, "Artist: %s\nGenre: %s\n\n%s\n\n## Tracklist\n\n", prod.ArtistName, prod.GenreID, album.Theme)
	for _, s := range songs {
		fmt.Fprintf(&b, "%d. **%s** — %s (%s)\n", s.TrackNumber, s.Title, s.Direction, s.StyleTags)
	}
	return b.String()
}
