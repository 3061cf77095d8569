package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/makeasinger/producer/internal/client"
	"github.com/makeasinger/producer/internal/model"
	"github.com/makeasinger/producer/internal/store"
	ws "github.com/makeasinger/producer/internal/websocket"
)

// Tracker resolves vendor job outcomes into song state and cascades
// completion up through albums to the production.
type Tracker struct {
	store *store.Store
	audio client.AudioGenerator
	hub   *ws.Hub
}

func NewTracker(st *store.Store, audio client.AudioGenerator, hub *ws.Hub) *Tracker {
	return &Tracker{store: st, audio: audio, hub: hub}
}

// Resolve applies one vendor verdict to the song tracking the job.
// Unknown jobs and already-terminal songs are ignored, so the callback
// endpoint and the recovery poll can both report the same job safely.
func (t *Tracker) Resolve(ctx context.Context, jobID string, status model.GenerationStatus, errText string) error {
	song, err := t.store.SongByGenerationJobID(jobID)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("[Tracker] job %s matches no song, ignoring", jobID)
		return nil
	}
	if err != nil {
		return err
	}
	if song.Status.IsTerminal() {
		return nil
	}
	if song.Status != model.SongStatusSunoPending {
		log.Printf("[Tracker] song %s is %s, ignoring job %s verdict", song.ID, song.Status, jobID)
		return nil
	}

	switch status {
	case model.GenerationStatusPending:
		return nil
	case model.GenerationStatusCompleted:
		now := time.Now()
		song.Status = model.SongStatusCompleted
		song.CompletedAt = &now
		song.ErrorMessage = nil
	case model.GenerationStatusFailed:
		song.Status = model.SongStatusFailed
		if errText == "" {
			errText = "generation failed"
		}
		song.ErrorMessage = &errText
	default:
		log.Printf("[Tracker] job %s reported unknown status %q, ignoring", jobID, status)
		return nil
	}

	if err := t.store.SaveSong(song); err != nil {
		return err
	}
	t.hub.BroadcastSongStatus(song)
	log.Printf("[Tracker] song %s resolved %s (job %s)", song.ID, song.Status, jobID)

	return t.cascade(song)
}

// ResolveFromVendor polls the vendor for a job's current status and
// applies it.
func (t *Tracker) ResolveFromVendor(ctx context.Context, jobID string) error {
	result, err := t.audio.GetStatus(ctx, jobID)
	if err != nil {
		return err
	}
	return t.Resolve(ctx, jobID, model.GenerationStatus(result.Status), result.Error)
}

// cascade closes the album when all of its songs are terminal, and the
// production when all of its albums completed. Failed songs count as
// terminal so one bad track never wedges an album open.
func (t *Tracker) cascade(song *model.Song) error {
	done, err := t.store.AlbumSongsAllTerminal(song.AlbumID)
	if err != nil || !done {
		return err
	}
	if err := t.store.SetAlbumStatus(song.AlbumID, model.AlbumStatusCompleted); err != nil {
		return err
	}
	log.Printf("[Tracker] album %s completed", song.AlbumID)
	return t.completeProduction(song.ProductionID)
}

// Settle recomputes every aggregate of a production from its songs.
// The recovery pass calls it when a production has nothing left to
// drive, which covers a crash between a song's terminal write and its
// cascade. Safe to repeat.
func (t *Tracker) Settle(productionID string) error {
	albums, err := t.store.AlbumsForProduction(productionID)
	if err != nil {
		return err
	}
	for _, album := range albums {
		if album.Status == model.AlbumStatusCompleted {
			continue
		}
		done, err := t.store.AlbumSongsAllTerminal(album.ID)
		if err != nil {
			return err
		}
		if !done {
			continue
		}
		if err := t.store.SetAlbumStatus(album.ID, model.AlbumStatusCompleted); err != nil {
			return err
		}
		log.Printf("[Tracker] album %s completed", album.ID)
	}
	return t.completeProduction(productionID)
}

func (t *Tracker) completeProduction(productionID string) error {
	allDone, err := t.store.AlbumsAllCompleted(productionID)
	if err != nil || !allDone {
		return err
	}
	ok, err := t.store.TransitionProduction(productionID,
		model.ProductionStatusInProgress, model.ProductionStatusCompleted, nil)
	if err != nil {
		return err
	}
	if ok {
		t.hub.BroadcastProductionStatus(productionID, model.ProductionStatusCompleted, "")
		log.Printf("[Tracker] production %s completed", productionID)
	}
	return nil
}
