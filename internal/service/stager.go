package service

import (
	"context"
	"log"

	"github.com/makeasinger/producer/internal/client"
	"github.com/makeasinger/producer/internal/model"
	"github.com/makeasinger/producer/internal/store"
	ws "github.com/makeasinger/producer/internal/websocket"
)

// Stager submits approved songs to the audio generation vendor.
type Stager struct {
	store   *store.Store
	audio   client.AudioGenerator
	tracker *Tracker
	hub     *ws.Hub
}

func NewStager(st *store.Store, audio client.AudioGenerator, tracker *Tracker, hub *ws.Hub) *Stager {
	return &Stager{store: st, audio: audio, tracker: tracker, hub: hub}
}

// Submit sends one approved song to the vendor and records the job id.
// Songs in any other status are left alone, which makes re-runs after a
// crash submit-once. A vendor rejection fails the song, not the run.
func (s *Stager) Submit(ctx context.Context, songID string) error {
	song, err := s.store.GetSong(songID)
	if err != nil {
		return err
	}
	if song.Status != model.SongStatusLyricsApproved {
		log.Printf("[Stager] song %s is %s, skipping submission", songID, song.Status)
		return nil
	}
	if song.Lyrics == nil {
		return s.fail(song, "approved song has no lyrics")
	}

	resp, err := s.audio.Generate(ctx, &client.GenerateRequest{
		Title:  song.Title,
		Style:  song.StyleTags,
		Lyrics: *song.Lyrics,
	})
	if err != nil {
		log.Printf("[Stager] vendor rejected song %s: %v", songID, err)
		return s.fail(song, err.Error())
	}

	song.GenerationJobID = &resp.JobID
	song.Status = model.SongStatusSunoPending
	song.ErrorMessage = nil
	if err := s.store.SaveSong(song); err != nil {
		return err
	}
	s.hub.BroadcastSongStatus(song)
	log.Printf("[Stager] song %s submitted, job %s", songID, resp.JobID)
	return nil
}

// fail marks the song terminal without a job id, so no callback or poll
// will ever fire for it. The cascade has to run here or the album would
// stay open forever.
func (s *Stager) fail(song *model.Song, msg string) error {
	song.Status = model.SongStatusFailed
	song.ErrorMessage = &msg
	if err := s.store.SaveSong(song); err != nil {
		return err
	}
	s.hub.BroadcastSongStatus(song)
	return s.tracker.cascade(song)
}
