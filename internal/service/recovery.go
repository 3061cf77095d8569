package service

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"github.com/makeasinger/producer/internal/model"
	"github.com/makeasinger/producer/internal/store"
	ws "github.com/makeasinger/producer/internal/websocket"
)

// Recovery is the periodic reconciler. Each pass polls pending vendor
// jobs, resumes in-progress productions whose run died, retries failed
// songs under the cap, and auto-approves the next trigger-chain
// production when the pipeline is idle. Every action is derived from
// persisted state, so a pass is safe to repeat.
type Recovery struct {
	store        *store.Store
	orchestrator *Orchestrator
	tracker      *Tracker
	hub          *ws.Hub
	asynqClient  *asynq.Client

	retryCap   int
	retryBatch int
}

func NewRecovery(st *store.Store, orch *Orchestrator, tracker *Tracker, hub *ws.Hub, asynqClient *asynq.Client, retryCap, retryBatch int) *Recovery {
	return &Recovery{
		store:        st,
		orchestrator: orch,
		tracker:      tracker,
		hub:          hub,
		asynqClient:  asynqClient,
		retryCap:     retryCap,
		retryBatch:   retryBatch,
	}
}

// Run executes one reconciliation pass. Errors on individual productions
// are logged and do not stop the pass.
func (r *Recovery) Run(ctx context.Context) error {
	prods, err := r.store.InProgressProductions()
	if err != nil {
		return err
	}
	for _, prod := range prods {
		if err := r.reconcile(ctx, &prod); err != nil {
			log.Printf("[Recovery] production %s: %v", prod.ID, err)
		}
	}

	if err := r.retryFailedSongs(ctx); err != nil {
		log.Printf("[Recovery] retry pass: %v", err)
	}

	if err := r.autoApproveNext(ctx); err != nil {
		log.Printf("[Recovery] auto-approve: %v", err)
	}
	return nil
}

// reconcile catches one in-progress production up: poll outstanding
// vendor jobs, then resume the lyric/submit pipeline if no live run
// holds the lease.
func (r *Recovery) reconcile(ctx context.Context, prod *model.Production) error {
	pending, err := r.store.SongsByStatus(prod.ID, model.SongStatusSunoPending)
	if err != nil {
		return err
	}
	for _, song := range pending {
		if song.GenerationJobID == nil {
			continue
		}
		if err := r.tracker.ResolveFromVendor(ctx, *song.GenerationJobID); err != nil {
			log.Printf("[Recovery] poll job %s: %v", *song.GenerationJobID, err)
		}
	}

	unfinished, err := r.store.SongsByStatus(prod.ID,
		model.SongStatusPlanned, model.SongStatusLyricsWIP,
		model.SongStatusLyricsReview, model.SongStatusLyricsApproved)
	if err != nil {
		return err
	}
	if len(unfinished) == 0 {
		// Nothing left to drive: every song is terminal or awaiting a
		// vendor verdict. Recompute aggregates so a production whose
		// last song died without a cascade still settles.
		return r.tracker.Settle(prod.ID)
	}

	held, err := r.store.LeaseHeld(prod.ID)
	if err != nil {
		return err
	}
	if held {
		return nil
	}

	log.Printf("[Recovery] resuming production %s (%d unfinished songs)", prod.ID, len(unfinished))
	return r.orchestrator.Run(ctx, prod.ID)
}

// retryFailedSongs resets a bounded batch of failed songs back to
// lyrics_approved for resubmission. Cancelled productions are skipped;
// the retry count caps total attempts per song.
func (r *Recovery) retryFailedSongs(ctx context.Context) error {
	songs, err := r.store.RetryableFailedSongs(r.retryCap, r.retryBatch)
	if err != nil {
		return err
	}

	touched := make(map[string]bool)
	for i := range songs {
		song := &songs[i]
		prod, err := r.store.GetProductionAny(song.ProductionID)
		if err != nil {
			return err
		}
		if prod.Cancelled() {
			continue
		}

		if err := r.resetSong(song); err != nil {
			return err
		}
		if err := r.reopenAggregates(prod, song.AlbumID); err != nil {
			return err
		}
		touched[prod.ID] = true
		log.Printf("[Recovery] song %s reset for retry %d/%d", song.ID, song.RetryCount, r.retryCap)
	}

	for prodID := range touched {
		held, err := r.store.LeaseHeld(prodID)
		if err != nil {
			return err
		}
		if held {
			continue
		}
		if err := r.orchestrator.Run(ctx, prodID); err != nil {
			log.Printf("[Recovery] retry run for production %s: %v", prodID, err)
		}
	}
	return nil
}

func (r *Recovery) resetSong(song *model.Song) error {
	song.Status = model.SongStatusLyricsApproved
	song.GenerationJobID = nil
	song.ErrorMessage = nil
	song.CompletedAt = nil
	song.RetryCount++
	if err := r.store.SaveSong(song); err != nil {
		return err
	}
	r.hub.BroadcastSongStatus(song)
	return nil
}

// reopenAggregates puts a closed album and production back in progress
// so the retried song has a live pipeline to run in. Both failed and
// completed productions reopen; a cancelled one never reaches here.
func (r *Recovery) reopenAggregates(prod *model.Production, albumID string) error {
	album, err := r.store.GetAlbum(albumID)
	if err != nil {
		return err
	}
	if album.Status != model.AlbumStatusInProgress {
		if err := r.store.SetAlbumStatus(albumID, model.AlbumStatusInProgress); err != nil {
			return err
		}
	}

	for _, from := range []model.ProductionStatus{
		model.ProductionStatusFailed,
		model.ProductionStatusCompleted,
	} {
		ok, err := r.store.TransitionProduction(prod.ID, from, model.ProductionStatusInProgress, nil)
		if err != nil {
			return err
		}
		if ok {
			r.hub.BroadcastProductionStatus(prod.ID, model.ProductionStatusInProgress, "")
			break
		}
	}
	return nil
}

// autoApproveNext starts the oldest auto-triggered planned production,
// but only when nothing is in progress. One per pass keeps the trigger
// chain serialized.
func (r *Recovery) autoApproveNext(ctx context.Context) error {
	n, err := r.store.CountInProgress()
	if err != nil || n > 0 {
		return err
	}

	next, err := r.store.OldestPlannedAutoTriggered()
	if err != nil || next == nil {
		return err
	}

	ok, err := r.store.TransitionProduction(next.ID,
		model.ProductionStatusPlanned, model.ProductionStatusInProgress, nil)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := r.store.MarkAlbumsInProgress(next.ID); err != nil {
		return err
	}
	r.hub.BroadcastProductionStatus(next.ID, model.ProductionStatusInProgress, "")
	log.Printf("[Recovery] auto-approved production %s", next.ID)

	if r.asynqClient != nil {
		task, err := NewRunTask(next.ID)
		if err != nil {
			return err
		}
		if _, err := r.asynqClient.Enqueue(task, asynq.Queue(QueuePipeline)); err != nil {
			log.Printf("[Recovery] enqueue run for %s failed, running inline: %v", next.ID, err)
			return r.orchestrator.Run(ctx, next.ID)
		}
		return nil
	}
	return r.orchestrator.Run(ctx, next.ID)
}
