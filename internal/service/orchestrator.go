package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/makeasinger/producer/internal/model"
	"github.com/makeasinger/producer/internal/store"
)

// Orchestrator drives one production's songs through the lyric stages
// and then staggers their submission to the vendor. Progress is read
// from and written to the store before every unit of work, so a crashed
// run resumes exactly where it stopped.
type Orchestrator struct {
	store    *store.Store
	lyricist *Lyricist
	reviewer *Reviewer
	stager   *Stager

	leaseTTL time.Duration
	stagger  time.Duration
}

func NewOrchestrator(st *store.Store, lyricist *Lyricist, reviewer *Reviewer, stager *Stager, leaseTTL, stagger time.Duration) *Orchestrator {
	return &Orchestrator{
		store:    st,
		lyricist: lyricist,
		reviewer: reviewer,
		stager:   stager,
		leaseTTL: leaseTTL,
		stagger:  stagger,
	}
}

// Run executes the pipeline for one in-progress production. The run is
// guarded by the persisted lease: a concurrent run on any instance is a
// no-op. Per-song failures are logged and skipped; only cancellation or
// a store error halts the run.
func (o *Orchestrator) Run(ctx context.Context, productionID string) error {
	prod, err := o.store.GetProductionAny(productionID)
	if err != nil {
		return err
	}
	if prod.Status != model.ProductionStatusInProgress {
		log.Printf("[Orchestrator] production %s is %s, not running", productionID, prod.Status)
		return nil
	}

	owner := uuid.New().String()
	acquired, err := o.store.AcquireLease(productionID, owner, o.leaseTTL)
	if err != nil {
		return err
	}
	if !acquired {
		log.Printf("[Orchestrator] production %s lease held elsewhere, skipping run", productionID)
		return nil
	}
	defer func() {
		if err := o.store.ReleaseLease(productionID, owner); err != nil {
			log.Printf("[Orchestrator] release lease %s: %v", productionID, err)
		}
	}()

	log.Printf("[Orchestrator] production %s run started", productionID)

	if err := o.lyricPhase(ctx, productionID, owner); err != nil {
		return err
	}
	return o.submitPhase(ctx, productionID, owner)
}

// lyricPhase drafts and reviews every song still in a lyric stage.
func (o *Orchestrator) lyricPhase(ctx context.Context, productionID, owner string) error {
	songs, err := o.store.SongsByStatus(productionID,
		model.SongStatusPlanned, model.SongStatusLyricsWIP, model.SongStatusLyricsReview)
	if err != nil {
		return err
	}

	for _, song := range songs {
		halted, err := o.halted(productionID)
		if err != nil || halted {
			return err
		}
		if err := o.store.RenewLease(productionID, owner, o.leaseTTL); err != nil {
			return err
		}

		if err := o.processSong(ctx, productionID, owner, song.ID, song.Status); err != nil {
			log.Printf("[Orchestrator] song %s lyric stage failed, continuing: %v", song.ID, err)
		}
	}
	return nil
}

func (o *Orchestrator) processSong(ctx context.Context, productionID, owner, songID string, status model.SongStatus) error {
	if status == model.SongStatusPlanned || status == model.SongStatusLyricsWIP {
		if err := o.lyricist.WriteLyrics(ctx, songID); err != nil {
			return err
		}
	}

	// Review rounds loop until the song leaves lyrics_review; the
	// reviewer's revision cap guarantees termination. Each round is a
	// model call, so cancellation is polled between rounds too.
	for {
		song, err := o.store.GetSong(songID)
		if err != nil {
			return err
		}
		if song.Status != model.SongStatusLyricsReview {
			return nil
		}
		halted, err := o.halted(productionID)
		if err != nil || halted {
			return err
		}
		if err := o.store.RenewLease(productionID, owner, o.leaseTTL); err != nil {
			return err
		}
		if err := o.reviewer.Review(ctx, songID); err != nil {
			return err
		}
	}
}

// submitPhase sends approved songs to the vendor with the configured
// stagger between submissions.
func (o *Orchestrator) submitPhase(ctx context.Context, productionID, owner string) error {
	songs, err := o.store.SongsByStatus(productionID, model.SongStatusLyricsApproved)
	if err != nil {
		return err
	}

	for i, song := range songs {
		if i > 0 {
			select {
			case <-time.After(o.stagger):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		halted, err := o.halted(productionID)
		if err != nil || halted {
			return err
		}
		if err := o.store.RenewLease(productionID, owner, o.leaseTTL); err != nil {
			return err
		}

		if err := o.stager.Submit(ctx, song.ID); err != nil {
			log.Printf("[Orchestrator] song %s submission failed, continuing: %v", song.ID, err)
		}
	}
	return nil
}

// halted reports whether the production left in_progress, which happens
// on user cancel. Checked before every external call so a cancel takes
// effect at the next boundary with at most one call in flight.
func (o *Orchestrator) halted(productionID string) (bool, error) {
	prod, err := o.store.GetProductionAny(productionID)
	if err != nil {
		return true, err
	}
	if prod.Status != model.ProductionStatusInProgress {
		log.Printf("[Orchestrator] production %s became %s, halting run", productionID, prod.Status)
		return true, nil
	}
	return false, nil
}
