package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/makeasinger/producer/internal/genre"
	"github.com/makeasinger/producer/internal/model"
	"github.com/makeasinger/producer/internal/store"
	ws "github.com/makeasinger/producer/internal/websocket"
)

// ErrUnknownGenre rejects creation requests naming a genre without rules.
var ErrUnknownGenre = fmt.Errorf("unknown genre")

// ProductionService is the API-facing surface: creation, queries and
// the lifecycle operations. Lifecycle moves are compare-and-swap status
// transitions, so a repeated or racing call reports applied=false
// instead of double-acting.
type ProductionService struct {
	store       *store.Store
	genres      *genre.Provider
	hub         *ws.Hub
	asynqClient *asynq.Client

	retryCap int
}

func NewProductionService(st *store.Store, genres *genre.Provider, hub *ws.Hub, asynqClient *asynq.Client, retryCap int) *ProductionService {
	return &ProductionService{
		store:       st,
		genres:      genres,
		hub:         hub,
		asynqClient: asynqClient,
		retryCap:    retryCap,
	}
}

// Create persists a new production in planning and enqueues the durable
// planning task. The production exists before the task does, so a crash
// between the two leaves a planning row the replan endpoint can restart.
func (s *ProductionService) Create(ctx context.Context, ownerID string, req *model.ProductionCreateRequest) (*model.Production, error) {
	if s.genres.GetRules(ownerID, req.Genre) == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGenre, req.Genre)
	}

	overrides := "{}"
	if len(req.ModelOverrides) > 0 {
		data, err := json.Marshal(req.ModelOverrides)
		if err != nil {
			return nil, fmt.Errorf("encode model overrides: %w", err)
		}
		overrides = string(data)
	}
	forbidden := "[]"
	if len(req.ForbiddenWords) > 0 {
		data, err := json.Marshal(req.ForbiddenWords)
		if err != nil {
			return nil, fmt.Errorf("encode forbidden words: %w", err)
		}
		forbidden = string(data)
	}

	prod := &model.Production{
		ID:             uuid.New().String(),
		OwnerID:        ownerID,
		ArtistName:     req.ArtistName,
		GenreID:        req.Genre,
		Notes:          req.Notes,
		AlbumCount:     req.AlbumCount,
		ModelOverrides: overrides,
		ForbiddenWords: forbidden,
		SongsPerAlbum:  req.SongsPerAlbum,
		AutoTriggered:  req.AutoTriggered,
		Status:         model.ProductionStatusPlanning,
	}
	if err := s.store.CreateProduction(prod); err != nil {
		return nil, err
	}

	if err := s.enqueuePlan(prod.ID); err != nil {
		log.Printf("[Production] enqueue plan for %s failed: %v", prod.ID, err)
	}
	return prod, nil
}

func (s *ProductionService) enqueuePlan(productionID string) error {
	if s.asynqClient == nil {
		return nil
	}
	task, err := NewPlanTask(productionID)
	if err != nil {
		return err
	}
	_, err = s.asynqClient.Enqueue(task, asynq.Queue(QueuePipeline), asynq.MaxRetry(3))
	return err
}

func (s *ProductionService) enqueueRun(productionID string) error {
	if s.asynqClient == nil {
		return nil
	}
	task, err := NewRunTask(productionID)
	if err != nil {
		return err
	}
	_, err = s.asynqClient.Enqueue(task, asynq.Queue(QueuePipeline))
	return err
}

// List returns the owner's productions, newest first.
func (s *ProductionService) List(ownerID string) ([]model.ProductionSummary, error) {
	prods, err := s.store.ListProductions(ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]model.ProductionSummary, 0, len(prods))
	for _, p := range prods {
		out = append(out, model.ProductionSummary{
			ID:          p.ID,
			ArtistName:  p.ArtistName,
			GenreID:     p.GenreID,
			AlbumCount:  p.AlbumCount,
			Status:      p.Status,
			Error:       p.ErrorMessage,
			CreatedAt:   p.CreatedAt,
			CompletedAt: p.CompletedAt,
		})
	}
	return out, nil
}

// Detail returns the full production tree with song roll-ups.
func (s *ProductionService) Detail(ownerID, id string) (*model.ProductionDetail, error) {
	prod, err := s.store.GetProductionTree(ownerID, id)
	if err != nil {
		return nil, err
	}
	detail := &model.ProductionDetail{Production: prod}
	for _, album := range prod.Albums {
		for _, song := range album.Songs {
			detail.TotalSongs++
			switch song.Status {
			case model.SongStatusCompleted:
				detail.CompletedSongs++
			case model.SongStatusFailed:
				detail.FailedSongs++
			}
		}
	}
	return detail, nil
}

// Progress returns the count-by-status view for polling clients.
func (s *ProductionService) Progress(ownerID, id string) (*model.ProductionProgress, error) {
	prod, err := s.store.GetProduction(ownerID, id)
	if err != nil {
		return nil, err
	}
	hist, err := s.store.StatusHistogram(ownerID, id)
	if err != nil {
		return nil, err
	}
	return &model.ProductionProgress{
		ProductionID: id,
		Status:       prod.Status,
		Songs:        hist,
	}, nil
}

// Approve starts a planned production. Returns applied=false when the
// production is in any other status.
func (s *ProductionService) Approve(ownerID, id string) (*model.LifecycleResponse, error) {
	prod, err := s.store.GetProduction(ownerID, id)
	if err != nil {
		return nil, err
	}

	ok, err := s.store.TransitionProduction(id,
		model.ProductionStatusPlanned, model.ProductionStatusInProgress, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.lifecycle(id, false)
	}
	if err := s.store.MarkAlbumsInProgress(id); err != nil {
		return nil, err
	}
	s.hub.BroadcastProductionStatus(id, model.ProductionStatusInProgress, "")
	if err := s.enqueueRun(id); err != nil {
		log.Printf("[Production] enqueue run for %s failed, recovery will resume it: %v", id, err)
	}
	log.Printf("[Production] %s approved by %s", id, prod.OwnerID)
	return s.lifecycle(id, true)
}

// Cancel fails a live production with the cancellation marker. Terminal
// productions report applied=false; repeating a cancel is harmless.
func (s *ProductionService) Cancel(ownerID, id string) (*model.LifecycleResponse, error) {
	prod, err := s.store.GetProduction(ownerID, id)
	if err != nil {
		return nil, err
	}

	msg := model.ErrCancelledByUser
	for _, from := range []model.ProductionStatus{
		model.ProductionStatusPlanning,
		model.ProductionStatusPlanned,
		model.ProductionStatusInProgress,
	} {
		ok, err := s.store.TransitionProduction(id, from, model.ProductionStatusFailed, &msg)
		if err != nil {
			return nil, err
		}
		if ok {
			s.hub.BroadcastProductionStatus(id, model.ProductionStatusFailed, msg)
			log.Printf("[Production] %s cancelled by %s", id, prod.OwnerID)
			return s.lifecycle(id, true)
		}
	}
	return s.lifecycle(id, false)
}

// Replan restarts planning for a production that either sits in planning
// (a crashed or stuck planner) or failed during planning with no albums
// persisted. Anything further along reports applied=false; cancelled
// productions are never replanned.
func (s *ProductionService) Replan(ownerID, id string) (*model.LifecycleResponse, error) {
	prod, err := s.store.GetProduction(ownerID, id)
	if err != nil {
		return nil, err
	}

	switch {
	case prod.Status == model.ProductionStatusPlanning:
		// already in planning, just re-enqueue
	case prod.Status == model.ProductionStatusFailed && !prod.Cancelled():
		albums, err := s.store.CountAlbums(id)
		if err != nil {
			return nil, err
		}
		if albums > 0 {
			return s.lifecycle(id, false)
		}
		ok, err := s.store.TransitionProduction(id,
			model.ProductionStatusFailed, model.ProductionStatusPlanning, nil)
		if err != nil {
			return nil, err
		}
		if !ok {
			return s.lifecycle(id, false)
		}
		s.hub.BroadcastProductionStatus(id, model.ProductionStatusPlanning, "")
	default:
		return s.lifecycle(id, false)
	}

	if err := s.enqueuePlan(id); err != nil {
		return nil, err
	}
	log.Printf("[Production] %s replan requested by %s", id, ownerID)
	return s.lifecycle(id, true)
}

// Retry resets this production's failed songs under the retry cap back
// to lyrics_approved and resumes the run. Applies only to failed (not
// cancelled) or in-progress productions.
func (s *ProductionService) Retry(ownerID, id string) (*model.LifecycleResponse, error) {
	prod, err := s.store.GetProduction(ownerID, id)
	if err != nil {
		return nil, err
	}
	if prod.Cancelled() {
		return s.lifecycle(id, false)
	}
	if prod.Status != model.ProductionStatusFailed && prod.Status != model.ProductionStatusInProgress {
		return s.lifecycle(id, false)
	}

	failed, err := s.store.SongsByStatus(id, model.SongStatusFailed)
	if err != nil {
		return nil, err
	}
	reset := 0
	for i := range failed {
		song := &failed[i]
		if song.RetryCount >= s.retryCap {
			continue
		}
		song.Status = model.SongStatusLyricsApproved
		song.GenerationJobID = nil
		song.ErrorMessage = nil
		song.CompletedAt = nil
		song.RetryCount++
		if err := s.store.SaveSong(song); err != nil {
			return nil, err
		}
		if err := s.store.SetAlbumStatus(song.AlbumID, model.AlbumStatusInProgress); err != nil {
			return nil, err
		}
		s.hub.BroadcastSongStatus(song)
		reset++
	}
	if reset == 0 {
		return s.lifecycle(id, false)
	}

	if prod.Status == model.ProductionStatusFailed {
		ok, err := s.store.TransitionProduction(id,
			model.ProductionStatusFailed, model.ProductionStatusInProgress, nil)
		if err != nil {
			return nil, err
		}
		if ok {
			s.hub.BroadcastProductionStatus(id, model.ProductionStatusInProgress, "")
		}
	}
	if err := s.enqueueRun(id); err != nil {
		log.Printf("[Production] enqueue retry run for %s failed, recovery will resume it: %v", id, err)
	}
	log.Printf("[Production] %s retry reset %d songs", id, reset)
	return s.lifecycle(id, true)
}

func (s *ProductionService) lifecycle(id string, applied bool) (*model.LifecycleResponse, error) {
	prod, err := s.store.GetProductionAny(id)
	if err != nil {
		return nil, err
	}
	return &model.LifecycleResponse{
		ProductionID: id,
		Applied:      applied,
		Status:       prod.Status,
	}, nil
}
