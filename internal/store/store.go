package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/makeasinger/producer/internal/model"
)

// ErrNotFound is returned when a row does not exist or is not visible to
// the requesting owner.
var ErrNotFound = errors.New("store: not found")

// Store wraps all durable pipeline state. Every status the orchestrator,
// tracker and recovery worker act on lives here, never in memory.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for migration wiring in main.
func (s *Store) DB() *gorm.DB { return s.db }

// --- Productions ---

func (s *Store) CreateProduction(p *model.Production) error {
	if err := s.db.Create(p).Error; err != nil {
		return fmt.Errorf("store: create production: %w", err)
	}
	return nil
}

// GetProduction loads a production scoped to its owner.
func (s *Store) GetProduction(ownerID, id string) (*model.Production, error) {
	var p model.Production
	err := s.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get production %s: %w", id, err)
	}
	return &p, nil
}

// GetProductionAny loads a production without owner scoping, for the
// pipeline's internal paths.
func (s *Store) GetProductionAny(id string) (*model.Production, error) {
	var p model.Production
	err := s.db.Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get production %s: %w", id, err)
	}
	return &p, nil
}

// GetProductionTree loads a production with albums and songs in order.
func (s *Store) GetProductionTree(ownerID, id string) (*model.Production, error) {
	var p model.Production
	err := s.db.
		Preload("Albums", func(db *gorm.DB) *gorm.DB { return db.Order("album_number") }).
		Preload("Albums.Songs", func(db *gorm.DB) *gorm.DB { return db.Order("track_number") }).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get production tree %s: %w", id, err)
	}
	return &p, nil
}

func (s *Store) ListProductions(ownerID string) ([]model.Production, error) {
	var out []model.Production
	if err := s.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: list productions: %w", err)
	}
	return out, nil
}

func (s *Store) SaveProduction(p *model.Production) error {
	if err := s.db.Save(p).Error; err != nil {
		return fmt.Errorf("store: save production %s: %w", p.ID, err)
	}
	return nil
}

// TransitionProduction moves a production from one exact status to
// another. Returns false without side effects when the current status
// does not match, which makes approve/cancel race-safe and idempotent.
func (s *Store) TransitionProduction(id string, from, to model.ProductionStatus, errMsg *string) (bool, error) {
	updates := map[string]interface{}{"status": to, "error_message": errMsg}
	if to == model.ProductionStatusCompleted || to == model.ProductionStatusFailed {
		now := time.Now()
		updates["completed_at"] = &now
	} else {
		// Reopening a settled production must drop the stale timestamp.
		updates["completed_at"] = nil
	}
	res := s.db.Model(&model.Production{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("store: transition production %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// InProgressProductions returns every production the recovery worker
// should reconcile.
func (s *Store) InProgressProductions() ([]model.Production, error) {
	var out []model.Production
	err := s.db.Where("status = ?", model.ProductionStatusInProgress).
		Order("created_at").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: in-progress productions: %w", err)
	}
	return out, nil
}

func (s *Store) CountInProgress() (int64, error) {
	var n int64
	err := s.db.Model(&model.Production{}).
		Where("status = ?", model.ProductionStatusInProgress).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("store: count in-progress: %w", err)
	}
	return n, nil
}

// OldestPlannedAutoTriggered finds the next trigger-chain production to
// auto-approve, oldest first so chains stay serialized and fair.
func (s *Store) OldestPlannedAutoTriggered() (*model.Production, error) {
	var p model.Production
	err := s.db.Where("status = ? AND auto_triggered = ?", model.ProductionStatusPlanned, true).
		Order("created_at").First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: oldest planned auto-triggered: %w", err)
	}
	return &p, nil
}

// --- Albums ---

// CreateAlbumWithSongs persists one planned album and its songs in a
// single transaction so a crash never leaves an album without tracks.
func (s *Store) CreateAlbumWithSongs(album *model.Album, songs []model.Song) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(album).Error; err != nil {
			return fmt.Errorf("store: create album: %w", err)
		}
		for i := range songs {
			if err := tx.Create(&songs[i]).Error; err != nil {
				return fmt.Errorf("store: create song %d: %w", songs[i].TrackNumber, err)
			}
		}
		return nil
	})
}

func (s *Store) GetAlbum(id string) (*model.Album, error) {
	var a model.Album
	err := s.db.Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get album %s: %w", id, err)
	}
	return &a, nil
}

func (s *Store) SetAlbumStatus(id string, status model.AlbumStatus) error {
	err := s.db.Model(&model.Album{}).Where("id = ?", id).
		Update("status", status).Error
	if err != nil {
		return fmt.Errorf("store: set album %s status: %w", id, err)
	}
	return nil
}

func (s *Store) MarkAlbumsInProgress(productionID string) error {
	err := s.db.Model(&model.Album{}).
		Where("production_id = ? AND status = ?", productionID, model.AlbumStatusPlanned).
		Update("status", model.AlbumStatusInProgress).Error
	if err != nil {
		return fmt.Errorf("store: mark albums in progress: %w", err)
	}
	return nil
}

// AlbumsForProduction lists a production's albums in album-number order.
func (s *Store) AlbumsForProduction(productionID string) ([]model.Album, error) {
	var out []model.Album
	err := s.db.Where("production_id = ?", productionID).Order("album_number").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: albums for production: %w", err)
	}
	return out, nil
}

func (s *Store) CountAlbums(productionID string) (int64, error) {
	var n int64
	err := s.db.Model(&model.Album{}).Where("production_id = ?", productionID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("store: count albums: %w", err)
	}
	return n, nil
}

// --- Songs ---

func (s *Store) GetSong(id string) (*model.Song, error) {
	var song model.Song
	err := s.db.Where("id = ?", id).First(&song).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get song %s: %w", id, err)
	}
	return &song, nil
}

func (s *Store) SaveSong(song *model.Song) error {
	if err := s.db.Save(song).Error; err != nil {
		return fmt.Errorf("store: save song %s: %w", song.ID, err)
	}
	return nil
}

// SongByGenerationJobID looks a song up by vendor job id. Returns
// ErrNotFound when the job belongs to no song (the callback may be for
// an unrelated feature).
func (s *Store) SongByGenerationJobID(jobID string) (*model.Song, error) {
	var song model.Song
	err := s.db.Where("generation_job_id = ?", jobID).First(&song).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: song by job %s: %w", jobID, err)
	}
	return &song, nil
}

// SongsByStatus lists a production's songs in album then track order,
// filtered to the given statuses.
func (s *Store) SongsByStatus(productionID string, statuses ...model.SongStatus) ([]model.Song, error) {
	var out []model.Song
	err := s.db.
		Joins("JOIN albums ON albums.id = songs.album_id").
		Where("songs.production_id = ? AND songs.status IN ?", productionID, statuses).
		Order("albums.album_number, songs.track_number").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: songs by status: %w", err)
	}
	return out, nil
}

// AlbumSongsAllTerminal reports whether every song of an album finished,
// successfully or not.
func (s *Store) AlbumSongsAllTerminal(albumID string) (bool, error) {
	var n int64
	err := s.db.Model(&model.Song{}).
		Where("album_id = ? AND status NOT IN ?", albumID,
			[]model.SongStatus{model.SongStatusCompleted, model.SongStatusFailed}).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("store: album terminal check: %w", err)
	}
	return n == 0, nil
}

// AlbumsAllCompleted reports whether every album of a production has
// resolved to completed.
func (s *Store) AlbumsAllCompleted(productionID string) (bool, error) {
	var n int64
	err := s.db.Model(&model.Album{}).
		Where("production_id = ? AND status <> ?", productionID, model.AlbumStatusCompleted).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("store: albums completed check: %w", err)
	}
	return n == 0, nil
}

// StatusHistogram counts a production's songs by status.
func (s *Store) StatusHistogram(ownerID, productionID string) (map[model.SongStatus]int, error) {
	if _, err := s.GetProduction(ownerID, productionID); err != nil {
		return nil, err
	}
	type row struct {
		Status model.SongStatus
		N      int
	}
	var rows []row
	err := s.db.Model(&model.Song{}).
		Select("status, COUNT(*) AS n").
		Where("production_id = ?", productionID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: status histogram: %w", err)
	}
	hist := make(map[model.SongStatus]int, len(rows))
	for _, r := range rows {
		hist[r.Status] = r.N
	}
	return hist, nil
}

// RetryableFailedSongs returns up to limit failed songs below the retry
// cap across all productions, oldest failures first. Cancelled
// productions are filtered by the caller, which has to load them anyway.
func (s *Store) RetryableFailedSongs(retryCap, limit int) ([]model.Song, error) {
	var out []model.Song
	err := s.db.Where("status = ? AND retry_count < ?", model.SongStatusFailed, retryCap).
		Order("created_at").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: retryable failed songs: %w", err)
	}
	return out, nil
}
