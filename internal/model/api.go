package model

import "time"

// ProductionCreateRequest is the request body for creating a production.
type ProductionCreateRequest struct {
	ArtistName     string            `json:"artistName" validate:"required,min=1,max=120"`
	Genre          string            `json:"genre" validate:"required,min=1,max=40"`
	Notes          string            `json:"notes" validate:"omitempty,max=2000"`
	AlbumCount     int               `json:"albumCount" validate:"required,min=1,max=10"`
	ModelOverrides map[string]string `json:"modelOverrides" validate:"omitempty,max=8"`
	ForbiddenWords []string          `json:"forbiddenWords" validate:"omitempty,max=100,dive,min=1,max=60"`
	SongsPerAlbum  *int              `json:"songsPerAlbum" validate:"omitempty,min=1,max=20"`
	AutoTriggered  bool              `json:"autoTriggered"`
}

// ProductionCreateResponse returns the id of the new production.
type ProductionCreateResponse struct {
	ProductionID string           `json:"productionId"`
	Status       ProductionStatus `json:"status"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// ProductionSummary is the list-view projection of a production.
type ProductionSummary struct {
	ID          string           `json:"id"`
	ArtistName  string           `json:"artistName"`
	GenreID     string           `json:"genreId"`
	AlbumCount  int              `json:"albumCount"`
	Status      ProductionStatus `json:"status"`
	Error       *string          `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

// ProductionDetail is the full production tree plus roll-up counts.
type ProductionDetail struct {
	Production     *Production `json:"production"`
	TotalSongs     int         `json:"totalSongs"`
	CompletedSongs int         `json:"completedSongs"`
	FailedSongs    int         `json:"failedSongs"`
}

// ProductionProgress is a lightweight count-by-status view for polling.
type ProductionProgress struct {
	ProductionID string             `json:"productionId"`
	Status       ProductionStatus   `json:"status"`
	Songs        map[SongStatus]int `json:"songs"`
}

// LifecycleResponse reports the outcome of approve/cancel/replan/retry.
type LifecycleResponse struct {
	ProductionID string           `json:"productionId"`
	Applied      bool             `json:"applied"`
	Status       ProductionStatus `json:"status"`
}

// GenerationCallbackRequest is the audio vendor's completion webhook body.
type GenerationCallbackRequest struct {
	JobID  string `json:"jobId" validate:"required"`
	Status string `json:"status" validate:"required,oneof=pending completed failed"`
	Error  string `json:"error" validate:"omitempty,max=2000"`
}
