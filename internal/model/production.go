package model

import (
	"encoding/json"
	"time"
)

// Production is one request to generate a batch of albums for an artist.
type Production struct {
	ID             string           `gorm:"primaryKey" json:"id"`
	OwnerID        string           `gorm:"not null;index" json:"ownerId"`
	ArtistName     string           `gorm:"not null" json:"artistName"`
	GenreID        string           `gorm:"not null" json:"genreId"`
	Notes          string           `json:"notes,omitempty"`
	AlbumCount     int              `gorm:"not null" json:"albumCount"`
	ModelOverrides string           `gorm:"default:'{}'" json:"-"` // JSON map[TaskKind]model
	ForbiddenWords string           `gorm:"default:'[]'" json:"-"` // JSON []string
	SongsPerAlbum  *int             `json:"songsPerAlbum,omitempty"`
	AutoTriggered  bool             `gorm:"not null;default:false" json:"autoTriggered"`
	Status         ProductionStatus `gorm:"not null;index" json:"status"`
	ErrorMessage   *string          `json:"error,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`

	Albums []Album `gorm:"foreignKey:ProductionID" json:"albums,omitempty"`
}

func (Production) TableName() string { return "productions" }

// Cancelled reports whether the production was failed by an explicit user
// cancel rather than a pipeline error.
func (p *Production) Cancelled() bool {
	return p.Status == ProductionStatusFailed &&
		p.ErrorMessage != nil && *p.ErrorMessage == ErrCancelledByUser
}

// Overrides decodes the per-task model override map. A corrupt column
// reads as no overrides.
func (p *Production) Overrides() map[TaskKind]string {
	out := make(map[TaskKind]string)
	if p.ModelOverrides != "" {
		_ = json.Unmarshal([]byte(p.ModelOverrides), &out)
	}
	return out
}

// ModelFor returns the override model for a task, or "" for the default.
func (p *Production) ModelFor(task TaskKind) string {
	return p.Overrides()[task]
}

// Forbidden decodes the production's forbidden-word list.
func (p *Production) Forbidden() []string {
	var out []string
	if p.ForbiddenWords != "" {
		_ = json.Unmarshal([]byte(p.ForbiddenWords), &out)
	}
	return out
}

// Album is one planned album inside a production. Its completion is
// derived from its songs, never set independently of them.
type Album struct {
	ID           string      `gorm:"primaryKey" json:"id"`
	ProductionID string      `gorm:"not null;index" json:"productionId"`
	AlbumNumber  int         `gorm:"not null" json:"albumNumber"`
	Title        string      `gorm:"not null" json:"title"`
	Theme        string      `json:"theme"`
	CoverArtPath *string     `json:"coverArtPath,omitempty"`
	SongCount    int         `gorm:"not null" json:"songCount"`
	Status       AlbumStatus `gorm:"not null;index" json:"status"`
	CreatedAt    time.Time   `json:"createdAt"`

	Songs []Song `gorm:"foreignKey:AlbumID" json:"songs,omitempty"`
}

func (Album) TableName() string { return "albums" }

// Song is one track moving through the lyric and generation pipeline.
type Song struct {
	ID              string     `gorm:"primaryKey" json:"id"`
	AlbumID         string     `gorm:"not null;index" json:"albumId"`
	ProductionID    string     `gorm:"not null;index" json:"productionId"`
	TrackNumber     int        `gorm:"not null" json:"trackNumber"`
	Title           string     `gorm:"not null" json:"title"`
	Direction       string     `json:"direction"`
	StyleTags       string     `json:"styleTags"`
	GenreRuleID     string     `json:"genreRuleId"`
	WorkspacePath   string     `json:"workspacePath,omitempty"`
	Lyrics          *string    `json:"lyrics,omitempty"`
	RevisionCount   int        `gorm:"not null;default:0" json:"revisionCount"`
	RetryCount      int        `gorm:"not null;default:0" json:"retryCount"`
	AnalysisIssues  string     `gorm:"default:'[]'" json:"-"` // JSON []string
	GenerationJobID *string    `gorm:"index" json:"generationJobId,omitempty"`
	Status          SongStatus `gorm:"not null;index" json:"status"`
	ErrorMessage    *string    `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
}

func (Song) TableName() string { return "songs" }

// Issues decodes the recorded analysis issues.
func (s *Song) Issues() []string {
	var out []string
	if s.AnalysisIssues != "" {
		_ = json.Unmarshal([]byte(s.AnalysisIssues), &out)
	}
	return out
}

// SetIssues encodes analysis issues for persistence.
func (s *Song) SetIssues(issues []string) {
	if issues == nil {
		issues = []string{}
	}
	data, _ := json.Marshal(issues)
	s.AnalysisIssues = string(data)
}

// ProductionLease is the persisted run guard: one orchestrator owns a
// production at a time, across every instance of the service.
type ProductionLease struct {
	ProductionID string    `gorm:"primaryKey"`
	Owner        string    `gorm:"not null"`
	ExpiresAt    time.Time `gorm:"not null"`
}

func (ProductionLease) TableName() string { return "production_leases" }
