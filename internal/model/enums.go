package model

// Production status
type ProductionStatus string

const (
	ProductionStatusPlanning   ProductionStatus = "planning"
	ProductionStatusPlanned    ProductionStatus = "planned"
	ProductionStatusInProgress ProductionStatus = "in_progress"
	ProductionStatusCompleted  ProductionStatus = "completed"
	ProductionStatusFailed     ProductionStatus = "failed"
)

// Album status
type AlbumStatus string

const (
	AlbumStatusPlanned    AlbumStatus = "planned"
	AlbumStatusInProgress AlbumStatus = "in_progress"
	AlbumStatusCompleted  AlbumStatus = "completed"
)

// Song status
type SongStatus string

const (
	SongStatusPlanned        SongStatus = "planned"
	SongStatusLyricsWIP      SongStatus = "lyrics_wip"
	SongStatusLyricsReview   SongStatus = "lyrics_review"
	SongStatusLyricsApproved SongStatus = "lyrics_approved"
	SongStatusSunoPending    SongStatus = "suno_pending"
	SongStatusCompleted      SongStatus = "completed"
	SongStatusFailed         SongStatus = "failed"
)

// songTransitions is the closed set of legal forward moves. The only
// backward move is the explicit retry reset (failed → lyrics_approved)
// and the lyricist failure revert (lyrics_wip → planned); revisions do
// not step backward, they stay in lyrics_review with a bumped count.
var songTransitions = map[SongStatus][]SongStatus{
	SongStatusPlanned:        {SongStatusLyricsWIP},
	SongStatusLyricsWIP:      {SongStatusLyricsReview, SongStatusPlanned, SongStatusFailed},
	SongStatusLyricsReview:   {SongStatusLyricsReview, SongStatusLyricsApproved},
	SongStatusLyricsApproved: {SongStatusSunoPending, SongStatusFailed},
	SongStatusSunoPending:    {SongStatusCompleted, SongStatusFailed},
	SongStatusFailed:         {SongStatusLyricsApproved},
	SongStatusCompleted:      {},
}

// CanTransition reports whether a song may move from one status to another.
func CanTransition(from, to SongStatus) bool {
	for _, next := range songTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a song has finished the pipeline, successfully
// or not. Albums and productions complete when every child is terminal.
func (s SongStatus) IsTerminal() bool {
	return s == SongStatusCompleted || s == SongStatusFailed
}

// Production task kinds, used to key per-task model overrides.
type TaskKind string

const (
	TaskPlan   TaskKind = "plan"
	TaskLyrics TaskKind = "lyrics"
	TaskReview TaskKind = "review"
)

// Generation job status reported by the audio vendor.
type GenerationStatus string

const (
	GenerationStatusPending   GenerationStatus = "pending"
	GenerationStatusCompleted GenerationStatus = "completed"
	GenerationStatusFailed    GenerationStatus = "failed"
)

// ErrCancelledByUser is the distinguished error message set by cancel.
// Recovery and retry skip productions carrying it.
const ErrCancelledByUser = "cancelled by user"
