package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/makeasinger/producer/internal/db"
	"github.com/makeasinger/producer/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	gdb, err := db.Connect(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(gdb)
}

func seedProduction(t *testing.T, s *Store, owner string, status model.ProductionStatus) *model.Production {
	t.Helper()
	p := &model.Production{
		ID:         uuid.New().String(),
		OwnerID:    owner,
		ArtistName: "Test Artist",
		GenreID:    "pop",
		AlbumCount: 1,
		Status:     status,
	}
	if err := s.CreateProduction(p); err != nil {
		t.Fatalf("create production: %v", err)
	}
	return p
}

func seedAlbum(t *testing.T, s *Store, prod *model.Production, number int, songStatuses ...model.SongStatus) (*model.Album, []model.Song) {
	t.Helper()
	album := &model.Album{
		ID:           uuid.New().String(),
		ProductionID: prod.ID,
		AlbumNumber:  number,
		Title:        "Album",
		SongCount:    len(songStatuses),
		Status:       model.AlbumStatusInProgress,
	}
	songs := make([]model.Song, 0, len(songStatuses))
	for i, st := range songStatuses {
		songs = append(songs, model.Song{
			ID:           uuid.New().String(),
			AlbumID:      album.ID,
			ProductionID: prod.ID,
			TrackNumber:  i + 1,
			Title:        "Track",
			GenreRuleID:  "pop",
			Status:       st,
		})
	}
	if err := s.CreateAlbumWithSongs(album, songs); err != nil {
		t.Fatalf("create album: %v", err)
	}
	return album, songs
}

func TestGetProduction_OwnerScoped(t *testing.T) {
	s := newTestStore(t)
	p := seedProduction(t, s, "alice", model.ProductionStatusPlanning)

	if _, err := s.GetProduction("alice", p.ID); err != nil {
		t.Fatalf("owner should see their production: %v", err)
	}
	if _, err := s.GetProduction("bob", p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("other owner should get ErrNotFound, got %v", err)
	}
	if _, err := s.GetProductionAny(p.ID); err != nil {
		t.Errorf("pipeline lookup should ignore ownership: %v", err)
	}
}

func TestTransitionProduction_CompareAndSwap(t *testing.T) {
	s := newTestStore(t)
	p := seedProduction(t, s, "alice", model.ProductionStatusPlanned)

	ok, err := s.TransitionProduction(p.ID, model.ProductionStatusPlanned, model.ProductionStatusInProgress, nil)
	if err != nil || !ok {
		t.Fatalf("first transition should apply: ok=%v err=%v", ok, err)
	}

	// Same move again must report not applied.
	ok, err = s.TransitionProduction(p.ID, model.ProductionStatusPlanned, model.ProductionStatusInProgress, nil)
	if err != nil {
		t.Fatalf("second transition errored: %v", err)
	}
	if ok {
		t.Error("repeated transition should not apply")
	}
}

func TestTransitionProduction_TerminalSetsCompletedAt(t *testing.T) {
	s := newTestStore(t)
	p := seedProduction(t, s, "alice", model.ProductionStatusInProgress)

	msg := "vendor down"
	if ok, err := s.TransitionProduction(p.ID, model.ProductionStatusInProgress, model.ProductionStatusFailed, &msg); err != nil || !ok {
		t.Fatalf("transition: ok=%v err=%v", ok, err)
	}

	got, err := s.GetProductionAny(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CompletedAt == nil {
		t.Error("terminal transition should stamp completed_at")
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != msg {
		t.Errorf("error message not persisted: %v", got.ErrorMessage)
	}
}

func TestTransitionProduction_ReopenClearsCompletedAt(t *testing.T) {
	s := newTestStore(t)
	p := seedProduction(t, s, "alice", model.ProductionStatusInProgress)

	if ok, err := s.TransitionProduction(p.ID, model.ProductionStatusInProgress, model.ProductionStatusCompleted, nil); err != nil || !ok {
		t.Fatalf("transition: ok=%v err=%v", ok, err)
	}
	if ok, err := s.TransitionProduction(p.ID, model.ProductionStatusCompleted, model.ProductionStatusInProgress, nil); err != nil || !ok {
		t.Fatalf("reopen: ok=%v err=%v", ok, err)
	}

	got, err := s.GetProductionAny(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CompletedAt != nil {
		t.Error("reopened production should not keep a completed_at timestamp")
	}
}

func TestSongsByStatus_OrderedAcrossAlbums(t *testing.T) {
	s := newTestStore(t)
	p := seedProduction(t, s, "alice", model.ProductionStatusInProgress)
	// Insert album 2 first so insertion order disagrees with album order.
	seedAlbum(t, s, p, 2, model.SongStatusPlanned, model.SongStatusPlanned)
	seedAlbum(t, s, p, 1, model.SongStatusPlanned)

	songs, err := s.SongsByStatus(p.ID, model.SongStatusPlanned)
	if err != nil {
		t.Fatal(err)
	}
	if len(songs) != 3 {
		t.Fatalf("got %d songs, want 3", len(songs))
	}
	album1First := songs[0]
	a, err := s.GetAlbum(album1First.AlbumID)
	if err != nil {
		t.Fatal(err)
	}
	if a.AlbumNumber != 1 {
		t.Errorf("songs should come in album order, first song belongs to album %d", a.AlbumNumber)
	}
}

func TestAlbumSongsAllTerminal_FailedCounts(t *testing.T) {
	s := newTestStore(t)
	p := seedProduction(t, s, "alice", model.ProductionStatusInProgress)
	album, songs := seedAlbum(t, s, p, 1, model.SongStatusCompleted, model.SongStatusSunoPending)

	done, err := s.AlbumSongsAllTerminal(album.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Error("album with a pending song is not terminal")
	}

	songs[1].Status = model.SongStatusFailed
	if err := s.SaveSong(&songs[1]); err != nil {
		t.Fatal(err)
	}
	done, err = s.AlbumSongsAllTerminal(album.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Error("failed songs count as terminal")
	}
}

func TestAlbumsAllCompleted(t *testing.T) {
	s := newTestStore(t)
	p := seedProduction(t, s, "alice", model.ProductionStatusInProgress)
	a1, _ := seedAlbum(t, s, p, 1, model.SongStatusCompleted)
	a2, _ := seedAlbum(t, s, p, 2, model.SongStatusCompleted)

	all, err := s.AlbumsAllCompleted(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if all {
		t.Error("in-progress albums should not read as completed")
	}

	for _, id := range []string{a1.ID, a2.ID} {
		if err := s.SetAlbumStatus(id, model.AlbumStatusCompleted); err != nil {
			t.Fatal(err)
		}
	}
	all, err = s.AlbumsAllCompleted(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !all {
		t.Error("all albums completed should read true")
	}
}

func TestStatusHistogram(t *testing.T) {
	s := newTestStore(t)
	p := seedProduction(t, s, "alice", model.ProductionStatusInProgress)
	seedAlbum(t, s, p, 1, model.SongStatusCompleted, model.SongStatusCompleted, model.SongStatusFailed)

	hist, err := s.StatusHistogram("alice", p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if hist[model.SongStatusCompleted] != 2 || hist[model.SongStatusFailed] != 1 {
		t.Errorf("unexpected histogram: %v", hist)
	}

	if _, err := s.StatusHistogram("bob", p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("histogram should be owner scoped, got %v", err)
	}
}

func TestRetryableFailedSongs_RespectsCap(t *testing.T) {
	s := newTestStore(t)
	p := seedProduction(t, s, "alice", model.ProductionStatusInProgress)
	_, songs := seedAlbum(t, s, p, 1, model.SongStatusFailed, model.SongStatusFailed)

	songs[0].RetryCount = 3
	if err := s.SaveSong(&songs[0]); err != nil {
		t.Fatal(err)
	}

	got, err := s.RetryableFailedSongs(3, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != songs[1].ID {
		t.Errorf("only the under-cap song should be retryable, got %d songs", len(got))
	}
}

func TestSongByGenerationJobID(t *testing.T) {
	s := newTestStore(t)
	p := seedProduction(t, s, "alice", model.ProductionStatusInProgress)
	_, songs := seedAlbum(t, s, p, 1, model.SongStatusSunoPending)

	jobID := "job-123"
	songs[0].GenerationJobID = &jobID
	if err := s.SaveSong(&songs[0]); err != nil {
		t.Fatal(err)
	}

	got, err := s.SongByGenerationJobID("job-123")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != songs[0].ID {
		t.Errorf("wrong song resolved for job id")
	}

	if _, err := s.SongByGenerationJobID("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown job should be ErrNotFound, got %v", err)
	}
}

func TestOldestPlannedAutoTriggered(t *testing.T) {
	s := newTestStore(t)

	manual := seedProduction(t, s, "alice", model.ProductionStatusPlanned)
	_ = manual

	older := seedProduction(t, s, "alice", model.ProductionStatusPlanned)
	older.AutoTriggered = true
	older.CreatedAt = time.Now().Add(-2 * time.Hour)
	if err := s.SaveProduction(older); err != nil {
		t.Fatal(err)
	}

	newer := seedProduction(t, s, "alice", model.ProductionStatusPlanned)
	newer.AutoTriggered = true
	if err := s.SaveProduction(newer); err != nil {
		t.Fatal(err)
	}

	got, err := s.OldestPlannedAutoTriggered()
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != older.ID {
		t.Errorf("expected the oldest auto-triggered production")
	}
}

func TestLease_AcquireConflictAndReclaim(t *testing.T) {
	s := newTestStore(t)
	p := seedProduction(t, s, "alice", model.ProductionStatusInProgress)

	ok, err := s.AcquireLease(p.ID, "runner-a", time.Hour)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}

	ok, err = s.AcquireLease(p.ID, "runner-b", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("live lease must not be stolen by another owner")
	}

	held, err := s.LeaseHeld(p.ID)
	if err != nil || !held {
		t.Fatalf("lease should be held: held=%v err=%v", held, err)
	}

	if err := s.ReleaseLease(p.ID, "runner-a"); err != nil {
		t.Fatal(err)
	}
	ok, err = s.AcquireLease(p.ID, "runner-b", time.Hour)
	if err != nil || !ok {
		t.Errorf("released lease should be claimable: ok=%v err=%v", ok, err)
	}
}

func TestLease_ExpiredReclaim(t *testing.T) {
	s := newTestStore(t)
	p := seedProduction(t, s, "alice", model.ProductionStatusInProgress)

	if ok, err := s.AcquireLease(p.ID, "runner-a", -time.Minute); err != nil || !ok {
		t.Fatalf("seed expired lease: ok=%v err=%v", ok, err)
	}

	held, err := s.LeaseHeld(p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if held {
		t.Error("expired lease should not read as held")
	}

	ok, err := s.AcquireLease(p.ID, "runner-b", time.Hour)
	if err != nil || !ok {
		t.Errorf("expired lease should be reclaimable: ok=%v err=%v", ok, err)
	}
}

func TestLease_Renew(t *testing.T) {
	s := newTestStore(t)
	p := seedProduction(t, s, "alice", model.ProductionStatusInProgress)

	if ok, _ := s.AcquireLease(p.ID, "runner-a", time.Hour); !ok {
		t.Fatal("acquire failed")
	}
	if err := s.RenewLease(p.ID, "runner-a", time.Hour); err != nil {
		t.Errorf("holder renew should succeed: %v", err)
	}
	if err := s.RenewLease(p.ID, "runner-b", time.Hour); err == nil {
		t.Error("non-holder renew should fail")
	}
}
