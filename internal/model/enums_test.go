package model

import "testing"

func TestCanTransition_ForwardPath(t *testing.T) {
	path := []SongStatus{
		SongStatusPlanned,
		SongStatusLyricsWIP,
		SongStatusLyricsReview,
		SongStatusLyricsApproved,
		SongStatusSunoPending,
		SongStatusCompleted,
	}
	for i := 0; i < len(path)-1; i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Errorf("expected %s -> %s to be legal", path[i], path[i+1])
		}
	}
}

func TestCanTransition_RevisionStaysInReview(t *testing.T) {
	if !CanTransition(SongStatusLyricsReview, SongStatusLyricsReview) {
		t.Error("revision must keep the song in lyrics_review")
	}
}

func TestCanTransition_RetryReset(t *testing.T) {
	if !CanTransition(SongStatusFailed, SongStatusLyricsApproved) {
		t.Error("retry reset failed -> lyrics_approved must be legal")
	}
	if CanTransition(SongStatusFailed, SongStatusPlanned) {
		t.Error("retry must not reset a song past lyrics_approved")
	}
}

func TestCanTransition_LyricistRevert(t *testing.T) {
	if !CanTransition(SongStatusLyricsWIP, SongStatusPlanned) {
		t.Error("a failed draft must revert lyrics_wip -> planned")
	}
}

func TestCanTransition_IllegalJumps(t *testing.T) {
	cases := [][2]SongStatus{
		{SongStatusPlanned, SongStatusLyricsApproved},
		{SongStatusPlanned, SongStatusCompleted},
		{SongStatusLyricsReview, SongStatusSunoPending},
		{SongStatusCompleted, SongStatusFailed},
		{SongStatusCompleted, SongStatusLyricsApproved},
	}
	for _, c := range cases {
		if CanTransition(c[0], c[1]) {
			t.Errorf("expected %s -> %s to be illegal", c[0], c[1])
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []SongStatus{SongStatusCompleted, SongStatusFailed} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []SongStatus{SongStatusPlanned, SongStatusLyricsWIP, SongStatusLyricsReview, SongStatusLyricsApproved, SongStatusSunoPending} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestProductionCancelled(t *testing.T) {
	msg := ErrCancelledByUser
	p := Production{Status: ProductionStatusFailed, ErrorMessage: &msg}
	if !p.Cancelled() {
		t.Error("failed production with cancel marker should report Cancelled")
	}

	other := "planning failed"
	p2 := Production{Status: ProductionStatusFailed, ErrorMessage: &other}
	if p2.Cancelled() {
		t.Error("pipeline failure must not read as a cancel")
	}

	p3 := Production{Status: ProductionStatusInProgress, ErrorMessage: &msg}
	if p3.Cancelled() {
		t.Error("a live production is not cancelled")
	}
}

func TestProductionOverrides(t *testing.T) {
	p := Production{ModelOverrides: `{"lyrics":"gpt-4o","plan":"llama-3.3-70b-versatile"}`}
	if got := p.ModelFor(TaskLyrics); got != "gpt-4o" {
		t.Errorf("lyrics override = %q, want gpt-4o", got)
	}
	if got := p.ModelFor(TaskReview); got != "" {
		t.Errorf("unset override should be empty, got %q", got)
	}

	corrupt := Production{ModelOverrides: `not json`}
	if got := corrupt.ModelFor(TaskPlan); got != "" {
		t.Errorf("corrupt overrides should read as none, got %q", got)
	}
}

func TestProductionForbidden(t *testing.T) {
	p := Production{ForbiddenWords: `["darkness","blood"]`}
	words := p.Forbidden()
	if len(words) != 2 || words[0] != "darkness" {
		t.Errorf("unexpected forbidden words: %v", words)
	}
	if got := (&Production{ForbiddenWords: "[]"}).Forbidden(); len(got) != 0 {
		t.Errorf("empty list should decode empty, got %v", got)
	}
}

func TestSongIssuesRoundTrip(t *testing.T) {
	var s Song
	s.SetIssues([]string{"missing required section [Chorus]"})
	got := s.Issues()
	if len(got) != 1 || got[0] != "missing required section [Chorus]" {
		t.Errorf("unexpected issues: %v", got)
	}

	s.SetIssues(nil)
	if got := s.Issues(); len(got) != 0 {
		t.Errorf("cleared issues should be empty, got %v", got)
	}
}
