package playlist

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jscyril/mileage_mafia/api"
	playerrors "github.com/jscyril/mileage_mafia/pkg/errors"
	"pgregory.net/rapid"
)

func makeTracks(n int) []api.Track {
	tracks := make([]api.Track, n)
	for i := range tracks {
		tracks[i] = api.Track{
			ID:     fmt.Sprintf("track-%d", i),
			Title:  fmt.Sprintf("Track %d", i),
			Source: fmt.Sprintf("music/%d.mp3", i),
		}
	}
	return tracks
}

func TestNewRegistry_Validation(t *testing.T) {
	tests := []struct {
		name    string
		tracks  []api.Track
		wantErr bool
	}{
		{"empty", nil, false},
		{"valid", makeTracks(3), false},
		{"missing id", []api.Track{{Source: "a.mp3"}}, true},
		{"missing source", []api.Track{{ID: "a"}}, true},
		{"duplicate id", []api.Track{{ID: "a", Source: "a.mp3"}, {ID: "a", Source: "b.mp3"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.tracks)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewRegistry() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_CopiesInput(t *testing.T) {
	tracks := makeTracks(2)
	r, err := NewRegistry(tracks)
	if err != nil {
		t.Fatal(err)
	}
	tracks[0].Title = "changed"

	got, _ := r.TrackAt(0)
	if got.Title != "Track 0" {
		t.Errorf("registry shares caller's slice, got title %q", got.Title)
	}
}

func TestRegistry_Wraparound(t *testing.T) {
	r, _ := NewRegistry(makeTracks(4))

	tests := []struct {
		name string
		got  int
		want int
	}{
		{"next from last", r.Next(3), 0},
		{"prev from first", r.Prev(0), 3},
		{"wrap negative", r.Wrap(-1), 3},
		{"wrap large", r.Wrap(9), 1},
		{"wrap far negative", r.Wrap(-9), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %d, want %d", tt.got, tt.want)
			}
		})
	}
}

func TestRegistry_TrackAtEmpty(t *testing.T) {
	r, _ := NewRegistry(nil)

	_, err := r.TrackAt(0)
	if !errors.Is(err, playerrors.ErrEmptyPlaylist) {
		t.Errorf("TrackAt on empty registry = %v, want ErrEmptyPlaylist", err)
	}
	if r.Next(0) != 0 || r.Prev(0) != 0 {
		t.Error("Next/Prev on empty registry should stay at 0")
	}
}

func TestRegistry_IndexOf(t *testing.T) {
	r, _ := NewRegistry(makeTracks(3))

	i, err := r.IndexOf("track-2")
	if err != nil || i != 2 {
		t.Errorf("IndexOf(track-2) = %d, %v", i, err)
	}
	if _, err := r.IndexOf("nope"); !errors.Is(err, playerrors.ErrTrackNotFound) {
		t.Errorf("IndexOf(nope) error = %v, want ErrTrackNotFound", err)
	}
}

func TestProperty_NextPrevRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 50).Draw(t, "n")
		r, err := NewRegistry(makeTracks(n))
		if err != nil {
			t.Fatal(err)
		}
		i := rapid.IntRange(0, n-1).Draw(t, "i")

		if got := r.Prev(r.Next(i)); got != i {
			t.Fatalf("prev(next(%d)) = %d with %d tracks", i, got, n)
		}
		if got := r.Next(r.Prev(i)); got != i {
			t.Fatalf("next(prev(%d)) = %d with %d tracks", i, got, n)
		}
	})
}

func TestProperty_TrackAtNeverOutOfBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "n")
		r, _ := NewRegistry(makeTracks(n))
		index := rapid.IntRange(-1000, 1000).Draw(t, "index")

		w := r.Wrap(index)
		if w < 0 || w >= n {
			t.Fatalf("Wrap(%d) = %d outside [0,%d)", index, w, n)
		}
		if _, err := r.TrackAt(index); err != nil {
			t.Fatalf("TrackAt(%d): %v", index, err)
		}
	})
}
