package playlist

import (
	"fmt"

	"github.com/jscyril/mileage_mafia/api"
	playerrors "github.com/jscyril/mileage_mafia/pkg/errors"
)

// Registry is the static, ordered list of music tracks. It is built once at
// startup and never mutated, so it needs no locking.
type Registry struct {
	tracks []api.Track
	byID   map[string]int
}

// NewRegistry copies tracks into a registry. IDs must be unique and every
// track needs a source.
func NewRegistry(tracks []api.Track) (*Registry, error) {
	r := &Registry{
		tracks: make([]api.Track, len(tracks)),
		byID:   make(map[string]int, len(tracks)),
	}
	copy(r.tracks, tracks)

	for i, t := range r.tracks {
		if t.ID == "" {
			return nil, fmt.Errorf("track %d: missing id", i)
		}
		if t.Source == "" {
			return nil, fmt.Errorf("track %s: missing source", t.ID)
		}
		if _, dup := r.byID[t.ID]; dup {
			return nil, fmt.Errorf("track %s: duplicate id", t.ID)
		}
		r.byID[t.ID] = i
	}
	return r, nil
}

// Len returns the number of tracks
func (r *Registry) Len() int {
	return len(r.tracks)
}

// Wrap maps any index, including negative ones, into [0, Len).
func (r *Registry) Wrap(index int) int {
	n := len(r.tracks)
	if n == 0 {
		return 0
	}
	return ((index % n) + n) % n
}

// TrackAt returns the track at index, wrapping out-of-range values
func (r *Registry) TrackAt(index int) (api.Track, error) {
	if len(r.tracks) == 0 {
		return api.Track{}, playerrors.ErrEmptyPlaylist
	}
	return r.tracks[r.Wrap(index)], nil
}

// Next returns the index after index, wrapping to 0
func (r *Registry) Next(index int) int {
	return r.Wrap(index + 1)
}

// Prev returns the index before index, wrapping to the last track
func (r *Registry) Prev(index int) int {
	return r.Wrap(index - 1)
}

// IndexOf returns the position of the track with the given id
func (r *Registry) IndexOf(id string) (int, error) {
	i, ok := r.byID[id]
	if !ok {
		return -1, playerrors.ErrTrackNotFound
	}
	return i, nil
}

// Tracks returns a copy of all tracks in order
func (r *Registry) Tracks() []api.Track {
	out := make([]api.Track, len(r.tracks))
	copy(out, r.tracks)
	return out
}
