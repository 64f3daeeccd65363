package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	ErrTrackNotFound = errors.New("track not found")
	ErrEmptyPlaylist = errors.New("playlist is empty")
	ErrInvalidFormat = errors.New("unsupported audio format")
	ErrAudioBlocked  = errors.New("audio blocked until user gesture")
	ErrDecodeFailure = errors.New("sound effect unavailable")
	ErrDesync        = errors.New("playing flag disagrees with channel state")
	ErrUnknownEffect = errors.New("unknown sound effect")
)

// PlayerError wraps errors with additional context
type PlayerError struct {
	Op    string // Operation that failed
	Track string // Track ID or clip name if applicable
	Err   error  // Underlying error
}

func (e *PlayerError) Error() string {
	if e.Track != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Track, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PlayerError) Unwrap() error {
	return e.Err
}

// NewPlayerError creates a new PlayerError
func NewPlayerError(op, track string, err error) *PlayerError {
	return &PlayerError{Op: op, Track: track, Err: err}
}

// IsBlocked reports whether err means playback needs a user gesture first.
func IsBlocked(err error) bool {
	return errors.Is(err, ErrAudioBlocked)
}
