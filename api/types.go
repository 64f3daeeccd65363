package api

import "time"

type Track struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Artist   string        `json:"artist,omitempty"`
	Source   string        `json:"source"`
	Loop     bool          `json:"loop"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Mode identifies which channel is audible.
type Mode int

const (
	ModeAmbience Mode = iota
	ModeMusic
)

func (m Mode) String() string {
	switch m {
	case ModeAmbience:
		return "ambience"
	case ModeMusic:
		return "music"
	default:
		return "unknown"
	}
}

// PlaybackState is a snapshot of what the coordinator exposes to the UI.
type PlaybackState struct {
	Playing  bool
	Mode     Mode
	Current  *Track
	Index    int
	Position time.Duration
	Duration time.Duration
	Volume   float64
	Unlocked bool
	Blocked  bool
}

// EventType identifies an audio event on the bus
type EventType int

const (
	EventStateChange EventType = iota
	EventTrackStarted
	EventTrackEnded
	EventPositionUpdate
	EventAudioBlocked
	EventDesync
	EventError
)

// AudioEvent is published by the coordinator
type AudioEvent struct {
	Type    EventType
	Payload interface{}
}
