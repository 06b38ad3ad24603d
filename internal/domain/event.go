package domain

// Broadcast event types.
const (
	EventPlay            = "play"
	EventPause           = "pause"
	EventResume          = "resume"
	EventSeek            = "seek"
	EventMusicState      = "music_state"
	EventSongUnavailable = "song_unavailable"
	EventQueueUpdated    = "queue_updated"
)

// Event is the frame pushed to every subscriber of a room. Session changes
// whenever the room engine is recreated; Seq grows by one per event within a
// session.
type Event struct {
	Type    string `json:"type"`
	Room    string `json:"room"`
	Session string `json:"session"`
	Seq     uint64 `json:"seq"`
	Payload any    `json:"payload"`
}

type PlayPayload struct {
	Song       Song   `json:"song"`
	URL        string `json:"url"`
	PositionMs int64  `json:"position_ms"`
}

type ResumePayload struct {
	PositionMs int64 `json:"position_ms"`
}

type SeekPayload struct {
	PositionMs int64 `json:"position_ms"`
}

type MusicStatePayload struct {
	PositionMs   int64         `json:"position_ms"`
	DurationMs   int64         `json:"duration_ms"`
	State        PlaybackState `json:"state"`
	CurrentSong  *Song         `json:"current_song"`
	CurrentIndex *int          `json:"current_index"`
	URL          string        `json:"url,omitempty"`
}

type SongUnavailablePayload struct {
	SongName string `json:"song_name"`
	Reason   string `json:"reason"`
}

type QueueUpdatedPayload struct {
	Queue        []QueueItem `json:"queue"`
	CurrentIndex *int        `json:"current_index"`
}

type PausePayload struct {
	PositionMs int64 `json:"position_ms"`
}
