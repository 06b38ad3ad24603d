package domain

// Song is immutable once created.
type Song struct {
	Platform string `json:"platform"`
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	// Duration in seconds.
	Duration int    `json:"duration"`
	CoverURL string `json:"cover_url"`
}

func (s Song) DurationMs() int64 {
	return int64(s.Duration) * 1000
}

// Key identifies a song across catalogs.
func (s Song) Key() string {
	return s.Platform + ":" + s.ID
}

type QueueItem struct {
	Song        Song   `json:"song"`
	RequestedBy string `json:"requested_by"`
}
