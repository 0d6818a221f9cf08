package api

// SpotifyTrack is the normalized shape of the currently playing item.
type SpotifyTrack struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	AlbumArt   string `json:"albumArt"`
	DurationMs int    `json:"durationMs"`
	ProgressMs int    `json:"progressMs"`
	URL        string `json:"url"`
}

type SpotifyStatusResponse struct {
	Connected bool `json:"connected"`
}

type NowPlayingResponse struct {
	Playing bool          `json:"playing"`
	Track   *SpotifyTrack `json:"track,omitempty"`
}
