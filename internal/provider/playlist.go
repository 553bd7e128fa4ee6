package provider

import (
	"context"
	"fmt"
	"net/url"

	ytlist "github.com/ytget/ytdlp/v2"
)

// PlaylistItem is one entry of a YouTube playlist.
type PlaylistItem struct {
	VideoID string `json:"video_id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
}

// ListYouTubePlaylist resolves a playlist URL into its individual video
// entries. Only YouTube playlists are supported; other URLs get
// ErrUnsupportedURL.
func ListYouTubePlaylist(ctx context.Context, rawURL string) ([]PlaylistItem, error) {
	id := playlistID(rawURL)
	if id == "" {
		return nil, fmt.Errorf("%w: not a YouTube playlist URL", ErrUnsupportedURL)
	}

	items, err := ytlist.New().GetPlaylistItemsAll(ctx, id, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: listing playlist: %v", ErrExtractionFailed, err)
	}

	entries := make([]PlaylistItem, 0, len(items))
	for _, item := range items {
		entries = append(entries, PlaylistItem{
			VideoID: item.VideoID,
			Title:   item.Title,
			URL:     fmt.Sprintf("https://www.youtube.com/watch?v=%s", item.VideoID),
		})
	}
	return entries, nil
}

// IsPlaylistURL reports whether the URL carries a playlist identifier.
func IsPlaylistURL(rawURL string) bool {
	return playlistID(rawURL) != ""
}

func playlistID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("list")
}
