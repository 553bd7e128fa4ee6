// Package platform classifies media URLs into platform tags. Tags only
// influence the order in which providers are tried; they never change what a
// provider does with the URL.
package platform

import (
	"net/url"
	"path"
	"strings"
)

// Tag identifies the platform a URL belongs to.
type Tag string

const (
	// TagDirectMedia marks URLs whose path ends in a raw media file
	// extension. It wins over every host-based match.
	TagDirectMedia Tag = "direct_media"

	TagYouTube     Tag = "youtube"
	TagVimeo       Tag = "vimeo"
	TagDailymotion Tag = "dailymotion"
	TagTikTok      Tag = "tiktok"
	TagTwitter     Tag = "twitter"
	TagReddit      Tag = "reddit"
	TagTwitch      Tag = "twitch"
	TagInstagram   Tag = "instagram"
	TagFacebook    Tag = "facebook"

	// TagGeneric is any other http(s) URL.
	TagGeneric Tag = "generic"
	// TagUnknown is anything that is not an http(s) URL at all.
	TagUnknown Tag = "unknown"
)

func (t Tag) String() string { return string(t) }

// HasNativeProvider reports whether a platform-native provider is registered
// for this tag.
func (t Tag) HasNativeProvider() bool {
	return t == TagYouTube
}

// mediaExtensions are path suffixes treated as directly fetchable media.
var mediaExtensions = []string{
	".mp4", ".avi", ".mkv", ".mov", ".wmv", ".flv", ".webm", ".m4v", ".3gp",
	".mp3", ".m4a", ".wav", ".flac", ".ogg",
}

// htmlExtensions are path suffixes that almost certainly serve an HTML
// document, used to keep the raw fetch provider away from web pages.
var htmlExtensions = []string{".html", ".htm", ".php", ".asp", ".aspx", ".jsp"}

// hostTable maps host fragments to tags. This is an ordered list, not a set:
// earlier entries shadow later ones, which matters for pairs like "fb.watch"
// and "facebook.com".
var hostTable = []struct {
	fragment string
	tag      Tag
}{
	{"youtube.com", TagYouTube},
	{"youtu.be", TagYouTube},
	{"vimeo.com", TagVimeo},
	{"dailymotion.com", TagDailymotion},
	{"tiktok.com", TagTikTok},
	{"twitter.com", TagTwitter},
	{"x.com", TagTwitter},
	{"reddit.com", TagReddit},
	{"twitch.tv", TagTwitch},
	{"instagram.com", TagInstagram},
	{"fb.watch", TagFacebook},
	{"facebook.com", TagFacebook},
}

// Classify maps a URL to its platform tag. It is total: malformed or
// non-http input yields TagUnknown, unrecognized hosts yield TagGeneric.
func Classify(rawURL string) Tag {
	lower := strings.ToLower(rawURL)

	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return TagUnknown
	}

	if hasMediaExtension(lower) {
		return TagDirectMedia
	}

	for _, entry := range hostTable {
		if strings.Contains(lower, entry.fragment) {
			return entry.tag
		}
	}

	return TagGeneric
}

// IsHTMLEndpoint is a cheap heuristic for "this path serves a web page, not
// a media file". Used to keep the direct fetch provider out of chains where
// it could only ever download HTML.
func IsHTMLEndpoint(rawURL string) bool {
	ext := pathExtension(rawURL)
	for _, htmlExt := range htmlExtensions {
		if ext == htmlExt {
			return true
		}
	}
	return false
}

func hasMediaExtension(lowerURL string) bool {
	ext := pathExtension(lowerURL)
	for _, mediaExt := range mediaExtensions {
		if ext == mediaExt {
			return true
		}
	}
	return false
}

func pathExtension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(path.Ext(rawURL))
	}
	return strings.ToLower(path.Ext(u.Path))
}
