package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olastephen/video-audio-downloader/internal/platform"
	"github.com/olastephen/video-audio-downloader/internal/progress"
)

type fakeProvider struct {
	name      string
	available bool
	supports  func(platform.Tag) bool
}

func (f *fakeProvider) Name() string    { return f.name }
func (f *fakeProvider) Available() bool { return f.available }
func (f *fakeProvider) SupportsPlatform(tag platform.Tag) bool {
	if f.supports != nil {
		return f.supports(tag)
	}
	return tag != platform.TagUnknown
}
func (f *fakeProvider) Fetch(context.Context, string, Options, progress.Sink) (*Artifact, error) {
	return nil, errors.New("not implemented")
}

func fullRegistry() []Provider {
	return []Provider{
		&fakeProvider{name: NamePrimary, available: true},
		&fakeProvider{name: NameNative, available: true, supports: func(t platform.Tag) bool { return t == platform.TagYouTube }},
		&fakeProvider{name: NameLegacy, available: true},
		&fakeProvider{name: NameDirect, available: true},
	}
}

func chainNames(chain []Provider) []string {
	names := make([]string, len(chain))
	for i, p := range chain {
		names[i] = p.Name()
	}
	return names
}

func TestResolveYouTubeIncludesNative(t *testing.T) {
	tag, chain := Resolve("https://www.youtube.com/watch?v=abc", Options{}, fullRegistry())

	assert.Equal(t, platform.TagYouTube, tag)
	assert.Equal(t, []string{NamePrimary, NameNative, NameLegacy, NameDirect}, chainNames(chain))
}

func TestResolveGenericSkipsNative(t *testing.T) {
	tag, chain := Resolve("https://example.com/some/video/page", Options{}, fullRegistry())

	assert.Equal(t, platform.TagGeneric, tag)
	assert.Equal(t, []string{NamePrimary, NameLegacy, NameDirect}, chainNames(chain))
}

func TestResolveDirectDownloadShortCircuits(t *testing.T) {
	_, chain := Resolve("https://example.com/clip.mp4", Options{DirectDownload: true}, fullRegistry())

	require.Len(t, chain, 1)
	assert.Equal(t, NameDirect, chain[0].Name())
}

func TestResolveDirectMediaPutsRawFetchFirst(t *testing.T) {
	tag, chain := Resolve("https://cdn.example.com/clip.mp4", Options{}, fullRegistry())

	assert.Equal(t, platform.TagDirectMedia, tag)
	assert.Equal(t, []string{NameDirect, NamePrimary, NameLegacy}, chainNames(chain))
}

func TestResolveHTMLEndpointExcludesRawFetch(t *testing.T) {
	_, chain := Resolve("https://example.com/watch.html", Options{}, fullRegistry())

	assert.Equal(t, []string{NamePrimary, NameLegacy}, chainNames(chain))
}

func TestResolveSkipsUnavailableProviders(t *testing.T) {
	registry := []Provider{
		&fakeProvider{name: NamePrimary, available: false},
		&fakeProvider{name: NameLegacy, available: true},
		&fakeProvider{name: NameDirect, available: true},
	}

	_, chain := Resolve("https://example.com/page", Options{}, registry)

	assert.Equal(t, []string{NameLegacy, NameDirect}, chainNames(chain))
}

func TestResolveUnknownURLYieldsEmptyChain(t *testing.T) {
	tag, chain := Resolve("not a url", Options{}, fullRegistry())

	assert.Equal(t, platform.TagUnknown, tag)
	assert.Empty(t, chain)
}

func TestResolveIsStable(t *testing.T) {
	url := "https://www.youtube.com/watch?v=abc"
	_, first := Resolve(url, Options{}, fullRegistry())
	for i := 0; i < 5; i++ {
		_, again := Resolve(url, Options{}, fullRegistry())
		assert.Equal(t, chainNames(first), chainNames(again))
	}
}
