package provider

import (
	"github.com/olastephen/video-audio-downloader/internal/platform"
)

// Resolve classifies a URL and orders the registered providers into the
// fallback chain for it. An empty chain means nothing can handle the URL.
//
// Chain rules:
//   - direct_download requests get the direct provider alone; its failure is
//     final, nothing falls back behind an explicit byte fetch.
//   - direct media URLs try the raw fetch first, extractors after it.
//   - everything else runs primary extractor, then the platform-native
//     client when one exists, then the legacy extractor, then the raw fetch.
//     The raw fetch is withheld from URLs whose path names an HTML document,
//     where it could only ever download the page itself.
//
// Providers that are unavailable or do not support the platform are skipped.
func Resolve(rawURL string, opts Options, registered []Provider) (platform.Tag, []Provider) {
	tag := platform.Classify(rawURL)
	if tag == platform.TagUnknown {
		return tag, nil
	}

	byName := make(map[string]Provider, len(registered))
	for _, p := range registered {
		byName[p.Name()] = p
	}

	var order []string
	switch {
	case opts.DirectDownload:
		order = []string{NameDirect}
	case tag == platform.TagDirectMedia:
		order = []string{NameDirect, NamePrimary, NameLegacy}
	default:
		order = []string{NamePrimary}
		if tag.HasNativeProvider() {
			order = append(order, NameNative)
		}
		order = append(order, NameLegacy)
		if !platform.IsHTMLEndpoint(rawURL) {
			order = append(order, NameDirect)
		}
	}

	chain := make([]Provider, 0, len(order))
	for _, name := range order {
		p, ok := byName[name]
		if !ok || !p.Available() || !p.SupportsPlatform(tag) {
			continue
		}
		chain = append(chain, p)
	}
	return tag, chain
}
