package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/olastephen/video-audio-downloader/internal/provider"
)

// sniffLen is how many leading bytes are inspected for an HTML signature.
const sniffLen = 512

var htmlSignatures = [][]byte{
	[]byte("<html"),
	[]byte("<!doctype"),
	[]byte("<head"),
	[]byte("<body"),
}

// looksLikeHTML reports whether the head of a payload is an HTML document.
// Extractors and servers alike sometimes deliver an error page with a 200.
func looksLikeHTML(head []byte) bool {
	trimmed := bytes.ToLower(bytes.TrimLeft(head, " \t\r\n\xef\xbb\xbf"))
	for _, sig := range htmlSignatures {
		if bytes.HasPrefix(trimmed, sig) {
			return true
		}
	}
	return false
}

// validateStagedFile enforces the size floor and the HTML sniff on a file
// before it is uploaded.
func validateStagedFile(path string, minBytes int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", provider.ErrExtractionFailed, err)
	}
	if info.Size() < minBytes {
		return fmt.Errorf("%w: file is %d bytes, floor is %d",
			provider.ErrValidationFailed, info.Size(), minBytes)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", provider.ErrExtractionFailed, err)
	}
	defer f.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", provider.ErrExtractionFailed, err)
	}

	if looksLikeHTML(head[:n]) {
		return fmt.Errorf("%w: file is an HTML document, not media", provider.ErrValidationFailed)
	}
	return nil
}
