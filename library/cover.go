package library

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxCoverBytes caps images inlined as thumbnails.
const MaxCoverBytes = 2 << 20

// LoadCover reads a local image and returns it as a data URL suitable for
// Book.Thumbnail.
func LoadCover(path string) (string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	return EncodeCover(data)
}

// EncodeCover inlines raw image bytes as a base64 data URL. Anything that is
// not sniffed as an image is rejected.
func EncodeCover(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("cover image is empty")
	}
	if len(data) > MaxCoverBytes {
		return "", fmt.Errorf("cover image is %d bytes, limit is %d", len(data), MaxCoverBytes)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("cover must be an image, got %s", mt.String())
	}
	return "data:" + mt.String() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// IsThumbnailRef reports whether s is an acceptable thumbnail reference:
// an http(s) URL or an inlined image data URL.
func IsThumbnailRef(s string) bool {
	if strings.HasPrefix(s, "data:image/") {
		return strings.Contains(s, ";base64,")
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
