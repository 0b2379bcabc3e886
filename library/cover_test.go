package library

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestLoadCover(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.png")
	if err := os.WriteFile(path, pngBytes(t), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	ref, err := LoadCover(path)
	if err != nil {
		t.Fatalf("load cover: %v", err)
	}
	if !strings.HasPrefix(ref, "data:image/png;base64,") {
		t.Fatalf("unexpected data url prefix: %.40s", ref)
	}
	if !IsThumbnailRef(ref) {
		t.Fatalf("encoded cover not accepted as thumbnail")
	}
}

func TestEncodeCoverRejectsNonImages(t *testing.T) {
	if _, err := EncodeCover([]byte("just some text, not a picture")); err == nil {
		t.Fatalf("expected text to be rejected")
	}
	if _, err := EncodeCover(nil); err == nil {
		t.Fatalf("expected empty input to be rejected")
	}
	if _, err := EncodeCover(make([]byte, MaxCoverBytes+1)); err == nil {
		t.Fatalf("expected oversized input to be rejected")
	}
}

func TestIsThumbnailRef(t *testing.T) {
	tests := map[string]bool{
		"https://books.google.com/books/content?id=x": true,
		"http://example.com/cover.jpg":                true,
		"data:image/jpeg;base64,AAAA":                 true,
		"data:text/plain;base64,AAAA":                 false,
		"ftp://example.com/cover.jpg":                 false,
		"cover.jpg":                                   false,
		"https://":                                    false,
	}
	for in, want := range tests {
		if got := IsThumbnailRef(in); got != want {
			t.Errorf("IsThumbnailRef(%q) = %v, want %v", in, got, want)
		}
	}
}
