package imageset

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestValidateImage(t *testing.T) {
	var jpg, gf bytes.Buffer
	square := image.NewRGBA(image.Rect(0, 0, 64, 64))
	if err := jpeg.Encode(&jpg, square, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	if err := gif.Encode(&gf, square, nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}

	oversized := append(encodePNG(t, 8, 8), make([]byte, MaxImageBytes)...)

	tests := []struct {
		name    string
		data    []byte
		wantErr error
		wantCT  string
	}{
		{name: "square png", data: encodePNG(t, 100, 100), wantCT: "image/png"},
		{name: "within tolerance", data: encodePNG(t, 1000, 995), wantCT: "image/png"},
		{name: "square jpeg", data: jpg.Bytes(), wantCT: "image/jpeg"},
		{name: "square gif", data: gf.Bytes(), wantCT: "image/gif"},
		{name: "landscape", data: encodePNG(t, 200, 100), wantErr: ErrNotSquare},
		{name: "just outside tolerance", data: encodePNG(t, 100, 99), wantErr: ErrNotSquare},
		{name: "text", data: []byte("hello world"), wantErr: ErrUnsupportedType},
		{name: "too large", data: oversized, wantErr: ErrImageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ValidateImage(tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if info.ContentType != tt.wantCT {
				t.Errorf("Expected content type %s, got %s", tt.wantCT, info.ContentType)
			}
			if info.Size != len(tt.data) {
				t.Errorf("Expected size %d, got %d", len(tt.data), info.Size)
			}
		})
	}
}

func TestValidateRef(t *testing.T) {
	valid := []string{
		"https://images.unsplash.com/photo-1?w=400",
		"http://localhost:8080/a.png",
	}
	for _, ref := range valid {
		if err := ValidateRef(ref); err != nil {
			t.Errorf("Expected %q to be valid: %v", ref, err)
		}
	}

	invalid := []string{"", " https://a/b.png", "ftp://a/b.png", "/local/path.png", "https://", "::"}
	for _, ref := range invalid {
		if err := ValidateRef(ref); !errors.Is(err, ErrInvalidRef) {
			t.Errorf("Expected ErrInvalidRef for %q, got %v", ref, err)
		}
	}
}

func TestDuplicates(t *testing.T) {
	got := Duplicates([]string{"a", "b", "a", "c", "b", "a"})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Expected [a b], got %v", got)
	}
	if Duplicates([]string{"x", "y"}) != nil {
		t.Error("Expected no duplicates")
	}
}
