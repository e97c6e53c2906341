package imageset

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"
	"net/http"
	"net/url"
	"strings"

	// Register decoders for DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

const (
	// MaxImageBytes is the largest accepted upload.
	MaxImageBytes = 5 * 1024 * 1024
	// AspectTolerance is how far width/height may drift from 1.
	AspectTolerance = 0.01
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrImageTooLarge   = errors.New("image too large")
	ErrNotSquare       = errors.New("image must be square")
	ErrInvalidRef      = errors.New("invalid image reference")
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ImageInfo describes an image that passed validation.
type ImageInfo struct {
	ContentType string `json:"content_type"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Size        int    `json:"size"`
}

// ValidateImage checks type, size and aspect ratio of raw image bytes.
func ValidateImage(data []byte) (*ImageInfo, error) {
	contentType := http.DetectContentType(data)
	if !allowedTypes[contentType] {
		return nil, fmt.Errorf("%w: %s (allowed: JPEG, PNG, GIF, WebP)", ErrUnsupportedType, contentType)
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("%w: %.2fMB (max %dMB)", ErrImageTooLarge,
			float64(len(data))/1024/1024, MaxImageBytes/1024/1024)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrNotSquare, cfg.Width, cfg.Height)
	}
	ratio := float64(cfg.Width) / float64(cfg.Height)
	if math.Abs(ratio-1) >= AspectTolerance {
		return nil, fmt.Errorf("%w: %dx%d", ErrNotSquare, cfg.Width, cfg.Height)
	}

	return &ImageInfo{ContentType: contentType, Width: cfg.Width, Height: cfg.Height, Size: len(data)}, nil
}

// ValidateRef accepts absolute http and https URLs.
func ValidateRef(ref string) error {
	if strings.TrimSpace(ref) != ref || ref == "" {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	u, err := url.Parse(ref)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRef, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q must be an http(s) URL", ErrInvalidRef, ref)
	}
	return nil
}

// Duplicates returns refs that appear more than once, in first-seen order.
func Duplicates(refs []string) []string {
	seen := make(map[string]int, len(refs))
	var dups []string
	for _, r := range refs {
		seen[r]++
		if seen[r] == 2 {
			dups = append(dups, r)
		}
	}
	return dups
}
