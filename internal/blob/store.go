// Package blob persists clipboard image bytes as JPEG files together with a
// downscaled thumbnail, addressed by generated unique filenames. Records in
// the history store reference blobs by the full image's path; the bytes
// themselves are owned here.
package blob

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/png"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

const (
	imagesDirName = "clipboard_images"
	thumbsDirName = "clipboard_thumbnails"

	fullQuality  = 90
	thumbQuality = 85
	thumbSize    = 200 // longest-edge target in pixels
)

// ErrDecode reports bytes that are not a decodable image.
var ErrDecode = errors.New("blob: data is not a decodable image")

type Store struct {
	imagesDir string
	thumbsDir string
}

// New creates the image and thumbnail directories under baseDir.
func New(baseDir string) (*Store, error) {
	s := &Store{
		imagesDir: filepath.Join(baseDir, imagesDirName),
		thumbsDir: filepath.Join(baseDir, thumbsDirName),
	}
	for _, dir := range []string{s.imagesDir, s.thumbsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create blob directory: %w", err)
		}
	}
	return s, nil
}

// Save decodes data, writes a re-encoded full-resolution JPEG and a
// thumbnail sharing the same basename, and returns the full image's path.
func (s *Store) Save(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	name := uuid.NewString() + ".jpg"
	full := filepath.Join(s.imagesDir, name)
	if err := writeJPEG(full, img, fullQuality); err != nil {
		return "", err
	}

	if err := writeJPEG(filepath.Join(s.thumbsDir, name), thumbnail(img), thumbQuality); err != nil {
		os.Remove(full)
		return "", err
	}

	return full, nil
}

// ThumbnailPath returns the sibling thumbnail path for a full image ref.
func (s *Store) ThumbnailPath(ref string) string {
	return filepath.Join(s.thumbsDir, filepath.Base(ref))
}

// Delete removes the full image and its thumbnail. Missing files are not an
// error; a half-deleted pair is reclaimed by Reap.
func (s *Store) Delete(ref string) error {
	if ref == "" {
		return nil
	}
	for _, path := range []string{ref, s.ThumbnailPath(ref)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete blob: %w", err)
		}
	}
	return nil
}

// Reap deletes every file in both directories whose full-image ref is not in
// valid. Thumbnails are keyed by the shared basename.
func (s *Store) Reap(valid map[string]struct{}) error {
	names := make(map[string]struct{}, len(valid))
	for ref := range valid {
		names[filepath.Base(ref)] = struct{}{}
	}

	for _, dir := range []string{s.imagesDir, s.thumbsDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("failed to scan blob directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if _, ok := names[entry.Name()]; ok {
				continue
			}
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to reap blob: %w", err)
			}
		}
	}
	return nil
}

// thumbnail downscales src so its longest edge fits thumbSize, preserving
// aspect ratio. Images already smaller than the target are kept as-is rather
// than upscaled.
func thumbnail(src image.Image) image.Image {
	b := src.Bounds()
	scale := min(float64(thumbSize)/float64(b.Dx()), float64(thumbSize)/float64(b.Dy()))
	if scale >= 1 {
		return src
	}

	w := int(float64(b.Dx()) * scale)
	h := int(float64(b.Dy()) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

func writeJPEG(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return f.Close()
}
