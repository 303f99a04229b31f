package blob

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func decodeFile(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatalf("failed to decode %s: %v", path, err)
	}
	return img
}

func TestSave_WritesImageAndThumbnail(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ref, err := store.Save(pngBytes(t, 400, 300))
	if err != nil {
		t.Fatalf("failed to save image: %v", err)
	}

	full := decodeFile(t, ref)
	if full.Bounds().Dx() != 400 || full.Bounds().Dy() != 300 {
		t.Errorf("full image resized: got %v", full.Bounds())
	}

	thumb := decodeFile(t, store.ThumbnailPath(ref))
	if thumb.Bounds().Dx() != 200 || thumb.Bounds().Dy() != 150 {
		t.Errorf("unexpected thumbnail size: got %v, want 200x150", thumb.Bounds())
	}
}

func TestSave_SmallImageNotUpscaled(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ref, err := store.Save(pngBytes(t, 100, 50))
	if err != nil {
		t.Fatalf("failed to save image: %v", err)
	}

	thumb := decodeFile(t, store.ThumbnailPath(ref))
	if thumb.Bounds().Dx() != 100 || thumb.Bounds().Dy() != 50 {
		t.Errorf("small image was rescaled: got %v, want 100x50", thumb.Bounds())
	}
}

func TestSave_UndecodableBytes(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if _, err := store.Save([]byte("not an image")); err == nil {
		t.Fatal("expected error for undecodable bytes")
	} else if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestDelete_RemovesPairAndToleratesMissing(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ref, err := store.Save(pngBytes(t, 50, 50))
	if err != nil {
		t.Fatalf("failed to save image: %v", err)
	}

	if err := store.Delete(ref); err != nil {
		t.Fatalf("failed to delete blob: %v", err)
	}
	if _, err := os.Stat(ref); !os.IsNotExist(err) {
		t.Error("full image still exists after delete")
	}
	if _, err := os.Stat(store.ThumbnailPath(ref)); !os.IsNotExist(err) {
		t.Error("thumbnail still exists after delete")
	}

	// Deleting again, and deleting nonsense, are both no-ops.
	if err := store.Delete(ref); err != nil {
		t.Errorf("re-delete should be a no-op, got %v", err)
	}
	if err := store.Delete(filepath.Join(t.TempDir(), "missing.jpg")); err != nil {
		t.Errorf("deleting a missing blob should be a no-op, got %v", err)
	}
	if err := store.Delete(""); err != nil {
		t.Errorf("deleting an empty ref should be a no-op, got %v", err)
	}
}

func TestReap_DeletesOrphansKeepsValid(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	keep, err := store.Save(pngBytes(t, 60, 60))
	if err != nil {
		t.Fatalf("failed to save image: %v", err)
	}
	orphan, err := store.Save(pngBytes(t, 70, 70))
	if err != nil {
		t.Fatalf("failed to save image: %v", err)
	}

	if err := store.Reap(map[string]struct{}{keep: {}}); err != nil {
		t.Fatalf("failed to reap: %v", err)
	}

	if _, err := os.Stat(keep); err != nil {
		t.Error("valid image was reaped")
	}
	if _, err := os.Stat(store.ThumbnailPath(keep)); err != nil {
		t.Error("valid thumbnail was reaped")
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Error("orphan image survived reap")
	}
	if _, err := os.Stat(store.ThumbnailPath(orphan)); !os.IsNotExist(err) {
		t.Error("orphan thumbnail survived reap")
	}
}
