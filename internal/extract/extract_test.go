package extract

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"strings"
	"testing"
	"time"

	"clipd/internal/blob"
	"clipd/pkg/types"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	blobs, err := blob.New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	e := New(blobs)
	e.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return e
}

func TestExtract_PriorityOrder(t *testing.T) {
	e := newTestExtractor(t)

	tests := []struct {
		name    string
		payload types.Payload
		kind    types.Kind
		preview string
	}{
		{
			name: "uri wins over text",
			payload: types.Payload{
				Items: []types.PayloadItem{{URI: "https://example.com/docs/page.html", Text: "some text"}},
			},
			kind:    types.KindLink,
			preview: "page.html",
		},
		{
			name: "markup wins over plain text",
			payload: types.Payload{
				Items: []types.PayloadItem{{Markup: "<b>hi</b>", Text: "hi"}},
			},
			kind:    types.KindHTML,
			preview: "hi",
		},
		{
			name: "plain text",
			payload: types.Payload{
				Items: []types.PayloadItem{{Text: "hello world"}},
			},
			kind:    types.KindText,
			preview: "hello world",
		},
		{
			name: "multiple empty items",
			payload: types.Payload{
				Items: []types.PayloadItem{{}, {}, {}},
			},
			kind:    types.KindMulti,
			preview: "Multiple items (3)",
		},
		{
			name: "single empty item",
			payload: types.Payload{
				Items: []types.PayloadItem{{}},
			},
			kind:    types.KindOther,
			preview: "Unknown content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clip, err := e.Extract(tt.payload)
			if err != nil {
				t.Fatalf("failed to extract: %v", err)
			}
			if clip.Kind != tt.kind {
				t.Errorf("kind: got %s, want %s", clip.Kind, tt.kind)
			}
			if clip.Preview != tt.preview {
				t.Errorf("preview: got %q, want %q", clip.Preview, tt.preview)
			}
			if clip.ItemCount != len(tt.payload.Items) {
				t.Errorf("item count: got %d, want %d", clip.ItemCount, len(tt.payload.Items))
			}
		})
	}
}

func TestExtract_TextFields(t *testing.T) {
	e := newTestExtractor(t)

	clip, err := e.Extract(types.Payload{
		Items:        []types.PayloadItem{{Text: "hello"}},
		ContentTypes: []string{"text/plain"},
	})
	if err != nil {
		t.Fatalf("failed to extract: %v", err)
	}
	if clip.FullText != "hello" {
		t.Errorf("full text: got %q", clip.FullText)
	}
	if clip.LinkRef != "" || clip.ImageRef != "" || clip.Markup != "" {
		t.Error("text clip carries fields of other kinds")
	}
	if len(clip.ContentTypes) != 1 || clip.ContentTypes[0] != "text/plain" {
		t.Errorf("content types: got %v", clip.ContentTypes)
	}
}

func TestExtract_HTMLKeepsPlainRendering(t *testing.T) {
	e := newTestExtractor(t)

	clip, err := e.Extract(types.Payload{
		Items: []types.PayloadItem{{Markup: "<p>body</p>", Text: "body"}},
	})
	if err != nil {
		t.Fatalf("failed to extract: %v", err)
	}
	if clip.Markup != "<p>body</p>" || clip.FullText != "body" {
		t.Errorf("got markup %q, full text %q", clip.Markup, clip.FullText)
	}

	// Markup with no plain-text rendering keeps an empty full text.
	clip, err = e.Extract(types.Payload{Items: []types.PayloadItem{{Markup: "<hr>"}}})
	if err != nil {
		t.Fatalf("failed to extract: %v", err)
	}
	if clip.Kind != types.KindHTML || clip.FullText != "" {
		t.Errorf("got kind %s, full text %q", clip.Kind, clip.FullText)
	}
}

func TestExtract_PreviewTruncation(t *testing.T) {
	e := newTestExtractor(t)

	long := strings.Repeat("ä", 250)
	clip, err := e.Extract(types.Payload{Items: []types.PayloadItem{{Text: long}}})
	if err != nil {
		t.Fatalf("failed to extract: %v", err)
	}

	want := strings.Repeat("ä", 200) + "..."
	if clip.Preview != want {
		t.Errorf("preview not truncated at 200 runes: got %d runes", len([]rune(clip.Preview)))
	}
	if clip.FullText != long {
		t.Error("full text must not be truncated")
	}
}

func TestExtract_LinkPreviewFallsBackToURI(t *testing.T) {
	e := newTestExtractor(t)

	clip, err := e.Extract(types.Payload{Items: []types.PayloadItem{{URI: "https://example.com"}}})
	if err != nil {
		t.Fatalf("failed to extract: %v", err)
	}
	if clip.Preview != "https://example.com" {
		t.Errorf("preview: got %q, want full uri", clip.Preview)
	}
	if clip.LinkRef != "https://example.com" {
		t.Errorf("link ref: got %q", clip.LinkRef)
	}
}

func TestExtract_ImagePersistsBlob(t *testing.T) {
	e := newTestExtractor(t)

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 40, 40))); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}

	clip, err := e.Extract(types.Payload{
		Items:        []types.PayloadItem{{Data: buf.Bytes()}},
		ContentTypes: []string{"image/png"},
	})
	if err != nil {
		t.Fatalf("failed to extract: %v", err)
	}
	if clip.Kind != types.KindImage || clip.Preview != "Image" {
		t.Errorf("got kind %s, preview %q", clip.Kind, clip.Preview)
	}

	f, err := os.Open(clip.ImageRef)
	if err != nil {
		t.Fatalf("image ref does not exist: %v", err)
	}
	defer f.Close()
	if _, _, err := image.Decode(f); err != nil {
		t.Errorf("stored blob does not decode: %v", err)
	}
}

func TestExtract_UndecodableImageFails(t *testing.T) {
	e := newTestExtractor(t)

	_, err := e.Extract(types.Payload{
		Items:        []types.PayloadItem{{Data: []byte("garbage")}},
		ContentTypes: []string{"image/png"},
	})
	if !errors.Is(err, blob.ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestExtract_ImageLabelWithoutSourceFallsThrough(t *testing.T) {
	e := newTestExtractor(t)

	// Image content type declared but neither bytes nor a uri: the text
	// branch should take it.
	clip, err := e.Extract(types.Payload{
		Items:        []types.PayloadItem{{Text: "caption"}},
		ContentTypes: []string{"image/png", "text/plain"},
	})
	if err != nil {
		t.Fatalf("failed to extract: %v", err)
	}
	if clip.Kind != types.KindText {
		t.Errorf("kind: got %s, want text", clip.Kind)
	}
}

func TestExtract_EmptyPayload(t *testing.T) {
	e := newTestExtractor(t)

	if _, err := e.Extract(types.Payload{}); !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("expected ErrEmptyPayload, got %v", err)
	}
}
