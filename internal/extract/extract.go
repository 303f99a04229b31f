// Package extract classifies a raw clipboard payload and produces the
// normalized clip record that gets persisted.
package extract

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"clipd/internal/blob"
	"clipd/pkg/types"
)

// maxPreviewLen bounds preview text; longer text is cut and suffixed with an
// ellipsis marker.
const maxPreviewLen = 200

// ErrEmptyPayload reports a payload with no items.
var ErrEmptyPayload = errors.New("extract: payload has no items")

type Extractor struct {
	blobs *blob.Store
	now   func() time.Time
}

func New(blobs *blob.Store) *Extractor {
	return &Extractor{blobs: blobs, now: time.Now}
}

// Extract determines the payload's kind and builds a clip from its first
// item. The checks run in strict priority order: image, link, html, text,
// multi-item, other. Classifying an image persists its bytes through the
// blob store before returning; on blob failure no record is produced.
func (e *Extractor) Extract(p types.Payload) (*types.Clip, error) {
	if p.Empty() {
		return nil, ErrEmptyPayload
	}

	clip := &types.Clip{
		CapturedAt:   e.now(),
		ContentTypes: p.ContentTypes,
		ItemCount:    len(p.Items),
	}
	first := p.Items[0]

	if hasImageType(p.ContentTypes) && (len(first.Data) > 0 || first.URI != "") {
		data := first.Data
		if len(data) == 0 {
			b, err := os.ReadFile(uriToPath(first.URI))
			if err != nil {
				return nil, fmt.Errorf("failed to read image source: %w", err)
			}
			data = b
		}
		ref, err := e.blobs.Save(data)
		if err != nil {
			return nil, err
		}
		clip.Kind = types.KindImage
		clip.ImageRef = ref
		clip.Preview = "Image"
		return clip, nil
	}

	if first.URI != "" {
		clip.Kind = types.KindLink
		clip.LinkRef = first.URI
		clip.Preview = Truncate(lastPathSegment(first.URI))
		return clip, nil
	}

	if first.Markup != "" {
		clip.Kind = types.KindHTML
		clip.FullText = first.Text
		clip.Markup = first.Markup
		clip.Preview = Truncate(first.Text)
		return clip, nil
	}

	if first.Text != "" {
		clip.Kind = types.KindText
		clip.FullText = first.Text
		clip.Preview = Truncate(first.Text)
		return clip, nil
	}

	if len(p.Items) > 1 {
		clip.Kind = types.KindMulti
		clip.Preview = fmt.Sprintf("Multiple items (%d)", len(p.Items))
		return clip, nil
	}

	clip.Kind = types.KindOther
	clip.Preview = "Unknown content"
	return clip, nil
}

// Truncate bounds s to the preview length, appending "..." when cut.
func Truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxPreviewLen {
		return s
	}
	return string(r[:maxPreviewLen]) + "..."
}

func hasImageType(labels []string) bool {
	for _, l := range labels {
		if strings.HasPrefix(l, "image/") {
			return true
		}
	}
	return false
}

// lastPathSegment yields a short preview for a URI: its final path segment
// when there is one, the raw string otherwise.
func lastPathSegment(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	seg := path.Base(u.Path)
	if seg == "" || seg == "/" || seg == "." {
		return raw
	}
	return seg
}

func uriToPath(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Scheme == "file" {
		return u.Path
	}
	return raw
}
