package storage

import (
	"strings"
	"time"

	"clipd/pkg/types"
)

// ClipRow is the persisted row shape. Capture times are stored as epoch
// milliseconds so ordering and cutoff comparisons stay integer-valued.
type ClipRow struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	CapturedAt   int64  `gorm:"index;not null"`
	Kind         string `gorm:"index;not null"`
	Preview      string
	FullText     string
	Markup       string
	ImageRef     string
	LinkRef      string
	ContentTypes string // comma-separated labels
	Pinned       bool   `gorm:"index;not null;default:false"`
	ItemCount    int    `gorm:"not null;default:1"`
}

func (ClipRow) TableName() string { return "clips" }

func (r *ClipRow) ToClip() *types.Clip {
	var labels []string
	if r.ContentTypes != "" {
		labels = strings.Split(r.ContentTypes, ", ")
	}
	return &types.Clip{
		ID:           r.ID,
		CapturedAt:   time.UnixMilli(r.CapturedAt),
		Kind:         types.Kind(r.Kind),
		Preview:      r.Preview,
		FullText:     r.FullText,
		Markup:       r.Markup,
		ImageRef:     r.ImageRef,
		LinkRef:      r.LinkRef,
		ContentTypes: labels,
		Pinned:       r.Pinned,
		ItemCount:    r.ItemCount,
	}
}

func FromClip(c *types.Clip) *ClipRow {
	return &ClipRow{
		ID:           c.ID,
		CapturedAt:   c.CapturedAt.UnixMilli(),
		Kind:         string(c.Kind),
		Preview:      c.Preview,
		FullText:     c.FullText,
		Markup:       c.Markup,
		ImageRef:     c.ImageRef,
		LinkRef:      c.LinkRef,
		ContentTypes: strings.Join(c.ContentTypes, ", "),
		Pinned:       c.Pinned,
		ItemCount:    c.ItemCount,
	}
}
