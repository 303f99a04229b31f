package types

import "time"

// Kind discriminates what a Clip carries. Exactly one of the kind-scoped
// fields on Clip is authoritative for a given kind; the rest stay empty.
type Kind string

const (
	KindText  Kind = "text"  // plain text, FullText authoritative
	KindImage Kind = "image" // ImageRef authoritative
	KindLink  Kind = "link"  // LinkRef authoritative
	KindHTML  Kind = "html"  // FullText + Markup
	KindMulti Kind = "multi" // bundle of several items, preview only
	KindOther Kind = "other" // unrecognized content, preview only
)

// Clip is one persisted clipboard capture. ID and CapturedAt are immutable
// once assigned; Pinned is the only field that changes after insert.
type Clip struct {
	ID           int64     `json:"id"`
	CapturedAt   time.Time `json:"captured_at"`
	Kind         Kind      `json:"kind"`
	Preview      string    `json:"preview"`
	FullText     string    `json:"full_text,omitempty"`
	Markup       string    `json:"markup,omitempty"`
	ImageRef     string    `json:"image_ref,omitempty"`
	LinkRef      string    `json:"link_ref,omitempty"`
	ContentTypes []string  `json:"content_types,omitempty"`
	Pinned       bool      `json:"pinned"`
	ItemCount    int       `json:"item_count"`
}

// Payload is clipboard content as read from the host at the moment of a
// change, before normalization.
type Payload struct {
	Items        []PayloadItem
	ContentTypes []string
}

// PayloadItem is one constituent of a payload. Hosts fill whichever
// representations they have; all fields may be empty.
type PayloadItem struct {
	Text   string
	Markup string
	URI    string
	Data   []byte // raw image bytes when the host hands them over directly
}

func (p Payload) Empty() bool { return len(p.Items) == 0 }
