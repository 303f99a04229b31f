//go:build darwin

package clipboard

import (
	"runtime"
	"sync"
	"time"

	"clipd/pkg/types"

	"github.com/progrium/darwinkit/macos/appkit"
)

// utiToMIME maps the pasteboard UTIs we read to the content-type labels the
// extractor classifies on.
var utiToMIME = map[string]string{
	"public.png":             "image/png",
	"public.tiff":            "image/tiff",
	"public.jpeg":            "image/jpeg",
	"public.utf8-plain-text": "text/plain",
	"public.html":            "text/html",
	"public.file-url":        "text/uri-list",
	"public.url":             "text/uri-list",
}

// DarwinMonitor polls the general pasteboard's change counter.
type DarwinMonitor struct {
	handler     func(types.Payload)
	pasteboard  appkit.Pasteboard
	interval    time.Duration
	changeCount int
	mutex       sync.RWMutex
	stopChan    chan struct{}
}

func init() {
	// AppKit requires the main thread.
	runtime.LockOSThread()
}

func NewMonitor(interval time.Duration) (Monitor, error) {
	runtime.LockOSThread()

	return &DarwinMonitor{
		pasteboard: appkit.Pasteboard_GeneralPasteboard(),
		interval:   interval,
	}, nil
}

func (m *DarwinMonitor) Start() error {
	m.mutex.Lock()
	m.changeCount = m.pasteboard.ChangeCount()
	m.stopChan = make(chan struct{})
	stop := m.stopChan
	m.mutex.Unlock()

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.checkForChanges()
			case <-stop:
				return
			}
		}
	}()

	return nil
}

func (m *DarwinMonitor) Stop() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.stopChan != nil {
		close(m.stopChan)
		m.stopChan = nil
	}
	return nil
}

func (m *DarwinMonitor) OnChange(handler func(types.Payload)) {
	m.mutex.Lock()
	m.handler = handler
	m.mutex.Unlock()
}

func (m *DarwinMonitor) checkForChanges() {
	m.mutex.Lock()
	currentCount := m.pasteboard.ChangeCount()
	changed := currentCount != m.changeCount
	m.changeCount = currentCount
	handler := m.handler
	m.mutex.Unlock()

	if !changed || handler == nil {
		return
	}

	payload := m.readPayload()
	if payload.Empty() {
		return
	}
	handler(payload)
}

// readPayload snapshots the current pasteboard into a payload, gathering
// every representation of the first item that we understand.
func (m *DarwinMonitor) readPayload() types.Payload {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var p types.Payload
	seen := map[string]bool{}
	for _, t := range m.pasteboard.Types() {
		if mime, ok := utiToMIME[string(t)]; ok && !seen[mime] {
			p.ContentTypes = append(p.ContentTypes, mime)
			seen[mime] = true
		}
	}

	var item types.PayloadItem
	if data := m.pasteboard.DataForType(appkit.PasteboardType("public.png")); len(data) > 0 {
		item.Data = data
	} else if data := m.pasteboard.DataForType(appkit.PasteboardType("public.tiff")); len(data) > 0 {
		item.Data = data
	}
	if uri := m.pasteboard.StringForType(appkit.PasteboardType("public.file-url")); uri != "" {
		item.URI = uri
	} else if uri := m.pasteboard.StringForType(appkit.PasteboardType("public.url")); uri != "" {
		item.URI = uri
	}
	if html := m.pasteboard.StringForType(appkit.PasteboardType("public.html")); html != "" {
		item.Markup = html
	}
	if text := m.pasteboard.StringForType(appkit.PasteboardType("public.utf8-plain-text")); text != "" {
		item.Text = text
	}

	if item.Text == "" && item.Markup == "" && item.URI == "" && len(item.Data) == 0 {
		return types.Payload{}
	}
	p.Items = []types.PayloadItem{item}
	return p
}

func (m *DarwinMonitor) SetPayload(p types.Payload) error {
	if p.Empty() {
		return nil
	}
	first := p.Items[0]

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.pasteboard.ClearContents()
	if len(first.Data) > 0 {
		m.pasteboard.SetDataForType(first.Data, appkit.PasteboardType("public.png"))
	}
	if first.URI != "" {
		m.pasteboard.SetStringForType(first.URI, appkit.PasteboardType("public.file-url"))
	}
	if first.Markup != "" {
		m.pasteboard.SetStringForType(first.Markup, appkit.PasteboardType("public.html"))
	}
	if first.Text != "" {
		m.pasteboard.SetStringForType(first.Text, appkit.PasteboardType("public.utf8-plain-text"))
	}
	// Writing bumps the change counter; swallow our own write so it does not
	// come back as a capture.
	m.changeCount = m.pasteboard.ChangeCount()
	return nil
}
