//go:build !darwin

package clipboard

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"clipd/pkg/types"

	xclip "golang.design/x/clipboard"
)

// PortableMonitor polls the system clipboard through golang.design/x/clipboard,
// which exposes text and PNG image formats on X11/Wayland and Windows. It has
// no change counter, so changes are detected by content digest.
type PortableMonitor struct {
	handler  func(types.Payload)
	interval time.Duration
	lastSum  [sha256.Size]byte
	mutex    sync.Mutex
	stopChan chan struct{}
}

func NewMonitor(interval time.Duration) (Monitor, error) {
	if err := xclip.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
	}
	return &PortableMonitor{interval: interval}, nil
}

func (m *PortableMonitor) Start() error {
	// Baseline the current content so whatever is already on the clipboard
	// at startup is not captured as a change.
	m.mutex.Lock()
	if _, sum, ok := readCurrent(); ok {
		m.lastSum = sum
	}
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

func (m *PortableMonitor) Stop() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.stopChan != nil {
		close(m.stopChan)
		m.stopChan = nil
	}
	return nil
}

func (m *PortableMonitor) OnChange(handler func(types.Payload)) {
	m.mutex.Lock()
	m.handler = handler
	m.mutex.Unlock()
}

func (m *PortableMonitor) checkForChanges() {
	payload, sum, ok := readCurrent()
	if !ok {
		return
	}

	m.mutex.Lock()
	changed := sum != m.lastSum
	m.lastSum = sum
	handler := m.handler
	m.mutex.Unlock()

	if changed && handler != nil {
		handler(payload)
	}
}

func readCurrent() (types.Payload, [sha256.Size]byte, bool) {
	if text := xclip.Read(xclip.FmtText); len(text) > 0 {
		p := types.Payload{
			Items:        []types.PayloadItem{{Text: string(text)}},
			ContentTypes: []string{"text/plain"},
		}
		return p, sha256.Sum256(append([]byte("text:"), text...)), true
	}
	if img := xclip.Read(xclip.FmtImage); len(img) > 0 {
		p := types.Payload{
			Items:        []types.PayloadItem{{Data: img}},
			ContentTypes: []string{"image/png"},
		}
		return p, sha256.Sum256(append([]byte("image:"), img...)), true
	}
	return types.Payload{}, [sha256.Size]byte{}, false
}

func (m *PortableMonitor) SetPayload(p types.Payload) error {
	if p.Empty() {
		return nil
	}
	first := p.Items[0]

	switch {
	case len(first.Data) > 0:
		xclip.Write(xclip.FmtImage, first.Data)
	case first.Text != "":
		xclip.Write(xclip.FmtText, []byte(first.Text))
	case first.URI != "":
		// No dedicated URI format here; the string form still pastes.
		xclip.Write(xclip.FmtText, []byte(first.URI))
	default:
		return fmt.Errorf("payload has no writable representation")
	}

	// Remember the written content so the poller does not re-capture it.
	if _, sum, ok := readCurrent(); ok {
		m.mutex.Lock()
		m.lastSum = sum
		m.mutex.Unlock()
	}
	return nil
}
