// clipd-tui is a terminal browser for a running clipd daemon. It reads
// history over the HTTP API; Enter copies the selected clip back to the
// clipboard, p toggles its pin, d deletes it.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"clipd/pkg/types"

	"github.com/gdamore/tcell/v2"
)

func main() {
	addr := flag.String("addr", "http://127.0.0.1:9890", "clipd API address")
	flag.Parse()

	ui, err := newUI(&apiClient{base: *addr})
	if err != nil {
		fmt.Fprintf(os.Stderr, "clipd-tui: %v\n", err)
		os.Exit(1)
	}
	if err := ui.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "clipd-tui: %v\n", err)
		os.Exit(1)
	}
}

type apiClient struct {
	base string
}

func (c *apiClient) list(query string) ([]*types.Clip, error) {
	u := c.base + "/api/clips?limit=200"
	if query != "" {
		u += "&q=" + url.QueryEscape(query)
	}
	resp, err := http.Get(u)
	if err != nil {
		return nil, fmt.Errorf("failed to reach clipd at %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("clipd returned %s", resp.Status)
	}

	var clips []*types.Clip
	if err := json.NewDecoder(resp.Body).Decode(&clips); err != nil {
		return nil, fmt.Errorf("failed to decode clips: %w", err)
	}
	return clips, nil
}

func (c *apiClient) copy(id int64) error {
	return c.do(http.MethodPost, fmt.Sprintf("/api/clips/%d/copy", id), nil)
}

func (c *apiClient) setPinned(id int64, pinned bool) error {
	body, _ := json.Marshal(map[string]bool{"pinned": pinned})
	return c.do(http.MethodPut, fmt.Sprintf("/api/clips/%d/pin", id), body)
}

func (c *apiClient) delete(id int64) error {
	return c.do(http.MethodDelete, fmt.Sprintf("/api/clips/%d", id), nil)
}

func (c *apiClient) do(method, path string, body []byte) error {
	req, err := http.NewRequest(method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("clipd returned %s", resp.Status)
	}
	return nil
}

type ui struct {
	api        *apiClient
	screen     tcell.Screen
	clips      []*types.Clip
	selected   int
	offset     int
	searchMode bool
	searchText string
	query      string
	status     string
}

func newUI(api *apiClient) (*ui, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize screen: %w", err)
	}

	screen.SetStyle(tcell.StyleDefault.
		Background(tcell.ColorReset).
		Foreground(tcell.ColorReset))

	return &ui{api: api, screen: screen}, nil
}

func (u *ui) Run() error {
	defer u.screen.Fini()

	if err := u.reload(); err != nil {
		return err
	}

	for {
		u.draw()

		switch ev := u.screen.PollEvent().(type) {
		case *tcell.EventResize:
			u.screen.Sync()
		case *tcell.EventKey:
			if u.searchMode {
				switch ev.Key() {
				case tcell.KeyEscape:
					u.searchMode = false
					u.searchText = ""
					u.query = ""
					u.reload()
				case tcell.KeyEnter:
					u.searchMode = false
					u.query = u.searchText
					u.reload()
				case tcell.KeyBackspace, tcell.KeyBackspace2:
					if len(u.searchText) > 0 {
						u.searchText = u.searchText[:len(u.searchText)-1]
					}
				case tcell.KeyRune:
					u.searchText += string(ev.Rune())
				}
				continue
			}

			switch ev.Key() {
			case tcell.KeyEscape, tcell.KeyCtrlC:
				return nil
			case tcell.KeyUp:
				u.moveSelection(-1)
			case tcell.KeyDown:
				u.moveSelection(1)
			case tcell.KeyPgUp:
				u.moveSelection(-10)
			case tcell.KeyPgDn:
				u.moveSelection(10)
			case tcell.KeyEnter:
				u.withSelected(func(c *types.Clip) error {
					if err := u.api.copy(c.ID); err != nil {
						return err
					}
					u.status = "copied"
					return nil
				})
			case tcell.KeyRune:
				switch ev.Rune() {
				case 'j':
					u.moveSelection(1)
				case 'k':
					u.moveSelection(-1)
				case 'g':
					u.selected = 0
				case 'G':
					u.selected = len(u.clips) - 1
				case '/':
					u.searchMode = true
					u.searchText = ""
				case 'p':
					u.withSelected(func(c *types.Clip) error {
						if err := u.api.setPinned(c.ID, !c.Pinned); err != nil {
							return err
						}
						return u.reload()
					})
				case 'd':
					u.withSelected(func(c *types.Clip) error {
						if err := u.api.delete(c.ID); err != nil {
							return err
						}
						return u.reload()
					})
				case 'r':
					u.reload()
				case 'q':
					return nil
				}
			}
		}
	}
}

func (u *ui) withSelected(fn func(*types.Clip) error) {
	if len(u.clips) == 0 {
		return
	}
	if err := fn(u.clips[u.selected]); err != nil {
		u.status = err.Error()
	}
}

func (u *ui) reload() error {
	clips, err := u.api.list(u.query)
	if err != nil {
		return err
	}
	u.clips = clips
	if u.selected >= len(clips) {
		u.selected = len(clips) - 1
	}
	if u.selected < 0 {
		u.selected = 0
	}
	u.offset = 0
	return nil
}

func (u *ui) moveSelection(delta int) {
	u.selected += delta
	if u.selected < 0 {
		u.selected = 0
	}
	if u.selected >= len(u.clips) {
		u.selected = len(u.clips) - 1
	}

	_, height := u.screen.Size()
	visible := height - 5
	if u.selected-u.offset >= visible {
		u.offset = u.selected - visible + 1
	} else if u.selected < u.offset {
		u.offset = u.selected
	}
}

func (u *ui) draw() {
	u.screen.Clear()
	width, height := u.screen.Size()

	drawStringCenter(u.screen, 0, " Clipboard History ", tcell.StyleDefault.Reverse(true))
	help := "↑/k:Up  ↓/j:Down  Enter:Copy  p:Pin  d:Delete  /:Search  r:Refresh  q:Quit"
	drawStringCenter(u.screen, 1, help, tcell.StyleDefault.Foreground(tcell.ColorYellow))

	if u.searchMode {
		drawString(u.screen, 0, 2, fmt.Sprintf(" Search: %s█", u.searchText), tcell.StyleDefault.Reverse(true))
	} else {
		drawString(u.screen, 0, 2, strings.Repeat("─", width), tcell.StyleDefault)
	}

	visible := height - 5
	end := u.offset + visible
	if end > len(u.clips) {
		end = len(u.clips)
	}

	for i, clip := range u.clips[u.offset:end] {
		y := i + 3
		style := tcell.StyleDefault
		if i+u.offset == u.selected {
			style = style.Reverse(true)
		}

		pin := " "
		if clip.Pinned {
			pin = "★"
		}
		preview := strings.ReplaceAll(clip.Preview, "\n", " ")
		if len(preview) > width-22 {
			preview = preview[:width-25] + "..."
		}
		line := fmt.Sprintf(" %s %-5d %-6s  %s", pin, clip.ID, clip.Kind, preview)
		drawString(u.screen, 0, y, line, style)
	}

	footer := u.status
	if footer == "" && len(u.clips) > 0 {
		footer = fmt.Sprintf(" %d/%d ", u.selected+1, len(u.clips))
	}
	drawString(u.screen, width-len(footer), height-1, footer, tcell.StyleDefault)
	u.status = ""

	u.screen.Show()
}

func drawString(s tcell.Screen, x, y int, str string, style tcell.Style) {
	for i, r := range str {
		s.SetContent(x+i, y, r, nil, style)
	}
}

func drawStringCenter(s tcell.Screen, y int, str string, style tcell.Style) {
	w, _ := s.Size()
	x := (w - len(str)) / 2
	if x < 0 {
		x = 0
	}
	drawString(s, x, y, str, style)
}
