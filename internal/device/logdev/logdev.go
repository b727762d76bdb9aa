// Package logdev is a hardware stand-in that keeps a framebuffer in memory and
// logs every refresh. It is the default driver when no panel is attached.
package logdev

import (
	"strings"
	"sync"
	"time"

	"surf_clock/internal/logger"
	"surf_clock/internal/render"
)

type Pixel struct {
	R, G, B uint8
}

// Strip mirrors a WS2812-style strip of fixed length. Pixels past the end are
// dropped like the physical strip would.
type Strip struct {
	mu      sync.Mutex
	log     *logger.Logger
	pending []Pixel
	shown   []Pixel
}

func NewStrip(length int, log *logger.Logger) *Strip {
	if log == nil {
		log = logger.Nop()
	}
	return &Strip{
		log:     log,
		pending: make([]Pixel, length),
		shown:   make([]Pixel, length),
	}
}

func (s *Strip) Clear(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.pending)
	clear(s.shown)
	s.log.Debugw("strip_clear", "timeout", timeout)
	return nil
}

func (s *Strip) SetPixel(i int, r, g, b uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.pending) {
		s.log.Debugw("strip_pixel_dropped", "index", i, "length", len(s.pending))
		return nil
	}
	s.pending[i] = Pixel{r, g, b}
	return nil
}

func (s *Strip) Refresh(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.shown, s.pending)
	lit := 0
	var color Pixel
	for _, p := range s.shown {
		if p != (Pixel{}) {
			lit++
			color = p
		}
	}
	s.log.Infow("strip_refresh",
		"lit", lit,
		"length", len(s.shown),
		"r", color.R, "g", color.G, "b", color.B,
		"timeout", timeout,
	)
	return nil
}

// Len is the strip length in pixels.
func (s *Strip) Len() int { return len(s.pending) }

// Shown returns a copy of the pixels from the last Refresh.
func (s *Strip) Shown() []Pixel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Pixel(nil), s.shown...)
}

// Display records drawn text and logs the composed frame on Refresh.
type Display struct {
	mu    sync.Mutex
	log   *logger.Logger
	time  []rune
	label string
	last  string
}

func NewDisplay(log *logger.Logger) *Display {
	if log == nil {
		log = logger.Nop()
	}
	return &Display{log: log}
}

func (d *Display) ClearScreen(pattern byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.time = d.time[:0]
	d.label = ""
	d.log.Debugw("display_clear", "pattern", pattern)
	return nil
}

func (d *Display) DrawGlyph(x, y int, ch rune) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.time = append(d.time, ch)
	return nil
}

func (d *Display) DrawString(x, y int, s string, fontSize int, align render.Align) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.label = s
	d.log.Debugw("display_string", "x", x, "y", y, "text", s, "font_size", fontSize, "align", align.String())
	return nil
}

func (d *Display) Refresh() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = strings.TrimSpace(string(d.time) + " " + d.label)
	d.log.Infow("display_refresh", "frame", d.last)
	return nil
}

// Frame is the text shown after the last Refresh.
func (d *Display) Frame() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}
