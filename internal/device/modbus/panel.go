// Package modbus drives an LED strip and character display that sit behind a
// Modbus TCP panel controller. The controller exposes two holding register
// windows (pixels and text ops) plus a commit register for each.
package modbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"surf_clock/internal/render"
)

// maxWriteRegs is the FC16 limit per request.
const maxWriteRegs = 123

// Display op codes written into the text window.
const (
	opGlyph  byte = 0x01
	opString byte = 0x02
)

// registerWriter is the slice of modbus.Client the panel needs.
type registerWriter interface {
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)
}

type Config struct {
	Endpoint    string
	UnitID      uint8
	Timeout     time.Duration
	StripLength int
	PixelBase   uint16
	PixelCommit uint16
	TextBase    uint16
	TextCommit  uint16
	TextMaxRegs uint16
}

// Panel serializes all register traffic over one connection.
type Panel struct {
	mu         sync.Mutex
	cfg        Config
	client     registerWriter
	setTimeout func(time.Duration)
	close      func() error

	pixels  []byte // RGB triplets
	ops     []byte
	pattern byte
}

// Dial connects to the controller.
func Dial(cfg Config) (*Panel, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("panel modbus: endpoint required")
	}
	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID
	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("panel modbus: connect %s: %w", cfg.Endpoint, err)
	}

	p := newPanel(cfg, modbus.NewClient(h), h.Close)
	p.setTimeout = func(d time.Duration) {
		if d <= 0 {
			d = cfg.Timeout
		}
		h.Timeout = d
	}
	return p, nil
}

func newPanel(cfg Config, w registerWriter, closeFn func() error) *Panel {
	return &Panel{
		cfg:        cfg,
		client:     w,
		setTimeout: func(time.Duration) {},
		close:      closeFn,
		pixels:     make([]byte, 3*cfg.StripLength),
	}
}

func (p *Panel) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.close == nil {
		return nil
	}
	return p.close()
}

// Strip returns the LED side of the panel.
func (p *Panel) Strip() render.LEDStrip { return (*panelStrip)(p) }

// Display returns the text side of the panel.
func (p *Panel) Display() render.Display { return (*panelDisplay)(p) }

// writeWindow writes data to consecutive registers starting at base and then
// writes value to the commit register.
func (p *Panel) writeWindow(base uint16, data []byte, commit, value uint16) error {
	if len(data)%2 == 1 {
		data = append(data, 0)
	}
	regs := len(data) / 2
	for off := 0; off < regs; off += maxWriteRegs {
		n := min(maxWriteRegs, regs-off)
		chunk := data[2*off : 2*(off+n)]
		if _, err := p.client.WriteMultipleRegisters(base+uint16(off), uint16(n), chunk); err != nil {
			return fmt.Errorf("write registers %d+%d: %w", base+uint16(off), n, err)
		}
	}
	if _, err := p.client.WriteSingleRegister(commit, value); err != nil {
		return fmt.Errorf("write commit register %d: %w", commit, err)
	}
	return nil
}

type panelStrip Panel

func (s *panelStrip) Len() int { return s.cfg.StripLength }

func (s *panelStrip) Clear(timeout time.Duration) error {
	p := (*Panel)(s)
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.pixels)
	p.setTimeout(timeout)
	return p.writeWindow(p.cfg.PixelBase, append([]byte(nil), p.pixels...), p.cfg.PixelCommit, uint16(p.cfg.StripLength))
}

// SetPixel buffers one pixel. Indices outside the strip are dropped.
func (s *panelStrip) SetPixel(i int, r, g, b uint8) error {
	p := (*Panel)(s)
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= p.cfg.StripLength {
		return nil
	}
	copy(p.pixels[3*i:], []byte{r, g, b})
	return nil
}

func (s *panelStrip) Refresh(timeout time.Duration) error {
	p := (*Panel)(s)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setTimeout(timeout)
	return p.writeWindow(p.cfg.PixelBase, append([]byte(nil), p.pixels...), p.cfg.PixelCommit, uint16(p.cfg.StripLength))
}

type panelDisplay Panel

func (d *panelDisplay) ClearScreen(pattern byte) error {
	p := (*Panel)(d)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ops = p.ops[:0]
	p.pattern = pattern
	return nil
}

func (d *panelDisplay) DrawGlyph(x, y int, ch rune) error {
	p := (*Panel)(d)
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch > 0x7f {
		ch = '?'
	}
	p.ops = append(p.ops, opGlyph, byte(x), byte(y), byte(ch))
	return nil
}

// DrawString queues a label. Text is truncated to 255 bytes.
func (d *panelDisplay) DrawString(x, y int, s string, fontSize int, align render.Align) error {
	p := (*Panel)(d)
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(s) > 255 {
		s = s[:255]
	}
	p.ops = append(p.ops, opString, byte(x), byte(y), byte(fontSize), byte(align), byte(len(s)))
	p.ops = append(p.ops, s...)
	return nil
}

// Refresh sends the clear pattern and queued ops, then commits the frame with
// its length in bytes.
func (d *panelDisplay) Refresh() error {
	p := (*Panel)(d)
	p.mu.Lock()
	defer p.mu.Unlock()

	frame := append([]byte{p.pattern, 0}, p.ops...)
	regs := (len(frame) + 1) / 2
	if regs > int(p.cfg.TextMaxRegs) {
		return fmt.Errorf("display frame needs %d registers, panel has %d", regs, p.cfg.TextMaxRegs)
	}
	p.setTimeout(0)
	return p.writeWindow(p.cfg.TextBase, frame, p.cfg.TextCommit, uint16(len(frame)))
}
