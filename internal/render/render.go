// Package render pushes extracted conditions to the LED strip and the
// character display.
package render

import (
	"errors"
	"time"
)

// ErrHardware wraps every error returned by a strip or display driver.
var ErrHardware = errors.New("hardware driver error")

// ClearPattern is the byte written to every display cell on clear.
const ClearPattern byte = 0x00

// Align is the horizontal anchor of a string drawn on the display.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

func (a Align) String() string {
	switch a {
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	default:
		return "left"
	}
}

// LEDStrip is an addressable strip. Pixels are buffered until Refresh.
type LEDStrip interface {
	Clear(timeout time.Duration) error
	SetPixel(index int, r, g, b uint8) error
	Refresh(timeout time.Duration) error
}

// Sized is implemented by strips that know how many pixels they have.
type Sized interface {
	Len() int
}

// MaxStripPixels bounds a paint pass on strips that do not report a length.
const MaxStripPixels = 1024

// Display is a small monochrome panel. Drawing is buffered until Refresh.
type Display interface {
	ClearScreen(pattern byte) error
	DrawGlyph(x, y int, ch rune) error
	DrawString(x, y int, s string, fontSize int, align Align) error
	Refresh() error
}

// Config holds timing and layout for one render pass.
type Config struct {
	ClearTimeout   time.Duration
	RefreshTimeout time.Duration

	Width      int // display width in pixels
	FontSize   int // label font height; glyphs are half as wide
	GlyphWidth int // width of one time glyph
	TimeRow    int
	LabelRow   int

	Location *time.Location // display zone for the server timestamp
}
