package render

import (
	"strings"
	"time"
)

// NoTime is shown when the response carried no usable Date header.
const NoTime = "--:--"

// DisplayText is what the panel shows for one record.
type DisplayText struct {
	Time   string `json:"time"`
	Label  string `json:"label"`
	LabelX int    `json:"label_x"`
}

// ComposeText formats the clock and the rating label. ts is the server time in
// UTC; nil means unknown.
func ComposeText(ts *time.Time, rating string, cfg Config) DisplayText {
	out := DisplayText{Time: NoTime, Label: strings.ReplaceAll(rating, "_", " ")}
	if ts != nil {
		loc := cfg.Location
		if loc == nil {
			loc = time.UTC
		}
		out.Time = ts.In(loc).Format("15:04")
	}
	out.LabelX = centerOffset(cfg.Width, len(out.Label)*cfg.FontSize/2)
	return out
}

// glyphX is the left edge of the i-th time glyph when the whole string is
// centered.
func glyphX(i, count int, cfg Config) int {
	return centerOffset(cfg.Width, count*cfg.GlyphWidth) + i*cfg.GlyphWidth
}

func centerOffset(width, content int) int {
	x := (width - content) / 2
	if x < 0 {
		return 0
	}
	return x
}
