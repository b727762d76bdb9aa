package render

import (
	"fmt"
	"time"

	"surf_clock/internal/logger"
	"surf_clock/internal/models"
	"surf_clock/internal/rating"
)

// Rendered describes one record that reached both outputs.
type Rendered struct {
	Record models.ConditionRecord
	Visual rating.Visual
	Text   DisplayText
}

// Sequencer is the only writer to the strip and the display.
type Sequencer struct {
	strip   LEDStrip
	display Display
	cfg     Config
	log     *logger.Logger
}

func NewSequencer(strip LEDStrip, display Display, cfg Config, log *logger.Logger) *Sequencer {
	if log == nil {
		log = logger.Nop()
	}
	return &Sequencer{strip: strip, display: display, cfg: cfg, log: log}
}

// Reset blanks both outputs. Called once at startup.
func (s *Sequencer) Reset() error {
	if err := s.strip.Clear(s.cfg.ClearTimeout); err != nil {
		return hw("strip clear", err)
	}
	if err := s.display.ClearScreen(ClearPattern); err != nil {
		return hw("display clear", err)
	}
	if err := s.display.Refresh(); err != nil {
		return hw("display refresh", err)
	}
	return nil
}

// Render draws each record in order; later records overwrite earlier ones.
// The first driver error stops the pass and is returned wrapped in
// ErrHardware along with whatever was already shown.
func (s *Sequencer) Render(records []models.ConditionRecord, ts *time.Time) ([]Rendered, error) {
	out := make([]Rendered, 0, len(records))
	for _, rec := range records {
		s.log.Infow("wave_height",
			"min_ft", rec.MinHeight,
			"max_ft", rec.MaxHeight,
			"rating", rec.Rating,
		)

		v := rating.Encode(rec)
		if err := s.paintStrip(v); err != nil {
			return out, err
		}

		text := ComposeText(ts, rec.Rating, s.cfg)
		if err := s.paintDisplay(text); err != nil {
			return out, err
		}
		out = append(out, Rendered{Record: rec, Visual: v, Text: text})
	}
	return out, nil
}

func (s *Sequencer) paintStrip(v rating.Visual) error {
	if err := s.strip.Clear(s.cfg.ClearTimeout); err != nil {
		return hw("strip clear", err)
	}
	for i, n := 0, s.paintable(v.LEDCount); i < n; i++ {
		if err := s.strip.SetPixel(i, v.Color.R, v.Color.G, v.Color.B); err != nil {
			return hw(fmt.Sprintf("strip pixel %d", i), err)
		}
	}
	if err := s.strip.Refresh(s.cfg.RefreshTimeout); err != nil {
		return hw("strip refresh", err)
	}
	return nil
}

// paintable caps count at the strip length. Indices past the end would be
// dropped by the driver anyway.
func (s *Sequencer) paintable(count int) int {
	limit := MaxStripPixels
	if sized, ok := s.strip.(Sized); ok {
		limit = sized.Len()
	}
	return max(0, min(count, limit))
}

func (s *Sequencer) paintDisplay(t DisplayText) error {
	if err := s.display.ClearScreen(ClearPattern); err != nil {
		return hw("display clear", err)
	}
	glyphs := []rune(t.Time)
	for i, ch := range glyphs {
		if err := s.display.DrawGlyph(glyphX(i, len(glyphs), s.cfg), s.cfg.TimeRow, ch); err != nil {
			return hw("display glyph", err)
		}
	}
	if err := s.display.DrawString(t.LabelX, s.cfg.LabelRow, t.Label, s.cfg.FontSize, AlignLeft); err != nil {
		return hw("display label", err)
	}
	if err := s.display.Refresh(); err != nil {
		return hw("display refresh", err)
	}
	return nil
}

func hw(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrHardware, step, err)
}
