// Package rating maps a surf rating label to the color and LED count shown on
// the strip.
package rating

import "surf_clock/internal/models"

// Rating labels reported by the conditions endpoint.
const (
	Poor       = "POOR"
	PoorToFair = "POOR_TO_FAIR"
	Fair       = "FAIR"
	FairToGood = "FAIR_TO_GOOD"
	Good       = "GOOD"
	GoodToEpic = "GOOD_TO_EPIC"
	Epic       = "EPIC"
)

// Compare widths include the terminator, so "GOOD" never matches "GOOD_TO_EPIC".
const (
	compLong  = 13
	compShort = 5
)

// RGB is one strip color.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Fallback is the dim red shown for any label outside the known set.
var Fallback = RGB{R: 100}

type entry struct {
	label string
	width int
	color RGB
}

var palette = []entry{
	{Poor, compShort, RGB{0, 0, 255}},
	{PoorToFair, compLong, RGB{0, 145, 255}},
	{Fair, compShort, RGB{0, 255, 0}},
	{FairToGood, compLong, RGB{255, 255, 0}},
	{Good, compShort, RGB{255, 145, 0}},
	{GoodToEpic, compLong, RGB{255, 0, 0}},
	{Epic, compShort, RGB{255, 0, 255}},
}

// Labels returns the known labels in ascending order of quality.
func Labels() []string {
	out := make([]string, len(palette))
	for i, e := range palette {
		out[i] = e.label
	}
	return out
}

// ColorFor never fails: unknown labels get Fallback.
func ColorFor(label string) RGB {
	for _, e := range palette {
		if boundedEqual(label, e.label, e.width) {
			return e.color
		}
	}
	return Fallback
}

// Known reports whether label is one of the seven ratings.
func Known(label string) bool {
	for _, e := range palette {
		if boundedEqual(label, e.label, e.width) {
			return true
		}
	}
	return false
}

// LEDCount is one LED per foot of max height. Strip length is the driver's
// problem, not ours.
func LEDCount(maxHeight int) int {
	return maxHeight
}

// Visual is what the strip shows for one record.
type Visual struct {
	Color    RGB
	LEDCount int
}

// Encode maps a record to its strip visual.
func Encode(rec models.ConditionRecord) Visual {
	return Visual{Color: ColorFor(rec.Rating), LEDCount: LEDCount(rec.MaxHeight)}
}

// boundedEqual compares the first n bytes of a and b, treating bytes past the
// end of either string as zero.
func boundedEqual(a, b string, n int) bool {
	for i := 0; i < n; i++ {
		ca, cb := byteAt(a, i), byteAt(b, i)
		if ca != cb {
			return false
		}
		if ca == 0 {
			return true
		}
	}
	return true
}

func byteAt(s string, i int) byte {
	if i < len(s) {
		return s[i]
	}
	return 0
}
