package service

import (
	"math/rand/v2"
	"sync/atomic"
)

// Palette is the fixed set of display colors assigned to new medications
var Palette = []string{"#ffcc00", "#ff9500", "#ff3b30", "#5856d6", "#4cd964", "#007aff"}

// ColorPicker chooses the display color of a medication added without one
type ColorPicker interface {
	Pick() string
}

// ColorPickerFunc adapts a function to ColorPicker
type ColorPickerFunc func() string

// Pick calls f
func (f ColorPickerFunc) Pick() string { return f() }

// RoundRobinPicker cycles through a palette in order
type RoundRobinPicker struct {
	palette []string
	next    atomic.Uint64
}

// NewRoundRobinPicker creates a picker cycling through palette (Palette when empty)
func NewRoundRobinPicker(palette []string) *RoundRobinPicker {
	if len(palette) == 0 {
		palette = Palette
	}
	return &RoundRobinPicker{palette: palette}
}

// Pick returns the next color of the cycle
func (p *RoundRobinPicker) Pick() string {
	i := p.next.Add(1) - 1
	return p.palette[i%uint64(len(p.palette))]
}

// RandomPicker picks a pseudo-random palette color
type RandomPicker struct {
	palette []string
}

// NewRandomPicker creates a picker drawing from palette (Palette when empty)
func NewRandomPicker(palette []string) *RandomPicker {
	if len(palette) == 0 {
		palette = Palette
	}
	return &RandomPicker{palette: palette}
}

// Pick returns a random palette color
func (p *RandomPicker) Pick() string {
	return p.palette[rand.IntN(len(p.palette))]
}

// NewColorPicker returns the picker for a configured policy name: "random"
// or anything else for round-robin
func NewColorPicker(policy string) ColorPicker {
	if policy == "random" {
		return NewRandomPicker(nil)
	}
	return NewRoundRobinPicker(nil)
}
