package render

import (
	"image/color"
	"math"
)

// viridisStops samples matplotlib's viridis at t = 0, 0.1, ..., 1.
var viridisStops = [...]color.NRGBA{
	{68, 1, 84, 255},
	{72, 36, 117, 255},
	{65, 68, 135, 255},
	{53, 95, 141, 255},
	{42, 120, 142, 255},
	{33, 145, 140, 255},
	{34, 168, 132, 255},
	{68, 191, 112, 255},
	{122, 209, 81, 255},
	{189, 223, 38, 255},
	{253, 231, 37, 255},
}

// Viridis maps t in [0, 1] onto the viridis scale; values outside are clamped.
func Viridis(t float64) color.NRGBA {
	if math.IsNaN(t) || t <= 0 {
		return viridisStops[0]
	}
	if t >= 1 {
		return viridisStops[len(viridisStops)-1]
	}
	pos := t * float64(len(viridisStops)-1)
	i := int(pos)
	frac := pos - float64(i)
	a, b := viridisStops[i], viridisStops[i+1]
	return color.NRGBA{
		R: lerp(a.R, b.R, frac),
		G: lerp(a.G, b.G, frac),
		B: lerp(a.B, b.B, frac),
		A: 255,
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}

// layerColors are the scatter colours of layers 1..3.
var layerColors = []color.NRGBA{
	{31, 119, 180, 200},
	{214, 39, 40, 200},
	{44, 160, 44, 200},
}

func layerColor(i int) color.NRGBA {
	return layerColors[i%len(layerColors)]
}
