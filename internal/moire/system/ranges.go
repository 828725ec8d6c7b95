package system

import (
	"fmt"
	"math"
)

// Range is the slider definition for one numeric widget.
type Range struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Step    float64 `json:"step"`
	Default float64 `json:"default"`
}

func (r Range) Clamp(v float64) float64 {
	return math.Min(math.Max(v, r.Min), r.Max)
}

type scanRanges struct {
	Extent     Range `json:"extent"`
	Resolution Range `json:"resolution"`
}

var scan = map[RenderMode]scanRanges{
	Quick: {
		Extent:     Range{Min: 10, Max: 100, Step: 10, Default: 50},
		Resolution: Range{Min: 200, Max: 800, Step: 100, Default: 400},
	},
	HighRes: {
		Extent:     Range{Min: 50, Max: 500, Step: 50, Default: 200},
		Resolution: Range{Min: 800, Max: 3000, Step: 100, Default: 1500},
	},
}

var (
	strainRange    = Range{Min: 0, Max: 10, Step: 0.1}
	directionRange = Range{Min: 0, Max: 180, Step: 1}
)

// twistRanges[mode][i] is the twist slider of layer i. Layer 1 is the reference and
// never twists.
var twistRanges = map[Mode][]Range{
	Bilayer: {
		{Min: 0, Max: 0, Step: 0.1, Default: 0},
		{Min: 0, Max: 10, Step: 0.1, Default: 1.1},
	},
	Trilayer: {
		{Min: 0, Max: 0, Step: 0.1, Default: 0},
		{Min: 0, Max: 10, Step: 0.1, Default: 4.8},
		{Min: -10, Max: 10, Step: 0.1, Default: -1.5},
	},
}

// defaultStrains[i] is the default strain percent of layer i.
var defaultStrains = []float64{2.0, 0, 0}

// Schema is what the dashboard needs to lay out its widgets.
type Schema struct {
	Modes           []Mode                    `json:"modes"`
	RenderModes     []RenderMode              `json:"render_modes"`
	Scan            map[RenderMode]scanRanges `json:"scan"`
	Strain          []Range                   `json:"strain"`
	StrainDirection Range                     `json:"strain_direction"`
	Twist           map[Mode][]Range          `json:"twist"`
}

func Ranges() Schema {
	strains := make([]Range, len(defaultStrains))
	for i, d := range defaultStrains {
		r := strainRange
		r.Default = d
		strains[i] = r
	}
	twist := make(map[Mode][]Range, len(twistRanges))
	for m, rs := range twistRanges {
		twist[m] = append([]Range(nil), rs...)
	}
	sc := make(map[RenderMode]scanRanges, len(scan))
	for m, r := range scan {
		sc[m] = r
	}
	return Schema{
		Modes:           []Mode{Bilayer, Trilayer},
		RenderModes:     []RenderMode{Quick, HighRes},
		Scan:            sc,
		Strain:          strains,
		StrainDirection: directionRange,
		Twist:           twist,
	}
}

func Defaults(mode Mode, rm RenderMode) Params {
	if mode != Trilayer {
		mode = Bilayer
	}
	if rm != HighRes {
		rm = Quick
	}
	sr := scan[rm]
	twists := twistRanges[mode]
	layers := make([]Layer, mode.LayerCount())
	for i := range layers {
		layers[i] = Layer{
			TwistDeg:           twists[i].Default,
			StrainPercent:      defaultStrains[i],
			StrainDirectionDeg: directionRange.Default,
		}
	}
	return Params{
		Mode:       mode,
		RenderMode: rm,
		Extent:     sr.Extent.Default,
		Resolution: int(sr.Resolution.Default),
		Layers:     layers,
	}
}

// Normalize validates p and clamps every value into the widget range of its mode.
// Non-finite numbers and unknown modes are rejected with a *ParamError; missing
// layers take their defaults and surplus layers are dropped.
func (p Params) Normalize() (Params, error) {
	mode, err := ParseMode(string(p.Mode))
	if err != nil {
		return Params{}, err
	}
	rm, err := ParseRenderMode(string(p.RenderMode))
	if err != nil {
		return Params{}, err
	}
	def := Defaults(mode, rm)
	sr := scan[rm]

	if err := finite("extent", p.Extent); err != nil {
		return Params{}, err
	}
	out := Params{
		Mode:       mode,
		RenderMode: rm,
		Extent:     sr.Extent.Clamp(p.Extent),
		Resolution: int(sr.Resolution.Clamp(float64(p.Resolution))),
		Layers:     make([]Layer, mode.LayerCount()),
	}
	twists := twistRanges[mode]
	for i := range out.Layers {
		l := def.Layers[i]
		if i < len(p.Layers) {
			l = p.Layers[i]
		}
		for _, f := range []struct {
			name string
			v    float64
		}{
			{"twist_deg", l.TwistDeg},
			{"strain_percent", l.StrainPercent},
			{"strain_direction_deg", l.StrainDirectionDeg},
		} {
			if err := finite(fmt.Sprintf("layers[%d].%s", i, f.name), f.v); err != nil {
				return Params{}, err
			}
		}
		out.Layers[i] = Layer{
			TwistDeg:           twists[i].Clamp(l.TwistDeg),
			StrainPercent:      strainRange.Clamp(l.StrainPercent),
			StrainDirectionDeg: directionRange.Clamp(l.StrainDirectionDeg),
		}
	}
	return out, nil
}

func finite(param string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ParamError{Param: param, Reason: "must be a finite number"}
	}
	return nil
}
