// Package system describes a twisted graphene stack: which layers exist, how each
// one is twisted and strained, and the ranges the dashboard widgets allow.
package system

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/yungbote/moire/internal/moire/lattice"
)

type Mode string

const (
	Bilayer  Mode = "bilayer"
	Trilayer Mode = "trilayer"
)

// LayerCount is 2 for bilayer and 3 for trilayer stacks.
func (m Mode) LayerCount() int {
	if m == Trilayer {
		return 3
	}
	return 2
}

func (m Mode) Label() string {
	if m == Trilayer {
		return "Trilayer"
	}
	return "Bilayer"
}

type RenderMode string

const (
	Quick   RenderMode = "quick"
	HighRes RenderMode = "highres"
)

var (
	ErrInvalidParams = errors.New("invalid parameters")
	ErrModeConflict  = errors.New("operation not available in this render mode")
)

// ParamError names the parameter that failed validation.
type ParamError struct {
	Param  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s: %s", e.Param, e.Reason)
}

func (e *ParamError) Is(target error) bool { return target == ErrInvalidParams }

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Bilayer, "":
		return Bilayer, nil
	case Trilayer:
		return Trilayer, nil
	default:
		return "", &ParamError{Param: "mode", Reason: fmt.Sprintf("unknown system %q", s)}
	}
}

func ParseRenderMode(s string) (RenderMode, error) {
	switch RenderMode(strings.ToLower(strings.TrimSpace(s))) {
	case Quick, "":
		return Quick, nil
	case HighRes, "high-res", "high_res":
		return HighRes, nil
	default:
		return "", &ParamError{Param: "render_mode", Reason: fmt.Sprintf("unknown render mode %q", s)}
	}
}

// Layer is one graphene sheet. TwistDeg rotates it counter-clockwise; the strain is a
// uniaxial stretch of StrainPercent along StrainDirectionDeg.
type Layer struct {
	TwistDeg           float64 `json:"twist_deg"`
	StrainPercent      float64 `json:"strain_percent"`
	StrainDirectionDeg float64 `json:"strain_direction_deg"`
}

// Transform maps lab coordinates into the layer frame: strain first, then twist.
func (l Layer) Transform() lattice.Transform {
	return lattice.Compose(lattice.Rotation(l.TwistDeg), lattice.Strain(l.StrainPercent, l.StrainDirectionDeg), lattice.StrainThenRotate)
}

// Params is the full widget state for one render.
type Params struct {
	Mode       Mode       `json:"mode"`
	RenderMode RenderMode `json:"render_mode"`
	// Extent is the half-width of the scanned square, in ångström.
	Extent float64 `json:"extent"`
	// Resolution is the number of samples per side.
	Resolution int     `json:"resolution"`
	Layers     []Layer `json:"layers"`
}

// StackLayers returns exactly Mode.LayerCount() layers. Switching mode only changes
// how many are returned; the layers themselves come from their own fields.
func (p Params) StackLayers() []Layer {
	n := p.Mode.LayerCount()
	out := make([]Layer, n)
	copy(out, p.Layers)
	return out
}

func (p Params) Title() string {
	ls := p.StackLayers()
	if p.Mode == Trilayer {
		return fmt.Sprintf("Trilayer Graphene: Twists %s° / %s°, Strains %s%% / %s%% / %s%%",
			num(ls[1].TwistDeg), num(ls[2].TwistDeg),
			num(ls[0].StrainPercent), num(ls[1].StrainPercent), num(ls[2].StrainPercent))
	}
	return fmt.Sprintf("Bilayer Graphene: Twist %s°, Strains %s%% / %s%%",
		num(ls[1].TwistDeg), num(ls[0].StrainPercent), num(ls[1].StrainPercent))
}

func num(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
