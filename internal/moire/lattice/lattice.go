// Package lattice generates 2D Bravais lattices with a motif and applies
// rotation/strain transforms to them.
package lattice

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// GrapheneConstant is the graphene lattice constant in ångström.
const GrapheneConstant = 2.46

var ErrInvalidExtent = errors.New("invalid lattice extent")

// Basis holds the primitive vectors of a Bravais lattice and the motif offsets
// placed at every lattice site.
type Basis struct {
	A1, A2 mgl64.Vec2
	Motif  []mgl64.Vec2
}

// Graphene returns the honeycomb basis: a triangular lattice with constant a and a
// two-atom motif (sublattice A at the origin, B at (a/2, a/(2√3))).
func Graphene(a float64) Basis {
	return Basis{
		A1: mgl64.Vec2{a, 0},
		A2: mgl64.Vec2{a / 2, a * math.Sqrt(3) / 2},
		Motif: []mgl64.Vec2{
			{0, 0},
			{a / 2, a / (2 * math.Sqrt(3))},
		},
	}
}

// Triangular is the graphene Bravais lattice without the B sublattice.
func Triangular(a float64) Basis {
	b := Graphene(a)
	b.Motif = b.Motif[:1]
	return b
}

type Point struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Sublattice int     `json:"sublattice"`
}

// Generate tiles the basis over i, j ∈ [-extent, extent] and maps every site through t.
// Points are ordered by i, then j, then motif index, so equal inputs give equal output.
func Generate(b Basis, extent int, t Transform) ([]Point, error) {
	if extent < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidExtent, extent)
	}
	motif := b.Motif
	if len(motif) == 0 {
		motif = []mgl64.Vec2{{0, 0}}
	}
	side := 2*extent + 1
	out := make([]Point, 0, side*side*len(motif))
	for i := -extent; i <= extent; i++ {
		for j := -extent; j <= extent; j++ {
			site := b.A1.Mul(float64(i)).Add(b.A2.Mul(float64(j)))
			for k, m := range motif {
				p := t.Apply(site.Add(m))
				out = append(out, Point{X: p.X(), Y: p.Y(), Sublattice: k})
			}
		}
	}
	return out, nil
}

// Intensity is the three-plane-wave density used to draw one graphene layer:
//
//	cos(2πx/a) + cos(2π(x/2 + √3y/2)/a) + cos(2π(−x/2 + √3y/2)/a)
func Intensity(x, y, a float64) float64 {
	k := 2 * math.Pi / a
	sy := math.Sqrt(3) / 2 * y
	return math.Cos(k*x) + math.Cos(k*(0.5*x+sy)) + math.Cos(k*(-0.5*x+sy))
}
