package lattice

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform is a 2x2 linear map applied to lattice coordinates.
type Transform struct {
	M mgl64.Mat2
}

// Order selects whether strain is applied before or after the twist.
type Order int

const (
	// StrainThenRotate deforms the layer first and then twists it (R·S).
	StrainThenRotate Order = iota
	// RotateThenStrain twists first and deforms in the lab frame (S·R).
	RotateThenStrain
)

func Identity() Transform {
	return Transform{M: mgl64.Ident2()}
}

// Rotation is a counter-clockwise rigid rotation by deg degrees.
func Rotation(deg float64) Transform {
	return Transform{M: mgl64.Rotate2D(mgl64.DegToRad(deg))}
}

// Strain is the symmetric uniaxial strain tensor I + ε·n·nᵀ, with ε = percent/100 and
// n the unit vector at directionDeg from the x axis. Lengths along n scale by 1+ε,
// lengths perpendicular to n are unchanged.
func Strain(percent, directionDeg float64) Transform {
	eps := percent / 100
	phi := mgl64.DegToRad(directionDeg)
	c, s := math.Cos(phi), math.Sin(phi)
	exx := eps * c * c
	eyy := eps * s * s
	exy := eps * s * c
	// mgl64 matrices are column-major.
	return Transform{M: mgl64.Mat2{1 + exx, exy, exy, 1 + eyy}}
}

// Scale stretches x by sx and y by sy. Scale(s, 1) is uniaxial, Scale(s, s) biaxial.
func Scale(sx, sy float64) Transform {
	return Transform{M: mgl64.Mat2{sx, 0, 0, sy}}
}

// Then returns the transform that applies t first and next second.
func (t Transform) Then(next Transform) Transform {
	return Transform{M: next.M.Mul2(t.M)}
}

// Compose builds a layer transform from a twist and a strain.
func Compose(rotation, strain Transform, order Order) Transform {
	if order == RotateThenStrain {
		return rotation.Then(strain)
	}
	return strain.Then(rotation)
}

func (t Transform) Apply(v mgl64.Vec2) mgl64.Vec2 {
	return t.M.Mul2x1(v)
}

// ApplyXY is Apply without the vector allocation, for tight sampling loops.
func (t Transform) ApplyXY(x, y float64) (float64, float64) {
	m := t.M
	return m[0]*x + m[2]*y, m[1]*x + m[3]*y
}

func (t Transform) Det() float64 {
	return t.M.Det()
}
