package lattice

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

const tol = 1e-9

func dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func TestGenerateCountAndOrder(t *testing.T) {
	pts, err := Generate(Graphene(GrapheneConstant), 2, Identity())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(pts) != 5*5*2 {
		t.Fatalf("len=%d", len(pts))
	}
	// First site is i=j=-2, sublattice A then B.
	a1 := Graphene(GrapheneConstant).A1
	a2 := Graphene(GrapheneConstant).A2
	want := a1.Mul(-2).Add(a2.Mul(-2))
	if math.Abs(pts[0].X-want.X()) > tol || math.Abs(pts[0].Y-want.Y()) > tol {
		t.Fatalf("first point=%+v want %v", pts[0], want)
	}
	if pts[0].Sublattice != 0 || pts[1].Sublattice != 1 {
		t.Fatalf("sublattice order: %+v %+v", pts[0], pts[1])
	}
	// Nearest-neighbour A-B distance in graphene is a/√3.
	if d := dist(pts[0], pts[1]); math.Abs(d-GrapheneConstant/math.Sqrt(3)) > tol {
		t.Fatalf("A-B distance=%v", d)
	}
}

func TestGenerateRejectsNegativeExtent(t *testing.T) {
	_, err := Generate(Triangular(1), -1, Identity())
	if !errors.Is(err, ErrInvalidExtent) {
		t.Fatalf("err=%v", err)
	}
}

func TestGenerateZeroExtentIsOneCell(t *testing.T) {
	pts, err := Generate(Triangular(1), 0, Rotation(33))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(pts) != 1 || pts[0].X != 0 || pts[0].Y != 0 {
		t.Fatalf("pts=%+v", pts)
	}
}

func TestRotationPreservesDistances(t *testing.T) {
	basis := Graphene(GrapheneConstant)
	base, err := Generate(basis, 3, Identity())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, deg := range []float64{0, 0.1, 1.1, 13.17, 45, 90, 179.9, 270, 359.99} {
		rot, err := Generate(basis, 3, Rotation(deg))
		if err != nil {
			t.Fatalf("Generate(%v): %v", deg, err)
		}
		for i := 0; i < len(base); i += 7 {
			for j := i + 1; j < len(base); j += 5 {
				if d0, d1 := dist(base[i], base[j]), dist(rot[i], rot[j]); math.Abs(d0-d1) > 1e-9 {
					t.Fatalf("θ=%v pair (%d,%d): %v -> %v", deg, i, j, d0, d1)
				}
			}
		}
		if math.Abs(Rotation(deg).Det()-1) > tol {
			t.Fatalf("θ=%v det=%v", deg, Rotation(deg).Det())
		}
	}
}

func TestRotationIsCounterClockwise(t *testing.T) {
	got := Rotation(90).Apply(mgl64.Vec2{1, 0})
	if math.Abs(got.X()) > tol || math.Abs(got.Y()-1) > tol {
		t.Fatalf("R(90)·x̂=%v", got)
	}
}

func TestStrainScalesAlongAxisOnly(t *testing.T) {
	basis := Triangular(1)
	for _, s := range []float64{0.9, 1.0, 1.02, 1.1} {
		base, _ := Generate(basis, 2, Identity())
		strained, _ := Generate(basis, 2, Scale(s, 1))
		for i := range base {
			for j := range base {
				dx0 := base[j].X - base[i].X
				dy0 := base[j].Y - base[i].Y
				dx1 := strained[j].X - strained[i].X
				dy1 := strained[j].Y - strained[i].Y
				if math.Abs(dx1-s*dx0) > tol {
					t.Fatalf("s=%v: dx %v -> %v", s, dx0, dx1)
				}
				if math.Abs(dy1-dy0) > tol {
					t.Fatalf("s=%v: perpendicular dy changed %v -> %v", s, dy0, dy1)
				}
			}
		}
	}
}

func TestDirectionalStrainMatchesAxisScale(t *testing.T) {
	cases := []struct {
		dir  float64
		want Transform
	}{
		{0, Scale(1.03, 1)},
		{90, Scale(1, 1.03)},
		{180, Scale(1.03, 1)},
	}
	for _, tc := range cases {
		got := Strain(3, tc.dir)
		if !got.M.ApproxEqualThreshold(tc.want.M, 1e-12) {
			t.Fatalf("Strain(3,%v)=%v want %v", tc.dir, got.M, tc.want.M)
		}
	}

	// Along an oblique direction n, lengths along n stretch and lengths along n⊥ do not.
	phi := mgl64.DegToRad(30)
	n := mgl64.Vec2{math.Cos(phi), math.Sin(phi)}
	perp := mgl64.Vec2{-n.Y(), n.X()}
	st := Strain(5, 30)
	if got := st.Apply(n).Len(); math.Abs(got-1.05) > tol {
		t.Fatalf("|S·n|=%v", got)
	}
	if got := st.Apply(perp).Len(); math.Abs(got-1) > tol {
		t.Fatalf("|S·n⊥|=%v", got)
	}
}

func TestComposeOrder(t *testing.T) {
	r := Rotation(30)
	s := Strain(10, 0)
	v := mgl64.Vec2{1, 0}

	strainFirst := Compose(r, s, StrainThenRotate).Apply(v)
	want := r.Apply(s.Apply(v))
	if !strainFirst.ApproxEqualThreshold(want, tol) {
		t.Fatalf("StrainThenRotate=%v want %v", strainFirst, want)
	}

	rotateFirst := Compose(r, s, RotateThenStrain).Apply(v)
	want = s.Apply(r.Apply(v))
	if !rotateFirst.ApproxEqualThreshold(want, tol) {
		t.Fatalf("RotateThenStrain=%v want %v", rotateFirst, want)
	}
	if strainFirst.ApproxEqualThreshold(rotateFirst, 1e-6) {
		t.Fatalf("orders should differ for oblique strain")
	}
}

func TestApplyXYMatchesApply(t *testing.T) {
	tr := Compose(Rotation(-7.5), Strain(4, 60), StrainThenRotate)
	v := tr.Apply(mgl64.Vec2{3.2, -1.4})
	x, y := tr.ApplyXY(3.2, -1.4)
	if math.Abs(x-v.X()) > tol || math.Abs(y-v.Y()) > tol {
		t.Fatalf("ApplyXY=(%v,%v) Apply=%v", x, y, v)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	tr := Compose(Rotation(1.1), Strain(2, 15), StrainThenRotate)
	a, _ := Generate(Graphene(GrapheneConstant), 4, tr)
	b, _ := Generate(Graphene(GrapheneConstant), 4, tr)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("point sets differ for identical inputs")
	}
}

func TestIntensityPeriodicity(t *testing.T) {
	a := GrapheneConstant
	if got := Intensity(0, 0, a); math.Abs(got-3) > tol {
		t.Fatalf("I(0,0)=%v want 3", got)
	}
	b := Graphene(a)
	for _, p := range [][2]float64{{0.3, 0.7}, {-1.1, 2.5}} {
		i0 := Intensity(p[0], p[1], a)
		// The density is periodic under translation by 2·A1 and 2·A2.
		for _, shift := range []mgl64.Vec2{b.A1.Mul(2), b.A2.Mul(2)} {
			i1 := Intensity(p[0]+shift.X(), p[1]+shift.Y(), a)
			if math.Abs(i0-i1) > 1e-9 {
				t.Fatalf("I not periodic under %v: %v vs %v", shift, i0, i1)
			}
		}
	}
}
