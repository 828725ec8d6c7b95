// Package field samples the superposed density of several transformed graphene
// layers on a square grid.
package field

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/moire/internal/moire/lattice"
)

var ErrInvalidGrid = errors.New("invalid grid")

// Grid is linspace(-Extent, Extent, N) along both axes.
type Grid struct {
	Extent float64
	N      int
}

func (g Grid) validate() error {
	if g.N < 2 {
		return fmt.Errorf("%w: need at least 2 samples per side, got %d", ErrInvalidGrid, g.N)
	}
	if !(g.Extent > 0) || math.IsInf(g.Extent, 0) {
		return fmt.Errorf("%w: extent must be positive and finite, got %v", ErrInvalidGrid, g.Extent)
	}
	return nil
}

// Coord returns the i-th sample coordinate.
func (g Grid) Coord(i int) float64 {
	return -g.Extent + 2*g.Extent*float64(i)/float64(g.N-1)
}

type Options struct {
	// LatticeConstant of every layer, in the same unit as Grid.Extent.
	LatticeConstant float64
	// Workers bounds concurrent row bands; <=0 means 1.
	Workers int
}

// Field holds row-major samples. Row 0 is y = -Extent, so drawing row 0 at the bottom
// puts the origin in the lower left.
type Field struct {
	N      int
	Extent float64
	Values []float64
	Min    float64
	Max    float64
}

func (f *Field) At(ix, iy int) float64 {
	return f.Values[iy*f.N+ix]
}

// Normalized maps v into [0, 1] using the field's range. A flat field maps to 0.
func (f *Field) Normalized(v float64) float64 {
	span := f.Max - f.Min
	if span <= 0 {
		return 0
	}
	return (v - f.Min) / span
}

// Compute samples Σ_l Intensity(T_l · r) for every grid point r. Rows are split into
// bands that run concurrently; each sample sums its layers in order, so results do
// not depend on scheduling. ctx is checked once per row.
func Compute(ctx context.Context, g Grid, layers []lattice.Transform, opts Options) (*Field, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	if len(layers) == 0 {
		return nil, errors.New("at least one layer is required")
	}
	a := opts.LatticeConstant
	if !(a > 0) {
		a = lattice.GrapheneConstant
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	n := g.N
	coords := make([]float64, n)
	for i := range coords {
		coords[i] = g.Coord(i)
	}
	values := make([]float64, n*n)

	bands := workers * 4
	if bands > n {
		bands = n
	}
	rowsPerBand := (n + bands - 1) / bands

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for start := 0; start < n; start += rowsPerBand {
		end := min(start+rowsPerBand, n)
		eg.Go(func() error {
			for iy := start; iy < end; iy++ {
				if err := egctx.Err(); err != nil {
					return err
				}
				y := coords[iy]
				row := values[iy*n : (iy+1)*n]
				for ix, x := range coords {
					var sum float64
					for _, t := range layers {
						lx, ly := t.ApplyXY(x, y)
						sum += lattice.Intensity(lx, ly, a)
					}
					row[ix] = sum
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	f := &Field{N: n, Extent: g.Extent, Values: values, Min: math.Inf(1), Max: math.Inf(-1)}
	for _, v := range values {
		if v < f.Min {
			f.Min = v
		}
		if v > f.Max {
			f.Max = v
		}
	}
	return f, nil
}

// Overlay generates the point set of every layer over the same cell range.
func Overlay(b lattice.Basis, cells int, layers []lattice.Transform) ([][]lattice.Point, error) {
	out := make([][]lattice.Point, len(layers))
	for i, t := range layers {
		pts, err := lattice.Generate(b, cells, t)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i+1, err)
		}
		out[i] = pts
	}
	return out, nil
}
