// Package render turns sampled fields and lattice point sets into images.
package render

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"

	"github.com/yungbote/moire/internal/moire/field"
	"github.com/yungbote/moire/internal/moire/lattice"
)

type Options struct {
	FontPath    string
	FontSize    float64
	TitleBandPx int
}

// Renderer is safe for concurrent use.
type Renderer struct {
	font *TitleFont
	band int
}

func New(opts Options) (*Renderer, error) {
	tf, err := LoadFont(opts.FontPath, opts.FontSize)
	if err != nil {
		return nil, fmt.Errorf("could not load title font: %w", err)
	}
	band := opts.TitleBandPx
	if band < 0 {
		band = 0
	}
	return &Renderer{font: tf, band: band}, nil
}

// Heatmap colours f with viridis, origin lower, and puts title above the plot.
// width is the plot side in pixels; <=0 keeps one pixel per sample.
func (r *Renderer) Heatmap(f *field.Field, title string, width int) (image.Image, error) {
	if f == nil || f.N == 0 || len(f.Values) != f.N*f.N {
		return nil, errors.New("heatmap: empty or malformed field")
	}
	n := f.N
	plot := image.NewNRGBA(image.Rect(0, 0, n, n))
	for iy := 0; iy < n; iy++ {
		py := n - 1 - iy
		row := plot.Pix[py*plot.Stride : py*plot.Stride+4*n]
		for ix := 0; ix < n; ix++ {
			c := Viridis(f.Normalized(f.Values[iy*n+ix]))
			row[4*ix+0] = c.R
			row[4*ix+1] = c.G
			row[4*ix+2] = c.B
			row[4*ix+3] = c.A
		}
	}

	var img image.Image = plot
	if width > 0 && width != n {
		scaled := image.NewNRGBA(image.Rect(0, 0, width, width))
		xdraw.BiLinear.Scale(scaled, scaled.Bounds(), plot, plot.Bounds(), xdraw.Src, nil)
		img = scaled
	}
	return r.frame(img, title), nil
}

// ScatterOptions describe the viewport of a lattice overlay.
type ScatterOptions struct {
	Title string
	// Size is the plot side in pixels.
	Size int
	// Extent is the half-width of the visible square, in lattice units.
	Extent float64
	Radius float64
}

// Scatter draws each layer's points in its own translucent colour, layer 1 first.
func (r *Renderer) Scatter(layers [][]lattice.Point, opts ScatterOptions) (image.Image, error) {
	if opts.Size <= 0 {
		return nil, errors.New("scatter: size must be positive")
	}
	if !(opts.Extent > 0) {
		return nil, errors.New("scatter: extent must be positive")
	}
	radius := opts.Radius
	if radius <= 0 {
		radius = 1.5
	}
	size := float64(opts.Size)
	scale := size / (2 * opts.Extent)

	dc := gg.NewContext(opts.Size, opts.Size)
	dc.SetColor(color.White)
	dc.Clear()
	for i, pts := range layers {
		dc.SetColor(layerColor(i))
		for _, p := range pts {
			if p.X < -opts.Extent || p.X > opts.Extent || p.Y < -opts.Extent || p.Y > opts.Extent {
				continue
			}
			dc.DrawCircle((p.X+opts.Extent)*scale, size-(p.Y+opts.Extent)*scale, radius)
		}
		dc.Fill()
	}
	return r.frame(dc.Image(), opts.Title), nil
}

func (r *Renderer) frame(plot image.Image, title string) image.Image {
	b := plot.Bounds()
	if r.band == 0 || title == "" {
		return plot
	}
	dc := gg.NewContext(b.Dx(), b.Dy()+r.band)
	dc.SetColor(color.White)
	dc.Clear()
	face := r.font.Face()
	defer face.Close()
	dc.SetFontFace(face)
	dc.SetColor(color.Black)
	dc.DrawStringAnchored(title, float64(b.Dx())/2, float64(r.band)/2, 0.5, 0.5)
	dc.DrawImage(plot, 0, r.band)
	return dc.Image()
}

// EncodePNG writes img as PNG. Output is byte-stable for identical images.
func EncodePNG(w io.Writer, img image.Image) error {
	bw := bufio.NewWriter(w)
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(bw, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return bw.Flush()
}
