// Package engine turns dashboard parameters into rendered images and summaries.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/yungbote/moire/internal/moire/cache"
	"github.com/yungbote/moire/internal/moire/field"
	"github.com/yungbote/moire/internal/moire/lattice"
	"github.com/yungbote/moire/internal/moire/render"
	"github.com/yungbote/moire/internal/moire/system"
	"github.com/yungbote/moire/internal/observability"
	"github.com/yungbote/moire/internal/platform/logger"
)

var ErrRenderTimeout = errors.New("render timed out")

type View string

const (
	ViewField   View = "field"
	ViewLattice View = "lattice"
)

func ParseView(s string) (View, error) {
	switch View(s) {
	case ViewField, "":
		return ViewField, nil
	case ViewLattice:
		return ViewLattice, nil
	default:
		return "", &system.ParamError{Param: "view", Reason: fmt.Sprintf("unknown view %q", s)}
	}
}

type Config struct {
	Workers         int
	Timeout         time.Duration
	MaxDisplayPx    int
	MaxLatticeCells int
	LatticeConstant float64
}

type Engine struct {
	log      *logger.Logger
	cache    cache.Cache
	renderer *render.Renderer
	metrics  *observability.Metrics
	tracer   trace.Tracer
	cfg      Config
	group    singleflight.Group
}

func New(log *logger.Logger, c cache.Cache, r *render.Renderer, m *observability.Metrics, cfg Config) (*Engine, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if r == nil {
		return nil, fmt.Errorf("renderer required")
	}
	if c == nil {
		c = cache.Noop{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxDisplayPx <= 0 {
		cfg.MaxDisplayPx = 900
	}
	if cfg.MaxLatticeCells <= 0 {
		cfg.MaxLatticeCells = 60
	}
	if !(cfg.LatticeConstant > 0) {
		cfg.LatticeConstant = lattice.GrapheneConstant
	}
	return &Engine{
		log:      log.With("service", "RenderEngine"),
		cache:    c,
		renderer: r,
		metrics:  m,
		tracer:   otel.Tracer("github.com/yungbote/moire/internal/moire/engine"),
		cfg:      cfg,
	}, nil
}

// Image is an encoded PNG plus the parameters it was drawn from.
type Image struct {
	PNG    []byte
	Cached bool
	Params system.Params
	Title  string
}

// Plot renders the dashboard image for p. Field views are sampled at p.Resolution
// and scaled down to at most MaxDisplayPx.
func (e *Engine) Plot(ctx context.Context, p system.Params, view View) (*Image, error) {
	p, err := p.Normalize()
	if err != nil {
		return nil, err
	}
	width := min(p.Resolution, e.cfg.MaxDisplayPx)
	return e.renderImage(ctx, p, view, width)
}

// Download renders the full-resolution heatmap. Only high-res stacks can be
// downloaded.
func (e *Engine) Download(ctx context.Context, p system.Params) (*Image, error) {
	p, err := p.Normalize()
	if err != nil {
		return nil, err
	}
	if p.RenderMode != system.HighRes {
		return nil, fmt.Errorf("download requires %s mode: %w", system.HighRes, system.ErrModeConflict)
	}
	return e.renderImage(ctx, p, ViewField, p.Resolution)
}

func (e *Engine) renderImage(ctx context.Context, p system.Params, view View, width int) (*Image, error) {
	ctx, span := e.tracer.Start(ctx, "engine.image", trace.WithAttributes(
		attribute.String("view", string(view)),
		attribute.String("mode", string(p.Mode)),
		attribute.String("render_mode", string(p.RenderMode)),
		attribute.Int("resolution", p.Resolution),
		attribute.Int("width", width),
	))
	defer span.End()

	start := time.Now()
	title := p.Title()
	key, err := cache.Key(p, view, width, e.cfg.LatticeConstant)
	if err != nil {
		return nil, err
	}
	if b, ok := e.lookup(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		e.metrics.ObserveRender(string(view), string(p.Mode), string(p.RenderMode), "cached", 0)
		return &Image{PNG: b, Cached: true, Params: p, Title: title}, nil
	}

	// The shared draw outlives any single caller; render.timeout still bounds it.
	drawCtx := context.WithoutCancel(ctx)
	ch := e.group.DoChan(key, func() (any, error) {
		b, err := e.draw(drawCtx, p, view, width)
		if err != nil {
			return nil, err
		}
		e.store(drawCtx, key, b)
		return b, nil
	})
	var (
		v      any
		shared bool
	)
	select {
	case res := <-ch:
		v, err, shared = res.Val, res.Err, res.Shared
	case <-ctx.Done():
		err = ctx.Err()
	}
	status := "ok"
	if err != nil {
		status = renderStatus(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	e.metrics.ObserveRender(string(view), string(p.Mode), string(p.RenderMode), status, time.Since(start))
	if err != nil {
		return nil, err
	}
	e.log.Debug("render finished",
		"view", view,
		"mode", p.Mode,
		"render_mode", p.RenderMode,
		"resolution", p.Resolution,
		"width", width,
		"shared", shared,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &Image{PNG: v.([]byte), Params: p, Title: title}, nil
}

func renderStatus(err error) string {
	switch {
	case errors.Is(err, ErrRenderTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

func (e *Engine) draw(ctx context.Context, p system.Params, view View, width int) ([]byte, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var (
		img image.Image
		err error
	)
	switch view {
	case ViewLattice:
		img, err = e.scatter(ctx, p, width)
	default:
		var f *field.Field
		if f, err = e.field(ctx, p); err == nil {
			img, err = e.renderer.Heatmap(f, p.Title(), width)
		}
	}
	if err != nil {
		return nil, err
	}

	_, span := e.tracer.Start(ctx, "render.encode")
	defer span.End()
	var buf bytes.Buffer
	if err := render.EncodePNG(&buf, img); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("bytes", buf.Len()))
	return buf.Bytes(), nil
}

func (e *Engine) field(ctx context.Context, p system.Params) (*field.Field, error) {
	ctx, span := e.tracer.Start(ctx, "field.compute")
	defer span.End()

	layers := p.StackLayers()
	transforms := make([]lattice.Transform, len(layers))
	for i, l := range layers {
		transforms[i] = l.Transform()
	}
	f, err := field.Compute(ctx, field.Grid{Extent: p.Extent, N: p.Resolution}, transforms, field.Options{
		LatticeConstant: e.cfg.LatticeConstant,
		Workers:         e.cfg.Workers,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrRenderTimeout, e.cfg.Timeout)
		}
		return nil, err
	}
	e.metrics.AddFieldSamples(strconv.Itoa(len(layers)), p.Resolution*p.Resolution)
	return f, nil
}

func (e *Engine) scatter(ctx context.Context, p system.Params, width int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrRenderTimeout
		}
		return nil, err
	}
	cells := e.cellsFor(p.Extent)
	layers, err := e.overlay(p, cells)
	if err != nil {
		return nil, err
	}
	a := e.cfg.LatticeConstant
	view := math.Min(p.Extent, float64(cells)*a/2)
	scale := float64(width) / (2 * view)
	radius := math.Max(0.5, 0.25*(a/math.Sqrt(3))*scale)
	return e.renderer.Scatter(layers, render.ScatterOptions{
		Title:  p.Title(),
		Size:   width,
		Extent: view,
		Radius: radius,
	})
}

// cellsFor picks enough unit cells that the tiled rhombus covers the square of
// half-width extent, capped by MaxLatticeCells.
func (e *Engine) cellsFor(extent float64) int {
	cells := int(math.Ceil(2*extent/e.cfg.LatticeConstant)) + 1
	return max(1, min(cells, e.cfg.MaxLatticeCells))
}

func (e *Engine) overlay(p system.Params, cells int) ([][]lattice.Point, error) {
	layers := p.StackLayers()
	transforms := make([]lattice.Transform, len(layers))
	for i, l := range layers {
		transforms[i] = l.Transform()
	}
	return field.Overlay(lattice.Graphene(e.cfg.LatticeConstant), cells, transforms)
}

// Summary is the JSON view of one render: the normalized parameters and the
// intensity range of the sampled field.
type Summary struct {
	Title  string        `json:"title"`
	Params system.Params `json:"params"`
	Min    float64       `json:"min"`
	Max    float64       `json:"max"`
	N      int           `json:"n"`
	Extent float64       `json:"extent"`
}

func (e *Engine) Summary(ctx context.Context, p system.Params) (*Summary, error) {
	p, err := p.Normalize()
	if err != nil {
		return nil, err
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	f, err := e.field(ctx, p)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Title:  p.Title(),
		Params: p,
		Min:    f.Min,
		Max:    f.Max,
		N:      f.N,
		Extent: f.Extent,
	}, nil
}

// LatticeSet is the point set of every layer in the stack.
type LatticeSet struct {
	Title  string            `json:"title"`
	Params system.Params     `json:"params"`
	Cells  int               `json:"cells"`
	Layers [][]lattice.Point `json:"layers"`
}

// Lattice returns the stacked point sets. cells<=0 derives the tiling from the
// scan extent; any value is capped by MaxLatticeCells.
func (e *Engine) Lattice(ctx context.Context, p system.Params, cells int) (*LatticeSet, error) {
	p, err := p.Normalize()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cells <= 0 {
		cells = e.cellsFor(p.Extent)
	}
	cells = min(cells, e.cfg.MaxLatticeCells)
	layers, err := e.overlay(p, cells)
	if err != nil {
		return nil, err
	}
	return &LatticeSet{Title: p.Title(), Params: p, Cells: cells, Layers: layers}, nil
}

// CacheBackend names the configured cache, for readiness output.
func (e *Engine) CacheBackend() string { return e.cache.Backend() }

type pinger interface {
	Ping(ctx context.Context) error
}

// Ready pings the cache when the backend supports it.
func (e *Engine) Ready(ctx context.Context) error {
	if p, ok := e.cache.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.Timeout)
}

func (e *Engine) lookup(ctx context.Context, key string) ([]byte, bool) {
	b, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.metrics.IncCacheError(e.cache.Backend(), "get")
		e.log.Warn("render cache get failed; rendering", "error", err, "backend", e.cache.Backend())
		return nil, false
	}
	e.metrics.ObserveCacheLookup(e.cache.Backend(), ok)
	return b, ok
}

func (e *Engine) store(ctx context.Context, key string, b []byte) {
	if err := e.cache.Set(ctx, key, b); err != nil {
		e.metrics.IncCacheError(e.cache.Backend(), "set")
		e.log.Warn("render cache set failed", "error", err, "backend", e.cache.Backend())
	}
}
