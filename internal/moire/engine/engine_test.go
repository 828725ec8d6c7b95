package engine

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/yungbote/moire/internal/moire/cache"
	"github.com/yungbote/moire/internal/moire/config"
	"github.com/yungbote/moire/internal/moire/render"
	"github.com/yungbote/moire/internal/moire/system"
	"github.com/yungbote/moire/internal/observability"
	"github.com/yungbote/moire/internal/platform/logger"
)

func testEngine(t *testing.T, c cache.Cache, cfg Config) *Engine {
	t.Helper()
	r, err := render.New(render.Options{TitleBandPx: 0})
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}
	if cfg.MaxDisplayPx == 0 {
		cfg.MaxDisplayPx = 64
	}
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	e, err := New(logger.NewNop(), c, r, observability.New(true), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func quick(mode system.Mode) system.Params {
	p := system.Defaults(mode, system.Quick)
	p.Resolution = 200
	p.Extent = 20
	return p
}

func decodeSize(t *testing.T, b []byte) (int, int) {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestPlotScalesToDisplayAndCaches(t *testing.T) {
	mem, err := cache.NewMemory(8, 0)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	e := testEngine(t, mem, Config{})
	ctx := context.Background()

	first, err := e.Plot(ctx, quick(system.Bilayer), ViewField)
	if err != nil {
		t.Fatalf("Plot: %v", err)
	}
	if first.Cached {
		t.Fatalf("first render reported as cached")
	}
	if w, h := decodeSize(t, first.PNG); w != 64 || h != 64 {
		t.Fatalf("size=%dx%d", w, h)
	}
	if first.Title != "Bilayer Graphene: Twist 1.1°, Strains 2.0% / 0.0%" {
		t.Fatalf("title=%q", first.Title)
	}

	second, err := e.Plot(ctx, quick(system.Bilayer), ViewField)
	if err != nil {
		t.Fatalf("Plot: %v", err)
	}
	if !second.Cached || !bytes.Equal(first.PNG, second.PNG) {
		t.Fatalf("second render cached=%v equal=%v", second.Cached, bytes.Equal(first.PNG, second.PNG))
	}
	if mem.Len() != 1 {
		t.Fatalf("cache entries=%d", mem.Len())
	}
}

func TestPlotIsDeterministicWithoutCache(t *testing.T) {
	e := testEngine(t, nil, Config{Workers: 3})
	a, err := e.Plot(context.Background(), quick(system.Trilayer), ViewField)
	if err != nil {
		t.Fatalf("Plot: %v", err)
	}
	b, err := e.Plot(context.Background(), quick(system.Trilayer), ViewField)
	if err != nil {
		t.Fatalf("Plot: %v", err)
	}
	if a.Cached || b.Cached || !bytes.Equal(a.PNG, b.PNG) {
		t.Fatalf("identical inputs produced different images")
	}
}

func TestPlotLatticeView(t *testing.T) {
	e := testEngine(t, nil, Config{MaxDisplayPx: 128})
	img, err := e.Plot(context.Background(), quick(system.Trilayer), ViewLattice)
	if err != nil {
		t.Fatalf("Plot: %v", err)
	}
	if w, h := decodeSize(t, img.PNG); w != 128 || h != 128 {
		t.Fatalf("size=%dx%d", w, h)
	}
}

func TestPlotRejectsInvalidParams(t *testing.T) {
	e := testEngine(t, nil, Config{})
	p := quick(system.Bilayer)
	p.Extent = math.NaN()
	if _, err := e.Plot(context.Background(), p, ViewField); !errors.Is(err, system.ErrInvalidParams) {
		t.Fatalf("err=%v", err)
	}
	p = quick(system.Bilayer)
	p.Mode = "quadlayer"
	if _, err := e.Summary(context.Background(), p); !errors.Is(err, system.ErrInvalidParams) {
		t.Fatalf("err=%v", err)
	}
	if _, err := ParseView("contour"); !errors.Is(err, system.ErrInvalidParams) {
		t.Fatalf("view err=%v", err)
	}
}

func TestDownloadRequiresHighRes(t *testing.T) {
	e := testEngine(t, nil, Config{Workers: 4})
	if _, err := e.Download(context.Background(), quick(system.Bilayer)); !errors.Is(err, system.ErrModeConflict) {
		t.Fatalf("quick download err=%v", err)
	}

	p := system.Defaults(system.Bilayer, system.HighRes)
	p.Resolution = 800
	p.Extent = 50
	img, err := e.Download(context.Background(), p)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if w, h := decodeSize(t, img.PNG); w != 800 || h != 800 {
		t.Fatalf("download size=%dx%d, want full resolution", w, h)
	}
}

func TestSummaryReportsNormalizedParams(t *testing.T) {
	e := testEngine(t, nil, Config{})
	p := quick(system.Bilayer)
	p.Layers[1].TwistDeg = 25
	s, err := e.Summary(context.Background(), p)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.Params.Layers[1].TwistDeg != 10 {
		t.Fatalf("twist not clamped: %v", s.Params.Layers[1].TwistDeg)
	}
	if s.N != 200 || s.Extent != 20 {
		t.Fatalf("grid n=%d extent=%v", s.N, s.Extent)
	}
	if s.Max > 6+1e-9 || s.Min < -3 || s.Min >= s.Max {
		t.Fatalf("range [%v, %v]", s.Min, s.Max)
	}
}

func TestSummaryTimesOut(t *testing.T) {
	e := testEngine(t, nil, Config{Timeout: time.Nanosecond})
	p := system.Defaults(system.Trilayer, system.HighRes)
	if _, err := e.Summary(context.Background(), p); !errors.Is(err, ErrRenderTimeout) {
		t.Fatalf("err=%v", err)
	}
}

func TestLatticeLayersAreIndependentOfMode(t *testing.T) {
	e := testEngine(t, nil, Config{MaxLatticeCells: 4})
	bi, err := e.Lattice(context.Background(), quick(system.Bilayer), 3)
	if err != nil {
		t.Fatalf("Lattice: %v", err)
	}
	tri, err := e.Lattice(context.Background(), quick(system.Trilayer), 3)
	if err != nil {
		t.Fatalf("Lattice: %v", err)
	}
	if len(bi.Layers) != 2 || len(tri.Layers) != 3 {
		t.Fatalf("layers %d/%d", len(bi.Layers), len(tri.Layers))
	}
	if !reflect.DeepEqual(bi.Layers[0], tri.Layers[0]) {
		t.Fatalf("reference layer differs between modes")
	}

	capped, err := e.Lattice(context.Background(), quick(system.Bilayer), 500)
	if err != nil {
		t.Fatalf("Lattice: %v", err)
	}
	if capped.Cells != 4 {
		t.Fatalf("cells=%d, want cap 4", capped.Cells)
	}
	if want := (2*4 + 1) * (2*4 + 1) * 2; len(capped.Layers[0]) != want {
		t.Fatalf("points=%d want %d", len(capped.Layers[0]), want)
	}
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("get boom")
}
func (brokenCache) Set(context.Context, string, []byte) error { return errors.New("set boom") }
func (brokenCache) Backend() string                           { return "broken" }
func (brokenCache) Close() error                              { return nil }

func TestCacheFailuresAreMisses(t *testing.T) {
	e := testEngine(t, brokenCache{}, Config{})
	img, err := e.Plot(context.Background(), quick(system.Bilayer), ViewField)
	if err != nil {
		t.Fatalf("Plot with failing cache: %v", err)
	}
	if img.Cached || len(img.PNG) == 0 {
		t.Fatalf("unexpected image %+v", img.Cached)
	}
}

func TestReadyPingsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()}, time.Minute, logger.NewNop())
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer rc.Close()
	e := testEngine(t, rc, Config{})
	if err := e.Ready(context.Background()); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if e.CacheBackend() != "redis" {
		t.Fatalf("backend=%s", e.CacheBackend())
	}
	if err := testEngine(t, nil, Config{}).Ready(context.Background()); err != nil {
		t.Fatalf("noop Ready: %v", err)
	}
}

// gateCache always misses and holds Set until release is closed, which keeps a
// render's singleflight call open while other callers join it.
type gateCache struct {
	gets    chan struct{}
	entered chan struct{}
	release chan struct{}

	mu      sync.Mutex
	sets    int
	setErrs []error
}

func newGateCache() *gateCache {
	return &gateCache{
		gets:    make(chan struct{}, 64),
		entered: make(chan struct{}, 64),
		release: make(chan struct{}),
	}
}

func (g *gateCache) Get(context.Context, string) ([]byte, bool, error) {
	g.gets <- struct{}{}
	return nil, false, nil
}

func (g *gateCache) Set(ctx context.Context, _ string, _ []byte) error {
	g.entered <- struct{}{}
	<-g.release
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sets++
	g.setErrs = append(g.setErrs, ctx.Err())
	return nil
}

func (g *gateCache) Backend() string { return "gate" }
func (g *gateCache) Close() error    { return nil }

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(10 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

type plotResult struct {
	img *Image
	err error
}

func TestSharedRenderSurvivesFirstCallerCancel(t *testing.T) {
	gc := newGateCache()
	e := testEngine(t, gc, Config{})
	p := quick(system.Trilayer)

	leaderCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	leader := make(chan plotResult, 1)
	go func() {
		img, err := e.Plot(leaderCtx, p, ViewField)
		leader <- plotResult{img, err}
	}()
	waitFor(t, gc.gets, "leader lookup")
	waitFor(t, gc.entered, "leader draw")

	follower := make(chan plotResult, 1)
	go func() {
		img, err := e.Plot(context.Background(), p, ViewField)
		follower <- plotResult{img, err}
	}()
	waitFor(t, gc.gets, "follower lookup")
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case res := <-leader:
		if !errors.Is(res.err, context.Canceled) {
			t.Fatalf("leader err=%v, want context.Canceled", res.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("cancelled caller still waiting on the shared render")
	}

	close(gc.release)
	select {
	case res := <-follower:
		if res.err != nil {
			t.Fatalf("follower err=%v", res.err)
		}
		if len(res.img.PNG) == 0 {
			t.Fatalf("follower got empty image")
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("follower did not finish")
	}

	gc.mu.Lock()
	defer gc.mu.Unlock()
	for i, err := range gc.setErrs {
		if err != nil {
			t.Fatalf("store %d ran on a cancelled context: %v", i, err)
		}
	}

	var buf bytes.Buffer
	if err := e.metrics.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	if !strings.Contains(buf.String(), `status="canceled"`) {
		t.Fatalf("cancelled render not counted as canceled:\n%s", buf.String())
	}
}

func TestConcurrentIdenticalRendersDrawOnce(t *testing.T) {
	gc := newGateCache()
	e := testEngine(t, gc, Config{})
	p := quick(system.Bilayer)

	const callers = 8
	results := make(chan plotResult, callers)
	plot := func() {
		img, err := e.Plot(context.Background(), p, ViewField)
		results <- plotResult{img, err}
	}
	go plot()
	waitFor(t, gc.gets, "first lookup")
	waitFor(t, gc.entered, "first draw")
	for i := 1; i < callers; i++ {
		go plot()
	}
	for i := 1; i < callers; i++ {
		waitFor(t, gc.gets, "lookup")
	}
	time.Sleep(20 * time.Millisecond)
	close(gc.release)

	var first []byte
	for i := 0; i < callers; i++ {
		res := <-results
		if res.err != nil {
			t.Fatalf("Plot: %v", res.err)
		}
		if first == nil {
			first = res.img.PNG
		} else if !bytes.Equal(first, res.img.PNG) {
			t.Fatalf("callers got different images")
		}
	}
	gc.mu.Lock()
	defer gc.mu.Unlock()
	if gc.sets != 1 {
		t.Fatalf("draws stored=%d, want 1", gc.sets)
	}
}
