package compile_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/eak1mov/go-minimaps/cache"
	"github.com/eak1mov/go-minimaps/casc"
	"github.com/eak1mov/go-minimaps/compile"
	"github.com/eak1mov/go-minimaps/internal"
	"github.com/eak1mov/go-minimaps/tile"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const testBuild = "1a02465e2f1f1e30bba258ca49d2b60b"

var (
	red   = color.NRGBA{R: 255, A: 255}
	green = color.NRGBA{G: 255, A: 255}
	blue  = color.NRGBA{B: 255, A: 255}
	none  = color.NRGBA{}
)

type fakeFetcher struct {
	mu       sync.Mutex
	files    map[uint32][]byte
	failures map[uint32]error
	requests map[uint32]int
	hook     func(id uint32)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		files:    make(map[uint32][]byte),
		failures: make(map[uint32]error),
		requests: make(map[uint32]int),
	}
}

func (f *fakeFetcher) FileByID(ctx context.Context, id uint32, name string) ([]byte, error) {
	f.mu.Lock()
	f.requests[id]++
	data, ok := f.files[id]
	failure := f.failures[id]
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	if !ok {
		return nil, casc.ErrNotFound
	}
	return data, nil
}

func (f *fakeFetcher) add(id uint32, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[id] = data
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.requests {
		n += c
	}
	return n
}

func readImage(t *testing.T, filePath string) image.Image {
	t.Helper()
	data, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode failed: %v", err)
	}
	return img
}

func pixel(img image.Image, x, y int) color.NRGBA {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
}

func tempFiles(t *testing.T, dirPath string) []string {
	t.Helper()
	entries, err := os.ReadDir(dirPath)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("ReadDir failed: %v", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestCompile(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.add(100, internal.WDT([]tile.Descriptor{
		{X: 2, Y: 5, ContentID: 1},
		{X: 3, Y: 5, ContentID: 2},
		{X: 2, Y: 6, ContentID: 3},
	}))
	fetcher.add(1, internal.PNG(256, red))
	fetcher.add(2, internal.PNG(256, green))
	fetcher.add(3, internal.PNG(256, blue))

	outDir := t.TempDir()
	compiler := compile.NewCompiler(fetcher, outDir)
	job := compile.Job{MapID: 1, Name: "Kalimdor", LayoutID: 100}
	result := compiler.Compile(context.Background(), job)
	if result.Err != nil {
		t.Fatalf("Compile failed: %v", result.Err)
	}

	require.Equal(t, compile.StatusDone, result.Status)
	require.Equal(t, filepath.Join(outDir, "1.png"), result.Path)
	require.Equal(t, 3, result.Placed)
	require.Equal(t, 0, result.Omitted)
	require.Positive(t, result.Size)

	img := readImage(t, result.Path)
	if diff := cmp.Diff(image.Rect(0, 0, 512, 512), img.Bounds()); diff != "" {
		t.Errorf("bounds mismatch (-want+got):\n%v", diff)
	}
	tests := []struct {
		x, y int
		want color.NRGBA
	}{
		{0, 0, red},
		{255, 255, red},
		{256, 0, green},
		{0, 256, blue},
		{256, 256, none},
		{511, 511, none},
	}
	for _, tt := range tests {
		if got := pixel(img, tt.x, tt.y); got != tt.want {
			t.Errorf("pixel(%d, %d) = %v, want = %v", tt.x, tt.y, got, tt.want)
		}
	}
	if names := tempFiles(t, outDir); len(names) != 0 {
		t.Errorf("temporary files left: %v", names)
	}
}

func TestCompileSkipsAbsentTiles(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.add(100, internal.WDT([]tile.Descriptor{
		{X: 0, Y: 0, ContentID: 1},
		{X: 1, Y: 0, ContentID: 0},
		{X: 2, Y: 0, ContentID: 2},
		{X: 3, Y: 0, ContentID: 0},
		{X: 4, Y: 0, ContentID: 3},
	}))
	for id := uint32(1); id <= 3; id++ {
		fetcher.add(id, internal.PNG(4, red))
	}

	compiler := compile.NewCompiler(fetcher, t.TempDir())
	result := compiler.Compile(context.Background(), compile.Job{MapID: 7, LayoutID: 100})
	require.NoError(t, result.Err)
	require.Equal(t, compile.StatusDone, result.Status)
	require.Equal(t, 3, result.Placed)

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	want := map[uint32]int{100: 1, 1: 1, 2: 1, 3: 1}
	if diff := cmp.Diff(want, fetcher.requests); diff != "" {
		t.Errorf("requests mismatch (-want+got):\n%v", diff)
	}
}

func TestCompileIsolatesTileFailures(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.add(100, internal.WDT([]tile.Descriptor{
		{X: 2, Y: 5, ContentID: 1},
		{X: 3, Y: 5, ContentID: 2},
		{X: 2, Y: 6, ContentID: 3},
		{X: 3, Y: 6, ContentID: 4},
	}))
	fetcher.add(1, internal.PNG(8, red))
	fetcher.add(2, []byte("corrupt tile"))
	fetcher.add(3, internal.PNG(8, blue))
	// 4 is missing remotely.

	compiler := compile.NewCompiler(fetcher, t.TempDir())
	result := compiler.Compile(context.Background(), compile.Job{MapID: 1, LayoutID: 100})
	require.NoError(t, result.Err)
	require.Equal(t, compile.StatusDone, result.Status)
	require.Equal(t, 2, result.Placed)
	require.Equal(t, 2, result.Omitted)

	img := readImage(t, result.Path)
	require.Equal(t, red, pixel(img, 0, 0))
	require.Equal(t, none, pixel(img, 8, 0))
	require.Equal(t, blue, pixel(img, 0, 8))
	require.Equal(t, none, pixel(img, 8, 8))
}

func TestCompileFirstTileFails(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.add(100, internal.WDT([]tile.Descriptor{
		{X: 0, Y: 0, ContentID: 1},
		{X: 1, Y: 0, ContentID: 2},
	}))
	fetcher.add(1, []byte("corrupt tile"))
	fetcher.add(2, internal.PNG(16, green))

	compiler := compile.NewCompiler(fetcher, t.TempDir())
	result := compiler.Compile(context.Background(), compile.Job{MapID: 1, LayoutID: 100})
	require.NoError(t, result.Err)
	require.Equal(t, 1, result.Placed)

	img := readImage(t, result.Path)
	require.Equal(t, image.Rect(0, 0, 32, 16), img.Bounds())
	require.Equal(t, none, pixel(img, 0, 0))
	require.Equal(t, green, pixel(img, 16, 0))
}

func TestCompileScalesMixedTileSizes(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.add(100, internal.WDT([]tile.Descriptor{
		{X: 0, Y: 0, ContentID: 1},
		{X: 1, Y: 0, ContentID: 2},
	}))
	fetcher.add(1, internal.PNG(8, red))
	fetcher.add(2, internal.PNG(4, green))

	compiler := compile.NewCompiler(fetcher, t.TempDir())
	result := compiler.Compile(context.Background(), compile.Job{MapID: 1, LayoutID: 100})
	require.NoError(t, result.Err)
	require.Equal(t, 2, result.Placed)
	require.Equal(t, 1, result.Scaled)

	img := readImage(t, result.Path)
	require.Equal(t, image.Rect(0, 0, 16, 8), img.Bounds())
	if got := pixel(img, 12, 4); got.G < 250 || got.R > 5 || got.A < 250 {
		t.Errorf("pixel(12, 4) = %v, want ~%v", got, green)
	}
}

func TestCompileSkips(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.add(100, internal.WDT(nil))

	t.Run("NoLayout", func(t *testing.T) {
		compiler := compile.NewCompiler(fetcher, t.TempDir())
		result := compiler.Compile(context.Background(), compile.Job{MapID: 1, LayoutID: 0})
		require.Equal(t, compile.StatusSkippedNoLayout, result.Status)
		require.NoError(t, result.Err)
	})

	t.Run("NoTiles", func(t *testing.T) {
		outDir := t.TempDir()
		compiler := compile.NewCompiler(fetcher, outDir)
		result := compiler.Compile(context.Background(), compile.Job{MapID: 1, LayoutID: 100})
		require.Equal(t, compile.StatusSkippedNoTiles, result.Status)
		require.NoError(t, result.Err)
		require.NoFileExists(t, filepath.Join(outDir, "1.png"))
	})

	t.Run("Existing", func(t *testing.T) {
		outDir := t.TempDir()
		outPath := filepath.Join(outDir, "1.png")
		if err := os.WriteFile(outPath, []byte("previous"), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		before := fetcher.total()
		compiler := compile.NewCompiler(fetcher, outDir)
		result := compiler.Compile(context.Background(), compile.Job{MapID: 1, LayoutID: 100})
		require.Equal(t, compile.StatusSkippedExisting, result.Status)
		require.Equal(t, before, fetcher.total())

		data, err := os.ReadFile(outPath)
		require.NoError(t, err)
		require.Equal(t, "previous", string(data))
	})
}

func TestCompileIdempotent(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.add(100, internal.WDT([]tile.Descriptor{{X: 10, Y: 10, ContentID: 1}}))
	fetcher.add(1, internal.PNG(4, red))

	compiler := compile.NewCompiler(fetcher, t.TempDir())
	job := compile.Job{MapID: 3, LayoutID: 100}
	first := compiler.Compile(context.Background(), job)
	require.Equal(t, compile.StatusDone, first.Status)
	content, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	requests := fetcher.total()

	second := compiler.Compile(context.Background(), job)
	require.Equal(t, compile.StatusSkippedExisting, second.Status)
	require.Equal(t, requests, fetcher.total())

	after, err := os.ReadFile(second.Path)
	require.NoError(t, err)
	require.Equal(t, content, after)
}

func TestCompileFailures(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.add(100, []byte("not a layout"))
	fetcher.add(101, internal.WDT([]tile.Descriptor{{X: 0, Y: 0, ContentID: 1}, {X: 1, Y: 0, ContentID: 2}}))
	fetcher.add(1, []byte("corrupt"))
	fetcher.add(102, internal.WDT([]tile.Descriptor{{X: 0, Y: 0, ContentID: 3}}))
	fetcher.add(3, internal.PNG(4, red))

	notDir := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(notDir, nil, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	tests := []struct {
		name     string
		outDir   string
		layoutID uint32
		want     []error
	}{
		{"LayoutUnavailable", t.TempDir(), 99, []error{compile.ErrLayoutUnavailable, casc.ErrNotFound}},
		{"MalformedLayout", t.TempDir(), 100, []error{compile.ErrMalformedLayout}},
		{"NothingPlaced", t.TempDir(), 101, []error{compile.ErrNothingPlaced}},
		{"Write", notDir, 102, []error{compile.ErrWrite}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiler := compile.NewCompiler(fetcher, tt.outDir)
			result := compiler.Compile(context.Background(), compile.Job{MapID: 1, LayoutID: tt.layoutID})
			require.Equal(t, compile.StatusFailed, result.Status)
			for _, want := range tt.want {
				if !errors.Is(result.Err, want) {
					t.Errorf("Compile error = %v, want %v", result.Err, want)
				}
			}
			if _, err := os.Stat(filepath.Join(tt.outDir, "1.png")); err == nil {
				t.Errorf("output written for failed job")
			}
		})
	}
}

func TestCompileCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := newFakeFetcher()
	fetcher.add(100, internal.WDT([]tile.Descriptor{
		{X: 0, Y: 0, ContentID: 1},
		{X: 1, Y: 0, ContentID: 2},
		{X: 2, Y: 0, ContentID: 3},
	}))
	for id := uint32(1); id <= 3; id++ {
		fetcher.add(id, internal.PNG(4, red))
	}
	fetcher.hook = func(id uint32) {
		if id == 1 {
			cancel()
		}
	}

	outDir := t.TempDir()
	compiler := compile.NewCompiler(fetcher, outDir)
	result := compiler.Compile(ctx, compile.Job{MapID: 1, LayoutID: 100})
	require.Equal(t, compile.StatusFailed, result.Status)
	require.ErrorIs(t, result.Err, context.Canceled)
	require.NoFileExists(t, filepath.Join(outDir, "1.png"))
	require.Empty(t, tempFiles(t, outDir))

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	require.Zero(t, fetcher.requests[2])
}

func TestCompileCancelledOnLastTile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := newFakeFetcher()
	fetcher.add(100, internal.WDT([]tile.Descriptor{
		{X: 0, Y: 0, ContentID: 1},
		{X: 1, Y: 0, ContentID: 2},
		{X: 2, Y: 0, ContentID: 3},
	}))
	for id := uint32(1); id <= 3; id++ {
		fetcher.add(id, internal.PNG(4, red))
	}
	fetcher.hook = func(id uint32) {
		if id == 3 {
			cancel()
		}
	}

	outDir := t.TempDir()
	compiler := compile.NewCompiler(fetcher, outDir)
	job := compile.Job{MapID: 1, LayoutID: 100}
	result := compiler.Compile(ctx, job)
	require.Equal(t, compile.StatusFailed, result.Status)
	require.ErrorIs(t, result.Err, context.Canceled)
	require.NoFileExists(t, filepath.Join(outDir, "1.png"))
	require.Empty(t, tempFiles(t, outDir))

	// The next run builds the complete map.
	fetcher.hook = nil
	result = compiler.Compile(context.Background(), job)
	require.Equal(t, compile.StatusDone, result.Status)
	require.Equal(t, 3, result.Placed)
	require.Zero(t, result.Omitted)
}

func TestCompileSharedFetchCancelled(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.add(100, internal.WDT([]tile.Descriptor{
		{X: 0, Y: 0, ContentID: 1},
		{X: 1, Y: 0, ContentID: 2},
	}))
	fetcher.add(1, internal.PNG(4, red))
	fetcher.failures[2] = fmt.Errorf("fetch 2: %w", context.Canceled)

	outDir := t.TempDir()
	compiler := compile.NewCompiler(fetcher, outDir)
	result := compiler.Compile(context.Background(), compile.Job{MapID: 1, LayoutID: 100})
	require.Equal(t, compile.StatusFailed, result.Status)
	require.ErrorIs(t, result.Err, context.Canceled)
	require.NoFileExists(t, filepath.Join(outDir, "1.png"))
}

func TestCompileOutputMode(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.add(100, internal.WDT([]tile.Descriptor{{X: 0, Y: 0, ContentID: 1}}))
	fetcher.add(1, internal.PNG(4, red))

	compiler := compile.NewCompiler(fetcher, t.TempDir())
	result := compiler.Compile(context.Background(), compile.Job{MapID: 1, LayoutID: 100})
	require.Equal(t, compile.StatusDone, result.Status)

	info, err := os.Stat(result.Path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if got, want := info.Mode().Perm(), os.FileMode(0644); got != want {
		t.Errorf("mode = %v, want = %v", got, want)
	}
}

func TestCompileThroughCache(t *testing.T) {
	server := internal.NewContentServer(t, testBuild)
	server.AddID(775971, internal.WDT([]tile.Descriptor{
		{X: 31, Y: 31, ContentID: 1001},
		{X: 32, Y: 31, ContentID: 1002},
	}))
	server.AddID(1001, internal.BLP(8, 8, red))
	server.AddID(1002, internal.PNG(8, green))

	store := cache.NewStore(t.TempDir())
	client, err := casc.NewClient(testBuild, store, casc.WithBaseURL(server.BaseURL()))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	compiler := compile.NewCompiler(client, t.TempDir())
	result := compiler.Compile(context.Background(), compile.Job{MapID: 0, Name: "Eastern Kingdoms", LayoutID: 775971})
	require.NoError(t, result.Err)
	require.Equal(t, compile.StatusDone, result.Status)
	require.Equal(t, 3, server.TotalRequests())

	img := readImage(t, result.Path)
	require.Equal(t, image.Rect(0, 0, 16, 8), img.Bounds())
	require.Equal(t, red, pixel(img, 0, 0))
	require.Equal(t, green, pixel(img, 8, 0))

	// A second compiler over the same cache never touches the network.
	again := compile.NewCompiler(client, t.TempDir())
	result = again.Compile(context.Background(), compile.Job{MapID: 0, LayoutID: 775971})
	require.Equal(t, compile.StatusDone, result.Status)
	require.Equal(t, 3, server.TotalRequests())
}
