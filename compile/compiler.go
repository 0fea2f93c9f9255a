// Package compile builds one image per map from its minimap tiles and runs
// many such builds under a fixed worker budget.
package compile

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/eak1mov/go-minimaps/canvas"
	"github.com/eak1mov/go-minimaps/tile"
	"github.com/eak1mov/go-minimaps/wdt"
)

// Fetcher returns the content of a file by its file data ID.
type Fetcher interface {
	FileByID(ctx context.Context, id uint32, name string) ([]byte, error)
}

// Compiler compiles single maps into "<outDir>/<mapID>.png". It is safe
// for concurrent use; every Compile call owns its own canvas.
type Compiler struct {
	fetcher Fetcher
	outDir  string
	logger  *slog.Logger
}

type Option func(*Compiler)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) { c.logger = logger }
}

func NewCompiler(fetcher Fetcher, outDir string, opts ...Option) *Compiler {
	c := &Compiler{
		fetcher: fetcher,
		outDir:  outDir,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OutputPath returns where the image of job is written.
func (c *Compiler) OutputPath(job Job) string {
	return filepath.Join(c.outDir, strconv.FormatUint(uint64(job.MapID), 10)+".png")
}

// Compile runs a single job to completion. Failures of individual tiles
// only omit those tiles; the returned Result is always terminal.
func (c *Compiler) Compile(ctx context.Context, job Job) Result {
	t := &task{
		compiler: c,
		state:    StateStart,
		result:   Result{Job: job},
		logger:   c.logger.With("map_id", job.MapID, "map", job.Name),
	}
	start := time.Now()
	t.run(ctx)
	t.result.Elapsed = time.Since(start)
	return t.result
}

type task struct {
	compiler *Compiler
	state    State
	result   Result
	logger   *slog.Logger
}

func (t *task) advance(to State) {
	if !allowedTransition(t.state, to) {
		panic(fmt.Sprintf("minimaps: invalid task transition %v -> %v", t.state, to))
	}
	t.logger.Debug("minimaps: task state", "from", t.state, "to", to)
	t.state = to
}

func (t *task) skip(status Status) {
	t.advance(StateSkipped)
	t.result.Status = status
}

func (t *task) fail(err error) {
	t.advance(StateFailed)
	t.result.Status = StatusFailed
	t.result.Err = err
}

func (t *task) omit(d tile.Descriptor, err error) {
	t.result.Omitted++
	t.logger.Warn("minimaps: tile omitted", "x", d.X, "y", d.Y, "content_id", d.ContentID, "error", err)
}

func (t *task) run(ctx context.Context) {
	job := t.result.Job
	fetcher := t.compiler.fetcher

	if job.LayoutID == 0 {
		t.skip(StatusSkippedNoLayout)
		return
	}

	outPath := t.compiler.OutputPath(job)
	t.result.Path = outPath
	if _, err := os.Stat(outPath); err == nil {
		t.skip(StatusSkippedExisting)
		return
	}

	layout, err := fetcher.FileByID(ctx, job.LayoutID, "")
	if err != nil {
		t.fail(fmt.Errorf("%w: %w", ErrLayoutUnavailable, err))
		return
	}
	t.advance(StateLayoutFetched)

	descs, err := wdt.Parse(layout)
	if err != nil {
		t.fail(err)
		return
	}
	tiles := tile.Present(descs)
	t.advance(StateIndexBuilt)
	if len(tiles) == 0 {
		t.skip(StatusSkippedNoTiles)
		return
	}

	bounds, _ := tile.BoundsOf(tiles)
	t.advance(StateCompositing)
	t.logger.Debug("minimaps: compositing", "tiles", len(tiles), "cols", bounds.Cols(), "rows", bounds.Rows())

	var cv *canvas.Canvas
	for _, d := range tiles {
		if err := ctx.Err(); err != nil {
			t.fail(err)
			return
		}

		data, err := fetcher.FileByID(ctx, d.ContentID, "")
		if err != nil {
			if cause := cancellation(ctx, err); cause != nil {
				t.fail(cause)
				return
			}
			t.omit(d, err)
			continue
		}

		if cv != nil {
			err = cv.Place(data, d, bounds.MinX, bounds.MinY)
		} else {
			cv, err = firstTile(data, d, bounds)
		}
		if err != nil {
			t.omit(d, err)
		}
	}

	// Existing outputs are never rebuilt, so a cancelled map is not written.
	if err := ctx.Err(); err != nil {
		t.fail(err)
		return
	}
	if cv == nil {
		t.fail(ErrNothingPlaced)
		return
	}
	t.result.Placed = cv.Placed()
	t.result.Scaled = cv.Scaled()
	if cv.Scaled() > 0 {
		t.logger.Warn("minimaps: tiles resized to first tile size", "tiles", cv.Scaled(), "tile_size", cv.TileSize())
	}

	t.advance(StateFinalizing)
	size, err := writeAtomic(outPath, cv.Finalize)
	if err != nil {
		t.fail(fmt.Errorf("%w: %w", ErrWrite, err))
		return
	}
	t.result.Size = size
	t.advance(StateDone)
	t.result.Status = StatusDone
}

// cancellation returns the error that abandons the task when a tile fetch
// failed because the run, or a shared fetch of the same file, was cancelled.
func cancellation(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// firstTile decodes the first available tile, which fixes the tile size
// of the whole map, and allocates the canvas with it.
func firstTile(data []byte, d tile.Descriptor, bounds tile.Bounds) (*canvas.Canvas, error) {
	img, err := canvas.Decode(data)
	if err != nil {
		return nil, err
	}
	tileSize := img.Bounds().Dx()
	if tileSize <= 0 {
		return nil, fmt.Errorf("%w: empty image", canvas.ErrDecode)
	}
	cv := canvas.NewForBounds(bounds, tileSize)
	if err := cv.PlaceImage(img, d, bounds.MinX, bounds.MinY); err != nil {
		return nil, err
	}
	return cv, nil
}

// writeAtomic writes a file through a temporary file in the same directory
// and renames it into place, so filePath either does not exist or is
// complete.
func writeAtomic(filePath string, encode func(io.Writer) error) (int64, error) {
	dirPath := filepath.Dir(filePath)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return 0, err
	}

	file, err := os.CreateTemp(dirPath, "."+filepath.Base(filePath)+"-*.tmp")
	if err != nil {
		return 0, err
	}
	tempPath := file.Name()
	committed := false
	defer func() {
		if !committed {
			file.Close()
			os.Remove(tempPath)
		}
	}()

	buffered := bufio.NewWriter(file)
	if err := encode(buffered); err != nil {
		return 0, err
	}
	if err := buffered.Flush(); err != nil {
		return 0, err
	}
	if err := file.Sync(); err != nil {
		return 0, err
	}
	if err := file.Chmod(0644); err != nil {
		return 0, err
	}
	info, err := file.Stat()
	if err != nil {
		return 0, err
	}
	if err := file.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		return 0, err
	}
	committed = true
	return info.Size(), nil
}
