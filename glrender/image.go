package glrender

import (
	"errors"
	"image"
	"image/color"
	"runtime"
	"sync"

	"github.com/soypat/geometry/ms2"
	"github.com/soypat/glgl/math/ms1"
	"github.com/soypat/glmarch/gleval"
)

// ImageRenderer shades whole frames into images. Rows are distributed over
// a fixed number of workers each owning its own [Marcher] and [gleval.FrameData],
// so the SDF must support concurrent evaluation with distinct userData,
// which all CPU SDFs in this module do.
type ImageRenderer struct {
	workers []rowWorker
}

type rowWorker struct {
	m   Marcher
	fd  gleval.FrameData
	row [][4]float32
}

// NewImageRenderer returns an ImageRenderer using numWorkers goroutines.
// If numWorkers is zero or negative runtime.NumCPU is used.
func NewImageRenderer(numWorkers int) *ImageRenderer {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &ImageRenderer{workers: make([]rowWorker, numWorkers)}
}

// Render shades sdf at time t into img. The image bounds define the resolution,
// with the origin of pixel coordinates at the top-left corner of img.
// GPU SDFs must be rendered with a single worker on the goroutine owning the GL context.
func (ir *ImageRenderer) Render(sdf gleval.SDF3, img *image.RGBA, t float32) error {
	if sdf == nil {
		return errors.New("nil SDF3")
	}
	bb := img.Bounds()
	width, height := bb.Dx(), bb.Dy()
	if width == 0 || height == 0 {
		return errors.New("empty image")
	}
	res := ms2.Vec{X: float32(width), Y: float32(height)}
	rows := make(chan int, height)
	for y := 0; y < height; y++ {
		rows <- y
	}
	close(rows)
	nw := len(ir.workers)
	if nw > height {
		nw = height
	}
	for i := 0; i < nw; i++ {
		w := &ir.workers[i]
		w.fd.Time = t
		w.fd.Resolution = res
		if cap(w.row) < width {
			w.row = make([][4]float32, width)
		}
		w.row = w.row[:width]
	}
	if nw == 1 {
		// Stay on the calling goroutine, GL contexts are bound to their thread.
		return ir.workers[0].renderRows(sdf, rows, res, img)
	}
	var wg sync.WaitGroup
	errs := make([]error, nw)
	for i := 0; i < nw; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ir.workers[i].renderRows(sdf, rows, res, img)
		}(i)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (w *rowWorker) renderRows(sdf gleval.SDF3, rows <-chan int, res ms2.Vec, img *image.RGBA) error {
	bb := img.Bounds()
	for y := range rows {
		err := w.m.ShadeRow(sdf, y, res, w.row, &w.fd)
		if err != nil {
			return err
		}
		for x, c := range w.row {
			img.SetRGBA(bb.Min.X+x, bb.Min.Y+y, ToRGBA(c))
		}
	}
	return nil
}

// ToRGBA converts a color with channels in [0,1] to 8-bit color, clamping out of range values.
func ToRGBA(c [4]float32) color.RGBA {
	return color.RGBA{
		R: unorm8(c[0]),
		G: unorm8(c[1]),
		B: unorm8(c[2]),
		A: unorm8(c[3]),
	}
}

func unorm8(v float32) uint8 {
	return uint8(ms1.Clamp(v, 0, 1)*255 + 0.5)
}
