// Package marchaux contains auxiliary helpers to get started rendering
// raymarched scenes to images, animations and an interactive window.
// Applications with specific needs should write their own rendering loop
// using the glrender package directly.
package marchaux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/gif"
	"image/png"
	"io"
	"time"

	"github.com/soypat/glmarch/glbuild"
	"github.com/soypat/glmarch/gleval"
	"github.com/soypat/glmarch/glrender"
	xdraw "golang.org/x/image/draw"
)

// RenderConfig configures frame rendering.
type RenderConfig struct {
	// Width and Height are the frame size in pixels.
	Width, Height int
	// Workers is the number of goroutines shading rows. Zero uses all CPUs.
	// Ignored when UseGPU is set.
	Workers int
	// UseGPU evaluates the distance field with a compute shader. Requires cgo
	// and must be called from the main goroutine with its OS thread locked.
	UseGPU bool
	Silent bool
	// Background is an optional image composited with every frame, see [Composite].
	Background image.Image
	// Mode selects how Background is composited.
	Mode CompositeMode
}

func (cfg RenderConfig) validate() error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", cfg.Width, cfg.Height)
	}
	return nil
}

// AnimationConfig configures animated output.
type AnimationConfig struct {
	// Frames is the number of frames rendered.
	Frames int
	// TicksPerFrame is the number of clock ticks between frames. Zero means one tick per frame.
	TicksPerFrame int
	// Clock supplies the time of each frame and is advanced after every frame.
	// A nil Clock starts at time zero.
	Clock *Clock
}

// RenderImage renders a single frame of s at time t.
func RenderImage(s glbuild.Shader3D, t float32, cfg RenderConfig) (*image.RGBA, error) {
	err := cfg.validate()
	if err != nil {
		return nil, err
	}
	log := func(args ...any) {
		if !cfg.Silent {
			fmt.Println(args...)
		}
	}
	sdf, renderer, cleanup, err := newRenderer(s, cfg, log)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	watch := stopwatch()
	img, err := renderFrame(sdf, renderer, t, cfg)
	if err != nil {
		return nil, err
	}
	log("rendered", cfg.Width, "x", cfg.Height, "frame at t =", t, "in", watch())
	return img, nil
}

// RenderPNG renders a single frame of s at time t and writes it to w PNG encoded.
func RenderPNG(w io.Writer, s glbuild.Shader3D, t float32, cfg RenderConfig) error {
	img, err := RenderImage(s, t, cfg)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// RenderGIF renders an animation of s and writes it to w GIF encoded.
// The frame delay is derived from the clock's nominal [TickPeriod].
func RenderGIF(w io.Writer, s glbuild.Shader3D, anim AnimationConfig, cfg RenderConfig) error {
	err := cfg.validate()
	if err != nil {
		return err
	} else if anim.Frames <= 0 {
		return errors.New("zero or negative frame count")
	}
	log := func(args ...any) {
		if !cfg.Silent {
			fmt.Println(args...)
		}
	}
	clock := anim.Clock
	if clock == nil {
		clock = new(Clock)
	}
	ticks := anim.TicksPerFrame
	if ticks <= 0 {
		ticks = 1
	}
	// GIF delays are in hundredths of a second.
	delay := int(time.Duration(ticks) * TickPeriod / (10 * time.Millisecond))
	if delay < 1 {
		delay = 1
	}
	sdf, renderer, cleanup, err := newRenderer(s, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()
	out := &gif.GIF{
		Image:     make([]*image.Paletted, 0, anim.Frames),
		Delay:     make([]int, 0, anim.Frames),
		LoopCount: 0,
	}
	watch := stopwatch()
	for k := 0; k < anim.Frames; k++ {
		if k%max(1, anim.Frames/10) == 0 {
			log("frame", k+1, "of", anim.Frames)
		}
		rgba, err := renderFrame(sdf, renderer, clock.Time(), cfg)
		if err != nil {
			return fmt.Errorf("frame %d: %w", k, err)
		}
		pimg := image.NewPaletted(rgba.Bounds(), palette.Plan9)
		xdraw.FloydSteinberg.Draw(pimg, pimg.Bounds(), rgba, image.Point{})
		out.Image = append(out.Image, pimg)
		out.Delay = append(out.Delay, delay)
		clock.AdvanceN(uint64(ticks))
	}
	log("rendered", anim.Frames, "frames in", watch())
	return gif.EncodeAll(w, out)
}

func renderFrame(sdf gleval.SDF3, renderer *glrender.ImageRenderer, t float32, cfg RenderConfig) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	err := renderer.Render(sdf, img, t)
	if err != nil {
		return nil, err
	}
	if cfg.Background != nil {
		img = Composite(img, cfg.Background, cfg.Mode)
	}
	return img, nil
}

func newRenderer(s glbuild.Shader3D, cfg RenderConfig, log func(args ...any)) (sdf gleval.SDF3, renderer *glrender.ImageRenderer, cleanup func(), err error) {
	if s == nil {
		return nil, nil, nil, errors.New("nil shader")
	}
	watch := stopwatch()
	cleanup = func() {}
	if cfg.UseGPU {
		log("using GPU")
		terminate, err := gleval.Init1x1GLFW()
		if err != nil {
			return nil, nil, nil, err
		}
		err = glbuild.ShortenNames3D(&s, 32)
		if err != nil {
			terminate()
			return nil, nil, nil, fmt.Errorf("shortening shader names: %s", err)
		}
		programmer := glbuild.NewDefaultProgrammer()
		source := new(bytes.Buffer)
		_, _, err = programmer.WriteComputeSDF3(source, s)
		if err != nil {
			terminate()
			return nil, nil, nil, err
		}
		invocX, _, _ := programmer.ComputeInvocations()
		gpu, err := gleval.NewComputeGPUSDF3(source, s.Bounds(), gleval.ComputeConfig{InvocX: invocX})
		if err != nil {
			terminate()
			return nil, nil, nil, fmt.Errorf("instantiating GPU SDF: %s", err)
		}
		sdf = gpu
		cleanup = func() {
			logEvaluations(sdf, log)
			gpu.Release()
			terminate()
		}
		renderer = glrender.NewImageRenderer(1)
	} else {
		log("using CPU")
		sdf, err = gleval.NewCPUSDF3(s)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("instantiating SDF: %s", err)
		}
		cleanup = func() { logEvaluations(sdf, log) }
		renderer = glrender.NewImageRenderer(cfg.Workers)
	}
	log("instantiating evaluation SDF took", watch())
	return sdf, renderer, cleanup, nil
}

func logEvaluations(sdf gleval.SDF3, log func(args ...any)) {
	if e, ok := sdf.(interface{ Evaluations() uint64 }); ok {
		log("evaluated SDF", e.Evaluations(), "times")
	}
}

// UIConfig configures the interactive window.
type UIConfig struct {
	Width, Height int
	// Context stops the window loop when done. May be nil.
	Context context.Context
	// Clock supplies the time fed to the shader. A nil Clock starts at time zero.
	Clock *Clock
	// TickPeriod is the wall clock duration of a clock tick. Zero uses [TickPeriod].
	TickPeriod time.Duration
	Silent     bool
}

// UI opens a window that renders s with the GPU raymarcher, advancing the clock
// once per tick period. It blocks until the window is closed or the context is done.
// Must be called from the main goroutine with its OS thread locked. Requires cgo.
func UI(s glbuild.Shader3D, cfg UIConfig) error {
	if s == nil {
		return errors.New("nil shader")
	} else if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("invalid window size %dx%d", cfg.Width, cfg.Height)
	} else if cfg.TickPeriod < 0 {
		return errors.New("negative tick period")
	}
	if cfg.TickPeriod == 0 {
		cfg.TickPeriod = TickPeriod
	}
	if cfg.Clock == nil {
		cfg.Clock = new(Clock)
	}
	return ui(s, cfg)
}

func stopwatch() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}
