//go:build !tinygo && cgo

package marchaux

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"github.com/soypat/glmarch/glbuild"
	"github.com/soypat/glmarch/glrender"
)

// screenVertexSource emits a single triangle covering the viewport from gl_VertexID
// so no vertex buffer is needed.
const screenVertexSource = `#version 460
void main() {
	vec2 pos = vec2(float((gl_VertexID & 1) << 2), float((gl_VertexID & 2) << 1)) - 1.0;
	gl_Position = vec4(pos, 0.0, 1.0);
}
` + "\x00"

func ui(s glbuild.Shader3D, cfg UIConfig) error {
	log := func(args ...any) {
		if !cfg.Silent {
			fmt.Println(args...)
		}
	}
	window, term, err := startGLFW(cfg.Width, cfg.Height)
	if err != nil {
		return err
	}
	defer term()
	err = glbuild.ShortenNames3D(&s, 32)
	if err != nil {
		return err
	}
	var fragSrc bytes.Buffer
	programmer := glbuild.NewDefaultProgrammer()
	_, err = programmer.WriteFragRaymarcher(&fragSrc, s, glrender.RaymarchConfig(glbuild.DialectGLSL))
	if err != nil {
		return err
	}
	fragSrc.WriteByte(0)
	prog, err := glgl.CompileProgram(glgl.ShaderSource{
		Vertex:   screenVertexSource,
		Fragment: fragSrc.String(),
	})
	if err != nil {
		return fmt.Errorf("%s\n\n%w", fragSrc.String(), err)
	}
	defer prog.Delete()
	prog.Bind()
	// Core profile refuses to draw without a bound vertex array, even an empty one.
	var vao uint32
	gl.GenVertexArrays(1, &vao)
	defer gl.DeleteVertexArrays(1, &vao)
	gl.BindVertexArray(vao)
	resUniform, err := prog.UniformLocation(glbuild.ResolutionUniform + "\x00")
	if err != nil {
		return err
	}
	// Scenes that do not animate have the time uniform optimized away.
	timeUniform, err := prog.UniformLocation(glbuild.TimeUniform + "\x00")
	hasTime := err == nil
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	clock := cfg.Clock
	period := cfg.TickPeriod.Seconds()
	var pending float64
	previousTime := glfw.GetTime()
	ctx := cfg.Context
	frames := 0
	watch := stopwatch()
	for !window.ShouldClose() {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		width, height := window.GetFramebufferSize()
		currentTime := glfw.GetTime()
		pending += currentTime - previousTime
		previousTime = currentTime
		if ticks := uint64(pending / period); ticks > 0 {
			clock.AdvanceN(ticks)
			pending -= float64(ticks) * period
		}

		gl.Viewport(0, 0, int32(width), int32(height))
		gl.Clear(gl.COLOR_BUFFER_BIT)
		gl.Uniform2f(resUniform, float32(width), float32(height))
		if hasTime {
			gl.Uniform1f(timeUniform, clock.Time())
		}
		gl.DrawArrays(gl.TRIANGLES, 0, 3)
		window.SwapBuffers()
		frames++
		time.Sleep(cfg.TickPeriod)
		glfw.PollEvents()
	}
	elapsed := watch()
	log("drew", frames, "frames in", elapsed, "ending at t =", clock.Time())
	return glgl.Err()
}

func startGLFW(width, height int) (window *glfw.Window, term func(), err error) {
	if err := glfw.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 6)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	window, err = glfw.CreateWindow(width, height, "glmarch", nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("failed to create GLFW window: %w", err)
	}
	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		glfw.Terminate()
		return nil, nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	return window, glfw.Terminate, nil
}
