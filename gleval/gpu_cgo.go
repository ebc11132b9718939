//go:build !tinygo && cgo

package gleval

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"unsafe"

	"github.com/go-gl/gl/v4.6-core/gl"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/v4.6-core/glgl"
	"github.com/soypat/glmarch/glbuild"
)

// Init1x1GLFW starts a 1x1 sized GLFW so that user can start working with GPU.
// It returns a termination function that should be called when user is done running loads on GPU.
func Init1x1GLFW() (terminate func(), err error) {
	_, terminate, err = glgl.InitWithCurrentWindow33(glgl.WindowConfig{
		Title:   "compute",
		Version: [2]int{4, 6},
		Width:   1,
		Height:  1,
	})
	return terminate, err
}

// ComputeConfig configures GPU compute evaluation.
type ComputeConfig struct {
	// InvocX is the local work group size in X. Must match the
	// size the compute program was generated with.
	InvocX int
}

// NewComputeGPUSDF3 instantiates a [SDF3] that runs on the GPU.
// The program source is expected to be generated by [glbuild.Programmer.WriteComputeSDF3].
func NewComputeGPUSDF3(glglSourceCode io.Reader, bb ms3.Box, cfg ComputeConfig) (*SDF3Compute, error) {
	if cfg.InvocX < 1 {
		return nil, errors.New("zero or negative invocation size")
	}
	combinedSource, err := glgl.ParseCombined(glglSourceCode)
	if err != nil {
		return nil, err
	}
	glprog, err := glgl.CompileProgram(combinedSource)
	if err != nil {
		return nil, errors.New(string(combinedSource.Compute) + "\n" + err.Error())
	}
	sdf := &SDF3Compute{
		prog:    glprog,
		bb:      bb,
		invocX:  cfg.InvocX,
		timeLoc: -1,
		pos:     storageBuffer{binding: 0, usage: gl.DYNAMIC_DRAW},
		dist:    storageBuffer{binding: 1, usage: gl.DYNAMIC_READ},
	}
	glprog.Bind()
	// Programs that do not animate have no time uniform.
	if loc, err := glprog.UniformLocation(glbuild.TimeUniform + "\x00"); err == nil {
		sdf.timeLoc = loc
	}
	glprog.Unbind()
	return sdf, nil
}

// SDF3Compute evaluates a compiled compute shader SDF on the GPU.
// Storage buffers are kept between calls and only grow, so rendering
// consecutive frames does not reallocate GPU memory.
// It must be used from the goroutine that owns the GL context.
type SDF3Compute struct {
	prog    glgl.Program
	bb      ms3.Box
	invocX  int
	timeLoc int32
	pos     storageBuffer
	dist    storageBuffer
	evals   uint64
}

func (sdf *SDF3Compute) Bounds() ms3.Box {
	return sdf.bb
}

// Evaluations returns total evaluations performed succesfully during sdf's lifetime.
func (sdf *SDF3Compute) Evaluations() uint64 { return sdf.evals }

// Evaluate runs the compute program over pos. If userData carries a [FrameData]
// its Time is uploaded to the [glbuild.TimeUniform] uniform.
func (sdf *SDF3Compute) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if len(pos) != len(dist) {
		return errMismatchBufferLength
	} else if len(pos) == 0 {
		return errEmptyBuffers
	} else if sdf.prog.ID() == 0 {
		return errors.New("program id is 0, did you create SDF3Compute with NewComputeGPUSDF3?")
	}
	sdf.prog.Bind()
	defer sdf.prog.Unbind()
	if fd, err := GetFrameData(userData); err == nil && sdf.timeLoc >= 0 {
		err = sdf.prog.SetUniformf(sdf.timeLoc, fd.Time)
		if err != nil {
			return err
		}
	}

	// ms3.Vec is padded to 16 bytes, the stride of an std430 vec3 array.
	posSize := len(pos) * int(unsafe.Sizeof(pos[0]))
	err := sdf.pos.write(unsafe.Pointer(&pos[0]), posSize)
	if err != nil {
		return fmt.Errorf("loading positions: %w", err)
	}
	distSize := len(dist) * int(unsafe.Sizeof(dist[0]))
	err = sdf.dist.write(nil, distSize)
	if err != nil {
		return fmt.Errorf("allocating distances: %w", err)
	}
	nWorkX := (len(dist) + sdf.invocX - 1) / sdf.invocX
	gl.DispatchCompute(uint32(nWorkX), 1, 1)
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT)
	err = sdf.dist.read(unsafe.Pointer(&dist[0]), distSize)
	if err != nil {
		return err
	}
	if err = glgl.Err(); err != nil {
		return err
	}
	sdf.evals += uint64(len(pos))
	return nil
}

// Release frees the GPU buffers and program. sdf must not be used afterwards.
func (sdf *SDF3Compute) Release() {
	sdf.pos.release()
	sdf.dist.release()
	if sdf.prog.ID() != 0 {
		sdf.prog.Delete()
	}
}

// storageBuffer is a shader storage buffer bound to a fixed binding point
// whose capacity grows to fit the largest write.
type storageBuffer struct {
	id       uint32
	capacity int
	binding  uint32
	usage    uint32
}

// write binds the first size bytes of the buffer to its binding point. If data
// is nil the contents are left undefined, which suits output buffers.
func (b *storageBuffer) write(data unsafe.Pointer, size int) error {
	if b.id == 0 {
		var pin runtime.Pinner
		pin.Pin(b)
		gl.GenBuffers(1, &b.id)
		pin.Unpin()
		if b.id == 0 {
			return glErrOrMessage("zero SSBO id set by GL")
		}
	}
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, b.id)
	if size > b.capacity {
		gl.BufferData(gl.SHADER_STORAGE_BUFFER, size, data, b.usage)
		b.capacity = size
	} else if data != nil {
		gl.BufferSubData(gl.SHADER_STORAGE_BUFFER, 0, size, data)
	}
	// Binding a range makes the shader's array length equal to the batch size.
	gl.BindBufferRange(gl.SHADER_STORAGE_BUFFER, b.binding, b.id, 0, size)
	return nil
}

// read copies the first size bytes of the buffer into dst.
func (b *storageBuffer) read(dst unsafe.Pointer, size int) error {
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, b.id)
	ptr := gl.MapBufferRange(gl.SHADER_STORAGE_BUFFER, 0, size, gl.MAP_READ_BIT)
	if ptr == nil {
		return glErrOrMessage("failed to map SSBO buffer during copy")
	}
	copy(unsafe.Slice((*byte)(dst), size), unsafe.Slice((*byte)(ptr), size))
	gl.UnmapBuffer(gl.SHADER_STORAGE_BUFFER)
	return nil
}

func (b *storageBuffer) release() {
	if b.id == 0 {
		return
	}
	var pin runtime.Pinner
	pin.Pin(b)
	gl.DeleteBuffers(1, &b.id)
	pin.Unpin()
	b.id = 0
	b.capacity = 0
}

func glErrOrMessage(defaultMsg string) (err error) {
	err = glgl.Err()
	if err == nil {
		err = errors.New(defaultMsg)
	} else {
		err = fmt.Errorf("%s: %w", defaultMsg, err)
	}
	return err
}
